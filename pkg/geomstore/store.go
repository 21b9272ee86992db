package geomstore

import (
	"context"
	"log/slog"

	"github.com/cenkalti/backoff/v4"
)

// Fetcher is the upstream geometry source. *Client satisfies it; tests
// substitute fakes.
type Fetcher interface {
	FetchGeometry(ctx context.Context, documentID string) (Result, error)
}

// Store caches geometry per document for the lifetime of a viewer session.
// Geometry is immutable after ingestion, so entries never expire on time;
// the cache is LRU-bounded instead so long sessions visiting many documents
// don't accumulate unbounded state.
type Store struct {
	fetcher     Fetcher
	cache       *lruCache
	maxAttempts uint64
	log         *slog.Logger
}

const (
	// DefaultCacheSize bounds the number of cached documents.
	DefaultCacheSize = 64
	// DefaultMaxAttempts bounds retries of a transient fetch failure.
	DefaultMaxAttempts = 3
)

// Options tunes a Store. Zero values select the defaults.
type Options struct {
	CacheSize   int
	MaxAttempts uint64
	Logger      *slog.Logger
}

// NewStore creates a geometry store over the given fetcher.
func NewStore(fetcher Fetcher, opts Options) *Store {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		fetcher:     fetcher,
		cache:       newLRUCache(opts.CacheSize),
		maxAttempts: opts.MaxAttempts,
		log:         opts.Logger,
	}
}

// Geometry resolves geometry for a document, from cache when possible.
// Transient upstream failures are retried with exponential backoff; anything
// still failing is logged and reported as NotPresent, because a fetch
// problem must degrade to no-overlay rather than block page viewing.
// NotPresent outcomes are cached too: absence is a stable property of the
// document, and page mounts are frequent.
func (s *Store) Geometry(ctx context.Context, documentID string) Result {
	if res, ok := s.cache.get(documentID); ok {
		return res
	}

	res, err := s.fetchWithRetry(ctx, documentID)
	if err != nil {
		s.log.Warn("geometry fetch failed, degrading to no overlay",
			"document_id", documentID, "error", err)
		return Result{Status: StatusNotPresent}
	}

	s.cache.put(documentID, res)
	return res
}

func (s *Store) fetchWithRetry(ctx context.Context, documentID string) (Result, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.maxAttempts-1), ctx)

	return backoff.RetryWithData(func() (Result, error) {
		res, err := s.fetcher.FetchGeometry(ctx, documentID)
		if err != nil {
			if IsTransient(err) {
				return Result{}, err
			}
			return Result{}, backoff.Permanent(err)
		}
		return res, nil
	}, policy)
}

// Invalidate drops a cached document, e.g. after re-ingestion.
func (s *Store) Invalidate(documentID string) {
	s.cache.remove(documentID)
}

// Len returns the number of cached documents.
func (s *Store) Len() int {
	return s.cache.len()
}
