// Package viewer coordinates the overlay pipeline for one document view:
// geometry lookup, strategy selection, projection, and the has-OCR signal the
// surrounding viewer uses to suppress its native text layer.
//
// A session is event-driven: every dependency change (document, page,
// container size, calibration, enabled flag) bumps a generation counter and
// triggers an asynchronous recompute. A result is applied only if its
// generation is still current; page numbers change rapidly during scroll, and
// a stale response must never populate state.
package viewer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/docpane/textlayer/pkg/geometry"
	"github.com/docpane/textlayer/pkg/geomstore"
	"github.com/docpane/textlayer/pkg/nativetext"
	"github.com/docpane/textlayer/pkg/projection"
)

// Strategy selects how overlay positions are computed.
type Strategy string

const (
	// StrategyProjection trusts OCR boxes and projects them linearly.
	StrategyProjection Strategy = "projection"
	// StrategyNative overlays the renderer's own text-run positions.
	StrategyNative Strategy = "native"
)

// GeometrySource resolves per-document OCR geometry. *geomstore.Store
// satisfies it.
type GeometrySource interface {
	Geometry(ctx context.Context, documentID string) geomstore.Result
}

// DocumentSource fetches raw document bytes for the native strategy.
// *geomstore.Client satisfies it.
type DocumentSource interface {
	FetchDocument(ctx context.Context, documentID string) ([]byte, error)
}

// Config assembles a session's collaborators.
type Config struct {
	Geometry  GeometrySource
	Documents DocumentSource // required only for StrategyNative
	Strategy  Strategy
	Resolver  *nativetext.Resolver // nil selects a renderer-text resolver
	Logger    *slog.Logger
}

// Session is the per-view overlay state machine. All exported methods are
// safe for concurrent use.
type Session struct {
	id       string
	geometry GeometrySource
	docs     DocumentSource
	engine   *projection.Engine
	resolver *nativetext.Resolver
	strategy Strategy
	log      *slog.Logger

	mu         sync.Mutex
	gen        uint64
	docID      string
	page       int
	containerW float64
	containerH float64
	cal        projection.Calibration
	enabled    bool
	words      []projection.ProjectedWord
	hasOCR     bool
	onStatus   func(hasOCR bool)

	// Last fetched document bytes, reused across page changes within the
	// same document.
	docBytesID string
	docBytes   []byte
}

// NewSession creates a session. The zero Strategy means StrategyProjection.
func NewSession(cfg Config) *Session {
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyProjection
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Resolver == nil {
		cfg.Resolver = nativetext.NewResolver(cfg.Logger)
	}
	return &Session{
		id:       uuid.NewString(),
		geometry: cfg.Geometry,
		docs:     cfg.Documents,
		engine:   projection.NewEngine(),
		resolver: cfg.Resolver,
		strategy: cfg.Strategy,
		log:      cfg.Logger,
		enabled:  true,
	}
}

// ID returns the session's identifier, used for log correlation.
func (s *Session) ID() string { return s.id }

// OnStatus registers the has-OCR callback. The viewer uses it to suppress
// the renderer's native text layer; the two must not be active at once.
func (s *Session) OnStatus(fn func(hasOCR bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatus = fn
}

// SetDocument switches the session to a document and recomputes.
func (s *Session) SetDocument(ctx context.Context, documentID string) {
	s.update(ctx, func() { s.docID = documentID })
}

// SetPage navigates to a 1-indexed page and recomputes.
func (s *Session) SetPage(ctx context.Context, page int) {
	s.update(ctx, func() { s.page = page })
}

// SetContainerSize reports the current container pixel dimensions,
// post-zoom, and recomputes.
func (s *Session) SetContainerSize(ctx context.Context, w, h float64) {
	s.update(ctx, func() { s.containerW, s.containerH = w, h })
}

// SetCalibration applies a calibration and recomputes.
func (s *Session) SetCalibration(ctx context.Context, cal projection.Calibration) {
	s.update(ctx, func() { s.cal = cal })
}

// SetEnabled toggles the overlay globally, e.g. when the document already
// has native extractable text.
func (s *Session) SetEnabled(ctx context.Context, enabled bool) {
	s.update(ctx, func() { s.enabled = enabled })
}

// update applies a state mutation, invalidates in-flight work by bumping the
// generation, and kicks an asynchronous recompute for the new state.
func (s *Session) update(ctx context.Context, mutate func()) {
	s.mu.Lock()
	mutate()
	s.gen++
	gen := s.gen
	snap := s.snapshotLocked()
	s.mu.Unlock()

	go s.recompute(ctx, gen, snap)
}

type snapshot struct {
	docID      string
	page       int
	containerW float64
	containerH float64
	cal        projection.Calibration
	enabled    bool
}

func (s *Session) snapshotLocked() snapshot {
	return snapshot{
		docID:      s.docID,
		page:       s.page,
		containerW: s.containerW,
		containerH: s.containerH,
		cal:        s.cal,
		enabled:    s.enabled,
	}
}

func (s *Session) recompute(ctx context.Context, gen uint64, snap snapshot) {
	if !snap.enabled || snap.docID == "" || snap.page < 1 || snap.containerW <= 0 || snap.containerH <= 0 {
		s.apply(gen, nil, false)
		return
	}

	res := s.geometry.Geometry(ctx, snap.docID)
	if !res.HasOCR() {
		s.apply(gen, nil, false)
		return
	}

	page := res.Geometry.PageByNumber(snap.page)
	if page == nil {
		// Geometry exists but not for this page; the document-level
		// signal stays true so the native layer remains suppressed.
		s.apply(gen, nil, true)
		return
	}

	words, ok := s.computeWords(ctx, snap, page)
	if !ok {
		s.apply(gen, nil, true)
		return
	}
	s.apply(gen, words, true)
}

func (s *Session) computeWords(ctx context.Context, snap snapshot, page *geometry.Page) ([]projection.ProjectedWord, bool) {
	if s.strategy != StrategyNative {
		return s.engine.Project(page.Words, snap.containerW, snap.containerH, snap.cal), true
	}

	docBytes, err := s.documentBytes(ctx, snap.docID)
	if err != nil {
		s.log.Warn("document fetch failed, no overlay for page",
			"session_id", s.id, "document_id", snap.docID, "page", snap.page, "error", err)
		return nil, false
	}
	words, err := s.resolver.Resolve(docBytes, snap.page, snap.containerW, snap.containerH, page.Words)
	if err != nil {
		s.log.Warn("native text extraction failed, no overlay for page",
			"session_id", s.id, "document_id", snap.docID, "page", snap.page, "error", err)
		return nil, false
	}
	return words, true
}

func (s *Session) documentBytes(ctx context.Context, docID string) ([]byte, error) {
	s.mu.Lock()
	if s.docBytesID == docID && s.docBytes != nil {
		data := s.docBytes
		s.mu.Unlock()
		return data, nil
	}
	s.mu.Unlock()

	data, err := s.docs.FetchDocument(ctx, docID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.docBytesID = docID
	s.docBytes = data
	s.mu.Unlock()
	return data, nil
}

// apply commits a recompute result unless it has been superseded.
func (s *Session) apply(gen uint64, words []projection.ProjectedWord, hasOCR bool) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.log.Debug("discarding stale overlay result", "session_id", s.id, "generation", gen)
		return
	}
	changed := s.hasOCR != hasOCR
	s.words = words
	s.hasOCR = hasOCR
	cb := s.onStatus
	s.mu.Unlock()

	if changed && cb != nil {
		cb(hasOCR)
	}
}

// Words returns the current projected words. The slice is shared; callers
// must not mutate it.
func (s *Session) Words() []projection.ProjectedWord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.words
}

// HasOCR reports whether a usable OCR overlay is active.
func (s *Session) HasOCR() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasOCR
}
