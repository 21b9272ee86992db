package geomstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docpane/textlayer/pkg/geometry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

const presentBody = `{
	"success": true,
	"hasOcrGeometry": true,
	"ocrGeometry": {
		"pages": [{"pageNumber": 1, "width": 612, "height": 792, "words": [
			{"text": "hello", "x": 0.1, "y": 0.2, "width": 0.1, "height": 0.02, "confidence": 0.99}
		]}],
		"provider": "textract"
	}
}`

func TestClient_FetchGeometry_Present(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/documents/doc-1/ocr-geometry" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sekrit" {
			t.Errorf("unexpected auth header %q", got)
		}
		fmt.Fprint(w, presentBody)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sekrit", time.Second)
	res, err := c.FetchGeometry(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.HasOCR() {
		t.Fatal("expected geometry present")
	}
	if res.Geometry.Provider != geometry.ProviderTextract {
		t.Errorf("unexpected provider %q", res.Geometry.Provider)
	}
	if res.Geometry.WordCount() != 1 {
		t.Errorf("expected 1 word, got %d", res.Geometry.WordCount())
	}
}

func TestClient_FetchGeometry_NotPresentIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": true, "hasOcrGeometry": false}`)
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, "", time.Second).FetchGeometry(context.Background(), "native-doc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusNotPresent || res.HasOCR() {
		t.Errorf("expected NotPresent, got %+v", res)
	}
}

func TestClient_FetchGeometry_SuccessFalseMeansNotPresent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": false}`)
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, "", time.Second).FetchGeometry(context.Background(), "d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusNotPresent {
		t.Errorf("expected NotPresent, got %+v", res)
	}
}

func TestClient_FetchGeometry_404MeansNotPresent(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	res, err := NewClient(srv.URL, "", time.Second).FetchGeometry(context.Background(), "gone")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusNotPresent {
		t.Errorf("expected NotPresent for 404, got %+v", res)
	}
}

func TestClient_FetchGeometry_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).FetchGeometry(context.Background(), "d")
	if err == nil {
		t.Fatal("expected error for 500")
	}
	if !IsTransient(err) {
		t.Errorf("expected 500 to be transient, got %v", err)
	}
}

func TestClient_FetchGeometry_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).FetchGeometry(context.Background(), "d")
	if err == nil {
		t.Fatal("expected error for 403")
	}
	if IsTransient(err) {
		t.Errorf("expected 403 to be permanent, got %v", err)
	}
}

func TestClient_FetchDocument(t *testing.T) {
	payload := []byte("%PDF-1.7 fake document body")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/documents/doc-1/content" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write(payload)
	}))
	defer srv.Close()

	data, err := NewClient(srv.URL, "", time.Second).FetchDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("unexpected document bytes %q", data)
	}
}

func TestReadCapped(t *testing.T) {
	if data, err := readCapped(strings.NewReader("under"), 10); err != nil || string(data) != "under" {
		t.Errorf("under limit: got %q, %v", data, err)
	}
	if data, err := readCapped(strings.NewReader("exactly ten"), 11); err != nil || string(data) != "exactly ten" {
		t.Errorf("at limit: got %q, %v", data, err)
	}
	// Over the limit must fail rather than hand back a truncated prefix.
	if _, err := readCapped(strings.NewReader("way past the limit"), 4); err == nil {
		t.Error("expected error over limit")
	}
}

type fakeFetcher struct {
	calls   atomic.Int64
	results []func() (Result, error)
}

func (f *fakeFetcher) FetchGeometry(ctx context.Context, documentID string) (Result, error) {
	n := f.calls.Add(1) - 1
	if int(n) < len(f.results) {
		return f.results[n]()
	}
	return f.results[len(f.results)-1]()
}

func present(id int) func() (Result, error) {
	return func() (Result, error) {
		return Result{Status: StatusPresent, Geometry: &geometry.Geometry{
			Pages: []geometry.Page{{PageNumber: id, Width: 612, Height: 792}},
		}}, nil
	}
}

func TestStore_CachesPerDocument(t *testing.T) {
	f := &fakeFetcher{results: []func() (Result, error){present(1)}}
	s := NewStore(f, Options{Logger: discardLogger()})

	for i := 0; i < 5; i++ {
		res := s.Geometry(context.Background(), "doc-1")
		if !res.HasOCR() {
			t.Fatal("expected geometry")
		}
	}
	if got := f.calls.Load(); got != 1 {
		t.Errorf("expected 1 upstream fetch, got %d", got)
	}
}

func TestStore_CachesNotPresent(t *testing.T) {
	f := &fakeFetcher{results: []func() (Result, error){
		func() (Result, error) { return Result{Status: StatusNotPresent}, nil },
	}}
	s := NewStore(f, Options{Logger: discardLogger()})

	s.Geometry(context.Background(), "plain")
	s.Geometry(context.Background(), "plain")
	if got := f.calls.Load(); got != 1 {
		t.Errorf("expected NotPresent to be cached, got %d fetches", got)
	}
}

func TestStore_RetriesTransientThenSucceeds(t *testing.T) {
	f := &fakeFetcher{results: []func() (Result, error){
		func() (Result, error) { return Result{}, &transientError{errors.New("flaky")} },
		present(1),
	}}
	s := NewStore(f, Options{Logger: discardLogger()})

	res := s.Geometry(context.Background(), "doc")
	if !res.HasOCR() {
		t.Fatal("expected geometry after retry")
	}
	if got := f.calls.Load(); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestStore_PermanentFailureIsNotRetried(t *testing.T) {
	f := &fakeFetcher{results: []func() (Result, error){
		func() (Result, error) { return Result{}, errors.New("bad auth") },
	}}
	s := NewStore(f, Options{Logger: discardLogger()})

	res := s.Geometry(context.Background(), "doc")
	if res.Status != StatusNotPresent {
		t.Errorf("failure must degrade to NotPresent, got %+v", res)
	}
	if got := f.calls.Load(); got != 1 {
		t.Errorf("expected no retry on permanent failure, got %d attempts", got)
	}
}

func TestStore_FailureIsNotCached(t *testing.T) {
	f := &fakeFetcher{results: []func() (Result, error){
		func() (Result, error) { return Result{}, errors.New("down") },
		present(1),
	}}
	s := NewStore(f, Options{Logger: discardLogger()})

	if s.Geometry(context.Background(), "doc").HasOCR() {
		t.Fatal("first call should degrade")
	}
	if !s.Geometry(context.Background(), "doc").HasOCR() {
		t.Error("second call should refetch and succeed")
	}
}

func TestStore_LRUBound(t *testing.T) {
	f := &fakeFetcher{results: []func() (Result, error){present(1)}}
	s := NewStore(f, Options{CacheSize: 2, Logger: discardLogger()})

	s.Geometry(context.Background(), "a")
	s.Geometry(context.Background(), "b")
	s.Geometry(context.Background(), "c") // evicts a

	if s.Len() != 2 {
		t.Fatalf("expected cache bounded at 2, got %d", s.Len())
	}

	before := f.calls.Load()
	s.Geometry(context.Background(), "a") // must refetch
	if f.calls.Load() != before+1 {
		t.Error("expected evicted entry to refetch")
	}
}

func TestStore_Invalidate(t *testing.T) {
	f := &fakeFetcher{results: []func() (Result, error){present(1)}}
	s := NewStore(f, Options{Logger: discardLogger()})

	s.Geometry(context.Background(), "doc")
	s.Invalidate("doc")
	s.Geometry(context.Background(), "doc")
	if got := f.calls.Load(); got != 2 {
		t.Errorf("expected refetch after invalidate, got %d fetches", got)
	}
}

func TestLRUCache_RecentUseProtectsFromEviction(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", Result{Status: StatusNotPresent})
	c.put("b", Result{Status: StatusNotPresent})
	c.get("a") // a is now most recent
	c.put("c", Result{Status: StatusNotPresent})

	if _, ok := c.get("a"); !ok {
		t.Error("recently used entry should survive")
	}
	if _, ok := c.get("b"); ok {
		t.Error("least recently used entry should be evicted")
	}
}
