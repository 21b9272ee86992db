package viewer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docpane/textlayer/pkg/geometry"
	"github.com/docpane/textlayer/pkg/geomstore"
	"github.com/docpane/textlayer/pkg/projection"
)

func projectionCal(xOffset float64) projection.Calibration {
	cal := projection.Identity()
	cal.XOffsetPx = xOffset
	return cal
}

func testGeometry() *geometry.Geometry {
	return &geometry.Geometry{
		Provider: geometry.ProviderTextract,
		Pages: []geometry.Page{
			{PageNumber: 1, Width: 612, Height: 792, Words: []geometry.Word{
				{Text: "one", X: 0.1, Y: 0.1, Width: 0.2, Height: 0.03, Confidence: 0.9},
			}},
			{PageNumber: 2, Width: 612, Height: 792, Words: []geometry.Word{
				{Text: "two", X: 0.1, Y: 0.1, Width: 0.2, Height: 0.03, Confidence: 0.9},
			}},
		},
	}
}

type stubGeom struct {
	mu    sync.Mutex
	res   geomstore.Result
	gate  chan struct{} // if non-nil, Geometry blocks until closed
	calls atomic.Int64
}

func (s *stubGeom) Geometry(ctx context.Context, documentID string) geomstore.Result {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.res
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func newTestSession(geom GeometrySource) *Session {
	return NewSession(Config{
		Geometry: geom,
		Logger:   slog.New(slog.DiscardHandler),
	})
}

func mountPage(ctx context.Context, s *Session, doc string, page int) {
	s.SetDocument(ctx, doc)
	s.SetContainerSize(ctx, 900, 1166)
	s.SetPage(ctx, page)
}

func TestSession_ProjectsWordsWhenGeometryPresent(t *testing.T) {
	geom := &stubGeom{res: geomstore.Result{Status: geomstore.StatusPresent, Geometry: testGeometry()}}
	s := newTestSession(geom)

	mountPage(context.Background(), s, "doc-1", 1)

	waitFor(t, func() bool { return len(s.Words()) == 1 })
	if s.Words()[0].Text != "one" {
		t.Errorf("expected page 1 word, got %q", s.Words()[0].Text)
	}
	if !s.HasOCR() {
		t.Error("expected has-OCR signal true")
	}
}

func TestSession_NotPresentMeansNoOverlayAndSignalFalse(t *testing.T) {
	geom := &stubGeom{res: geomstore.Result{Status: geomstore.StatusNotPresent}}
	s := newTestSession(geom)

	mountPage(context.Background(), s, "native-doc", 1)

	waitFor(t, func() bool { return geom.calls.Load() >= 1 })
	// Give any in-flight recompute time to land.
	waitFor(t, func() bool { return len(s.Words()) == 0 && !s.HasOCR() })
}

func TestSession_StatusCallbackFiresOnTransition(t *testing.T) {
	geom := &stubGeom{res: geomstore.Result{Status: geomstore.StatusPresent, Geometry: testGeometry()}}
	s := newTestSession(geom)

	var got atomic.Bool
	var fired atomic.Int64
	s.OnStatus(func(hasOCR bool) {
		got.Store(hasOCR)
		fired.Add(1)
	})

	mountPage(context.Background(), s, "doc-1", 1)

	waitFor(t, func() bool { return fired.Load() >= 1 })
	if !got.Load() {
		t.Error("expected callback with hasOCR=true")
	}
}

func TestSession_StaleResultNeverApplied(t *testing.T) {
	gate := make(chan struct{})
	geom := &stubGeom{
		res:  geomstore.Result{Status: geomstore.StatusPresent, Geometry: testGeometry()},
		gate: gate,
	}
	s := newTestSession(geom)

	ctx := context.Background()
	s.SetDocument(ctx, "doc-1")
	s.SetContainerSize(ctx, 900, 1166)

	// Navigate to page 1, then supersede it with page 2 while the page-1
	// lookup is still in flight.
	s.SetPage(ctx, 1)
	s.SetPage(ctx, 2)

	waitFor(t, func() bool { return geom.calls.Load() >= 2 })
	close(gate)

	waitFor(t, func() bool { return len(s.Words()) == 1 })
	if s.Words()[0].Text != "two" {
		t.Errorf("stale page-1 result applied; expected %q, got %q", "two", s.Words()[0].Text)
	}

	// The page-1 result must stay discarded even after everything settles.
	time.Sleep(20 * time.Millisecond)
	if s.Words()[0].Text != "two" {
		t.Errorf("state regressed to stale result: %q", s.Words()[0].Text)
	}
}

func TestSession_DisabledProducesNoOverlay(t *testing.T) {
	geom := &stubGeom{res: geomstore.Result{Status: geomstore.StatusPresent, Geometry: testGeometry()}}
	s := newTestSession(geom)

	ctx := context.Background()
	mountPage(ctx, s, "doc-1", 1)
	waitFor(t, func() bool { return s.HasOCR() })

	s.SetEnabled(ctx, false)
	waitFor(t, func() bool { return !s.HasOCR() && len(s.Words()) == 0 })
}

func TestSession_PageWithoutGeometryKeepsDocumentSignal(t *testing.T) {
	geom := &stubGeom{res: geomstore.Result{Status: geomstore.StatusPresent, Geometry: testGeometry()}}
	s := newTestSession(geom)

	mountPage(context.Background(), s, "doc-1", 99)

	waitFor(t, func() bool { return s.HasOCR() })
	if len(s.Words()) != 0 {
		t.Errorf("expected no words for a page without geometry, got %d", len(s.Words()))
	}
}

func TestSession_CalibrationChangeRecomputes(t *testing.T) {
	geom := &stubGeom{res: geomstore.Result{Status: geomstore.StatusPresent, Geometry: testGeometry()}}
	s := newTestSession(geom)

	ctx := context.Background()
	mountPage(ctx, s, "doc-1", 1)
	waitFor(t, func() bool { return len(s.Words()) == 1 })
	baseX := s.Words()[0].ScreenX

	s.SetCalibration(ctx, projectionCal(10))
	waitFor(t, func() bool {
		ws := s.Words()
		return len(ws) == 1 && ws[0].ScreenX == baseX+10
	})
}

func TestSession_IDsAreUnique(t *testing.T) {
	geom := &stubGeom{res: geomstore.Result{Status: geomstore.StatusNotPresent}}
	a, b := newTestSession(geom), newTestSession(geom)
	if a.ID() == b.ID() || a.ID() == "" {
		t.Errorf("expected distinct non-empty session IDs, got %q and %q", a.ID(), b.ID())
	}
}
