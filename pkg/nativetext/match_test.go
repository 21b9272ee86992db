package nativetext

import (
	"testing"

	"github.com/docpane/textlayer/pkg/geometry"
	"github.com/docpane/textlayer/pkg/projection"
)

func run(text string, x, y, w, h float64) projection.ProjectedWord {
	return projection.ProjectedWord{Text: text, ScreenX: x, ScreenY: y, ScreenWidth: w, ScreenHeight: h}
}

func TestSubstituteOCRText_ReplacesNearbyRuns(t *testing.T) {
	// Garbled renderer text at positions the OCR words roughly share.
	runs := []projection.ProjectedWord{
		run("Þøx", 90, 100, 60, 12),
		run("q%z", 200, 100, 50, 12),
	}
	// Container 1000x1000; OCR centers land close to the run centers.
	ocr := []geometry.Word{
		{Text: "Invoice", X: 0.09, Y: 0.1, Width: 0.06, Height: 0.012},
		{Text: "Total", X: 0.2, Y: 0.1, Width: 0.05, Height: 0.012},
	}

	matched := substituteOCRText(runs, ocr, 1000, 1000, DefaultMatchDistancePx)
	if matched != 2 {
		t.Fatalf("expected 2 matches, got %d", matched)
	}
	if runs[0].Text != "Invoice" || runs[1].Text != "Total" {
		t.Errorf("expected OCR text substituted, got %q and %q", runs[0].Text, runs[1].Text)
	}
}

func TestSubstituteOCRText_DistanceThresholdLeavesRunUnmatched(t *testing.T) {
	runs := []projection.ProjectedWord{run("garbled", 100, 100, 40, 12)}
	// OCR word centered far away from the run.
	ocr := []geometry.Word{{Text: "elsewhere", X: 0.8, Y: 0.8, Width: 0.1, Height: 0.02}}

	matched := substituteOCRText(runs, ocr, 1000, 1000, DefaultMatchDistancePx)
	if matched != 0 {
		t.Fatalf("expected no matches, got %d", matched)
	}
	if runs[0].Text != "garbled" {
		t.Errorf("unmatched run must keep renderer text, got %q", runs[0].Text)
	}
}

func TestSubstituteOCRText_EachWordConsumedOnce(t *testing.T) {
	// Two runs near one OCR word: only the first (greedy) gets it.
	runs := []projection.ProjectedWord{
		run("a", 95, 95, 10, 10),
		run("b", 105, 105, 10, 10),
	}
	ocr := []geometry.Word{{Text: "once", X: 0.095, Y: 0.095, Width: 0.01, Height: 0.01}}

	matched := substituteOCRText(runs, ocr, 1000, 1000, 50)
	if matched != 1 {
		t.Fatalf("expected exactly 1 match, got %d", matched)
	}
	if runs[0].Text != "once" || runs[1].Text != "b" {
		t.Errorf("expected greedy single consumption, got %q and %q", runs[0].Text, runs[1].Text)
	}
}

func TestSubstituteOCRText_IgnoresDegenerateOCRWords(t *testing.T) {
	runs := []projection.ProjectedWord{run("keep", 100, 100, 40, 12)}
	ocr := []geometry.Word{{Text: "bad", X: 0.1, Y: 0.1, Width: 0, Height: 0}}

	if matched := substituteOCRText(runs, ocr, 1000, 1000, 1000); matched != 0 {
		t.Fatalf("expected degenerate OCR words ignored, got %d matches", matched)
	}
}
