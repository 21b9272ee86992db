// Package nativetext implements the render-position overlay strategy: instead
// of trusting OCR coordinates, it asks the document's own page description for
// the native position of every text run and overlays interactive regions
// there. Positions are by construction consistent with what the renderer
// draws; the text content, however, comes from the document's embedded
// encoding and may be garbled for exactly the documents this subsystem exists
// to serve. See TextSource for the OCR-substitution option.
package nativetext

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"sort"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/docpane/textlayer/pkg/geometry"
	"github.com/docpane/textlayer/pkg/projection"
)

// Item is a native text run in renderer page space: origin bottom-left,
// Y increasing upward. Transform is the run's affine matrix
// [sx kx ky sy tx ty]; (tx, ty) is the baseline origin and sx encodes the
// effective font size.
type Item struct {
	Text      string
	Transform [6]float64
	Width     float64
	Height    float64
}

// PageInfo is a page's native text runs plus its size at reference scale 1.0.
type PageInfo struct {
	WidthPt  float64
	HeightPt float64
	Items    []Item
}

// glyph-grouping tolerances, in text-space units relative to font size.
const (
	rowTolerance = 0.5
	gapRatio     = 0.3
)

// ExtractPage loads the page at reference scale 1.0 and returns its native
// text runs. Per-glyph items from the page description are merged into runs
// by row and horizontal gap.
func ExtractPage(documentBytes []byte, pageNumber int) (info *PageInfo, err error) {
	// The underlying content-stream interpreter panics on some malformed
	// documents; extraction failure must degrade to no overlay, not take
	// down the viewer.
	defer func() {
		if r := recover(); r != nil {
			info = nil
			err = fmt.Errorf("page %d text extraction panicked: %v", pageNumber, r)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(documentBytes), int64(len(documentBytes)))
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	if pageNumber < 1 || pageNumber > reader.NumPage() {
		return nil, fmt.Errorf("page %d out of range 1..%d", pageNumber, reader.NumPage())
	}

	page := reader.Page(pageNumber)
	if page.V.IsNull() {
		return nil, fmt.Errorf("page %d is missing", pageNumber)
	}

	w, h, err := mediaBoxSize(page)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", pageNumber, err)
	}

	items := groupRuns(page.Content().Text)
	return &PageInfo{WidthPt: w, HeightPt: h, Items: items}, nil
}

// mediaBoxSize resolves the page's MediaBox, walking up the page tree for
// inherited boxes.
func mediaBoxSize(page pdflib.Page) (float64, float64, error) {
	box := page.V.Key("MediaBox")
	node := page.V
	for box.IsNull() {
		node = node.Key("Parent")
		if node.IsNull() {
			break
		}
		box = node.Key("MediaBox")
	}
	if box.IsNull() || box.Len() < 4 {
		return 0, 0, fmt.Errorf("no MediaBox")
	}
	w := box.Index(2).Float64() - box.Index(0).Float64()
	h := box.Index(3).Float64() - box.Index(1).Float64()
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("degenerate MediaBox %gx%g", w, h)
	}
	return w, h, nil
}

// groupRuns merges per-glyph text fragments into runs. Fragments on the same
// baseline separated by less than gapRatio of the font size belong to the
// same run.
func groupRuns(glyphs []pdflib.Text) []Item {
	if len(glyphs) == 0 {
		return nil
	}

	sorted := make([]pdflib.Text, len(glyphs))
	copy(sorted, glyphs)
	// Reading order: top row first (higher Y in bottom-left origin), then
	// left to right.
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].Y-sorted[j].Y) > rowTolerance {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var items []Item
	var cur *runBuilder
	for _, g := range sorted {
		if cur != nil && cur.accepts(g) {
			cur.add(g)
			continue
		}
		if cur != nil {
			items = append(items, cur.item())
		}
		cur = newRunBuilder(g)
	}
	if cur != nil {
		items = append(items, cur.item())
	}
	return items
}

type runBuilder struct {
	text     bytes.Buffer
	startX   float64
	endX     float64
	y        float64
	fontSize float64
}

func newRunBuilder(g pdflib.Text) *runBuilder {
	b := &runBuilder{startX: g.X, endX: g.X + g.W, y: g.Y, fontSize: g.FontSize}
	b.text.WriteString(g.S)
	return b
}

func (b *runBuilder) accepts(g pdflib.Text) bool {
	if math.Abs(g.Y-b.y) > rowTolerance {
		return false
	}
	if g.FontSize != b.fontSize {
		return false
	}
	gap := g.X - b.endX
	return gap <= gapRatio*b.fontSize
}

func (b *runBuilder) add(g pdflib.Text) {
	b.text.WriteString(g.S)
	if g.X+g.W > b.endX {
		b.endX = g.X + g.W
	}
}

func (b *runBuilder) item() Item {
	return Item{
		Text:      b.text.String(),
		Transform: [6]float64{b.fontSize, 0, 0, b.fontSize, b.startX, b.y},
		Width:     b.endX - b.startX,
		Height:    b.fontSize,
	}
}

// FlipY converts a bottom-left-origin Y coordinate to top-left screen space.
// Self-inverse for a fixed container height.
func FlipY(containerHeightPx, v float64) float64 {
	return containerHeightPx - v
}

// TextSource selects where the overlay's copy text comes from.
type TextSource int

const (
	// TextFromRenderer keeps the document's own text for each run.
	// Positions are exact, but for documents with garbled embedded
	// encodings the copied text can be garbage.
	TextFromRenderer TextSource = iota

	// TextFromOCR substitutes OCR-recognized text into renderer-derived
	// positions by nearest-centroid matching. Runs without a match within
	// MaxMatchDistancePx keep their renderer text.
	TextFromOCR
)

// Resolver positions overlay words at native renderer text-run positions.
type Resolver struct {
	Source TextSource

	// MaxMatchDistancePx bounds the centroid distance for OCR-text
	// substitution; zero means DefaultMatchDistancePx.
	MaxMatchDistancePx float64

	Logger *slog.Logger
}

// DefaultMatchDistancePx is the default centroid-distance threshold for OCR
// text substitution, in container pixels.
const DefaultMatchDistancePx = 24.0

// NewResolver returns a resolver that keeps renderer text.
func NewResolver(log *slog.Logger) *Resolver {
	return &Resolver{Source: TextFromRenderer, Logger: log}
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Resolve extracts the page's native text runs and maps them into container
// pixel space. ocrWords is consulted only when Source is TextFromOCR; it may
// be nil otherwise.
func (r *Resolver) Resolve(documentBytes []byte, pageNumber int, containerWidthPx, containerHeightPx float64, ocrWords []geometry.Word) ([]projection.ProjectedWord, error) {
	info, err := ExtractPage(documentBytes, pageNumber)
	if err != nil {
		return nil, err
	}
	words := r.ResolveItems(info, containerWidthPx, containerHeightPx)

	if r.Source == TextFromOCR && len(ocrWords) > 0 {
		matched := substituteOCRText(words, ocrWords, containerWidthPx, containerHeightPx, r.maxDistance())
		r.logger().Debug("substituted ocr text into renderer runs",
			"page", pageNumber, "runs", len(words), "matched", matched)
	}
	return words, nil
}

// ResolveItems maps already-extracted native runs into container pixel space:
// scale from reference page size to the container, then flip from bottom-left
// page origin to top-left screen origin. The baseline box is shifted upward
// by its own height to approximate the glyph's visual top.
func (r *Resolver) ResolveItems(info *PageInfo, containerWidthPx, containerHeightPx float64) []projection.ProjectedWord {
	if info == nil || info.WidthPt <= 0 || info.HeightPt <= 0 {
		return nil
	}
	scaleX := containerWidthPx / info.WidthPt
	scaleY := containerHeightPx / info.HeightPt

	out := make([]projection.ProjectedWord, 0, len(info.Items))
	for _, it := range info.Items {
		sx, tx, ty := it.Transform[0], it.Transform[4], it.Transform[5]
		screenH := math.Abs(sx) * scaleY
		if screenH <= 0 || it.Width <= 0 {
			continue
		}
		baseline := FlipY(containerHeightPx, ty*scaleY)
		p := projection.ProjectedWord{
			Text:         it.Text,
			ScreenX:      tx * scaleX,
			ScreenY:      baseline - screenH,
			ScreenWidth:  it.Width * scaleX,
			ScreenHeight: screenH,
		}
		p.DeriveOverlayFields()
		out = append(out, p)
	}
	return out
}

func (r *Resolver) maxDistance() float64 {
	if r.MaxMatchDistancePx > 0 {
		return r.MaxMatchDistancePx
	}
	return DefaultMatchDistancePx
}
