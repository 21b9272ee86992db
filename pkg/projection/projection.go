// Package projection converts relative OCR word geometry into absolute pixel
// rectangles inside a viewer container, applying operator-tunable calibration
// to correct systematic misalignment between the OCR raster and the live
// renderer output.
package projection

import (
	"github.com/docpane/textlayer/pkg/geometry"
)

const (
	// minFontPx keeps invisible glyphs legible to the selection machinery
	// even for very small OCR boxes.
	minFontPx = 8.0

	// fontHeightRatio sizes the glyph relative to the projected box height
	// so it roughly fills the box without overflowing it.
	fontHeightRatio = 0.85

	// selectionExpand and selectionShift widen each word's interactive
	// region vertically. OCR boxes hug glyph ink; without widening there
	// are dead zones between words and lines that break drag-selection.
	selectionExpand = 1.5
	selectionShift  = 0.25
)

// Calibration is a per-invocation correction for systematic offset/scale
// mismatch between the OCR extraction raster and the renderer output.
// The OCR pass and the live renderer are different pipelines and rarely
// align pixel-for-pixel; these values are operator-tuned, never derived.
type Calibration struct {
	XOffsetPx float64 `yaml:"x_offset_px" json:"xOffsetPx"`
	YOffsetPx float64 `yaml:"y_offset_px" json:"yOffsetPx"`
	XScale    float64 `yaml:"x_scale" json:"xScale"`
	YScale    float64 `yaml:"y_scale" json:"yScale"`
}

// Identity returns the no-op calibration.
func Identity() Calibration {
	return Calibration{XScale: 1, YScale: 1}
}

// withDefaults maps zero scales to 1 so a zero-value Calibration behaves as
// identity rather than collapsing every word to the origin.
func (c Calibration) withDefaults() Calibration {
	if c.XScale == 0 {
		c.XScale = 1
	}
	if c.YScale == 0 {
		c.YScale = 1
	}
	return c
}

// ProjectedWord is a word positioned in container pixel space. It is derived
// state: recomputed on every page/scale/container change, never cached.
//
// ScreenX/ScreenY is the top-left corner of the projected glyph box.
// SelectionTop/SelectionHeight describe the widened interactive region.
type ProjectedWord struct {
	Text            string  `json:"text"`
	ScreenX         float64 `json:"screenX"`
	ScreenY         float64 `json:"screenY"`
	ScreenWidth     float64 `json:"screenWidth"`
	ScreenHeight    float64 `json:"screenHeight"`
	FontSizePx      float64 `json:"fontSizePx"`
	SelectionTop    float64 `json:"selectionTop"`
	SelectionHeight float64 `json:"selectionHeight"`
	Confidence      float64 `json:"confidence"`
}

// Engine is the pure-geometry projection strategy: it trusts the OCR boxes
// and maps them linearly into the container.
type Engine struct{}

// NewEngine returns a projection engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Project maps each word's relative box into container pixel space.
// Words with degenerate or out-of-range boxes are dropped; input order is
// preserved because natural multi-word selection follows it.
func (e *Engine) Project(words []geometry.Word, containerWidthPx, containerHeightPx float64, cal Calibration) []ProjectedWord {
	cal = cal.withDefaults()
	out := make([]ProjectedWord, 0, len(words))
	for _, w := range geometry.SaneWords(words) {
		out = append(out, projectWord(w, containerWidthPx, containerHeightPx, cal))
	}
	return out
}

func projectWord(w geometry.Word, cw, ch float64, cal Calibration) ProjectedWord {
	p := ProjectedWord{
		Text:         w.Text,
		ScreenX:      w.X*cw*cal.XScale + cal.XOffsetPx,
		ScreenY:      w.Y*ch*cal.YScale + cal.YOffsetPx,
		ScreenWidth:  w.Width * cw * cal.XScale,
		ScreenHeight: w.Height * ch * cal.YScale,
		Confidence:   w.Confidence,
	}
	p.DeriveOverlayFields()
	return p
}

// DeriveOverlayFields fills FontSizePx, SelectionTop and SelectionHeight from
// the projected box. Both projection strategies use the same derivation so the
// overlay behaves identically regardless of where positions came from.
func (p *ProjectedWord) DeriveOverlayFields() {
	p.FontSizePx = p.ScreenHeight * fontHeightRatio
	if p.FontSizePx < minFontPx {
		p.FontSizePx = minFontPx
	}
	p.SelectionTop = p.ScreenY - selectionShift*p.ScreenHeight
	p.SelectionHeight = selectionExpand * p.ScreenHeight
}
