// Package geometry defines the OCR word-geometry model shared between the
// ingestion side (which produces it once at upload time) and the viewer side
// (which projects it onto rendered pages).
//
// All word coordinates are relative: fractions of page width/height in [0,1],
// independent of any render scale. Page dimensions are kept in the page's own
// units (typically points) so consumers can reason about aspect ratio, but
// projection itself only needs the relative values.
package geometry

import (
	"fmt"
	"time"
)

// Provider identifies the OCR engine that produced the geometry.
type Provider string

const (
	ProviderTextract  Provider = "textract"
	ProviderTesseract Provider = "tesseract"
	ProviderVision    Provider = "vision"
)

// Word is a single recognized word with its bounding box.
// X, Y is the top-left corner of the box as a fraction of page width/height;
// Width and Height likewise. Confidence is in [0,1].
//
// The upstream extractor does not guarantee X+Width <= 1 or Y+Height <= 1;
// malformed boxes are tolerated here and filtered at projection time.
type Word struct {
	Text       string  `json:"text"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
}

// Degenerate reports whether the word's box is too small to produce a usable
// overlay region. Zero or near-zero extents would render as infinitely thin,
// unclickable nodes.
func (w Word) Degenerate() bool {
	const min = 1e-6
	return w.Width < min || w.Height < min
}

// InRange reports whether all four spatial fields lie in [0,1].
func (w Word) InRange() bool {
	in := func(v float64) bool { return v >= 0 && v <= 1 }
	return in(w.X) && in(w.Y) && in(w.Width) && in(w.Height)
}

// Page is one page of word geometry. PageNumber is 1-indexed and must align
// with the rendering engine's own page numbering; that is an external
// contract, not validated here.
type Page struct {
	PageNumber int     `json:"pageNumber"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Words      []Word  `json:"words"`
}

// Geometry is the full per-document word set, produced once by the OCR
// pipeline at ingestion time and immutable thereafter.
type Geometry struct {
	Pages       []Page    `json:"pages"`
	ExtractedAt time.Time `json:"extractedAt"`
	Provider    Provider  `json:"provider"`
}

// PageByNumber returns the page with the given 1-indexed number, or nil.
func (g *Geometry) PageByNumber(n int) *Page {
	for i := range g.Pages {
		if g.Pages[i].PageNumber == n {
			return &g.Pages[i]
		}
	}
	return nil
}

// WordCount returns the total number of words across all pages.
func (g *Geometry) WordCount() int {
	total := 0
	for _, p := range g.Pages {
		total += len(p.Words)
	}
	return total
}

// Validate performs structural checks suitable for the ingestion boundary.
// The viewer side never calls this; it filters per-word instead so a single
// bad box cannot take down a page.
func (g *Geometry) Validate() error {
	if len(g.Pages) == 0 {
		return fmt.Errorf("geometry has no pages")
	}
	for _, p := range g.Pages {
		if p.PageNumber < 1 {
			return fmt.Errorf("page number %d is not 1-indexed", p.PageNumber)
		}
		if p.Width <= 0 || p.Height <= 0 {
			return fmt.Errorf("page %d has non-positive dimensions %gx%g", p.PageNumber, p.Width, p.Height)
		}
	}
	return nil
}

// SaneWords returns the subset of words with in-range, non-degenerate boxes.
// Order is preserved; the OCR provider emits words in reading order and
// multi-word selection depends on it.
func SaneWords(words []Word) []Word {
	out := make([]Word, 0, len(words))
	for _, w := range words {
		if w.Degenerate() || !w.InRange() {
			continue
		}
		out = append(out, w)
	}
	return out
}
