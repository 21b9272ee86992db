package overlay

import (
	"bytes"
	"fmt"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/docpane/textlayer/pkg/projection"
)

// ProofConfig controls proof-sheet rendering.
type ProofConfig struct {
	// LayerName is the toggleable layer holding the proof marks.
	LayerName string
	// FontName must be one of the built-in PDF fonts.
	FontName string
}

// DefaultProofConfig returns the standard proof-sheet settings.
func DefaultProofConfig() ProofConfig {
	return ProofConfig{
		LayerName: "Overlay Proof",
		FontName:  "Helvetica",
	}
}

// ProofSheet renders projected words as visible red boxes and text onto a
// single PDF page sized like the viewer container. Operators compare the
// sheet against the rendered document to tune calibration offsets and
// scales. One point per container pixel.
func ProofSheet(words []projection.ProjectedWord, containerWidthPx, containerHeightPx float64, cfg ProofConfig) ([]byte, error) {
	if containerWidthPx <= 0 || containerHeightPx <= 0 {
		return nil, fmt.Errorf("container size %gx%g is not positive", containerWidthPx, containerHeightPx)
	}
	if cfg.LayerName == "" {
		cfg.LayerName = "Overlay Proof"
	}
	if cfg.FontName == "" {
		cfg.FontName = "Helvetica"
	}

	pdf := fpdf.New("P", "pt", "", "")
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: containerWidthPx, Ht: containerHeightPx})

	layer := pdf.AddLayer(cfg.LayerName, true)
	pdf.BeginLayer(layer)
	pdf.SetFont(cfg.FontName, "", 10)
	pdf.SetTextColor(200, 0, 0)
	pdf.SetDrawColor(200, 0, 0)

	encodingErrors := 0
	for _, w := range words {
		drawProofWord(pdf, w, &encodingErrors)
	}
	pdf.EndLayer()

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write proof sheet: %w", err)
	}
	if len(words) > 0 && encodingErrors > len(words)/10 {
		return buf.Bytes(), fmt.Errorf("character encoding issues in %d of %d words", encodingErrors, len(words))
	}
	return buf.Bytes(), nil
}

func drawProofWord(pdf *fpdf.Fpdf, w projection.ProjectedWord, encodingErrors *int) {
	// Built-in PDF fonts are Latin-1 only.
	latin1, err := charmap.ISO8859_1.NewEncoder().String(w.Text)
	if err != nil {
		*encodingErrors++
		latin1 = w.Text
	}

	pdf.Rect(w.ScreenX, w.ScreenY, w.ScreenWidth, w.ScreenHeight, "D")

	pdf.SetFontSize(w.FontSizePx)
	// Place the baseline near the box bottom, like the glyphs it stands for.
	pdf.Text(w.ScreenX, w.ScreenY+w.ScreenHeight, latin1)
	pdf.SetFontSize(10)
}
