// Package ingest normalizes OCR provider payloads into the viewer's
// relative-coordinate geometry model. Extraction itself happens out-of-band
// at upload time (Document AI, Textract, Tesseract); this package is the
// boundary that feeds the geometry endpoint the viewer consumes.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/docpane/textlayer/pkg/geometry"
)

// WriteGeometryFile writes geometry as indented JSON, the storage format the
// geometry endpoint serves from.
func WriteGeometryFile(path string, g *geometry.Geometry) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("refusing to write invalid geometry: %w", err)
	}
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal geometry: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write geometry: %w", err)
	}
	return nil
}

// ReadGeometryFile reads geometry JSON produced by WriteGeometryFile.
func ReadGeometryFile(path string) (*geometry.Geometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read geometry: %w", err)
	}
	var g geometry.Geometry
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse geometry: %w", err)
	}
	return &g, nil
}

func stamp(g *geometry.Geometry, provider geometry.Provider) {
	g.Provider = provider
	if g.ExtractedAt.IsZero() {
		g.ExtractedAt = time.Now().UTC()
	}
}
