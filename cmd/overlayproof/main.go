// overlayproof renders a geometry file's projected words as a visible proof
// sheet PDF for calibration tuning.
//
// The sheet is one page sized like the viewer container, with every word
// drawn as a red box plus text at its projected position. Operators overlay
// it on a renderer screenshot and adjust the calibration profile until the
// boxes sit on the glyphs.
//
// Usage:
//
//	overlayproof -geometry geometry.json -page 1 -w 900 -h 1166 -out proof.pdf
//	overlayproof -geometry geometry.json -page 1 -w 900 -h 1166 \
//	    -profiles calibration.yml -profile scanner-a -out proof.pdf
//
// Flags:
//
//	-geometry string  Path to a geometry JSON file (required)
//	-page int         1-indexed page to render (default 1)
//	-w float          Container width in pixels (required)
//	-h float          Container height in pixels (required)
//	-profiles string  Path to a calibration profile YAML file
//	-profile string   Profile name to apply (default: the set's default)
//	-out string       Path to write the proof PDF (required)
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/docpane/textlayer/pkg/ingest"
	"github.com/docpane/textlayer/pkg/overlay"
	"github.com/docpane/textlayer/pkg/projection"
)

func main() {
	geometryPath := flag.String("geometry", "", "Path to a geometry JSON file (required)")
	page := flag.Int("page", 1, "1-indexed page to render")
	width := flag.Float64("w", 0, "Container width in pixels (required)")
	height := flag.Float64("h", 0, "Container height in pixels (required)")
	profilesPath := flag.String("profiles", "", "Path to a calibration profile YAML file")
	profileName := flag.String("profile", "", "Profile name to apply")
	outPath := flag.String("out", "", "Path to write the proof PDF (required)")
	flag.Parse()

	if *geometryPath == "" || *outPath == "" || *width <= 0 || *height <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -geometry, -out, -w and -h are required")
		fmt.Fprintln(os.Stderr, "Usage:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	g, err := ingest.ReadGeometryFile(*geometryPath)
	if err != nil {
		log.Fatalf("Failed to read geometry: %v", err)
	}

	pg := g.PageByNumber(*page)
	if pg == nil {
		log.Fatalf("Geometry has no page %d", *page)
	}

	cal := projection.Identity()
	if *profilesPath != "" {
		set, err := projection.LoadProfiles(*profilesPath)
		if err != nil {
			log.Fatalf("Failed to load calibration profiles: %v", err)
		}
		cal = set.Get(*profileName)
	}

	words := projection.NewEngine().Project(pg.Words, *width, *height, cal)
	fmt.Printf("Projecting %d words from page %d into %gx%g\n", len(words), *page, *width, *height)

	sheet, err := overlay.ProofSheet(words, *width, *height, overlay.DefaultProofConfig())
	if err != nil {
		if sheet == nil {
			log.Fatalf("Failed to render proof sheet: %v", err)
		}
		// Encoding warnings still produce a usable sheet.
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}

	if err := os.WriteFile(*outPath, sheet, 0o644); err != nil {
		log.Fatalf("Failed to write proof sheet: %v", err)
	}
	fmt.Println("Proof sheet saved to:", *outPath)
}
