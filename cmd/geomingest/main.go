// geomingest converts OCR output into the word-geometry JSON the overlay
// service consumes.
//
// It accepts three input forms: a PDF sent live to Google Document AI, a
// saved Document AI protojson export, or an hOCR file from Tesseract-family
// engines. All are normalized to the same relative-coordinate geometry file.
//
// Configuration:
//
// Live Document AI processing requires a YAML configuration file:
//
//	project_id: "your-gcp-project-id"
//	location: "us"
//	processor_id: "your-processor-id"
//
// and the GOOGLE_APPLICATION_CREDENTIALS environment variable.
//
// Usage:
//
//	geomingest -pdf input.pdf -config config.yml -out geometry.json
//	geomingest -docai-json response.json -out geometry.json
//	geomingest -hocr document.hocr -out geometry.json
//
// Flags:
//
//	-pdf string         Path to a PDF to process with Document AI (requires -config)
//	-config string      Path to the Document AI YAML configuration file
//	-docai-json string  Path to a saved Document AI protojson response
//	-hocr string        Path to an hOCR file
//	-out string         Path to write the geometry JSON (required)
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/docpane/textlayer/pkg/geometry"
	"github.com/docpane/textlayer/pkg/ingest"
)

func loadDocAIConfig(path string) (ingest.DocAIConfig, error) {
	var cfg ingest.DocAIConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.ProjectID == "" || cfg.Location == "" || cfg.ProcessorID == "" {
		return cfg, fmt.Errorf("config must set project_id, location and processor_id")
	}
	return cfg, nil
}

func main() {
	pdfPath := flag.String("pdf", "", "Path to a PDF to process with Document AI (requires -config)")
	configPath := flag.String("config", "", "Path to the Document AI YAML configuration file")
	docaiJSONPath := flag.String("docai-json", "", "Path to a saved Document AI protojson response")
	hocrPath := flag.String("hocr", "", "Path to an hOCR file")
	outPath := flag.String("out", "", "Path to write the geometry JSON (required)")
	flag.Parse()

	if *outPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -out flag is required")
		fmt.Fprintln(os.Stderr, "Usage:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	inputs := 0
	for _, v := range []string{*pdfPath, *docaiJSONPath, *hocrPath} {
		if v != "" {
			inputs++
		}
	}
	if inputs != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one of -pdf, -docai-json or -hocr must be provided")
		fmt.Fprintln(os.Stderr, "Usage:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	var g *geometry.Geometry
	var err error

	switch {
	case *pdfPath != "":
		if *configPath == "" {
			fmt.Fprintln(os.Stderr, "Error: -pdf requires -config")
			os.Exit(1)
		}
		cfg, cfgErr := loadDocAIConfig(*configPath)
		if cfgErr != nil {
			log.Fatalf("Failed to load config: %v", cfgErr)
		}

		fmt.Println("Processing PDF with Document AI:", *pdfPath)
		pdfBytes, readErr := os.ReadFile(*pdfPath)
		if readErr != nil {
			log.Fatalf("Failed to read PDF file: %v", readErr)
		}
		doc, procErr := ingest.ProcessDocument(context.Background(), pdfBytes, cfg)
		if procErr != nil {
			log.Fatalf("Error processing document: %v", procErr)
		}
		g, err = ingest.FromDocumentAI(doc)

	case *docaiJSONPath != "":
		fmt.Println("Converting Document AI JSON:", *docaiJSONPath)
		data, readErr := os.ReadFile(*docaiJSONPath)
		if readErr != nil {
			log.Fatalf("Failed to read Document AI JSON: %v", readErr)
		}
		g, err = ingest.FromDocumentAIJSON(data)

	case *hocrPath != "":
		fmt.Println("Converting hOCR:", *hocrPath)
		data, readErr := os.ReadFile(*hocrPath)
		if readErr != nil {
			log.Fatalf("Failed to read hOCR file: %v", readErr)
		}
		g, err = ingest.FromHOCR(data)
	}

	if err != nil {
		log.Fatalf("Conversion failed: %v", err)
	}

	if err := ingest.WriteGeometryFile(*outPath, g); err != nil {
		log.Fatalf("Failed to write geometry: %v", err)
	}
	fmt.Printf("Geometry saved to %s (%d pages, %d words, provider %s)\n",
		*outPath, len(g.Pages), g.WordCount(), g.Provider)
}
