package ingest

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/docpane/textlayer/pkg/geometry"
)

// DocAIConfig identifies a Document AI processor.
type DocAIConfig struct {
	ProjectID   string `yaml:"project_id"`
	Location    string `yaml:"location"`
	ProcessorID string `yaml:"processor_id"`
}

// ProcessDocument sends document bytes to Document AI and returns the raw
// Document proto. Credentials come from GOOGLE_APPLICATION_CREDENTIALS.
func ProcessDocument(ctx context.Context, docBytes []byte, cfg DocAIConfig) (*documentaipb.Document, error) {
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)

	client, err := documentai.NewDocumentProcessorClient(
		ctx,
		option.WithEndpoint(endpoint),
		option.WithCredentialsFile(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
	)
	if err != nil {
		return nil, fmt.Errorf("create Document AI client: %w", err)
	}
	defer client.Close()

	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		cfg.ProjectID, cfg.Location, cfg.ProcessorID)

	req := &documentaipb.ProcessRequest{
		Name: name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  docBytes,
				MimeType: "application/pdf",
			},
		},
		SkipHumanReview: true,
	}

	resp, err := client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("process document: %w", err)
	}
	return resp.Document, nil
}

// FromDocumentAI converts a Document AI response into word geometry.
// Document AI tokens carry normalized vertices already in [0,1], so the
// bounding box is the axis-aligned hull of the token's vertices.
func FromDocumentAI(doc *documentaipb.Document) (*geometry.Geometry, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}

	g := &geometry.Geometry{}
	for i, page := range doc.Pages {
		pageNumber := int(page.PageNumber)
		if pageNumber < 1 {
			pageNumber = i + 1
		}
		gp := geometry.Page{PageNumber: pageNumber}
		if dim := page.Dimension; dim != nil {
			gp.Width = float64(dim.Width)
			gp.Height = float64(dim.Height)
		}

		for _, token := range page.Tokens {
			word, ok := tokenToWord(token, doc.Text)
			if !ok {
				continue
			}
			gp.Words = append(gp.Words, word)
		}
		g.Pages = append(g.Pages, gp)
	}

	stamp(g, geometry.ProviderVision)
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// FromDocumentAIJSON converts a protojson export of a Document AI response,
// the format batch processing writes to storage.
func FromDocumentAIJSON(data []byte) (*geometry.Geometry, error) {
	var doc documentaipb.Document
	if err := protojson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse Document AI JSON: %w", err)
	}
	return FromDocumentAI(&doc)
}

func tokenToWord(token *documentaipb.Document_Page_Token, fullText string) (geometry.Word, bool) {
	if token == nil || token.Layout == nil {
		return geometry.Word{}, false
	}
	text := strings.TrimSpace(textFromLayout(token.Layout, fullText))
	if text == "" {
		return geometry.Word{}, false
	}

	poly := token.Layout.BoundingPoly
	if poly == nil || len(poly.NormalizedVertices) == 0 {
		return geometry.Word{}, false
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, v := range poly.NormalizedVertices {
		minX = math.Min(minX, float64(v.X))
		minY = math.Min(minY, float64(v.Y))
		maxX = math.Max(maxX, float64(v.X))
		maxY = math.Max(maxY, float64(v.Y))
	}

	w := geometry.Word{
		Text:       text,
		X:          minX,
		Y:          minY,
		Width:      maxX - minX,
		Height:     maxY - minY,
		Confidence: float64(token.Layout.Confidence),
	}
	if w.Degenerate() {
		return geometry.Word{}, false
	}
	return w, true
}

// textFromLayout extracts a layout's text from the document's full text via
// its anchor segments. Segment indexes are byte offsets into the UTF-8 text.
func textFromLayout(layout *documentaipb.Document_Page_Layout, fullText string) string {
	if layout == nil || layout.TextAnchor == nil {
		return ""
	}
	total := len(fullText)

	var b strings.Builder
	for _, seg := range layout.TextAnchor.TextSegments {
		start, end := int(seg.StartIndex), int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > total {
			end = total
		}
		if start > end {
			start = end
		}
		b.WriteString(fullText[start:end])
	}
	return b.String()
}
