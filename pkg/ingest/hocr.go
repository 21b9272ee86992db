package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"

	"github.com/docpane/textlayer/pkg/geometry"
)

// FromHOCR converts an hOCR document (the format Tesseract and friends emit)
// into word geometry. hOCR boxes are pixel coordinates against the OCR
// raster; each word is normalized by its page's bbox so downstream
// projection is raster-independent.
func FromHOCR(data []byte) (*geometry.Geometry, error) {
	decoded, err := decodeCharset(data)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(string(decoded)))
	if err != nil {
		return nil, fmt.Errorf("parse hOCR: %w", err)
	}

	g := &geometry.Geometry{}
	pageIndex := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, "ocr_page") {
			pageIndex++
			page, err := convertPage(n, pageIndex)
			if err == nil {
				g.Pages = append(g.Pages, page)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(g.Pages) == 0 {
		return nil, fmt.Errorf("no ocr_page elements found")
	}
	stamp(g, geometry.ProviderTesseract)
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// decodeCharset converts non-UTF-8 hOCR to UTF-8. Legacy engines still emit
// ISO-8859-1.
func decodeCharset(data []byte) ([]byte, error) {
	content := string(data)
	idx := strings.Index(content, "charset=")
	if idx < 0 {
		return data, nil
	}
	rest := content[idx+len("charset="):]
	fields := strings.FieldsFunc(rest, func(r rune) bool {
		return r == '"' || r == ';' || r == '\'' || r == '>' || r == ' '
	})
	if len(fields) == 0 {
		// Truncated or empty declaration; assume UTF-8.
		return data, nil
	}
	enc := strings.ToLower(fields[0])
	if enc == "" || enc == "utf-8" {
		return data, nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", enc, err)
	}
	return decoded, nil
}

func convertPage(n *html.Node, pageNumber int) (geometry.Page, error) {
	x1, y1, x2, y2, ok := bboxFromTitle(attr(n, "title"))
	if !ok || x2 <= x1 || y2 <= y1 {
		return geometry.Page{}, fmt.Errorf("page %d has no usable bbox", pageNumber)
	}
	pageW, pageH := x2-x1, y2-y1

	page := geometry.Page{
		PageNumber: pageNumber,
		Width:      pageW,
		Height:     pageH,
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, "ocrx_word") {
			if w, ok := convertWord(n, x1, y1, pageW, pageH); ok {
				page.Words = append(page.Words, w)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	return page, nil
}

func convertWord(n *html.Node, pageX, pageY, pageW, pageH float64) (geometry.Word, bool) {
	title := attr(n, "title")
	x1, y1, x2, y2, ok := bboxFromTitle(title)
	if !ok {
		return geometry.Word{}, false
	}

	text := strings.TrimSpace(nodeText(n))
	if text == "" {
		return geometry.Word{}, false
	}

	w := geometry.Word{
		Text:       text,
		X:          (x1 - pageX) / pageW,
		Y:          (y1 - pageY) / pageH,
		Width:      (x2 - x1) / pageW,
		Height:     (y2 - y1) / pageH,
		Confidence: confidenceFromTitle(title),
	}
	if w.Degenerate() || !w.InRange() {
		return geometry.Word{}, false
	}
	return w, true
}

// parseTitle breaks an hOCR title attribute into properties.
// Example: "bbox 100 200 300 400; x_wconf 95".
func parseTitle(title string) map[string][]string {
	props := make(map[string][]string)
	for _, part := range strings.Split(title, ";") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) < 2 {
			continue
		}
		props[fields[0]] = fields[1:]
	}
	return props
}

func bboxFromTitle(title string) (x1, y1, x2, y2 float64, ok bool) {
	vals, present := parseTitle(title)["bbox"]
	if !present || len(vals) < 4 {
		return 0, 0, 0, 0, false
	}
	nums := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(vals[i], 64)
		if err != nil {
			return 0, 0, 0, 0, false
		}
		nums[i] = v
	}
	return nums[0], nums[1], nums[2], nums[3], true
}

// confidenceFromTitle reads x_wconf, which hOCR expresses as 0-100.
func confidenceFromTitle(title string) float64 {
	vals, ok := parseTitle(title)["x_wconf"]
	if !ok || len(vals) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(vals[0], 64)
	if err != nil {
		return 0
	}
	return v / 100
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" && strings.Contains(a.Val, class) {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
