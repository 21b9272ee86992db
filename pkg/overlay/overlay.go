// Package overlay turns projected words into an invisible, selectable text
// layer. The HTML renderer emits one absolutely positioned span per word,
// transparent by default so the browser's native selection and clipboard
// operate on it as if the page image were real text. A debug mode renders
// visible boxes and logs source coordinates for alignment diagnosis.
package overlay

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/docpane/textlayer/pkg/projection"
)

//go:embed templates/overlay.tmpl
var templateFS embed.FS

// DefaultZIndex stacks the overlay above the rendered page canvas but below
// interactive viewer chrome.
const DefaultZIndex = 10

// Options controls overlay rendering.
type Options struct {
	// Debug renders visible boxes and text instead of a transparent layer.
	Debug bool
	// ZIndex for the overlay container; zero selects DefaultZIndex.
	ZIndex int
}

// Renderer builds overlay HTML fragments.
type Renderer struct {
	tmpl *template.Template
	log  *slog.Logger
}

// NewRenderer creates an overlay renderer. A nil logger uses slog.Default.
func NewRenderer(log *slog.Logger) *Renderer {
	if log == nil {
		log = slog.Default()
	}
	tmpl := template.Must(template.New("overlay.tmpl").Funcs(template.FuncMap{
		"px": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	}).ParseFS(templateFS, "templates/overlay.tmpl"))
	return &Renderer{tmpl: tmpl, log: log}
}

type overlayData struct {
	Words  []projection.ProjectedWord
	Debug  bool
	ZIndex int
}

// Render produces the overlay HTML fragment for one page. The caller mounts
// it above the page canvas; regeneration is full, not incremental, because
// per-page word counts are small.
func (r *Renderer) Render(words []projection.ProjectedWord, opts Options) (string, error) {
	if opts.ZIndex == 0 {
		opts.ZIndex = DefaultZIndex
	}
	if opts.Debug {
		for _, w := range words {
			r.log.Debug("overlay word",
				"text", w.Text,
				"x", w.ScreenX, "y", w.ScreenY,
				"w", w.ScreenWidth, "h", w.ScreenHeight,
				"font_px", w.FontSizePx)
		}
	}

	var buf bytes.Buffer
	err := r.tmpl.Execute(&buf, overlayData{Words: words, Debug: opts.Debug, ZIndex: opts.ZIndex})
	if err != nil {
		return "", fmt.Errorf("render overlay: %w", err)
	}
	return buf.String(), nil
}
