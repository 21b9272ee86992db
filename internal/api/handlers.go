package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/docpane/textlayer/pkg/geometry"
	"github.com/docpane/textlayer/pkg/overlay"
	"github.com/docpane/textlayer/pkg/projection"
	"github.com/docpane/textlayer/pkg/viewer"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleOCRStatus reports whether a document has OCR geometry. The viewer
// polls this once per document to decide whether to suppress its native text
// layer.
func (s *Server) handleOCRStatus(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	res := s.geometry.Geometry(r.Context(), docID)

	body := map[string]any{"documentId": docID, "hasOcr": res.HasOCR()}
	if res.HasOCR() {
		body["pages"] = len(res.Geometry.Pages)
		body["provider"] = res.Geometry.Provider
	}
	writeJSON(w, http.StatusOK, body)
}

// overlayResponse is the JSON shape of a per-page overlay computation.
type overlayResponse struct {
	DocumentID string                     `json:"documentId"`
	Page       int                        `json:"page"`
	HasOCR     bool                       `json:"hasOcr"`
	Words      []projection.ProjectedWord `json:"words"`
}

// handleOverlay computes the overlay for one page at the caller's container
// size. Returns an HTML fragment when the client accepts text/html, JSON
// otherwise.
func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")

	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil || page < 1 {
		writeError(w, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	cw, err := strconv.ParseFloat(r.URL.Query().Get("w"), 64)
	if err != nil || cw <= 0 {
		writeError(w, http.StatusBadRequest, "w must be a positive container width in pixels")
		return
	}
	ch, err := strconv.ParseFloat(r.URL.Query().Get("h"), 64)
	if err != nil || ch <= 0 {
		writeError(w, http.StatusBadRequest, "h must be a positive container height in pixels")
		return
	}

	strategy := s.cfg.DefaultStrategy
	switch q := r.URL.Query().Get("strategy"); q {
	case "":
	case string(viewer.StrategyProjection), string(viewer.StrategyNative):
		strategy = viewer.Strategy(q)
	default:
		writeError(w, http.StatusBadRequest, "strategy must be projection or native")
		return
	}

	resp := overlayResponse{DocumentID: docID, Page: page, Words: []projection.ProjectedWord{}}

	res := s.geometry.Geometry(r.Context(), docID)
	if res.HasOCR() {
		resp.HasOCR = true
		if pg := res.Geometry.PageByNumber(page); pg != nil {
			cal := s.profiles.Get(r.URL.Query().Get("profile"))

			switch strategy {
			case viewer.StrategyNative:
				words, err := s.nativeWords(r, docID, page, cw, ch, pg.Words)
				if err != nil {
					// Extraction problems degrade to an empty overlay; the
					// document-level signal stays true.
					s.log.Warn("native overlay failed, serving empty overlay",
						"document_id", docID, "page", page, "error", err)
				} else {
					resp.Words = words
				}
			default:
				resp.Words = s.engine.Project(pg.Words, cw, ch, cal)
			}
		}
	}

	if wantsHTML(r) {
		debug := s.cfg.DebugOverlay
		if q := r.URL.Query().Get("debug"); q != "" {
			debug, _ = strconv.ParseBool(q)
		}
		html, err := s.renderer.Render(resp.Words, overlay.Options{Debug: debug, ZIndex: s.cfg.ZIndex})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "overlay rendering failed")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Has-Ocr", strconv.FormatBool(resp.HasOCR))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(html))
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// nativeWords fetches the document and overlays its native text-run
// positions.
func (s *Server) nativeWords(r *http.Request, docID string, page int, cw, ch float64, ocrWords []geometry.Word) ([]projection.ProjectedWord, error) {
	if s.docs == nil {
		return nil, fmt.Errorf("native strategy requires a document source")
	}
	docBytes, err := s.docs.FetchDocument(r.Context(), docID)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	return s.resolver.Resolve(docBytes, page, cw, ch, ocrWords)
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
