// Package api exposes the overlay service over HTTP: per-page overlay
// fragments, the document-level OCR status signal, and health.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/docpane/textlayer/pkg/nativetext"
	"github.com/docpane/textlayer/pkg/overlay"
	"github.com/docpane/textlayer/pkg/projection"
	"github.com/docpane/textlayer/pkg/viewer"
)

// Config carries the service-level settings the handlers need.
type Config struct {
	// APIKey guards the API; empty disables auth.
	APIKey string
	// DefaultStrategy is used when the request doesn't name one.
	DefaultStrategy viewer.Strategy
	// DebugOverlay renders visible overlay boxes unless the request
	// overrides it.
	DebugOverlay bool
	// ZIndex for overlay containers; zero selects the renderer default.
	ZIndex int
}

// Server wires the overlay pipeline behind HTTP handlers.
type Server struct {
	cfg      Config
	geometry viewer.GeometrySource
	docs     viewer.DocumentSource
	engine   *projection.Engine
	resolver *nativetext.Resolver
	renderer *overlay.Renderer
	profiles *projection.ProfileSet
	log      *slog.Logger
}

// NewServer assembles a server. docs may be nil when the native strategy is
// never used; profiles may be nil, selecting identity calibration.
func NewServer(cfg Config, geometry viewer.GeometrySource, docs viewer.DocumentSource,
	resolver *nativetext.Resolver, profiles *projection.ProfileSet, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if cfg.DefaultStrategy == "" {
		cfg.DefaultStrategy = viewer.StrategyProjection
	}
	if resolver == nil {
		resolver = nativetext.NewResolver(log)
	}
	return &Server{
		cfg:      cfg,
		geometry: geometry,
		docs:     docs,
		engine:   projection.NewEngine(),
		resolver: resolver,
		renderer: overlay.NewRenderer(log),
		profiles: profiles,
		log:      log,
	}
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey))
		}
		r.Get("/documents/{docID}/ocr-status", s.handleOCRStatus)
		r.Get("/documents/{docID}/pages/{page}/overlay", s.handleOverlay)
	})

	return r
}
