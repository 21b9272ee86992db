// textlayerd serves invisible selectable text overlays for scanned documents.
//
// The service fetches per-document OCR word geometry from the upstream
// document service, projects it into the caller's container pixel space, and
// returns overlay fragments the viewer mounts above the rendered page.
//
// Configuration is environment-based; see internal/config for the variables
// and their defaults. A .env file in the working directory is loaded if
// present.
//
// Endpoints:
//
//	GET /health
//	GET /api/documents/{docID}/ocr-status
//	GET /api/documents/{docID}/pages/{page}/overlay?w=&h=&strategy=&profile=&debug=
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/docpane/textlayer/internal/api"
	"github.com/docpane/textlayer/internal/config"
	"github.com/docpane/textlayer/pkg/geomstore"
	"github.com/docpane/textlayer/pkg/nativetext"
	"github.com/docpane/textlayer/pkg/projection"
	"github.com/docpane/textlayer/pkg/viewer"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var profiles *projection.ProfileSet
	if cfg.CalibrationPath != "" {
		var err error
		profiles, err = projection.LoadProfiles(cfg.CalibrationPath)
		if err != nil {
			log.Error("failed to load calibration profiles", "path", cfg.CalibrationPath, "error", err)
			os.Exit(1)
		}
		log.Info("calibration profiles loaded", "path", cfg.CalibrationPath, "profiles", len(profiles.Profiles))
	}

	client := geomstore.NewClient(cfg.UpstreamURL, cfg.UpstreamAPIKey, cfg.FetchTimeout)
	defer client.Close()

	store := geomstore.NewStore(client, geomstore.Options{
		CacheSize:   cfg.CacheSize,
		MaxAttempts: uint64(cfg.MaxFetchAttempts),
		Logger:      log,
	})

	resolver := nativetext.NewResolver(log)
	if cfg.MatchOCRText {
		resolver.Source = nativetext.TextFromOCR
		resolver.MaxMatchDistancePx = cfg.MatchDistancePx
	}

	srv := api.NewServer(api.Config{
		APIKey:          cfg.APIKey,
		DefaultStrategy: viewer.Strategy(cfg.Strategy),
		DebugOverlay:    cfg.DebugOverlay,
		ZIndex:          cfg.OverlayZIndex,
	}, store, client, resolver, profiles, log)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("textlayerd listening",
			"port", cfg.Port, "strategy", cfg.Strategy, "upstream", cfg.UpstreamURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}
