package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds textlayerd settings, loaded from the environment.
type Config struct {
	Port string

	// Upstream document service (geometry + content endpoints).
	UpstreamURL    string
	UpstreamAPIKey string

	// Auth for this service's own API. Empty disables auth, for local use.
	APIKey string

	// Geometry fetch hardening.
	FetchTimeout     time.Duration
	MaxFetchAttempts int
	CacheSize        int

	// Overlay behavior.
	Strategy        string // "projection" or "native"
	CalibrationPath string // optional YAML profile file
	DebugOverlay    bool
	OverlayZIndex   int
	MatchOCRText    bool // substitute OCR text into native runs
	MatchDistancePx float64
}

// Load reads configuration from the environment with defaults.
func Load() Config {
	return Config{
		Port: envOr("PORT", "8092"),

		UpstreamURL:    envOr("UPSTREAM_URL", "http://localhost:8080"),
		UpstreamAPIKey: os.Getenv("UPSTREAM_API_KEY"),

		APIKey: os.Getenv("TEXTLAYER_API_KEY"),

		FetchTimeout:     envDuration("FETCH_TIMEOUT", 10*time.Second),
		MaxFetchAttempts: envInt("MAX_FETCH_ATTEMPTS", 3),
		CacheSize:        envInt("GEOMETRY_CACHE_SIZE", 64),

		Strategy:        envOr("OVERLAY_STRATEGY", "projection"),
		CalibrationPath: os.Getenv("CALIBRATION_PROFILES"),
		DebugOverlay:    envBool("DEBUG_OVERLAY", false),
		OverlayZIndex:   envInt("OVERLAY_Z_INDEX", 0),
		MatchOCRText:    envBool("MATCH_OCR_TEXT", false),
		MatchDistancePx: envFloat("MATCH_DISTANCE_PX", 0),
	}
}

// Validate checks required settings.
func (c Config) Validate() error {
	if c.UpstreamURL == "" {
		return fmt.Errorf("UPSTREAM_URL is required")
	}
	if c.Strategy != "projection" && c.Strategy != "native" {
		return fmt.Errorf("OVERLAY_STRATEGY must be projection or native, got %q", c.Strategy)
	}
	if c.MaxFetchAttempts < 1 {
		return fmt.Errorf("MAX_FETCH_ATTEMPTS must be at least 1")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
