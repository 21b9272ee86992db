// Package geomstore fetches and caches per-document OCR word geometry from
// the geometry endpoint. The store degrades to "not present" on any failure:
// the overlay is an enhancement layer and must never block basic viewing.
package geomstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/docpane/textlayer/pkg/geometry"
)

// Status describes the outcome of a geometry lookup.
type Status int

const (
	// StatusPresent means structured geometry was returned.
	StatusPresent Status = iota
	// StatusNotPresent means the document has no OCR geometry. This is an
	// expected state (the document has native extractable text), distinct
	// from a fetch failure; the viewer falls back to the renderer's own
	// text layer.
	StatusNotPresent
)

// Result is a geometry lookup outcome. Geometry is non-nil iff Status is
// StatusPresent.
type Result struct {
	Status   Status
	Geometry *geometry.Geometry
}

// HasOCR reports whether the result carries usable geometry.
func (r Result) HasOCR() bool { return r.Status == StatusPresent && r.Geometry != nil }

// envelope is the geometry endpoint's response shape:
// GET /documents/{id}/ocr-geometry.
type envelope struct {
	Success        bool               `json:"success"`
	HasOcrGeometry bool               `json:"hasOcrGeometry"`
	OcrGeometry    *geometry.Geometry `json:"ocrGeometry,omitempty"`
}

// transientError marks failures worth retrying (network errors, 5xx).
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// IsTransient reports whether err is a retryable fetch failure.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// Client talks to the document service's geometry and content endpoints.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// DefaultFetchTimeout bounds a single geometry fetch. The upstream contract
// specifies no timeout; an unbounded fetch could wedge a page mount.
const DefaultFetchTimeout = 10 * time.Second

// NewClient creates a geometry endpoint client. A zero timeout selects
// DefaultFetchTimeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchGeometry retrieves the full per-page word set for a document in one
// call; there is no pagination parameter.
func (c *Client) FetchGeometry(ctx context.Context, documentID string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/documents/"+documentID+"/ocr-geometry", nil)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, &transientError{fmt.Errorf("fetch geometry %s: %w", documentID, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Result{Status: StatusNotPresent}, nil
	case resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Result{}, &transientError{fmt.Errorf("fetch geometry %s: status %d: %s", documentID, resp.StatusCode, body)}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Result{}, fmt.Errorf("fetch geometry %s: status %d: %s", documentID, resp.StatusCode, body)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return Result{}, fmt.Errorf("decode geometry %s: %w", documentID, err)
	}
	if !env.Success || !env.HasOcrGeometry || env.OcrGeometry == nil {
		return Result{Status: StatusNotPresent}, nil
	}
	return Result{Status: StatusPresent, Geometry: env.OcrGeometry}, nil
}

// maxDocumentBytes caps document downloads used by the render-position
// strategy.
const maxDocumentBytes = 200 << 20

// FetchDocument retrieves the raw document bytes, used by the
// render-position strategy to extract native text runs.
func (c *Client) FetchDocument(ctx context.Context, documentID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/documents/"+documentID+"/content", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch document %s: %w", documentID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("fetch document %s: status %d: %s", documentID, resp.StatusCode, body)
	}

	data, err := readCapped(resp.Body, maxDocumentBytes)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", documentID, err)
	}
	return data, nil
}

// readCapped reads at most limit bytes and fails when the source exceeds it.
// Silent truncation would hand the PDF parser a corrupt prefix.
func readCapped(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("exceeds %d byte limit", limit)
	}
	return data, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
