// Package httpget provides the HTTP_GET_JSON executor: fetch a URL and
// report byte count and truncation.
package httpget

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fentz26/drover/internal/models"
)

// MaxBodyBytes is the boundary at which fetched bodies are truncated.
const MaxBodyBytes = 100 * 1024

// DefaultFetchTimeout bounds a single fetch.
const DefaultFetchTimeout = 30 * time.Second

// HTTPGet implements the HTTP_GET_JSON executor.
type HTTPGet struct {
	client *http.Client
}

// New creates a new HTTP_GET_JSON executor with a default client.
func New() *HTTPGet {
	return &HTTPGet{
		client: &http.Client{Timeout: DefaultFetchTimeout},
	}
}

// Type returns the command type this executor handles.
func (h *HTTPGet) Type() models.CommandType {
	return models.CommandTypeHTTPGetJSON
}

// Execute fetches payload.url, reads the body up to MaxBodyBytes, and
// returns the status code, byte count, and whether the body was truncated.
func (h *HTTPGet) Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p models.HTTPGetPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("parse HTTP_GET_JSON payload: %w", err)
	}
	if p.URL == "" {
		return nil, fmt.Errorf("empty url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", p.URL, err)
	}
	defer resp.Body.Close()

	// Read one byte past the boundary to detect truncation.
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	truncated := len(body) > MaxBodyBytes
	n := len(body)
	if truncated {
		n = MaxBodyBytes
	}

	result := models.HTTPGetResult{
		Status:    resp.StatusCode,
		Bytes:     n,
		Truncated: truncated,
	}
	return json.Marshal(result)
}
