// Package model talks to an external scoring backend over HTTP. The backend
// is an opaque capability: it receives a fixed-length token window and
// returns a raw score. Anything about the model behind it is its business.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *Client) Name() string { return "remote" }

type scoreRequest struct {
	Tokens []int `json:"tokens"`
}

type scoreResponse struct {
	Score float64 `json:"score"`
}

// Score posts the token window to the backend and returns its raw score.
// The client holds no per-call state and is safe for unlimited concurrent
// use.
func (c *Client) Score(ctx context.Context, tokens []int) (float64, error) {
	payload, err := json.Marshal(scoreRequest{Tokens: tokens})
	if err != nil {
		return 0, fmt.Errorf("marshal score request: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/score", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build score request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		request.Header.Set("x-api-key", c.apiKey)
	}

	response, err := c.client.Do(request)
	if err != nil {
		return 0, fmt.Errorf("score request failed: %w", err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return 0, fmt.Errorf("read score response: %w", readErr)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return 0, &BackendError{StatusCode: response.StatusCode, Body: body}
	}

	var decoded scoreResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return 0, fmt.Errorf("decode score response: %w", err)
	}
	return decoded.Score, nil
}

// BackendError is a non-2xx reply from the scoring backend.
type BackendError struct {
	StatusCode int
	Body       []byte
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("scoring backend status %d: %s", e.StatusCode, string(e.Body))
}

func IsBackendError(err error) (*BackendError, bool) {
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr, true
	}
	return nil, false
}
