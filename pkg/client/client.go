// Package client talks to a running tglaunch control API and, for
// convenience, to the backend translate endpoint.
package client

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

	"github.com/rs/zerolog"

	"tglaunch/pkg/types"
)

// DefaultTimeout bounds a single request. POST /start may run the whole
// runtime bootstrap, so it is generous.
const DefaultTimeout = 10 * time.Minute

const maxBody = 1 << 20

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// StatusError is returned for non-2xx answers.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Message)
}

// Client is a control API client.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// New creates a client for the control API at cfg.BaseURL.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://127.0.0.1:18181"
	}
	hc := cfg.HTTPClient
	if hc == nil {
		if cfg.Timeout <= 0 {
			cfg.Timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{baseURL: strings.TrimRight(cfg.BaseURL, "/"), http: hc, log: cfg.Logger}
}

// Status fetches the current snapshot.
func (c *Client) Status(ctx context.Context) (types.StatusSnapshot, error) {
	return c.control(ctx, http.MethodGet, "/status")
}

// Start asks the supervisor to start the backend. A failed start is
// reported in the snapshot's LastError, not as an error.
func (c *Client) Start(ctx context.Context) (types.StatusSnapshot, error) {
	return c.control(ctx, http.MethodPost, "/start")
}

// Stop asks the supervisor to stop the backend.
func (c *Client) Stop(ctx context.Context) (types.StatusSnapshot, error) {
	return c.control(ctx, http.MethodPost, "/stop")
}

func (c *Client) control(ctx context.Context, method, path string) (types.StatusSnapshot, error) {
	var s types.StatusSnapshot
	err := c.do(ctx, method, c.baseURL+path, nil, &s)
	return s, err
}

// Translate posts req to backendURL + "/translate". The supervisor never
// sits in this path; the call goes straight to the backend.
func (c *Client) Translate(ctx context.Context, backendURL string, req types.TranslateRequest) (types.TranslateResponse, error) {
	var out types.TranslateResponse
	if strings.TrimSpace(req.Text) == "" {
		return out, errors.New("translate: empty text")
	}
	data, err := json.Marshal(req)
	if err != nil {
		return out, fmt.Errorf("marshal request: %w", err)
	}
	err = c.do(ctx, http.MethodPost, strings.TrimRight(backendURL, "/")+"/translate", data, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.log.Debug().Str("method", method).Str("url", url).Int("status", resp.StatusCode).Dur("dur", time.Since(start)).Msg("request")

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e types.ErrorResponse
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
