package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultProbeTimeout keeps /status responsive when the backend hangs.
const DefaultProbeTimeout = 1500 * time.Millisecond

const maxHealthBody = 64 << 10

// Prober checks backend readiness through its /health endpoint.
type Prober struct {
	client  *http.Client
	timeout time.Duration
}

// NewProber returns a Prober bounded by timeout (DefaultProbeTimeout if
// non-positive). A nil client uses a dedicated client with no global
// timeout; every probe carries its own context deadline.
func NewProber(client *http.Client, timeout time.Duration) *Prober {
	if client == nil {
		client = &http.Client{Timeout: 0}
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{client: client, timeout: timeout}
}

// healthBody uses raw messages so a non-boolean model_loaded is rejected
// instead of decoded loosely.
type healthBody struct {
	Status      *string         `json:"status"`
	ModelLoaded json.RawMessage `json:"model_loaded"`
}

// Probe reports whether the backend at baseURL answers GET /health with
// status "ok" and model_loaded true. Every failure yields false.
func (p *Prober) Probe(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxHealthBody))
	if err != nil {
		return false
	}
	var body healthBody
	if err := json.Unmarshal(b, &body); err != nil {
		return false
	}
	if body.Status == nil || *body.Status != "ok" {
		return false
	}
	return string(body.ModelLoaded) == "true"
}
