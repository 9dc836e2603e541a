package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"donna/pkg/circuitbreaker"
	"donna/pkg/metrics"
	"donna/pkg/trace"
)

// ClientConfig configures one collaborator HTTP client. Credentials are
// injected here at construction; no client reads ambient env vars.
type ClientConfig struct {
	BaseURL        string `yaml:"base_url"`
	AccessToken    string `yaml:"access_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (c ClientConfig) timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// httpBackend is the shared request plumbing for collaborator clients:
// JSON in/out, bearer auth, trace propagation, circuit breaker, latency
// metrics.
type httpBackend struct {
	name       string
	baseURL    string
	token      string
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
}

func newHTTPBackend(name string, cfg ClientConfig) *httpBackend {
	return &httpBackend{
		name:    name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.AccessToken,
		httpClient: &http.Client{
			Timeout: cfg.timeout(),
		},
		cb: circuitbreaker.New(circuitbreaker.DefaultConfig()),
	}
}

// doJSON performs one request inside the circuit breaker. A non-nil
// `out` is decoded from the response body. 2xx is success; everything
// else is an error that counts against the breaker.
func (b *httpBackend) doJSON(ctx context.Context, method, path string, payload, out any) error {
	return b.cb.Execute(func() error {
		start := time.Now()

		var body io.Reader
		if payload != nil {
			raw, err := json.Marshal(payload)
			if err != nil {
				return err
			}
			body = bytes.NewReader(raw)
		}

		req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if b.token != "" {
			req.Header.Set("Authorization", "Bearer "+b.token)
		}
		if traceID := trace.FromContext(ctx); traceID != "" {
			req.Header.Set(trace.HeaderName(), traceID)
		}

		resp, err := b.httpClient.Do(req)
		if err != nil {
			metrics.RecordCollaboratorCallLatency(b.name, path, "error", time.Since(start))
			return fmt.Errorf("%s: request failed: %w", b.name, err)
		}
		defer resp.Body.Close()

		status := fmt.Sprintf("%d", resp.StatusCode)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			metrics.RecordCollaboratorCallLatency(b.name, path, status, time.Since(start))
			raw, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("%s: status %d: %s", b.name, resp.StatusCode, strings.TrimSpace(string(raw)))
		}

		metrics.RecordCollaboratorCallLatency(b.name, path, "success", time.Since(start))

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decode response: %w", b.name, err)
		}
		return nil
	})
}
