package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ollamaClient talks to a local Ollama server. It sits last in the
// failover chain as the offline fallback and needs no credential.
type ollamaClient struct {
	name       string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewOllamaClient(cfg ProviderConfig) Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &ollamaClient{
		name:    cfg.Name,
		baseURL: baseURL,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.timeout(),
		},
	}
}

func (c *ollamaClient) Name() string { return c.name }

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
}

func (c *ollamaClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	payload := ollamaRequest{
		Model:    c.model,
		Messages: req.Messages,
		Stream:   false,
	}
	if req.Temperature > 0 {
		payload.Options = map[string]any{"temperature": req.Temperature}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s: status %d: %s", c.name, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%s: %s", c.name, out.Error)
	}
	if out.Message.Content == "" {
		return nil, fmt.Errorf("%s: empty content", c.name)
	}

	return &Completion{Provider: c.name, Content: out.Message.Content}, nil
}
