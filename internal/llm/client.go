package llm

import (
	"context"
	"fmt"
	"time"
)

// Message is one chat turn sent to a provider.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// CompletionRequest carries one completion call. The same request is
// reused unchanged across the failover chain.
type CompletionRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Completion is a successful provider response.
type Completion struct {
	Provider string
	Content  string
}

// Client is a uniform interface to one language-model backend.
// Implementations make exactly one attempt per Complete call; retry and
// backoff, where desired, belong to the individual client.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	Name() string
}

// ProviderConfig configures one backend in the failover chain. The chain
// order in config is the priority order; operators reorder or disable
// providers without code changes.
type ProviderConfig struct {
	Name           string `yaml:"name"`
	Type           string `yaml:"type"` // openai, anthropic, ollama
	Enabled        bool   `yaml:"enabled"`
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (c ProviderConfig) timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// NewClients builds clients from config, preserving chain order and
// skipping disabled entries.
func NewClients(cfgs []ProviderConfig) ([]Client, error) {
	var clients []Client
	for _, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		switch cfg.Type {
		case "openai":
			clients = append(clients, NewOpenAIClient(cfg))
		case "anthropic":
			clients = append(clients, NewAnthropicClient(cfg))
		case "ollama":
			clients = append(clients, NewOllamaClient(cfg))
		default:
			return nil, fmt.Errorf("unknown provider type: %q", cfg.Type)
		}
	}
	return clients, nil
}
