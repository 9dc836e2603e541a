package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"donna/pkg/metrics"
)

// ErrNoProviders means the chain is empty (all providers disabled).
var ErrNoProviders = errors.New("no providers configured")

// Router tries clients in a fixed priority order and returns the first
// success. The order encodes a cost/quality preference: fastest or most
// capable first, local fallback last. One attempt per client; any failure
// advances the chain.
type Router struct {
	clients []Client
	logger  *zap.Logger
}

func NewRouter(clients []Client, logger *zap.Logger) *Router {
	return &Router{clients: clients, logger: logger}
}

// Providers returns the chain's provider names in priority order.
func (r *Router) Providers() []string {
	names := make([]string, len(r.clients))
	for i, c := range r.clients {
		names[i] = c.Name()
	}
	return names
}

// Complete walks the chain. If every client fails it returns an
// aggregated error identifying the last failure.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if len(r.clients) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	var lastName string
	for _, c := range r.clients {
		start := time.Now()
		resp, err := c.Complete(ctx, req)
		if err != nil {
			metrics.RecordProviderCallLatency(c.Name(), "error", time.Since(start))
			r.logger.Warn("Provider failed, advancing chain",
				zap.String("provider", c.Name()),
				zap.Error(err),
			)
			lastErr = err
			lastName = c.Name()
			continue
		}

		metrics.RecordProviderCallLatency(c.Name(), "success", time.Since(start))
		return resp, nil
	}

	return nil, fmt.Errorf("all providers failed, last (%s): %w", lastName, lastErr)
}
