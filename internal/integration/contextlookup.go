package integration

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ContextClient calls the retrieval service for conversation-relevant
// context. Failures are logged at debug level and swallowed: retrieval
// is an enrichment, never a dependency.
type ContextClient struct {
	backend *httpBackend
	timeout time.Duration
	logger  *zap.Logger
}

var _ ContextLookup = (*ContextClient)(nil)

func NewContextClient(cfg ClientConfig, logger *zap.Logger) *ContextClient {
	timeout := cfg.timeout()
	if cfg.TimeoutSeconds <= 0 {
		timeout = 3 * time.Second
	}
	return &ContextClient{
		backend: newHTTPBackend("context", cfg),
		timeout: timeout,
		logger:  logger,
	}
}

type contextRequest struct {
	UserID int    `json:"user_id"`
	Text   string `json:"text"`
}

type contextResponse struct {
	Context string `json:"context"`
}

func (c *ContextClient) RelevantContext(ctx context.Context, ownerID int, text string) string {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out contextResponse
	if err := c.backend.doJSON(ctx, "POST", "/context", contextRequest{UserID: ownerID, Text: text}, &out); err != nil {
		c.logger.Debug("Context lookup failed", zap.Error(err))
		return ""
	}
	return out.Context
}
