package integration

import (
	"context"
	"fmt"
	"net/url"
)

// MailerClient talks to the mail-relay service that fronts the user's
// Gmail account.
type MailerClient struct {
	backend *httpBackend
}

var _ Messaging = (*MailerClient)(nil)

func NewMailerClient(cfg ClientConfig) *MailerClient {
	return &MailerClient{backend: newHTTPBackend("mailer", cfg)}
}

type sendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (c *MailerClient) Send(ctx context.Context, to, subject, body string) error {
	return c.backend.doJSON(ctx, "POST", "/send", sendRequest{To: to, Subject: subject, Body: body}, nil)
}

type searchResponse struct {
	Messages []EmailSummary `json:"messages"`
}

func (c *MailerClient) Search(ctx context.Context, query string) ([]EmailSummary, error) {
	var out searchResponse
	path := fmt.Sprintf("/search?q=%s", url.QueryEscape(query))
	if err := c.backend.doJSON(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}
