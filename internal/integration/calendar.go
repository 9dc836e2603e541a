package integration

import (
	"context"
)

// CalendarClient talks to the calendar service.
type CalendarClient struct {
	backend *httpBackend
}

var _ Calendar = (*CalendarClient)(nil)

func NewCalendarClient(cfg ClientConfig) *CalendarClient {
	return &CalendarClient{backend: newHTTPBackend("calendar", cfg)}
}

func (c *CalendarClient) CreateEvent(ctx context.Context, p EventParams) (*CalendarEvent, error) {
	var out CalendarEvent
	if err := c.backend.doJSON(ctx, "POST", "/events", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *CalendarClient) GetEvent(ctx context.Context, id string) (*CalendarEvent, error) {
	var out CalendarEvent
	if err := c.backend.doJSON(ctx, "GET", "/events/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *CalendarClient) UpdateEvent(ctx context.Context, id string, p EventParams) (*CalendarEvent, error) {
	var out CalendarEvent
	if err := c.backend.doJSON(ctx, "PATCH", "/events/"+id, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *CalendarClient) DeleteEvent(ctx context.Context, id string) error {
	return c.backend.doJSON(ctx, "DELETE", "/events/"+id, nil, nil)
}
