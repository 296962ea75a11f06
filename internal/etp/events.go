package etp

import (
	"context"
	"net/url"
	"strconv"
)

// ListEvents returns one page of the IP's event log, newest first.
func (c *Client) ListEvents(ctx context.Context, ipID string, page int) (*Page[Event], error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(c.pageSize))

	var out Page[Event]
	if err := c.get(ctx, "list events", ipPath(ipID)+"events/", q, &out); err != nil {
		return nil, err
	}
	out.paginate(page, c.pageSize)
	return &out, nil
}

// AddEvent appends an event to the IP's log.
func (c *Client) AddEvent(ctx context.Context, ipID string, eventType int, detail string) (*Event, error) {
	body := map[string]any{
		"information_package": ipID,
		"event_type":          eventType,
		"event_detail":        detail,
	}
	var ev Event
	if err := c.post(ctx, "add event", "api/events/", body, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
