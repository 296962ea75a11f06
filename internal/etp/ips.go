package etp

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

func ipPath(id string) string {
	return "api/information-packages/" + url.PathEscape(id) + "/"
}

// ListIPs returns one page of information packages.
func (c *Client) ListIPs(ctx context.Context, opts ListOptions) (*Page[InformationPackage], error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	size := opts.PageSize
	if size < 1 {
		size = c.pageSize
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(size))
	if opts.Ordering != "" {
		q.Set("ordering", opts.Ordering)
	}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.State != "" {
		q.Set("state", opts.State)
	}

	var out Page[InformationPackage]
	if err := c.get(ctx, "list information packages", "api/information-packages/", q, &out); err != nil {
		return nil, err
	}
	out.paginate(page, size)
	return &out, nil
}

// GetIP returns one information package including its locks.
func (c *Client) GetIP(ctx context.Context, id string) (*InformationPackage, error) {
	var ip InformationPackage
	if err := c.get(ctx, "get information package", ipPath(id), nil, &ip); err != nil {
		return nil, err
	}
	return &ip, nil
}

// PrepareIP prepares the IP for upload.
func (c *Client) PrepareIP(ctx context.Context, id string) error {
	return c.post(ctx, "prepare information package", ipPath(id)+"prepare/", map[string]any{}, nil)
}

// SetUploaded marks the IP's content as uploaded.
func (c *Client) SetUploaded(ctx context.Context, id string) error {
	return c.post(ctx, "set uploaded", ipPath(id)+"set-uploaded/", map[string]any{}, nil)
}

// CreateSIP creates a SIP from the IP.
func (c *Client) CreateSIP(ctx context.Context, id string, opts CreateOptions) error {
	if opts.Validators == nil {
		opts.Validators = map[string]bool{}
	}
	return c.post(ctx, "create sip", ipPath(id)+"create/", opts, nil)
}

// SubmitIP submits the SIP. A notification subject and body are only sent
// when opts.Email is set.
func (c *Client) SubmitIP(ctx context.Context, id string, opts SubmitOptions) error {
	validators := opts.Validators
	if validators == nil {
		validators = map[string]bool{}
	}
	body := map[string]any{"validators": validators}
	if opts.Email {
		body["subject"] = opts.Subject
		body["body"] = opts.Body
	}
	return c.post(ctx, "submit information package", ipPath(id)+"submit/", body, nil)
}

// DeleteIP removes the IP.
func (c *Client) DeleteIP(ctx context.Context, id string) error {
	return c.do(ctx, "remove information package", http.MethodDelete, ipPath(id), nil, nil, nil)
}
