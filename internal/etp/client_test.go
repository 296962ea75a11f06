package etp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/pablasso/etp/internal/demo"
	"github.com/pablasso/etp/internal/errors"
	"github.com/pablasso/etp/internal/statustree"
)

func newDemoClient(t *testing.T, cfg demo.Config, opts ...Option) (*Client, *demo.Server, *httptest.Server) {
	t.Helper()
	srv := demo.NewServer(cfg)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	c, err := NewClient(ts.URL, opts...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, srv, ts
}

func TestNewClient_RejectsRelativeURL(t *testing.T) {
	if _, err := NewClient("etp.local/api"); err == nil {
		t.Error("expected error for relative URL")
	}
}

func TestClient_SendsHeaders(t *testing.T) {
	var got http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"ip-1","label":"x"}`))
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, WithBasicAuth("admin", "secret"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.GetIP(context.Background(), "ip-1"); err != nil {
		t.Fatalf("GetIP: %v", err)
	}

	if got.Get("Accept") != "application/json" {
		t.Errorf("expected Accept header, got %q", got.Get("Accept"))
	}
	if got.Get(RequestIDHeader) == "" {
		t.Error("expected request id header")
	}
	if got.Get("Authorization") == "" {
		t.Error("expected basic auth header")
	}
}

func TestClient_APIErrorDetail(t *testing.T) {
	c, _, _ := newDemoClient(t, demo.DefaultConfig())

	_, err := c.GetIP(context.Background(), "missing")
	if !errors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	var apiErr *errors.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Detail != "Not found." || apiErr.Op != "get information package" {
		t.Errorf("unexpected error fields: %+v", apiErr)
	}
}

func TestClient_Unauthorized(t *testing.T) {
	c, _, _ := newDemoClient(t, demo.Config{Username: "admin", Password: "secret"})

	_, err := c.ListIPs(context.Background(), ListOptions{})
	if !errors.Is(err, errors.ErrUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestClient_DoesNotRetryStatusErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
	}))
	defer ts.Close()

	c, _ := NewClient(ts.URL)
	_, err := c.GetIP(context.Background(), "ip-1")
	if !errors.IsRetryable(err) {
		t.Errorf("expected 500 to be classified retryable, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly one request, got %d", calls.Load())
	}
}

func TestListIPs(t *testing.T) {
	c, _, _ := newDemoClient(t, demo.DefaultConfig(), WithPageSize(5))
	ctx := context.Background()

	page, err := c.ListIPs(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("ListIPs: %v", err)
	}
	if page.Count != 14 || len(page.Results) != 5 {
		t.Fatalf("expected 5 of 14, got %d of %d", len(page.Results), page.Count)
	}
	if page.Number != 1 || page.NumberOfPages != 3 {
		t.Errorf("expected page 1 of 3, got %d of %d", page.Number, page.NumberOfPages)
	}
	if !page.HasNext() || page.HasPrevious() {
		t.Error("expected first page to have only a next page")
	}

	last, err := c.ListIPs(ctx, ListOptions{Page: 3})
	if err != nil {
		t.Fatalf("ListIPs page 3: %v", err)
	}
	if len(last.Results) != 4 || last.HasNext() {
		t.Errorf("unexpected last page: %d results, next=%q", len(last.Results), last.Next)
	}

	filtered, err := c.ListIPs(ctx, ListOptions{Search: "batch", State: "Prepared"})
	if err != nil {
		t.Fatalf("ListIPs filtered: %v", err)
	}
	for _, ip := range filtered.Results {
		if ip.State != "Prepared" {
			t.Errorf("expected only Prepared IPs, got %s", ip.State)
		}
	}
}

func TestGetIP(t *testing.T) {
	c, _, _ := newDemoClient(t, demo.DefaultConfig())

	ip, err := c.GetIP(context.Background(), demo.WatchedIP)
	if err != nil {
		t.Fatalf("GetIP: %v", err)
	}
	if ip.DisplayName() != "Annual report 2016" || ip.State != "Creating" {
		t.Errorf("unexpected IP: %+v", ip)
	}
	if len(ip.Locks) != 1 || ip.Locks[0].InformationPackage != ip.URL {
		t.Errorf("expected one lock on the IP, got %+v", ip.Locks)
	}
	if ip.CreateDate == nil {
		t.Error("expected create date to be parsed")
	}
}

func TestIPActions(t *testing.T) {
	c, _, _ := newDemoClient(t, demo.DefaultConfig())
	ctx := context.Background()
	// ip-002 starts Prepared.
	id := "ip-002"

	if err := c.CreateSIP(ctx, id, CreateOptions{}); !errors.Is(err, errors.ErrConflict) {
		t.Errorf("expected conflict before upload, got %v", err)
	}
	if err := c.SetUploaded(ctx, id); err != nil {
		t.Fatalf("SetUploaded: %v", err)
	}
	if err := c.CreateSIP(ctx, id, CreateOptions{Validators: map[string]bool{"validate_xml_file": true}, FileConversion: true}); err != nil {
		t.Fatalf("CreateSIP: %v", err)
	}
	if err := c.SubmitIP(ctx, id, SubmitOptions{Email: true, Subject: "Delivery", Body: "Attached"}); err != nil {
		t.Fatalf("SubmitIP: %v", err)
	}

	events, err := c.ListEvents(ctx, id, 1)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if events.Count != 3 {
		t.Fatalf("expected 3 events, got %d", events.Count)
	}
	if events.Results[0].Detail != "Submitted SIP ip-002: Delivery" {
		t.Errorf("expected subject in submit event, got %q", events.Results[0].Detail)
	}

	if err := c.DeleteIP(ctx, id); err != nil {
		t.Fatalf("DeleteIP: %v", err)
	}
	if _, err := c.GetIP(ctx, id); !errors.IsNotFound(err) {
		t.Errorf("expected deleted IP to be gone, got %v", err)
	}
}

func TestPrepareIP_WrongState(t *testing.T) {
	c, _, _ := newDemoClient(t, demo.DefaultConfig())

	err := c.PrepareIP(context.Background(), "ip-002")
	var apiErr *errors.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
	if apiErr.Detail == "" {
		t.Error("expected server detail on the error")
	}
}

func TestEvents(t *testing.T) {
	c, _, _ := newDemoClient(t, demo.DefaultConfig(), WithBasicAuth("", ""))
	ctx := context.Background()

	ev, err := c.AddEvent(ctx, demo.WatchedIP, demo.EventUserDefine, "Checked by archivist")
	if err != nil {
		t.Fatalf("AddEvent: %v", err)
	}
	if ev.ID == "" || ev.Detail != "Checked by archivist" {
		t.Errorf("unexpected event: %+v", ev)
	}

	page, err := c.ListEvents(ctx, demo.WatchedIP, 0)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if page.Results[0].ID != ev.ID {
		t.Errorf("expected newest event first, got %+v", page.Results[0])
	}

	if _, err := c.AddEvent(ctx, "missing", demo.EventUserDefine, "x"); err == nil {
		t.Error("expected error for unknown IP")
	}
}

func TestKindFromFlowType(t *testing.T) {
	step := apiNode{ID: "s", FlowType: "step", ChildCount: 2}.toNode()
	if step.Kind != statustree.KindStep || !step.NotFetched() {
		t.Errorf("expected pending step, got %+v", step)
	}
	empty := apiNode{ID: "s", FlowType: "step"}.toNode()
	if empty.ChildState != statustree.ChildrenNone {
		t.Errorf("expected childless step to be a leaf, got %q", empty.ChildState)
	}
	task := apiNode{ID: "t", FlowType: "task", ChildCount: 3}.toNode()
	if task.Kind != statustree.KindTask || task.ChildState != statustree.ChildrenNone {
		t.Errorf("expected leaf task, got %+v", task)
	}
}
