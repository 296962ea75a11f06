package etp

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/pablasso/etp/internal/errors"
	"github.com/pablasso/etp/internal/statustree"
)

type treeOptions struct {
	pages map[string]int
}

// TreeOption adjusts GetTreeData.
type TreeOption func(*treeOptions)

// WithChildPages requests a specific child page for expanded steps, keyed
// by step id. Steps without an entry get page 1.
func WithChildPages(pages map[string]int) TreeOption {
	return func(o *treeOptions) {
		o.pages = pages
	}
}

// GetTreeData fetches the top-level steps of an IP. Every step whose id is in
// expanded gets its children fetched, recursively, and is marked expanded;
// other steps keep the pending-children sentinel. A step whose children
// answer 404 stays pending and collapsed. It returns only after every nested
// fetch has finished, and fails if any other fetch failed, so a not-found
// error from GetTreeData always means the IP itself is gone.
func (c *Client) GetTreeData(ctx context.Context, ipID string, expanded []string, opts ...TreeOption) ([]*statustree.Node, error) {
	var o treeOptions
	for _, opt := range opts {
		opt(&o)
	}

	var top []apiNode
	if err := c.get(ctx, "get tree data", ipPath(ipID)+"steps/", nil, &top); err != nil {
		return nil, err
	}
	tree := toNodes(top)
	if len(expanded) == 0 {
		return tree, nil
	}

	want := make(map[string]bool, len(expanded))
	for _, id := range expanded {
		want[id] = true
	}

	sem := semaphore.NewWeighted(int64(c.childConcurrency))
	g, gctx := errgroup.WithContext(ctx)

	var expand func(nodes []*statustree.Node)
	expand = func(nodes []*statustree.Node) {
		for _, n := range nodes {
			if !want[n.ID] {
				continue
			}
			n.Expanded = true
			if !n.NotFetched() {
				continue
			}
			g.Go(func() error {
				if err := sem.Acquire(gctx, 1); err != nil {
					return err
				}
				err := c.getChildren(gctx, n, o.pages[n.ID], true)
				sem.Release(1)
				if errors.IsNotFound(err) {
					// The step went away under a listing that still exists;
					// show it collapsed rather than failing the whole tree.
					c.logger.Debug("children of step not found", "step_id", n.ID)
					n.Expanded = false
					return nil
				}
				if err != nil {
					return fmt.Errorf("get tree data: children of %s: %w", n.ID, err)
				}
				expand(n.Children)
				return nil
			})
		}
	}
	expand(tree)

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tree, nil
}

// GetChildrenForStep fetches one page of node's children and stores them on
// node along with the page cursors. Page 0 means the node's current page.
func (c *Client) GetChildrenForStep(ctx context.Context, node *statustree.Node, page int) error {
	if page == 0 {
		page = node.PageNumber
	}
	return c.getChildren(ctx, node, page, false)
}

// getChildren falls back to the first page when fallback is set and the
// requested page no longer exists.
func (c *Client) getChildren(ctx context.Context, node *statustree.Node, page int, fallback bool) error {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(c.pageSize))

	var out Page[apiNode]
	err := c.get(ctx, "get children", nodeURL(node)+"children/", q, &out)
	if err != nil && fallback && page > 1 && errors.IsNotFound(err) {
		page = 1
		q.Set("page", "1")
		err = c.get(ctx, "get children", nodeURL(node)+"children/", q, &out)
	}
	if err != nil {
		return err
	}

	node.Children = toNodes(out.Results)
	node.ChildState = statustree.ChildrenLoaded
	node.PageNumber = page
	node.NextPage, node.PrevPage = 0, 0
	if out.HasNext() {
		node.NextPage = page + 1
	}
	if out.HasPrevious() {
		node.PrevPage = page - 1
	}
	return nil
}

func nodeURL(n *statustree.Node) string {
	if n.URL != "" {
		if strings.HasSuffix(n.URL, "/") {
			return n.URL
		}
		return n.URL + "/"
	}
	if n.Kind == statustree.KindTask {
		return "api/tasks/" + url.PathEscape(n.ID) + "/"
	}
	return "api/steps/" + url.PathEscape(n.ID) + "/"
}

// Undo asks the server to undo a step or task.
func (c *Client) Undo(ctx context.Context, node *statustree.Node) error {
	return c.post(ctx, "undo", nodeURL(node)+"undo/", map[string]any{}, nil)
}

// Retry asks the server to run an undone step or task again.
func (c *Client) Retry(ctx context.Context, node *statustree.Node) error {
	return c.post(ctx, "retry", nodeURL(node)+"retry/", map[string]any{}, nil)
}

// GetStepTask returns the detail of a step or task with its duration.
func (c *Client) GetStepTask(ctx context.Context, node *statustree.Node) (*StepTaskDetail, error) {
	var d StepTaskDetail
	if err := c.get(ctx, "get "+string(node.Kind), nodeURL(node), nil, &d); err != nil {
		return nil, err
	}
	d.computeDuration()
	return &d, nil
}
