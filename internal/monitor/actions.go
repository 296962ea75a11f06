package monitor

import (
	"context"
	"fmt"

	"github.com/pablasso/etp/internal/errors"
	"github.com/pablasso/etp/internal/statustree"
)

func (m *Monitor) find(op, id string) (*statustree.Node, error) {
	n := statustree.Find(m.tree, id)
	if n == nil {
		return nil, fmt.Errorf("%s %s: %w", op, id, errors.ErrNotFound)
	}
	return n, nil
}

// Toggle expands or collapses a step. Expanding a step whose children were
// never fetched fetches their first page.
func (m *Monitor) Toggle(ctx context.Context, id string) error {
	m.mu.Lock()
	n, err := m.find("toggle", id)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if !n.IsStep() {
		m.mu.Unlock()
		return fmt.Errorf("toggle %s: not a step", id)
	}

	if n.Expanded || !n.NotFetched() {
		n.Expanded = !n.Expanded
		m.mu.Unlock()
		m.apply(ctx, 0, false, func() {})
		return nil
	}

	// Mark it expanded before fetching so a pass started meanwhile asks for
	// its children too.
	n.Expanded = true
	target := n.Clone()
	gen := m.next()
	m.mu.Unlock()

	if err := m.src.GetChildrenForStep(ctx, target, 1); err != nil {
		m.mu.Lock()
		if n := statustree.Find(m.tree, id); n != nil {
			n.Expanded = false
		}
		m.mu.Unlock()
		return fmt.Errorf("toggle %s: %w", id, err)
	}
	m.apply(ctx, gen, false, func() { adoptChildren(m.tree, id, target) })
	return nil
}

// ChangePage moves a step to another page of its children. The page only
// moves forward when the step has a next page, and backward when it has a
// previous one and page is positive; any other request is ignored.
func (m *Monitor) ChangePage(ctx context.Context, id string, page int) error {
	m.mu.Lock()
	n, err := m.find("change page", id)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	var target int
	switch {
	case page > n.PageNumber && n.NextPage != 0:
		target = n.NextPage
	case page < n.PageNumber && n.PrevPage != 0 && page > 0:
		target = n.PrevPage
	default:
		m.mu.Unlock()
		return nil
	}
	node := n.Clone()
	gen := m.next()
	m.mu.Unlock()

	if err := m.src.GetChildrenForStep(ctx, node, target); err != nil {
		return fmt.Errorf("change page %s: %w", id, err)
	}
	m.apply(ctx, gen, false, func() { adoptChildren(m.tree, id, node) })
	return nil
}

// adoptChildren replaces the children page of the node id in tree with the
// page fetched into src.
func adoptChildren(tree []*statustree.Node, id string, src *statustree.Node) {
	dst := statustree.Find(tree, id)
	if dst == nil {
		return
	}
	dst.Children = src.Children
	dst.ChildState = src.ChildState
	dst.PageNumber = src.PageNumber
	dst.NextPage = src.NextPage
	dst.PrevPage = src.PrevPage
}

// Undo undoes a step or task and refreshes after the action delay.
func (m *Monitor) Undo(ctx context.Context, id string) error {
	return m.act(ctx, "undo", id, m.src.Undo)
}

// Retry retries a step or task and refreshes after the action delay.
func (m *Monitor) Retry(ctx context.Context, id string) error {
	return m.act(ctx, "retry", id, m.src.Retry)
}

func (m *Monitor) act(ctx context.Context, op, id string, fn func(context.Context, *statustree.Node) error) error {
	m.mu.Lock()
	n, err := m.find(op, id)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	node := n.Clone()
	m.mu.Unlock()

	if err := fn(ctx, node); err != nil {
		return fmt.Errorf("%s %s: %w", op, id, err)
	}
	m.logger.Info(op+" requested", "node_id", id, "node_name", node.Name)

	m.after(ctx, m.opts.ActionRefreshDelay, func() {
		if err := m.Refresh(ctx); errors.Is(err, errors.ErrPassInProgress) {
			m.Trigger()
		}
	})
	return nil
}
