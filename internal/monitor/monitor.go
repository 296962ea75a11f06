// Package monitor keeps the status tree of one information package up to
// date. Each pass fetches a fresh tree for the steps the user has expanded
// and reconciles it into the tree on screen.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pablasso/etp/internal/errors"
	"github.com/pablasso/etp/internal/etp"
	"github.com/pablasso/etp/internal/history"
	"github.com/pablasso/etp/internal/logging"
	"github.com/pablasso/etp/internal/statustree"
)

// Default timings.
const (
	DefaultInterval           = 5 * time.Second
	DefaultGoneRefreshDelay   = time.Second
	DefaultActionRefreshDelay = time.Second

	listRetryMaxElapsed = 30 * time.Second
)

// TreeSource fetches status trees and runs step actions. *etp.Client
// implements it.
type TreeSource interface {
	GetTreeData(ctx context.Context, ipID string, expanded []string, opts ...etp.TreeOption) ([]*statustree.Node, error)
	GetChildrenForStep(ctx context.Context, node *statustree.Node, page int) error
	Undo(ctx context.Context, node *statustree.Node) error
	Retry(ctx context.Context, node *statustree.Node) error
}

// ListRefresher reloads the IP list after the watched IP disappeared.
type ListRefresher func(ctx context.Context) error

// Options configures a Monitor. Zero values take the defaults.
type Options struct {
	Interval           time.Duration
	GoneRefreshDelay   time.Duration
	ActionRefreshDelay time.Duration
	// Strategy names the reconciler: "keyed" (default) or "positional".
	Strategy string
	// Initial is a previously shown tree, such as a snapshot. The first
	// fetch is reconciled into it instead of replacing it.
	Initial []*statustree.Node

	Logger        *logging.Logger
	History       history.Recorder
	Events        Events
	ListRefresher ListRefresher
	Clock         func() time.Time
}

// Monitor polls and reconciles the tree of one IP.
type Monitor struct {
	src       TreeSource
	ipID      string
	opts      Options
	reconcile statustree.Strategy
	logger    *logging.Logger

	mu       sync.Mutex
	tree     []*statustree.Node
	loaded   bool
	gone     bool
	inFlight bool
	// gen is the last generation handed out, applied the newest one whose
	// result was applied to tree.
	gen     uint64
	applied uint64
	lastErr error
	lastAt  time.Time

	trigger chan struct{}
	wg      sync.WaitGroup
}

// New creates a monitor for ipID.
func New(src TreeSource, ipID string, opts Options) (*Monitor, error) {
	reconcile, ok := statustree.StrategyFor(opts.Strategy)
	if !ok {
		return nil, fmt.Errorf("unknown reconcile strategy %q", opts.Strategy)
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.GoneRefreshDelay <= 0 {
		opts.GoneRefreshDelay = DefaultGoneRefreshDelay
	}
	if opts.ActionRefreshDelay <= 0 {
		opts.ActionRefreshDelay = DefaultActionRefreshDelay
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	if opts.History == nil {
		opts.History = history.Nop{}
	}
	if opts.Events == nil {
		opts.Events = NopEvents{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	m := &Monitor{
		src:       src,
		ipID:      ipID,
		opts:      opts,
		reconcile: reconcile,
		logger:    opts.Logger.WithComponent("monitor").WithIP(ipID),
		trigger:   make(chan struct{}, 1),
	}
	if opts.Initial != nil {
		m.tree = statustree.Clone(opts.Initial)
		m.loaded = true
	}
	return m, nil
}

// IPID returns the id of the watched IP.
func (m *Monitor) IPID() string {
	return m.ipID
}

// Tree returns a copy of the current tree.
func (m *Monitor) Tree() []*statustree.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return statustree.Clone(m.tree)
}

// Gone reports whether the last pass found the IP missing.
func (m *Monitor) Gone() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gone
}

// LastRefresh returns when the tree was last updated and the error of the
// last failed pass since then, if any.
func (m *Monitor) LastRefresh() (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAt, m.lastErr
}

// next hands out a generation number. Callers hold mu.
func (m *Monitor) next() uint64 {
	m.gen++
	return m.gen
}

// Refresh runs one fetch and reconcile pass. It returns ErrPassInProgress
// while another pass is running.
func (m *Monitor) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return errors.ErrPassInProgress
	}
	m.inFlight = true
	gen := m.next()
	expanded := statustree.ExpandedIDs(m.tree)
	pages := statustree.ExpandedPages(m.tree)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight = false
		m.mu.Unlock()
	}()

	fresh, err := m.src.GetTreeData(ctx, m.ipID, expanded, etp.WithChildPages(pages))
	if err != nil {
		return m.fetchFailed(ctx, err)
	}
	m.apply(ctx, gen, true, func() {
		if !m.loaded {
			m.tree = fresh
			m.loaded = true
			return
		}
		m.tree = m.reconcile(m.tree, fresh)
	})
	return nil
}

// apply runs update on the tree unless a newer generation was applied,
// then notifies Events. Generation 0 marks a local change that is never
// stale. When journal is set the transitions are recorded to history.
func (m *Monitor) apply(ctx context.Context, gen uint64, journal bool, update func()) bool {
	m.mu.Lock()
	if gen != 0 {
		if gen < m.applied {
			applied := m.applied
			m.mu.Unlock()
			m.logger.Debug("discarding stale tree", "generation", gen, "applied", applied)
			return false
		}
		m.applied = gen
	}
	wasLoaded := m.loaded
	before := statustree.Clone(m.tree)
	update()
	diff := statustree.Compare(before, m.tree)
	tree := statustree.Clone(m.tree)
	m.gone = false
	m.lastErr = nil
	m.lastAt = m.opts.Clock()
	at := m.lastAt
	m.mu.Unlock()

	if journal && wasLoaded && !diff.Empty() {
		if err := m.opts.History.Record(ctx, history.FromDiff(m.ipID, diff, at)); err != nil {
			m.logger.Warn("failed to record history", "error", err)
		}
	}
	m.logger.Debug("tree updated", "generation", gen, "changes", len(diff.Changes))
	m.opts.Events.OnTreeUpdated(m.ipID, tree, diff)
	return true
}

func (m *Monitor) fetchFailed(ctx context.Context, err error) error {
	if errors.IsNotFound(err) {
		m.entityGone(ctx)
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
	m.logger.Warn("tree refresh failed", "error", err, "retryable", errors.IsRetryable(err))
	m.opts.Events.OnFetchFailed(m.ipID, err)
	return err
}

// entityGone drops the tree and schedules one list refresh.
func (m *Monitor) entityGone(ctx context.Context) {
	m.mu.Lock()
	already := m.gone
	m.gone = true
	m.tree = nil
	m.loaded = false
	m.mu.Unlock()
	if already {
		return
	}

	m.logger.Info("information package is gone")
	m.opts.Events.OnEntityGone(m.ipID)
	if m.opts.ListRefresher == nil {
		return
	}

	m.after(ctx, m.opts.GoneRefreshDelay, func() {
		if err := m.refreshList(ctx); err != nil {
			m.logger.Warn("list refresh failed", "error", err)
		}
	})
}

// after runs fn once delay has passed, unless ctx is cancelled first.
func (m *Monitor) after(ctx context.Context, delay time.Duration, fn func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
			fn()
		}
	}()
}

func (m *Monitor) refreshList(ctx context.Context) error {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(200*time.Millisecond),
		backoff.WithMaxInterval(5*time.Second),
		backoff.WithMaxElapsedTime(listRetryMaxElapsed),
	)
	return backoff.Retry(func() error {
		err := m.opts.ListRefresher(ctx)
		if err != nil && !errors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}

// Trigger asks Run for an immediate pass.
func (m *Monitor) Trigger() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// Run refreshes every interval, and whenever Trigger is called, until ctx
// is cancelled or the IP is gone. Failed passes are logged and retried on
// the next tick.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		err := m.Refresh(ctx)
		if errors.IsNotFound(err) {
			m.wg.Wait()
			return fmt.Errorf("watch %s: %w", m.ipID, err)
		}

		select {
		case <-ctx.Done():
			m.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
		case <-m.trigger:
		}
	}
}

// Wait blocks until delayed refreshes have finished.
func (m *Monitor) Wait() {
	m.wg.Wait()
}
