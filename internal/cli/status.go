package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pablasso/etp/internal/errors"
	"github.com/pablasso/etp/internal/etp"
	"github.com/pablasso/etp/internal/monitor"
	"github.com/pablasso/etp/internal/statustree"
)

// maxExpandPasses bounds how many levels --all and nested --expand ids
// descend.
const maxExpandPasses = 16

func newStatusCmd(a *app) *cobra.Command {
	var (
		expand []string
		all    bool
		output string
	)
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Show the step and task status of an information package",
		Long: `Fetch the status tree of an information package once and print it.

The tree is reconciled into the one stored by the previous status or watch
run, so steps expanded then stay expanded. The result is stored again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ipID := args[0]
			c, err := a.client()
			if err != nil {
				return err
			}
			rec, err := a.history()
			if err != nil {
				return err
			}
			defer rec.Close()

			m, err := a.newMonitor(c, ipID, monitor.Options{History: rec})
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := a.loadTree(ctx, m, expand, all); err != nil {
				return err
			}

			tree := m.Tree()
			return render(cmd.OutOrStdout(), output, formatTree, tree, func() string {
				return renderTree(tree, time.Now()) + "\n" + summaryLine(tree)
			})
		},
	}
	cmd.Flags().StringArrayVar(&expand, "expand", nil, "step id to expand (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "expand every step")
	addOutputFlag(cmd, &output, formatTree)
	return cmd
}

// newMonitor creates a monitor for ipID that starts from the stored
// snapshot, if there is one.
func (a *app) newMonitor(c *etp.Client, ipID string, opts monitor.Options) (*monitor.Monitor, error) {
	snap, err := a.snapshots().Load(ipID)
	switch {
	case err == nil:
		opts.Initial = snap.Tree
	case errors.IsNotFound(err):
	default:
		a.logger.WithIP(ipID).Warn("ignoring unreadable snapshot", "error", err)
	}
	opts.Interval = a.cfg.Monitor.Interval
	opts.GoneRefreshDelay = a.cfg.Monitor.GoneRefreshDelay
	opts.ActionRefreshDelay = a.cfg.Monitor.ActionRefreshDelay
	opts.Strategy = a.cfg.Monitor.Strategy
	opts.Logger = a.logger
	return monitor.New(c, ipID, opts)
}

// loadTree refreshes m, expands the requested steps and stores the result.
// A missing IP drops its snapshot.
func (a *app) loadTree(ctx context.Context, m *monitor.Monitor, expand []string, all bool) error {
	if err := m.Refresh(ctx); err != nil {
		if errors.IsNotFound(err) {
			if derr := a.snapshots().Delete(m.IPID()); derr != nil {
				a.logger.Warn("failed to drop snapshot", "error", derr)
			}
		}
		return err
	}
	if err := expandSteps(ctx, m, expand, all); err != nil {
		return err
	}
	return a.snapshots().Save(m.IPID(), m.Tree())
}

// expandSteps expands the steps in ids, which may be nested below each
// other in any order, and every step when all is set.
func expandSteps(ctx context.Context, m *monitor.Monitor, ids []string, all bool) error {
	pending := make(map[string]bool, len(ids))
	for _, id := range ids {
		pending[id] = true
	}

	for pass := 0; pass < maxExpandPasses; pass++ {
		var toggle []string
		statustree.Walk(m.Tree(), func(n *statustree.Node, _ int) bool {
			if pending[n.ID] {
				delete(pending, n.ID)
				if !n.IsStep() {
					return false
				}
				if !n.Expanded {
					toggle = append(toggle, n.ID)
				}
			} else if all && n.IsStep() && !n.Expanded {
				toggle = append(toggle, n.ID)
			}
			return n.Expanded
		})
		if len(toggle) == 0 {
			break
		}
		for _, id := range toggle {
			if err := m.Toggle(ctx, id); err != nil {
				return err
			}
		}
	}

	if len(pending) > 0 {
		missing := make([]string, 0, len(pending))
		for id := range pending {
			missing = append(missing, id)
		}
		return fmt.Errorf("expand %s: %w", strings.Join(missing, ", "), errors.ErrNotFound)
	}
	return nil
}

func summaryLine(tree []*statustree.Node) string {
	s := statustree.Summarize(tree)
	return muted(fmt.Sprintf("%d/%d done, %d failed, %d undone, %d%%",
		s.Succeeded+s.Failed, s.Total, s.Failed, s.Undone, s.Progress))
}
