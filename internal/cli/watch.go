package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pablasso/etp/internal/display"
	"github.com/pablasso/etp/internal/errors"
	"github.com/pablasso/etp/internal/etp"
	"github.com/pablasso/etp/internal/monitor"
	"github.com/pablasso/etp/internal/snapshot"
	"github.com/pablasso/etp/internal/statustree"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		expand    []string
		untilDone bool
	)
	cmd := &cobra.Command{
		Use:   "watch <id>",
		Short: "Keep the status of an information package up to date",
		Long: `Poll the status tree of an information package and show a status line
until interrupted. Status changes are printed above the line and written to
the history journal. Only one watch per information package may run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWatch(cmd, args[0], expand, untilDone)
		},
	}
	cmd.Flags().StringArrayVar(&expand, "expand", nil, "step id to expand (repeatable)")
	cmd.Flags().BoolVar(&untilDone, "until-done", false, "stop once every top-level step has finished")
	return cmd
}

func (a *app) runWatch(cmd *cobra.Command, ipID string, expand []string, untilDone bool) error {
	c, err := a.client()
	if err != nil {
		return err
	}

	lock := snapshot.NewWatchLock(a.cfg.SnapshotDir(), ipID)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	rec, err := a.history()
	if err != nil {
		return err
	}
	defer rec.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d := display.New(cmd.OutOrStdout())
	d.SetLabel(ipLabel(ctx, c, ipID))
	ev := &watchEvents{display: d, stop: cancel}

	m, err := a.newMonitor(c, ipID, monitor.Options{
		History: rec,
		Events:  ev,
		ListRefresher: func(ctx context.Context) error {
			page, err := c.ListIPs(ctx, etp.ListOptions{})
			if err != nil {
				return err
			}
			d.Printf("%d information packages remain on the server", page.Count)
			return nil
		},
	})
	if err != nil {
		return err
	}

	if len(expand) > 0 {
		if err := m.Refresh(ctx); err == nil {
			if err := expandSteps(ctx, m, expand, false); err != nil {
				return err
			}
		}
	}
	ev.armed = untilDone
	d.Start(ctx)
	err = m.Run(ctx)
	d.Stop()

	switch {
	case errors.IsNotFound(err):
		if derr := a.snapshots().Delete(ipID); derr != nil {
			a.logger.Warn("failed to drop snapshot", "error", derr)
		}
		return err
	case ev.finished():
		err = nil
	case errors.Is(err, context.Canceled):
		d.SetPhase(display.PhaseCancelled)
		err = nil
	}
	if serr := a.snapshots().Save(ipID, m.Tree()); serr != nil {
		return serr
	}
	return err
}

func ipLabel(ctx context.Context, c *etp.Client, ipID string) string {
	ip, err := c.GetIP(ctx, ipID)
	if err != nil {
		return ipID
	}
	return ip.DisplayName()
}

// watchEvents feeds monitor callbacks to the status line.
type watchEvents struct {
	display *display.StatusLine
	stop    context.CancelFunc
	// armed stops the watch once the tree is done. It is set after the
	// initial expansion so that expanding a finished tree still works.
	armed bool
	done  bool
}

func (e *watchEvents) OnTreeUpdated(ipID string, tree []*statustree.Node, diff statustree.Diff) {
	e.display.Tree(tree, time.Now())
	for _, ch := range diff.Changes {
		switch ch.Kind {
		case statustree.ChangeStatus:
			e.display.Printf("%s %s: %s → %s", ch.NodeKind, ch.Name, ch.From.Label(), ch.To.Label())
		case statustree.ChangeUndone:
			e.display.Printf("%s %s: undone", ch.NodeKind, ch.Name)
		}
	}
	if e.armed && statustree.Summarize(tree).Done() {
		e.done = true
		e.stop()
	}
}

func (e *watchEvents) OnEntityGone(ipID string) {
	e.display.SetPhase(display.PhaseGone)
	e.display.Printf("information package %s no longer exists", ipID)
}

func (e *watchEvents) OnFetchFailed(ipID string, err error) {
	e.display.Error(err)
}

func (e *watchEvents) finished() bool {
	return e.done
}
