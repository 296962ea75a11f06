package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pablasso/etp/internal/errors"
	"github.com/pablasso/etp/internal/monitor"
	"github.com/pablasso/etp/internal/statustree"
)

func newStepCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "step",
		Aliases: []string{"task"},
		Short:   "Inspect, undo and retry steps and tasks",
	}
	cmd.AddCommand(
		newStepActionCmd(a, "undo", "Undo a step or task", (*monitor.Monitor).Undo),
		newStepActionCmd(a, "retry", "Retry an undone step or task", (*monitor.Monitor).Retry),
		newStepShowCmd(a),
	)
	return cmd
}

// locate refreshes the tree of m and finds nodeID in it, expanding every
// step when the node is not among the steps already loaded.
func (a *app) locate(ctx context.Context, m *monitor.Monitor, nodeID string) (*statustree.Node, error) {
	if err := a.loadTree(ctx, m, nil, false); err != nil {
		return nil, err
	}
	if n := statustree.Find(m.Tree(), nodeID); n != nil {
		return n, nil
	}
	if err := expandSteps(ctx, m, nil, true); err != nil {
		return nil, err
	}
	if n := statustree.Find(m.Tree(), nodeID); n != nil {
		return n, nil
	}
	return nil, fmt.Errorf("find %s in %s: %w", nodeID, m.IPID(), errors.ErrNotFound)
}

func newStepActionCmd(a *app, use, short string, action func(*monitor.Monitor, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <ip-id> <node-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ipID, nodeID := args[0], args[1]
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
			n, err := a.locate(ctx, m, nodeID)
			if err != nil {
				return err
			}
			if err := action(m, ctx, nodeID); err != nil {
				return err
			}
			// The action schedules a refresh; wait for it so the new state is shown.
			m.Wait()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, successMsg("%s %s %s", use, n.Kind, n.Name))
			if updated := statustree.Find(m.Tree(), nodeID); updated != nil {
				fmt.Fprintf(out, "  %s %d%%\n", statusText(updated), updated.Progress)
			}
			return nil
		},
	}
}

func newStepShowCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show <ip-id> <node-id>",
		Short: "Show the detail of a step or task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ipID, nodeID := args[0], args[1]
			c, err := a.client()
			if err != nil {
				return err
			}
			m, err := a.newMonitor(c, ipID, monitor.Options{})
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			n, err := a.locate(ctx, m, nodeID)
			if err != nil {
				return err
			}
			d, err := c.GetStepTask(ctx, n)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), output, formatTable, d, func() string {
				pairs := []pair{
					kv("ID", d.ID),
					kv("Name", d.Name),
					kv("Type", d.FlowType),
					kv("Status", statusText(n)),
					kv("Progress", strconv.Itoa(d.Progress)+"%"),
					kv("User", orDash(d.User)),
					kv("Started", formatTime(d.TimeStarted)),
					kv("Done", formatTime(d.TimeDone)),
				}
				if d.Duration > 0 {
					pairs = append(pairs, kv("Duration", d.Duration.String()))
				}
				if d.Undone {
					pairs = append(pairs, kv("Undone", "yes"))
				}
				if d.Result != "" {
					pairs = append(pairs, kv("Result", d.Result))
				}
				if d.Exception != "" {
					pairs = append(pairs, kv("Exception", errorStyle.Render(d.Exception)))
				}
				text := keyValues(pairs...)
				if d.Traceback != "" {
					text += "\n" + muted(d.Traceback)
				}
				return text
			})
		},
	}
	addOutputFlag(cmd, &output, formatTable)
	return cmd
}
