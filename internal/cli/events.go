package cli

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newEventsCmd(a *app) *cobra.Command {
	var (
		page   int
		output string
	)
	cmd := &cobra.Command{
		Use:   "events <ip-id>",
		Short: "Show the event log of an information package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			events, err := c.ListEvents(cmd.Context(), args[0], page)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), output, formatTable, events.Results, func() string {
				if len(events.Results) == 0 {
					return muted("no events")
				}
				rows := make([][]string, len(events.Results))
				for i, ev := range events.Results {
					name := ev.TypeName
					if name == "" {
						name = strconv.Itoa(ev.Type)
					}
					rows[i] = []string{humanize.Time(ev.Time), name, ev.Detail, orDash(ev.Outcome), orDash(ev.Agent)}
				}
				footer := muted(fmt.Sprintf("page %d of %d (%d total)", events.Number, events.NumberOfPages, events.Count))
				return renderTable([]string{"When", "Type", "Detail", "Outcome", "Agent"}, rows) + "\n" + footer
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	addOutputFlag(cmd, &output, formatTable)
	cmd.AddCommand(newEventsAddCmd(a))
	return cmd
}

func newEventsAddCmd(a *app) *cobra.Command {
	var (
		eventType int
		detail    string
	)
	cmd := &cobra.Command{
		Use:   "add <ip-id>",
		Short: "Add an event to the log of an information package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if detail == "" {
				return fmt.Errorf("--detail is required")
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			ev, err := c.AddEvent(cmd.Context(), args[0], eventType, detail)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successMsg("added event %s", ev.ID))
			return nil
		},
	}
	cmd.Flags().IntVar(&eventType, "type", 50000, "event type code")
	cmd.Flags().StringVar(&detail, "detail", "", "event detail")
	return cmd
}
