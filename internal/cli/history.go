package cli

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit  int
		output string
	)
	cmd := &cobra.Command{
		Use:   "history <ip-id>",
		Short: "Show the status transitions recorded for an information package",
		Long: `Show the status transitions seen by earlier status, watch and step runs,
newest first. Transitions are stored locally in the configured history
backend and are not read from the server.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.history()
			if err != nil {
				return err
			}
			defer rec.Close()

			entries, err := rec.List(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), output, formatTable, entries, func() string {
				if len(entries) == 0 {
					return muted("no recorded transitions")
				}
				rows := make([][]string, len(entries))
				for i, e := range entries {
					rows[i] = []string{
						humanize.Time(e.Time),
						string(e.Kind),
						e.NodeName,
						string(e.Change),
						orDash(string(e.From)),
						orDash(string(e.To)),
					}
				}
				return renderTable([]string{"When", "Kind", "Name", "Change", "From", "To"}, rows)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to show, 0 for all")
	addOutputFlag(cmd, &output, formatTable)
	return cmd
}
