package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pablasso/etp/internal/etp"
)

// agreementView is a submission agreement as printed by sa list.
type agreementView struct {
	ID        string            `json:"id" yaml:"id"`
	Name      string            `json:"name" yaml:"name"`
	Published bool              `json:"published" yaml:"published"`
	Profiles  map[string]string `json:"profiles" yaml:"profiles"`
}

func newSACmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sa",
		Aliases: []string{"agreement"},
		Short:   "Manage submission agreements",
	}
	cmd.AddCommand(newSAListCmd(a), newSAImportCmd(a))
	return cmd
}

func newSAListCmd(a *app) *cobra.Command {
	var (
		published bool
		output    string
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List submission agreements",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			sas, err := c.ListSubmissionAgreements(cmd.Context(), published)
			if err != nil {
				return err
			}
			views := make([]agreementView, len(sas))
			for i, sa := range sas {
				views[i] = agreementView{ID: sa.ID, Name: sa.Name, Published: sa.Published, Profiles: sa.Profiles}
			}
			return render(cmd.OutOrStdout(), output, formatTable, views, func() string {
				if len(views) == 0 {
					return muted("no submission agreements")
				}
				rows := make([][]string, len(views))
				for i, v := range views {
					pub := "no"
					if v.Published {
						pub = "yes"
					}
					rows[i] = []string{v.ID, v.Name, pub, slotList(v.Profiles)}
				}
				return renderTable([]string{"ID", "Name", "Published", "Profiles"}, rows)
			})
		},
	}
	cmd.Flags().BoolVar(&published, "published", false, "only published agreements")
	addOutputFlag(cmd, &output, formatTable)
	return cmd
}

func slotList(profiles map[string]string) string {
	slots := make([]string, 0, len(profiles))
	for slot := range profiles {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	return orDash(strings.Join(slots, ", "))
}

func newSAImportCmd(a *app) *cobra.Command {
	var from, user, password string
	cmd := &cobra.Command{
		Use:   "import <sa-id>",
		Short: "Import a submission agreement and its profiles from another server",
		Long: `Copy a submission agreement from a remote server, such as an ESSArch
Preservation Platform, to the configured server. The ` + strings.Join(etp.ImportSlots, ", ") + `
profiles are imported with it; other profile slots are left out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if from == "" {
				return fmt.Errorf("--from is required")
			}
			local, err := a.client()
			if err != nil {
				return err
			}
			remoteOpts := []etp.Option{etp.WithTimeout(a.cfg.Server.Timeout), etp.WithLogger(a.logger)}
			if user != "" {
				remoteOpts = append(remoteOpts, etp.WithBasicAuth(user, password))
			}
			remote, err := etp.NewClient(from, remoteOpts...)
			if err != nil {
				return err
			}

			res, err := local.ImportSA(cmd.Context(), remote, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, successMsg("imported submission agreement %s", res.AgreementID))
			if len(res.Imported) > 0 {
				fmt.Fprintln(out, "  profiles: "+strings.Join(res.Imported, ", "))
			}
			if len(res.Skipped) > 0 {
				fmt.Fprintln(out, warnMsg("skipped existing profiles: %s", strings.Join(res.Skipped, ", ")))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "URL of the server to import from")
	cmd.Flags().StringVar(&user, "user", "", "username on the remote server")
	cmd.Flags().StringVar(&password, "password", "", "password on the remote server")
	return cmd
}
