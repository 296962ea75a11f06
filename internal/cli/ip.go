package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pablasso/etp/internal/etp"
)

func newIPCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ip",
		Aliases: []string{"ips"},
		Short:   "Manage information packages",
	}
	cmd.AddCommand(
		newIPListCmd(a),
		newIPShowCmd(a),
		newIPActionCmd(a, "prepare", "Prepare an information package for upload", func(cmd *cobra.Command, c *etp.Client, id string) error {
			return c.PrepareIP(cmd.Context(), id)
		}),
		newIPActionCmd(a, "set-uploaded", "Mark the content of an information package as uploaded", func(cmd *cobra.Command, c *etp.Client, id string) error {
			return c.SetUploaded(cmd.Context(), id)
		}),
		newIPActionCmd(a, "remove", "Remove an information package", func(cmd *cobra.Command, c *etp.Client, id string) error {
			return c.DeleteIP(cmd.Context(), id)
		}),
		newIPCreateCmd(a),
		newIPSubmitCmd(a),
	)
	return cmd
}

func newIPListCmd(a *app) *cobra.Command {
	var (
		opts   etp.ListOptions
		output string
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List information packages",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			page, err := c.ListIPs(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), output, formatTable, page.Results, func() string {
				if len(page.Results) == 0 {
					return muted("no information packages")
				}
				rows := make([][]string, len(page.Results))
				for i, ip := range page.Results {
					created := "-"
					if ip.CreateDate != nil {
						created = humanize.Time(*ip.CreateDate)
					}
					rows[i] = []string{
						ip.ID,
						ip.DisplayName(),
						ip.ObjectIdentifierValue,
						ip.State,
						orDash(ip.Responsible),
						created,
					}
				}
				footer := muted(fmt.Sprintf("page %d of %d (%d total)", page.Number, page.NumberOfPages, page.Count))
				return renderTable([]string{"ID", "Label", "Object ID", "State", "Responsible", "Created"}, rows) + "\n" + footer
			})
		},
	}
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 0, "items per page (default server.page_size)")
	cmd.Flags().StringVar(&opts.Search, "search", "", "filter by label or object identifier")
	cmd.Flags().StringVar(&opts.State, "state", "", "filter by state")
	cmd.Flags().StringVar(&opts.Ordering, "ordering", "", "sort field, prefix with - to reverse")
	addOutputFlag(cmd, &output, formatTable)
	return cmd
}

func newIPShowCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an information package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			ip, err := c.GetIP(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), output, formatTable, ip, func() string {
				locks := make([]string, len(ip.Locks))
				for i, l := range ip.Locks {
					locks[i] = l.Profile
				}
				return keyValues(
					kv("ID", ip.ID),
					kv("Label", orDash(ip.Label)),
					kv("Object ID", orDash(ip.ObjectIdentifierValue)),
					kv("State", ip.State),
					kv("Step state", orDash(ip.StepState)),
					kv("Progress", strconv.Itoa(ip.StatusProgress)+"%"),
					kv("Responsible", orDash(ip.Responsible)),
					kv("Created", formatTime(ip.CreateDate)),
					kv("Agreement", orDash(ip.SubmissionAgreement)),
					kv("Locked", orDash(strings.Join(locks, ", "))),
				)
			})
		},
	}
	addOutputFlag(cmd, &output, formatTable)
	return cmd
}

func newIPActionCmd(a *app, use, short string, fn func(*cobra.Command, *etp.Client, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			if err := fn(cmd, c, args[0]); err != nil {
				return err
			}
			a.logger.WithIP(args[0]).Info("information package action", "action", use)
			fmt.Fprintln(cmd.OutOrStdout(), successMsg("%s %s", use, args[0]))
			return nil
		},
	}
}

func newIPCreateCmd(a *app) *cobra.Command {
	var (
		validators     []string
		fileConversion bool
	)
	cmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Create a SIP from an information package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseValidators(validators)
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			opts := etp.CreateOptions{Validators: v, FileConversion: fileConversion}
			if err := c.CreateSIP(cmd.Context(), args[0], opts); err != nil {
				return err
			}
			a.logger.WithIP(args[0]).Info("information package action", "action", "create", "validators", len(v))
			fmt.Fprintln(cmd.OutOrStdout(), successMsg("create %s", args[0]))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&validators, "validator", nil, "validator setting as name=true|false (repeatable)")
	cmd.Flags().BoolVar(&fileConversion, "file-conversion", false, "convert files while creating")
	return cmd
}

func newIPSubmitCmd(a *app) *cobra.Command {
	var (
		validators []string
		opts       etp.SubmitOptions
	)
	cmd := &cobra.Command{
		Use:   "submit <id>",
		Short: "Submit the SIP of an information package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseValidators(validators)
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			opts.Validators = v
			opts.Email = opts.Subject != "" || opts.Body != ""
			if err := c.SubmitIP(cmd.Context(), args[0], opts); err != nil {
				return err
			}
			a.logger.WithIP(args[0]).Info("information package action", "action", "submit", "email", opts.Email)
			fmt.Fprintln(cmd.OutOrStdout(), successMsg("submit %s", args[0]))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&validators, "validator", nil, "validator setting as name=true|false (repeatable)")
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "notification subject")
	cmd.Flags().StringVar(&opts.Body, "body", "", "notification body")
	return cmd
}

// parseValidators turns name=bool pairs into a validator map.
func parseValidators(pairs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid validator %q (want name=true|false)", p)
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid validator %q: %w", p, err)
		}
		out[name] = b
	}
	return out, nil
}
