package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pablasso/etp/internal/errors"
	"github.com/pablasso/etp/internal/etp"
)

// slotView is a profile slot as printed by profile list.
type slotView struct {
	Slot    string `json:"slot" yaml:"slot"`
	Profile string `json:"profile_id" yaml:"profile_id"`
	Name    string `json:"name" yaml:"name"`
	Locked  bool   `json:"locked" yaml:"locked"`
}

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the profiles of an information package",
	}
	cmd.AddCommand(newProfileListCmd(a), newProfileSetCmd(a), newProfileUnlockCmd(a))
	return cmd
}

func newProfileListCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list <ip-id>",
		Short: "List the profiles of the submission agreement of an information package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			sp, err := c.GetSAProfiles(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			views := make([]slotView, len(sp.Slots))
			for i, s := range sp.Slots {
				views[i] = slotView{Slot: s.Slot, Profile: s.ProfileID, Locked: s.Locked}
				if s.Profile != nil {
					views[i].Name = s.Profile.Name
				}
			}
			return render(cmd.OutOrStdout(), output, formatTable, views, func() string {
				rows := make([][]string, len(views))
				for i, v := range views {
					locked := ""
					if v.Locked {
						locked = "locked"
					}
					rows[i] = []string{v.Slot, v.Profile, v.Name, locked}
				}
				title := muted(fmt.Sprintf("%s (%s)", sp.Agreement.Name, sp.Agreement.ID))
				return title + "\n" + renderTable([]string{"Slot", "Profile", "Name", "Lock"}, rows)
			})
		},
	}
	addOutputFlag(cmd, &output, formatTable)
	return cmd
}

func newProfileSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <ip-id> <slot> <profile-id>",
		Short: "Use another profile for a slot",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.ChangeProfile(cmd.Context(), args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successMsg("%s now uses %s", args[1], args[2]))
			return nil
		},
	}
}

func newProfileUnlockCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <ip-id> <slot>",
		Short: "Unlock the profile of a slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ipID, slot := args[0], args[1]
			c, err := a.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			sp, err := c.GetSAProfiles(ctx, ipID)
			if err != nil {
				return err
			}
			s := findSlot(sp, slot)
			if s == nil {
				return fmt.Errorf("unlock %s: no slot %q: %w", ipID, slot, errors.ErrNotFound)
			}
			if !s.Locked {
				fmt.Fprintln(cmd.OutOrStdout(), muted(slot+" is not locked"))
				return nil
			}
			if err := c.UnlockProfile(ctx, ipID, sp.Agreement.URL, s.Profile.URL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successMsg("unlocked %s", slot))
			return nil
		},
	}
}

func findSlot(sp *etp.SAProfiles, slot string) *etp.ProfileSlot {
	for i := range sp.Slots {
		if sp.Slots[i].Slot == slot {
			return &sp.Slots[i]
		}
	}
	return nil
}
