package main

import (
	"errors"
	"fmt"

	"github.com/goodtune/browseback/internal/domain"
	"github.com/goodtune/browseback/internal/storage"
	"github.com/spf13/cobra"
)

// newListCmd builds the list/add/remove commands for a stored domain list.
func newListCmd(use, key, short string) *cobra.Command {
	parent := &cobra.Command{
		Use:   use,
		Short: short,
	}

	parent.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List domains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(b backend) error {
				domains, err := b.List(cmd.Context(), key)
				if err != nil {
					return err
				}
				for _, d := range domains {
					fmt.Fprintln(cmd.OutOrStdout(), d)
				}
				return nil
			})
		},
	})

	parent.AddCommand(&cobra.Command{
		Use:   "add DOMAIN...",
		Short: "Add domains (hosts or URLs)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := make([]string, 0, len(args))
			for _, arg := range args {
				name := domain.Normalize(arg)
				if name == "" {
					return fmt.Errorf("invalid domain: %q", arg)
				}
				names = append(names, name)
			}

			return withBackend(cmd, func(b backend) error {
				for _, name := range names {
					if err := b.AddToList(cmd.Context(), key, name); err != nil {
						return fmt.Errorf("failed to add %s: %w", name, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", name)
				}
				return nil
			})
		},
	})

	parent.AddCommand(&cobra.Command{
		Use:     "remove DOMAIN...",
		Aliases: []string{"rm"},
		Short:   "Remove domains",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(b backend) error {
				for _, arg := range args {
					name := domain.Normalize(arg)
					err := b.RemoveFromList(cmd.Context(), key, name)
					if errors.Is(err, storage.ErrNotFound) {
						return fmt.Errorf("%s is not in the %s list", name, use)
					}
					if err != nil {
						return fmt.Errorf("failed to remove %s: %w", name, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", name)
				}
				return nil
			})
		},
	})

	return parent
}

func init() {
	rootCmd.AddCommand(newListCmd("allow", storage.KeyAllowList, "Manage sites that are never tracked"))
	rootCmd.AddCommand(newListCmd("ignore", storage.KeyIgnoreList, "Manage sites hidden from reports"))
}
