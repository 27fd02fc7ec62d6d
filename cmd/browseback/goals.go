package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/browseback/internal/config"
	"github.com/goodtune/browseback/internal/domain"
	"github.com/goodtune/browseback/internal/report"
	"github.com/goodtune/browseback/internal/storage"
	"github.com/goodtune/browseback/internal/usage"
	"github.com/spf13/cobra"
)

var (
	goalLimit time.Duration
	goalHours float64
	goalDays  int
)

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Manage daily time goals",
	Long:  `List, set and delete per-site daily time goals.`,
}

var goalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List goals and today's progress",
	Args:  cobra.NoArgs,
	RunE:  runGoalsList,
}

var goalsSetCmd = &cobra.Command{
	Use:   "set [flags] DOMAIN",
	Short: "Set the daily goal for a site",
	Long: `Set the daily goal for a site. Give the limit directly with --limit, or
as the total hours you want to allow over a number of days with --hours and
--days (3 hours over 3 days is a 1 hour daily goal). A zero limit removes
the goal.`,
	Example: `  browseback goals set youtube.com --limit 1h30m
  browseback goals set x.com --hours 3 --days 3`,
	Args: cobra.ExactArgs(1),
	RunE: runGoalsSet,
}

var goalsDeleteCmd = &cobra.Command{
	Use:     "delete DOMAIN",
	Aliases: []string{"rm"},
	Short:   "Delete the goal for a site",
	Args:    cobra.ExactArgs(1),
	RunE:    runGoalsDelete,
}

func init() {
	goalsSetCmd.Flags().DurationVar(&goalLimit, "limit", 0, "Daily limit (e.g. 45m, 1h30m)")
	goalsSetCmd.Flags().Float64Var(&goalHours, "hours", 0, "Total hours allowed over --days")
	goalsSetCmd.Flags().IntVar(&goalDays, "days", 1, "Number of days --hours is spread over")
	goalsSetCmd.MarkFlagsMutuallyExclusive("limit", "hours")
	goalsSetCmd.MarkFlagsOneRequired("limit", "hours")

	goalsCmd.AddCommand(goalsListCmd)
	goalsCmd.AddCommand(goalsSetCmd)
	goalsCmd.AddCommand(goalsDeleteCmd)
	rootCmd.AddCommand(goalsCmd)
}

// withBackend loads the configuration and runs fn against the running
// server or, when none answers, the store.
func withBackend(cmd *cobra.Command, fn func(backend) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	b, err := openBackend(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()
	return fn(b)
}

func runGoalsList(cmd *cobra.Command, args []string) error {
	var progress []usage.Progress
	err := withBackend(cmd, func(b backend) error {
		var err error
		progress, err = b.Today(cmd.Context())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to read goals: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(progress) == 0 {
		fmt.Fprintln(out, "No goals set.")
		return nil
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed, color.Bold)

	fmt.Fprintf(out, "%-32s %10s %10s %10s\n", "DOMAIN", "LIMIT", "USED", "LEFT")
	for _, p := range progress {
		line := fmt.Sprintf("%-32s %10s %10s %10s", p.Domain, report.Humanize(p.Limit), report.Humanize(p.Used), report.Humanize(p.Remaining))
		if p.Exceeded {
			_, _ = red.Fprintln(out, line)
		} else {
			_, _ = green.Fprintln(out, line)
		}
	}
	return nil
}

func runGoalsSet(cmd *cobra.Command, args []string) error {
	name := domain.Normalize(args[0])
	if name == "" {
		return fmt.Errorf("invalid domain: %q", args[0])
	}

	limit := goalLimit
	if cmd.Flags().Changed("hours") {
		if goalHours < 0 || goalDays < 1 {
			return fmt.Errorf("--hours must not be negative and --days must be at least 1")
		}
		limit = report.DailyLimit(goalHours, goalDays)
	}
	if limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	err := withBackend(cmd, func(b backend) error {
		return b.SetGoal(cmd.Context(), name, limit)
	})
	if err != nil {
		return fmt.Errorf("failed to store goal: %w", err)
	}

	if limit <= 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Removed goal for %s\n", name)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Goal for %s set to %s per day\n", name, report.Humanize(limit))
	return nil
}

func runGoalsDelete(cmd *cobra.Command, args []string) error {
	name := domain.Normalize(args[0])

	err := withBackend(cmd, func(b backend) error {
		return b.DeleteGoal(cmd.Context(), name)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no goal set for %s", name)
	}
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed goal for %s\n", name)
	return nil
}
