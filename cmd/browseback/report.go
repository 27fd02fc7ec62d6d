package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/browseback/internal/config"
	"github.com/goodtune/browseback/internal/domain"
	"github.com/goodtune/browseback/internal/report"
	"github.com/goodtune/browseback/internal/storage"
	"github.com/spf13/cobra"
)

var (
	reportDays  int
	reportLimit int
	reportJSON  bool
	reportLive  bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show estimated time per website",
	Long: `Estimate time spent per website from browser history. By default the
history snapshot kept by the server is used; --live reads the browser's
history directly.`,
	Example: `  browseback report
  browseback report --days 7 --limit 20
  browseback report --live --json`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().IntVar(&reportDays, "days", 0, "Window in days (default: the stored time range)")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 15, "Maximum number of sites to show (0 for all)")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the report as JSON")
	reportCmd.Flags().BoolVar(&reportLive, "live", false, "Read browser history directly instead of the stored snapshot")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	var rep report.Report
	if reportLive {
		rep, err = liveReport(cmd, cfg, b)
	} else {
		rep, err = b.Report(ctx, reportDays, reportLimit)
	}
	if err != nil {
		return err
	}

	if reportJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	goals, err := b.Goals(ctx)
	if err != nil {
		return fmt.Errorf("failed to read goals: %w", err)
	}
	printReport(cmd.OutOrStdout(), rep, goals)
	return nil
}

// liveReport builds a report from the browser's history rather than the
// stored snapshot. The time range and ignore list still come from b.
func liveReport(cmd *cobra.Command, cfg *config.Config, b backend) (report.Report, error) {
	ctx := cmd.Context()

	days := reportDays
	if days <= 0 {
		n, err := b.TimeRange(ctx)
		if err != nil {
			return report.Report{}, fmt.Errorf("failed to read time range: %w", err)
		}
		days = n
	}

	provider, err := newHistoryProvider(cfg.History, quietLogger())
	if err != nil {
		return report.Report{}, err
	}
	if provider == nil {
		return report.Report{}, fmt.Errorf("history source is disabled (history.source = none)")
	}

	visits, err := provider.Search(ctx, report.WindowStart(time.Now(), days), cfg.History.MaxResults)
	if err != nil {
		return report.Report{}, fmt.Errorf("failed to read browser history: %w", err)
	}

	ignored, err := b.List(ctx, storage.KeyIgnoreList)
	if err != nil {
		return report.Report{}, fmt.Errorf("failed to read ignore list: %w", err)
	}

	estimator, err := newEstimator(cfg.Estimator)
	if err != nil {
		return report.Report{}, err
	}
	rep := report.NewAdapter(estimator).Build(visits, report.Options{Days: days, Exclude: domain.NewSet(ignored...)})
	rep.Entries = rep.Top(reportLimit)
	return rep, nil
}

// printReport renders a report as a table. Sites at or over their daily
// goal are shown in red.
func printReport(w io.Writer, rep report.Report, goals storage.Goals) {
	cyan := color.New(color.FgCyan, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	faint := color.New(color.Faint)

	title := "Today"
	if rep.Days > 1 {
		title = fmt.Sprintf("Last %d days (daily average)", rep.Days)
	}
	_, _ = cyan.Fprintf(w, "\n%s since %s\n", title, rep.Since.Format("Mon 2 Jan 15:04"))
	_, _ = cyan.Fprintln(w, strings.Repeat("━", 60))

	if len(rep.Entries) == 0 {
		_, _ = faint.Fprintln(w, "No browsing recorded in this window.")
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintf(w, "%-32s %-14s %10s %6s\n", "DOMAIN", "SITE", "TIME", "SHARE")
	for _, e := range rep.Entries {
		share := 0.0
		if rep.Total > 0 {
			share = 100 * float64(e.TimeSpent) / float64(rep.Total)
		}
		line := fmt.Sprintf("%-32s %-14s %10s %5.1f%%", truncate(e.DomainName, 32), truncate(e.WebsiteName, 14), report.Humanize(e.TimeSpent), share)

		if goal, ok := goals.Find(e.DomainName); ok && e.TimeSpent >= goal.Limit {
			_, _ = red.Fprintf(w, "%s  (goal %s)\n", line, report.Humanize(goal.Limit))
			continue
		}
		fmt.Fprintln(w, line)
	}

	_, _ = cyan.Fprintln(w, strings.Repeat("━", 60))
	fmt.Fprintf(w, "%-47s %10s\n\n", "TOTAL", report.Humanize(rep.Total))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
