package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/browseback/internal/domain"
	"github.com/goodtune/browseback/internal/report"
	"github.com/goodtune/browseback/internal/usage"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] URL",
	Short: "Explain what the tracker would do for a URL",
	Long: `Check what the usage tracker would do if URL were the active tab right
now: whether it is tracked, which goal applies, today's usage and whether a
notification would be shown. Nothing is written.`,
	Example: `  browseback check https://www.youtube.com/watch
  browseback -c config.yaml check https://github.com/`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	rawURL := args[0]

	var check usage.Check
	err := withBackend(cmd, func(b backend) error {
		var err error
		check, err = b.Check(cmd.Context(), rawURL)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to evaluate %s: %w", rawURL, err)
	}

	printCheckResult(cmd.OutOrStdout(), check)
	return nil
}

func printCheckResult(w io.Writer, c usage.Check) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)

	fmt.Fprintln(w)
	_, _ = cyan.Fprintln(w, strings.Repeat("━", 50))
	_, _ = cyan.Fprintln(w, "Usage Tracker Check")
	_, _ = cyan.Fprintln(w, strings.Repeat("━", 50))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "URL:        %s\n", c.URL)
	if domain.IsWebURL(c.URL) {
		fmt.Fprintf(w, "Domain:     %s (%s)\n", c.Domain, domain.DisplayName(c.URL))
	}
	fmt.Fprintln(w)

	_, _ = cyan.Fprint(w, "Outcome:    ")
	switch c.Outcome {
	case usage.OutcomeNoActiveTab, usage.OutcomeNotWeb:
		fmt.Fprintln(w, strings.ToUpper(string(c.Outcome)))
		fmt.Fprintln(w, "            → Not a web page; nothing is tracked")
	case usage.OutcomeAllowed:
		_, _ = green.Fprintln(w, "ALLOWED")
		fmt.Fprintln(w, "            → Domain is on the allow list; never tracked")
	case usage.OutcomeNoGoal:
		_, _ = green.Fprintln(w, "NO GOAL")
		fmt.Fprintln(w, "            → No goal set for this domain; not tracked")
	case usage.OutcomeTracked:
		_, _ = yellow.Fprintln(w, "TRACKED")
		fmt.Fprintln(w, "            → Time would be added to today's usage")
	case usage.OutcomeNotified:
		_, _ = red.Fprintln(w, "NOTIFY")
		fmt.Fprintln(w, "            → Goal exceeded; a notification would be shown")
	default:
		fmt.Fprintln(w, c.Outcome)
	}

	if c.HasGoal {
		fmt.Fprintf(w, "Goal:       %s per day\n", report.Humanize(c.Limit))
		used := report.Humanize(c.Used)
		if c.Counted {
			used += " (after this tick)"
		}
		fmt.Fprintf(w, "Used today: %s\n", used)
	}

	if c.Message != "" {
		fmt.Fprintf(w, "Message:    %s\n", c.Message)
	} else if c.Outcome == usage.OutcomeTracked && c.Notified {
		fmt.Fprintln(w, "Notified:   already today")
	}

	fmt.Fprintln(w)
	_, _ = cyan.Fprintln(w, strings.Repeat("━", 50))
	fmt.Fprintln(w)
}
