package report

import (
	"fmt"
	"time"
)

// Humanize renders a duration with its two most significant units:
// "1d 2h", "1h 5m", "3m 10s" or "42s". Sub-second remainders are dropped
// and negative durations render as "0s".
func Humanize(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int64(d / time.Second)
	min := sec / 60
	hr := min / 60
	day := hr / 24

	switch {
	case day > 0:
		return fmt.Sprintf("%dd %dh", day, hr%24)
	case hr > 0:
		return fmt.Sprintf("%dh %dm", hr, min%60)
	case min > 0:
		return fmt.Sprintf("%dm %ds", min, sec%60)
	default:
		return fmt.Sprintf("%ds", sec)
	}
}

// DailyLimit converts a limit expressed against a multi-day view into a
// per-day limit. Non-positive day counts are treated as one day.
func DailyLimit(hours float64, days int) time.Duration {
	if days < 1 {
		days = 1
	}
	if hours <= 0 {
		return 0
	}
	return time.Duration(hours * float64(time.Hour) / float64(days))
}
