// Package report builds the usage view shown to the user from a history
// snapshot: a window filter, the ignore list, the session estimator and a
// per-day average for multi-day windows.
package report

import (
	"time"

	"github.com/goodtune/browseback/internal/domain"
	"github.com/goodtune/browseback/internal/estimate"
	"github.com/goodtune/browseback/internal/history"
)

// Ranges offered by the UI. Any positive day count is accepted.
var Ranges = []int{1, 3, 5, 7}

// Options selects the report window and exclusions.
type Options struct {
	Days    int
	Exclude domain.Set
}

// Report is a built usage view.
type Report struct {
	Days     int              `json:"days"`
	Since    time.Time        `json:"since"`
	Averaged bool             `json:"averaged"`
	Total    time.Duration    `json:"-"`
	TotalMS  int64            `json:"total"`
	Entries  []estimate.Entry `json:"entries"`
}

// Clock provides the current time for report windows.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Adapter builds reports. It holds no mutable state and may be shared.
type Adapter struct {
	Estimator *estimate.Estimator
	Clock     Clock
}

// NewAdapter creates an adapter around an estimator using the system clock.
func NewAdapter(est *estimate.Estimator) *Adapter {
	if est == nil {
		est = &estimate.Estimator{}
	}
	return &Adapter{Estimator: est, Clock: systemClock{}}
}

// WindowStart returns the first instant included in a report of the given
// number of days. One day (or less) means "today" and starts at local
// midnight; longer windows are rolling.
func WindowStart(now time.Time, days int) time.Time {
	if days <= 1 {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	}
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

// Filter keeps visits at or after start whose domain is not excluded.
func Filter(visits []history.Visit, start time.Time, exclude domain.Set) []history.Visit {
	out := make([]history.Visit, 0, len(visits))
	for _, v := range visits {
		if v.LastVisitTime.Before(start) {
			continue
		}
		if exclude.Contains(domain.Of(v.URL)) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Build filters the snapshot to the requested window, estimates time per
// domain and, for windows longer than a day, divides each total by the
// number of days.
func (a *Adapter) Build(visits []history.Visit, opts Options) Report {
	days := opts.Days
	if days < 1 {
		days = 1
	}

	now := time.Now()
	if a.Clock != nil {
		now = a.Clock.Now()
	}
	since := WindowStart(now, days)

	entries := a.Estimator.Estimate(Filter(visits, since, opts.Exclude))
	if days > 1 {
		for i := range entries {
			entries[i].TimeSpent /= time.Duration(days)
		}
	}

	total := estimate.Total(entries)
	return Report{
		Days:     days,
		Since:    since,
		Averaged: days > 1,
		Total:    total,
		TotalMS:  total.Milliseconds(),
		Entries:  entries,
	}
}

// Top returns at most n entries. Non-positive n returns all of them.
func (r Report) Top(n int) []estimate.Entry {
	if n <= 0 || n >= len(r.Entries) {
		return r.Entries
	}
	return r.Entries[:n]
}
