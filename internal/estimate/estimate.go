// Package estimate derives per-site time spent from sparse history visits.
//
// A browser records only the moment each page was visited, not how long it
// stayed in front of the user. The estimator assumes the user stayed on a
// page until the next visit, capped at a maximum session gap, and gives the
// final visit a fixed trailing duration.
package estimate

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/goodtune/browseback/internal/domain"
	"github.com/goodtune/browseback/internal/history"
)

const (
	// DefaultMaxSessionGap caps the time credited between consecutive visits.
	DefaultMaxSessionGap = 30 * time.Minute

	// DefaultTrailingVisit is credited to the last visit in a sequence.
	DefaultTrailingVisit = 2 * time.Minute
)

// Entry is the estimated time spent on one domain.
type Entry struct {
	DomainName  string
	WebsiteName string
	TimeSpent   time.Duration
}

type entryJSON struct {
	DomainName  string `json:"domainName"`
	WebsiteName string `json:"websiteName"`
	TimeSpent   int64  `json:"timeSpent"`
}

// MarshalJSON encodes TimeSpent as milliseconds.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		DomainName:  e.DomainName,
		WebsiteName: e.WebsiteName,
		TimeSpent:   e.TimeSpent.Milliseconds(),
	})
}

// UnmarshalJSON decodes an entry whose timeSpent is milliseconds.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var in entryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*e = Entry{
		DomainName:  in.DomainName,
		WebsiteName: in.WebsiteName,
		TimeSpent:   time.Duration(in.TimeSpent) * time.Millisecond,
	}
	return nil
}

// Estimator turns visits into per-domain totals. The zero value uses the
// defaults and no classification cache.
type Estimator struct {
	MaxGap        time.Duration
	TrailingVisit time.Duration
	Classifier    *domain.Classifier
}

// Estimate runs the estimator with the default trailing duration and a
// maximum session gap given in minutes. Non-positive gaps use the default.
func Estimate(visits []history.Visit, maxSessionGapMinutes int) []Entry {
	e := Estimator{MaxGap: time.Duration(maxSessionGapMinutes) * time.Minute}
	return e.Estimate(visits)
}

// Estimate returns one entry per domain, largest TimeSpent first. Ties are
// ordered by domain name. The input slice is not modified.
func (e *Estimator) Estimate(visits []history.Visit) []Entry {
	maxGap := e.MaxGap
	if maxGap <= 0 {
		maxGap = DefaultMaxSessionGap
	}
	trailing := e.TrailingVisit
	if trailing <= 0 {
		trailing = DefaultTrailingVisit
	}

	valid := make([]history.Visit, 0, len(visits))
	for _, v := range visits {
		if v.Valid() {
			valid = append(valid, v)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].LastVisitTime.Before(valid[j].LastVisitTime)
	})

	index := make(map[string]int)
	entries := make([]Entry, 0)

	for i, v := range valid {
		spent := trailing
		if i+1 < len(valid) {
			spent = valid[i+1].LastVisitTime.Sub(v.LastVisitTime)
			if spent > maxGap {
				spent = maxGap
			}
			if spent < 0 {
				spent = 0
			}
		}

		info := e.Classifier.Classify(v.URL)
		pos, ok := index[info.Domain]
		if !ok {
			pos = len(entries)
			index[info.Domain] = pos
			entries = append(entries, Entry{
				DomainName:  info.Domain,
				WebsiteName: info.DisplayName,
			})
		}
		entries[pos].TimeSpent += spent
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TimeSpent != entries[j].TimeSpent {
			return entries[i].TimeSpent > entries[j].TimeSpent
		}
		return entries[i].DomainName < entries[j].DomainName
	})

	return entries
}

// Total sums TimeSpent across entries.
func Total(entries []Entry) time.Duration {
	var total time.Duration
	for _, e := range entries {
		total += e.TimeSpent
	}
	return total
}
