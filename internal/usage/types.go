package usage

import (
	"encoding/json"
	"time"

	"github.com/goodtune/browseback/internal/storage"
)

// Persisted state, shared with the storage layer.
type (
	Goal            = storage.Goal
	Goals           = storage.Goals
	DailyUsage      = storage.DailyUsage
	DayMarker       = storage.DayMarker
	NotificationLog = storage.NotificationLog
)

// Outcome describes what a tick did.
type Outcome string

const (
	OutcomeNoActiveTab Outcome = "no_active_tab"
	OutcomeNotWeb      Outcome = "not_web"
	OutcomeAllowed     Outcome = "allowed"
	OutcomeNoGoal      Outcome = "no_goal"
	OutcomeTracked     Outcome = "tracked"
	OutcomeNotified    Outcome = "notified"
)

// Mutates reports whether the outcome changes persisted state.
func (o Outcome) Mutates() bool {
	return o == OutcomeTracked || o == OutcomeNotified
}

// Notification is a goal-exceeded alert to be shown to the user.
type Notification struct {
	ID      string
	Title   string
	Message string
}

// Progress is today's usage of one goal.
type Progress struct {
	Domain    string
	Used      time.Duration
	Limit     time.Duration
	Remaining time.Duration
	Exceeded  bool
	Notified  bool
}

type progressJSON struct {
	Domain    string `json:"domainName"`
	Used      int64  `json:"used"`
	Limit     int64  `json:"limit"`
	Remaining int64  `json:"remaining"`
	Exceeded  bool   `json:"exceeded"`
	Notified  bool   `json:"notified"`
}

// MarshalJSON encodes durations as milliseconds.
func (p Progress) MarshalJSON() ([]byte, error) {
	return json.Marshal(progressJSON{
		Domain:    p.Domain,
		Used:      p.Used.Milliseconds(),
		Limit:     p.Limit.Milliseconds(),
		Remaining: p.Remaining.Milliseconds(),
		Exceeded:  p.Exceeded,
		Notified:  p.Notified,
	})
}

// UnmarshalJSON decodes the millisecond form written by MarshalJSON.
func (p *Progress) UnmarshalJSON(data []byte) error {
	var in progressJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*p = Progress{
		Domain:    in.Domain,
		Used:      time.Duration(in.Used) * time.Millisecond,
		Limit:     time.Duration(in.Limit) * time.Millisecond,
		Remaining: time.Duration(in.Remaining) * time.Millisecond,
		Exceeded:  in.Exceeded,
		Notified:  in.Notified,
	}
	return nil
}

// Check explains what a tick would do if a URL were the active tab.
type Check struct {
	URL      string
	Outcome  Outcome
	Domain   string
	HasGoal  bool
	Limit    time.Duration
	Used     time.Duration // includes this tick when Counted
	Counted  bool
	Notified bool // already notified today, before this tick
	Message  string
}

type checkJSON struct {
	URL      string  `json:"url"`
	Outcome  Outcome `json:"outcome"`
	Domain   string  `json:"domainName,omitempty"`
	HasGoal  bool    `json:"hasGoal"`
	Limit    int64   `json:"limit"`
	Used     int64   `json:"used"`
	Counted  bool    `json:"counted"`
	Notified bool    `json:"notified"`
	Message  string  `json:"message,omitempty"`
}

// MarshalJSON encodes durations as milliseconds.
func (c Check) MarshalJSON() ([]byte, error) {
	return json.Marshal(checkJSON{
		URL:      c.URL,
		Outcome:  c.Outcome,
		Domain:   c.Domain,
		HasGoal:  c.HasGoal,
		Limit:    c.Limit.Milliseconds(),
		Used:     c.Used.Milliseconds(),
		Counted:  c.Counted,
		Notified: c.Notified,
		Message:  c.Message,
	})
}

// UnmarshalJSON decodes the millisecond form written by MarshalJSON.
func (c *Check) UnmarshalJSON(data []byte) error {
	var in checkJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*c = Check{
		URL:      in.URL,
		Outcome:  in.Outcome,
		Domain:   in.Domain,
		HasGoal:  in.HasGoal,
		Limit:    time.Duration(in.Limit) * time.Millisecond,
		Used:     time.Duration(in.Used) * time.Millisecond,
		Counted:  in.Counted,
		Notified: in.Notified,
		Message:  in.Message,
	}
	return nil
}
