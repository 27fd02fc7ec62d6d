package storage

import (
	"encoding/json"
	"sort"
	"time"
)

// Goal is a per-day time limit for a domain.
type Goal struct {
	DomainName string
	Limit      time.Duration
}

type goalJSON struct {
	DomainName string `json:"domainName"`
	Limit      int64  `json:"limit"`
}

// MarshalJSON encodes Limit as milliseconds.
func (g Goal) MarshalJSON() ([]byte, error) {
	return json.Marshal(goalJSON{DomainName: g.DomainName, Limit: g.Limit.Milliseconds()})
}

// UnmarshalJSON decodes a goal whose limit is milliseconds.
func (g *Goal) UnmarshalJSON(data []byte) error {
	var in goalJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*g = Goal{DomainName: in.DomainName, Limit: time.Duration(in.Limit) * time.Millisecond}
	return nil
}

// Goals is the list of goals, unique by DomainName.
type Goals []Goal

// Find returns the goal for a domain.
func (gs Goals) Find(domain string) (Goal, bool) {
	for _, g := range gs {
		if g.DomainName == domain {
			return g, true
		}
	}
	return Goal{}, false
}

// Upsert returns a copy with g replacing any existing goal for its domain.
// A non-positive limit removes the goal instead.
func (gs Goals) Upsert(g Goal) Goals {
	if g.Limit <= 0 {
		return gs.Remove(g.DomainName)
	}
	out := make(Goals, 0, len(gs)+1)
	replaced := false
	for _, existing := range gs {
		if existing.DomainName == g.DomainName {
			out = append(out, g)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, g)
	}
	return out
}

// Remove returns a copy without the goal for domain.
func (gs Goals) Remove(domain string) Goals {
	out := make(Goals, 0, len(gs))
	for _, g := range gs {
		if g.DomainName != domain {
			out = append(out, g)
		}
	}
	return out
}

// DailyUsage maps a domain to the time tracked against it today.
type DailyUsage map[string]time.Duration

// Clone returns a copy that never aliases u.
func (u DailyUsage) Clone() DailyUsage {
	out := make(DailyUsage, len(u))
	for k, v := range u {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes durations as milliseconds.
func (u DailyUsage) MarshalJSON() ([]byte, error) {
	out := make(map[string]int64, len(u))
	for k, v := range u {
		out[k] = v.Milliseconds()
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a {domain: ms} object.
func (u *DailyUsage) UnmarshalJSON(data []byte) error {
	var in map[string]int64
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := make(DailyUsage, len(in))
	for k, v := range in {
		out[k] = time.Duration(v) * time.Millisecond
	}
	*u = out
	return nil
}

// Domains returns the tracked domains sorted by descending usage.
func (u DailyUsage) Domains() []string {
	out := make([]string, 0, len(u))
	for k := range u {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if u[out[i]] != u[out[j]] {
			return u[out[i]] > u[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// DayMarker records when daily state was last reset.
type DayMarker struct {
	LastReset time.Time
}

// IsZero reports whether the marker has never been written.
func (m DayMarker) IsZero() bool {
	return m.LastReset.IsZero()
}

type dayMarkerJSON struct {
	LastReset int64 `json:"lastReset"`
}

// MarshalJSON encodes LastReset as epoch milliseconds.
func (m DayMarker) MarshalJSON() ([]byte, error) {
	var ms int64
	if !m.LastReset.IsZero() {
		ms = m.LastReset.UnixMilli()
	}
	return json.Marshal(dayMarkerJSON{LastReset: ms})
}

// UnmarshalJSON decodes a marker whose lastReset is epoch milliseconds.
func (m *DayMarker) UnmarshalJSON(data []byte) error {
	var in dayMarkerJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*m = DayMarker{}
	if in.LastReset > 0 {
		m.LastReset = time.UnixMilli(in.LastReset)
	}
	return nil
}

// NotificationLog maps a domain to the time its goal notification was
// last shown.
type NotificationLog map[string]time.Time

// Clone returns a copy that never aliases l.
func (l NotificationLog) Clone() NotificationLog {
	out := make(NotificationLog, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes times as epoch milliseconds.
func (l NotificationLog) MarshalJSON() ([]byte, error) {
	out := make(map[string]int64, len(l))
	for k, v := range l {
		out[k] = v.UnixMilli()
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a {domain: epoch ms} object.
func (l *NotificationLog) UnmarshalJSON(data []byte) error {
	var in map[string]int64
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := make(NotificationLog, len(in))
	for k, v := range in {
		out[k] = time.UnixMilli(v)
	}
	*l = out
	return nil
}
