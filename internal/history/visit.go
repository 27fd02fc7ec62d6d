// Package history defines browser history visits and the providers that
// supply them.
package history

import (
	"context"
	"encoding/json"
	"time"
)

// Visit is one history record: the most recent visit to a URL.
type Visit struct {
	ID            string
	URL           string
	Title         string
	LastVisitTime time.Time
	VisitCount    int
}

// Valid reports whether the visit carries both a URL and a timestamp.
func (v Visit) Valid() bool {
	return v.URL != "" && !v.LastVisitTime.IsZero()
}

type visitJSON struct {
	ID            string `json:"id"`
	URL           string `json:"url,omitempty"`
	Title         string `json:"title,omitempty"`
	LastVisitTime int64  `json:"lastVisitTime,omitempty"`
	VisitCount    int    `json:"visitCount,omitempty"`
}

// MarshalJSON encodes LastVisitTime as epoch milliseconds.
func (v Visit) MarshalJSON() ([]byte, error) {
	out := visitJSON{
		ID:         v.ID,
		URL:        v.URL,
		Title:      v.Title,
		VisitCount: v.VisitCount,
	}
	if !v.LastVisitTime.IsZero() {
		out.LastVisitTime = v.LastVisitTime.UnixMilli()
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a visit whose lastVisitTime is epoch milliseconds.
func (v *Visit) UnmarshalJSON(data []byte) error {
	var in visitJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*v = Visit{
		ID:         in.ID,
		URL:        in.URL,
		Title:      in.Title,
		VisitCount: in.VisitCount,
	}
	if in.LastVisitTime > 0 {
		v.LastVisitTime = time.UnixMilli(in.LastVisitTime)
	}
	return nil
}

// Provider searches browser history.
type Provider interface {
	// Search returns up to maxResults visits whose last visit is at or
	// after since. Order is unspecified.
	Search(ctx context.Context, since time.Time, maxResults int) ([]Visit, error)
}

// Static is a Provider over a fixed slice of visits.
type Static []Visit

// Search implements Provider.
func (s Static) Search(_ context.Context, since time.Time, maxResults int) ([]Visit, error) {
	out := make([]Visit, 0, len(s))
	for _, v := range s {
		if v.LastVisitTime.Before(since) {
			continue
		}
		if maxResults > 0 && len(out) >= maxResults {
			break
		}
		out = append(out, v)
	}
	return out, nil
}
