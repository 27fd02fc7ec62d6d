package notify

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Entry is a notification kept in the feed.
type Entry struct {
	ID             string    `json:"id"`
	NotificationID string    `json:"notificationId"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Time           time.Time `json:"time"`
}

// Feed keeps the most recent notifications in memory so the extension can
// poll and display them. Entry IDs are ULIDs and sort by creation time.
type Feed struct {
	mu      sync.Mutex
	size    int
	entries []Entry
	now     func() time.Time
}

// NewFeed creates a feed holding up to size entries.
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = 50
	}
	return &Feed{size: size, now: time.Now}
}

// Show implements Sink.
func (f *Feed) Show(_ context.Context, id, title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	f.entries = append(f.entries, Entry{
		ID:             ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		NotificationID: id,
		Title:          title,
		Message:        message,
		Time:           now,
	})
	if over := len(f.entries) - f.size; over > 0 {
		f.entries = append([]Entry(nil), f.entries[over:]...)
	}
	return nil
}

// List returns entries newest first. If after is a non-empty entry ID only
// newer entries are returned.
func (f *Feed) List(after string) []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Entry, 0, len(f.entries))
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if after != "" && e.ID <= after {
			break
		}
		out = append(out, e)
	}
	return out
}
