// Package activetab reports which URL the user is looking at.
//
// The browser extension posts the foreground tab's URL to the local API on
// every tab switch and periodically while a tab stays active. A report that
// has not been refreshed within the stale window is treated as "no active
// tab", which covers a closed browser or a sleeping machine.
package activetab

import (
	"context"
	"sync"
	"time"
)

// Provider returns the URL of the foreground tab. ok is false when there is
// no focused browser window or no active tab.
type Provider interface {
	CurrentURL(ctx context.Context) (url string, ok bool, err error)
}

// Beacon is a Provider fed by pushed reports.
type Beacon struct {
	mu         sync.Mutex
	url        string
	seenAt     time.Time
	staleAfter time.Duration
	now        func() time.Time
}

// DefaultStaleAfter is how long a report stays current without a refresh.
const DefaultStaleAfter = 2 * time.Minute

// NewBeacon creates a beacon whose reports expire after staleAfter.
func NewBeacon(staleAfter time.Duration) *Beacon {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Beacon{staleAfter: staleAfter, now: time.Now}
}

// Report records url as the active tab.
func (b *Beacon) Report(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.url = url
	b.seenAt = b.now()
}

// Clear forgets the active tab.
func (b *Beacon) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.url = ""
	b.seenAt = time.Time{}
}

// CurrentURL implements Provider.
func (b *Beacon) CurrentURL(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	url, _, ok := b.Snapshot()
	return url, ok, nil
}

// Snapshot returns the last report and whether it is still current.
func (b *Beacon) Snapshot() (url string, seenAt time.Time, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.url == "" || b.now().Sub(b.seenAt) > b.staleAfter {
		return b.url, b.seenAt, false
	}
	return b.url, b.seenAt, true
}

// Static is a Provider that always reports the same URL. An empty URL means
// no active tab.
type Static string

// CurrentURL implements Provider.
func (s Static) CurrentURL(context.Context) (string, bool, error) {
	return string(s), s != "", nil
}
