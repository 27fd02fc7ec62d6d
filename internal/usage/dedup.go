package usage

import "time"

// SameDay reports whether a and b fall on the same calendar day in b's
// location.
func SameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// NotifiedToday reports whether the goal notification for domain was already
// shown on now's calendar day. A notification from late yesterday does not
// count, however recent.
func NotifiedToday(log NotificationLog, domain string, now time.Time) bool {
	at, ok := log[domain]
	if !ok {
		return false
	}
	return SameDay(at, now)
}

// NeedsReset reports whether daily state belongs to an earlier (or later)
// calendar day than now. A marker that was never written needs a reset.
func NeedsReset(marker DayMarker, now time.Time) bool {
	if marker.IsZero() {
		return true
	}
	return !SameDay(marker.LastReset, now)
}

// Reset returns the empty daily state for now's day and the marker that
// records it.
func Reset(now time.Time) (DailyUsage, NotificationLog, DayMarker) {
	return DailyUsage{}, NotificationLog{}, DayMarker{LastReset: now}
}
