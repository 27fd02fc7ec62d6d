package usage

import (
	"testing"
	"time"
)

func TestNotifiedToday(t *testing.T) {
	now := time.Date(2025, 5, 20, 0, 1, 0, 0, time.Local)

	tests := []struct {
		name string
		log  NotificationLog
		want bool
	}{
		{"never", NotificationLog{}, false},
		{"nil log", nil, false},
		{"earlier today", NotificationLog{"x.com": now.Add(-30 * time.Second)}, true},
		{"two minutes before midnight", NotificationLog{"x.com": time.Date(2025, 5, 19, 23, 59, 0, 0, time.Local)}, false},
		{"other domain", NotificationLog{"y.com": now}, false},
		{"same day last year", NotificationLog{"x.com": now.AddDate(-1, 0, 0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NotifiedToday(tt.log, "x.com", now); got != tt.want {
				t.Errorf("NotifiedToday() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSameDayUsesNowLocation(t *testing.T) {
	sydney := time.FixedZone("AEST", 10*60*60)
	now := time.Date(2025, 5, 20, 8, 0, 0, 0, sydney)
	// 23:00 UTC on the 19th is 09:00 on the 20th in Sydney
	other := time.Date(2025, 5, 19, 23, 0, 0, 0, time.UTC)

	if !SameDay(other, now) {
		t.Error("expected same day in now's location")
	}
}

func TestNeedsReset(t *testing.T) {
	now := time.Date(2025, 5, 20, 9, 0, 0, 0, time.Local)

	tests := []struct {
		name   string
		marker DayMarker
		want   bool
	}{
		{"never reset", DayMarker{}, true},
		{"yesterday midnight", DayMarker{LastReset: time.Date(2025, 5, 19, 0, 0, 0, 0, time.Local)}, true},
		{"today", DayMarker{LastReset: time.Date(2025, 5, 20, 0, 0, 1, 0, time.Local)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsReset(tt.marker, now); got != tt.want {
				t.Errorf("NeedsReset() = %v, want %v", got, tt.want)
			}
		})
	}

	usage, log, marker := Reset(now)
	if len(usage) != 0 || len(log) != 0 || !marker.LastReset.Equal(now) {
		t.Errorf("Reset() = %v, %v, %v", usage, log, marker)
	}
	if NeedsReset(marker, now) {
		t.Error("fresh marker should not need a reset")
	}
}

func TestNextCheck(t *testing.T) {
	loc := time.Local

	far := time.Date(2025, 5, 20, 9, 0, 0, 0, loc)
	if got := NextCheck(far, time.Hour); got != time.Hour {
		t.Errorf("NextCheck(09:00) = %v, want 1h", got)
	}

	near := time.Date(2025, 5, 20, 23, 50, 0, 0, loc)
	want := NextMidnight(near).Sub(near) + midnightSlack
	if got := NextCheck(near, time.Hour); got != want {
		t.Errorf("NextCheck(23:50) = %v, want %v", got, want)
	}

	if got := NextMidnight(near); got.Day() != 21 || got.Hour() != 0 {
		t.Errorf("NextMidnight = %v", got)
	}
}
