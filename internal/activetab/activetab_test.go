package activetab

import (
	"context"
	"testing"
	"time"
)

func TestBeacon(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	b := NewBeacon(2 * time.Minute)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	if _, ok, _ := b.CurrentURL(ctx); ok {
		t.Fatal("empty beacon should report no active tab")
	}

	b.Report("https://x.com/home")
	url, ok, err := b.CurrentURL(ctx)
	if err != nil || !ok || url != "https://x.com/home" {
		t.Fatalf("CurrentURL() = %q, %v, %v", url, ok, err)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := b.CurrentURL(ctx); !ok {
		t.Error("report should be current at exactly the stale window")
	}

	now = now.Add(time.Second)
	if _, ok, _ := b.CurrentURL(ctx); ok {
		t.Error("report should be stale")
	}

	b.Report("https://y.com")
	b.Clear()
	if _, ok, _ := b.CurrentURL(ctx); ok {
		t.Error("cleared beacon should report no active tab")
	}
}

func TestBeaconCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := NewBeacon(0).CurrentURL(ctx); err == nil {
		t.Error("expected context error")
	}
}

func TestStatic(t *testing.T) {
	if _, ok, _ := Static("").CurrentURL(context.Background()); ok {
		t.Error("empty static should report no tab")
	}
	if url, ok, _ := Static("https://a.com").CurrentURL(context.Background()); !ok || url != "https://a.com" {
		t.Errorf("unexpected static result %q %v", url, ok)
	}
}
