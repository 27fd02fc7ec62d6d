package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goodtune/browseback/internal/config"
	"github.com/goodtune/browseback/internal/storage"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	// miniredis.Addr() is "host:port", so leave Port unset
	cfg := config.RedisConfig{
		Host:         mr.Addr(),
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
		KeyPrefix:    "test",
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestOpenInvalidTimeout(t *testing.T) {
	_, err := Open(config.RedisConfig{Host: "localhost:0", DialTimeout: "soon"})
	if err == nil {
		t.Fatal("expected error for invalid dial_timeout")
	}
}

func TestGetSet(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "goals"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Set(ctx, "goals", []byte(`[{"domainName":"x.com","limit":3600000}]`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "goals")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `[{"domainName":"x.com","limit":3600000}]` {
		t.Errorf("Get = %s", got)
	}

	// Values live under the configured prefix
	raw, err := mr.Get("test:goals")
	if err != nil {
		t.Fatalf("miniredis Get failed: %v", err)
	}
	if raw != string(got) {
		t.Errorf("raw value = %s", raw)
	}
}

func TestUpdate(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := store.Update(ctx, "counter", func(current []byte) ([]byte, error) {
			return append(current, 'x'), nil
		})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	got, _ := store.Get(ctx, "counter")
	if string(got) != "xxx" {
		t.Errorf("counter = %q, want xxx", got)
	}

	boom := errors.New("boom")
	err := store.Update(ctx, "counter", func([]byte) ([]byte, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	got, _ = store.Get(ctx, "counter")
	if string(got) != "xxx" {
		t.Errorf("failed update wrote %q", got)
	}
}

func TestSubscribe(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	changed := make(chan struct{}, 10)
	cancel, err := store.Subscribe(ctx, "ignore-list", func() { changed <- struct{}{} })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cancel()

	if err := store.Set(ctx, "ignore-list", []byte(`["a.com"]`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	waitForChange(t, changed)

	err = store.Update(ctx, "ignore-list", func([]byte) ([]byte, error) { return []byte(`[]`), nil })
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	waitForChange(t, changed)

	// Writes to other keys are not delivered
	_ = store.Set(ctx, "goals", []byte(`[]`))
	select {
	case <-changed:
		t.Error("unexpected notification for another key")
	case <-time.After(100 * time.Millisecond):
	}
}

func waitForChange(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}
