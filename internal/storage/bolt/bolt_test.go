package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/browseback/internal/storage"
)

func TestGetSet(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	if _, err := store.Get(ctx, storage.KeyGoals); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Set(ctx, storage.KeyGoals, []byte(`[]`)); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := store.Get(ctx, storage.KeyGoals)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `[]` {
		t.Fatalf("expected [], got %s", got)
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != storage.KeyGoals {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	_ = store.Set(ctx, "k", []byte("1"))

	boom := errors.New("boom")
	err := store.Update(ctx, "k", func(current []byte) ([]byte, error) {
		if string(current) != "1" {
			t.Errorf("expected current 1, got %q", current)
		}
		return []byte("2"), boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, _ := store.Get(ctx, "k")
	if string(got) != "1" {
		t.Fatalf("expected value unchanged, got %q", got)
	}
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.bolt")
	ctx := context.Background()

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	st := storage.NewState(store)
	if err := st.SetDailyUsage(ctx, storage.DailyUsage{"x.com": 5 * time.Minute}); err != nil {
		t.Fatalf("set usage: %v", err)
	}
	_ = store.Close()

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = store.Close() }()

	usage, err := storage.NewState(store).DailyUsage(ctx)
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if usage["x.com"] != 5*time.Minute {
		t.Fatalf("expected 5m, got %v", usage["x.com"])
	}
}

func TestSubscribe(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	if _, err := store.Subscribe(ctx, storage.KeyIgnoreList, func() { calls++ }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	_ = store.Set(context.Background(), storage.KeyIgnoreList, []byte(`[]`))
	_ = store.Update(context.Background(), storage.KeyIgnoreList, func([]byte) ([]byte, error) {
		return []byte(`["a.com"]`), nil
	})
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}

	cancel()
	// AfterFunc runs in its own goroutine; wait for it to unregister.
	deadline := time.Now().Add(time.Second)
	for store.listeners.Len(storage.KeyIgnoreList) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	_ = store.Set(context.Background(), storage.KeyIgnoreList, []byte(`[]`))
	if calls != 2 {
		t.Fatalf("expected no calls after cancel, got %d", calls)
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.bolt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}
