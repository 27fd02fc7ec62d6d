package usage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goodtune/browseback/internal/activetab"
	"github.com/goodtune/browseback/internal/domain"
	"github.com/goodtune/browseback/internal/storage"
	"github.com/goodtune/browseback/internal/storage/memory"
	"github.com/rs/zerolog"
)

type recordingSink struct {
	mu    sync.Mutex
	shown []Notification
	err   error
}

func (s *recordingSink) Show(_ context.Context, id, title, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.shown = append(s.shown, Notification{ID: id, Title: title, Message: message})
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shown)
}

type failingStore struct {
	storage.KeyValueStore
	failSet string
}

func (f *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if key == f.failSet {
		return errors.New("disk full")
	}
	return f.KeyValueStore.Set(ctx, key, value)
}

func newTestTracker(t *testing.T, kv storage.KeyValueStore, url string, clock Clock) (*Tracker, *storage.State, *recordingSink) {
	t.Helper()
	if kv == nil {
		kv = memory.New()
	}
	state := storage.NewState(kv)
	sink := &recordingSink{}
	tracker := NewTracker(state, activetab.Static(url), sink, clock, Config{Interval: time.Minute}, zerolog.Nop())
	return tracker, state, sink
}

func TestRunTickGoalScenario(t *testing.T) {
	ctx := context.Background()
	clock := NewTestClock(time.Date(2025, 5, 20, 15, 0, 0, 0, time.Local))
	tracker, state, sink := newTestTracker(t, nil, "https://x.com/home", clock)

	_ = state.SetGoals(ctx, Goals{{DomainName: "x.com", Limit: time.Hour}})
	_ = state.SetDailyUsage(ctx, DailyUsage{"x.com": 59 * time.Minute})

	res, err := tracker.RunTick(ctx)
	if err != nil {
		t.Fatalf("RunTick failed: %v", err)
	}
	if res.Outcome != OutcomeNotified {
		t.Fatalf("Outcome = %s, want notified", res.Outcome)
	}
	if sink.count() != 1 {
		t.Fatalf("expected one notification, got %d", sink.count())
	}

	log, _ := state.NotificationLog(ctx)
	if !log["x.com"].Equal(clock.Now()) {
		t.Errorf("log[x.com] = %v, want %v", log["x.com"], clock.Now())
	}

	res, err = tracker.RunTick(ctx)
	if err != nil {
		t.Fatalf("second RunTick failed: %v", err)
	}
	if res.Outcome != OutcomeTracked || sink.count() != 1 {
		t.Errorf("second tick notified again: %s, %d shown", res.Outcome, sink.count())
	}

	usage, _ := state.DailyUsage(ctx)
	if usage["x.com"] != 61*time.Minute {
		t.Errorf("usage = %v, want 61m", usage["x.com"])
	}
}

func TestRunTickAllowListIsStrictNoOp(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	tracker, state, sink := newTestTracker(t, kv, "https://x.com/", NewTestClock(time.Now()))

	_ = state.SetGoals(ctx, Goals{{DomainName: "x.com", Limit: time.Minute}})
	_ = state.UpdateList(ctx, storage.KeyAllowList, func(s domain.Set) error {
		s.Add("x.com")
		return nil
	})

	writes := 0
	cancel, _ := kv.Subscribe(ctx, storage.KeyDailyUsage, func() { writes++ })
	defer cancel()
	cancelLog, _ := kv.Subscribe(ctx, storage.KeyNotificationLog, func() { writes++ })
	defer cancelLog()

	for i := 0; i < 3; i++ {
		res, err := tracker.RunTick(ctx)
		if err != nil {
			t.Fatalf("RunTick failed: %v", err)
		}
		if res.Outcome != OutcomeAllowed {
			t.Errorf("Outcome = %s, want allowed", res.Outcome)
		}
	}
	if writes != 0 || sink.count() != 0 {
		t.Errorf("allowed domain caused %d writes and %d notifications", writes, sink.count())
	}
}

func TestRunTickNoActiveTab(t *testing.T) {
	tracker, _, _ := newTestTracker(t, nil, "", NewTestClock(time.Now()))

	res, err := tracker.RunTick(context.Background())
	if err != nil {
		t.Fatalf("RunTick failed: %v", err)
	}
	if res.Outcome != OutcomeNoActiveTab {
		t.Errorf("Outcome = %s", res.Outcome)
	}
}

func TestRunTickSinkFailureRetries(t *testing.T) {
	ctx := context.Background()
	tracker, state, sink := newTestTracker(t, nil, "https://x.com/", NewTestClock(time.Now()))
	_ = state.SetGoals(ctx, Goals{{DomainName: "x.com", Limit: time.Minute}})

	sink.err = errors.New("notifier offline")
	if _, err := tracker.RunTick(ctx); err == nil {
		t.Fatal("expected error when the sink fails")
	}
	log, _ := state.NotificationLog(ctx)
	if _, ok := log["x.com"]; ok {
		t.Fatal("log written despite failed notification")
	}

	sink.err = nil
	res, err := tracker.RunTick(ctx)
	if err != nil {
		t.Fatalf("RunTick failed: %v", err)
	}
	if res.Outcome != OutcomeNotified || sink.count() != 1 {
		t.Errorf("expected retry to notify, got %s with %d shown", res.Outcome, sink.count())
	}
}

func TestRunTickWriteFailure(t *testing.T) {
	ctx := context.Background()
	kv := &failingStore{KeyValueStore: memory.New(), failSet: storage.KeyDailyUsage}
	tracker, state, sink := newTestTracker(t, kv, "https://x.com/", NewTestClock(time.Now()))
	_ = state.SetGoals(ctx, Goals{{DomainName: "x.com", Limit: time.Minute}})

	if _, err := tracker.RunTick(ctx); err == nil {
		t.Fatal("expected write error")
	}
	if sink.count() != 0 {
		t.Error("notification shown although usage was not persisted")
	}
}

func TestCheckDayBoundary(t *testing.T) {
	ctx := context.Background()
	clock := NewTestClock(time.Date(2025, 5, 20, 0, 5, 0, 0, time.Local))
	tracker, state, _ := newTestTracker(t, nil, "", clock)

	_ = state.SetDayMarker(ctx, DayMarker{LastReset: time.Date(2025, 5, 19, 0, 0, 0, 0, time.Local)})
	_ = state.SetDailyUsage(ctx, DailyUsage{"x.com": 2 * time.Hour})
	_ = state.SetNotificationLog(ctx, NotificationLog{"x.com": time.Date(2025, 5, 19, 14, 0, 0, 0, time.Local)})

	reset, err := tracker.CheckDayBoundary(ctx)
	if err != nil || !reset {
		t.Fatalf("CheckDayBoundary() = %v, %v", reset, err)
	}

	usage, _ := state.DailyUsage(ctx)
	log, _ := state.NotificationLog(ctx)
	marker, _ := state.DayMarker(ctx)
	if len(usage) != 0 || len(log) != 0 {
		t.Errorf("state not cleared: %v %v", usage, log)
	}
	if !marker.LastReset.Equal(clock.Now()) {
		t.Errorf("marker = %v, want %v", marker.LastReset, clock.Now())
	}

	// Later the same day: no reset and no writes
	_ = state.SetDailyUsage(ctx, DailyUsage{"x.com": time.Minute})
	clock.Advance(12 * time.Hour)
	reset, err = tracker.CheckDayBoundary(ctx)
	if err != nil || reset {
		t.Fatalf("same-day CheckDayBoundary() = %v, %v", reset, err)
	}
	usage, _ = state.DailyUsage(ctx)
	if usage["x.com"] != time.Minute {
		t.Errorf("same-day check modified usage: %v", usage)
	}
}

func TestCheckDayBoundaryFirstRun(t *testing.T) {
	ctx := context.Background()
	tracker, state, _ := newTestTracker(t, nil, "", NewTestClock(time.Now()))

	reset, err := tracker.CheckDayBoundary(ctx)
	if err != nil || !reset {
		t.Fatalf("first CheckDayBoundary() = %v, %v", reset, err)
	}
	marker, _ := state.DayMarker(ctx)
	if marker.IsZero() {
		t.Error("marker not written")
	}
}

func TestCheckDayBoundaryMarkerWrittenLast(t *testing.T) {
	ctx := context.Background()
	kv := &failingStore{KeyValueStore: memory.New(), failSet: storage.KeyNotificationLog}
	tracker, state, _ := newTestTracker(t, kv, "", NewTestClock(time.Now()))

	if _, err := tracker.CheckDayBoundary(ctx); err == nil {
		t.Fatal("expected error")
	}
	marker, _ := state.DayMarker(ctx)
	if !marker.IsZero() {
		t.Error("marker written although the reset did not finish")
	}
}

func TestToday(t *testing.T) {
	ctx := context.Background()
	clock := NewTestClock(time.Date(2025, 5, 20, 15, 0, 0, 0, time.Local))
	tracker, state, _ := newTestTracker(t, nil, "", clock)

	_ = state.SetGoals(ctx, Goals{
		{DomainName: "y.com", Limit: 30 * time.Minute},
		{DomainName: "x.com", Limit: time.Hour},
	})
	_ = state.SetDailyUsage(ctx, DailyUsage{"x.com": 20 * time.Minute, "y.com": 45 * time.Minute})
	_ = state.SetNotificationLog(ctx, NotificationLog{"y.com": clock.Now().Add(-time.Hour)})
	_ = state.SetDayMarker(ctx, DayMarker{LastReset: clock.Now().Add(-10 * time.Hour)})

	progress, err := tracker.Today(ctx)
	if err != nil {
		t.Fatalf("Today failed: %v", err)
	}
	if len(progress) != 2 || progress[0].Domain != "x.com" {
		t.Fatalf("unexpected progress %+v", progress)
	}
	if progress[0].Remaining != 40*time.Minute || progress[0].Exceeded {
		t.Errorf("x.com progress = %+v", progress[0])
	}
	if progress[1].Remaining != 0 || !progress[1].Exceeded || !progress[1].Notified {
		t.Errorf("y.com progress = %+v", progress[1])
	}
}

func TestTodayIgnoresUsageFromEarlierDay(t *testing.T) {
	ctx := context.Background()
	clock := NewTestClock(time.Date(2025, 5, 21, 8, 0, 0, 0, time.Local))
	tracker, state, _ := newTestTracker(t, nil, "", clock)

	yesterday := time.Date(2025, 5, 20, 22, 0, 0, 0, time.Local)
	_ = state.SetGoals(ctx, Goals{{DomainName: "x.com", Limit: time.Hour}})
	_ = state.SetDailyUsage(ctx, DailyUsage{"x.com": 90 * time.Minute})
	_ = state.SetNotificationLog(ctx, NotificationLog{"x.com": yesterday})
	_ = state.SetDayMarker(ctx, DayMarker{LastReset: yesterday.Add(-20 * time.Hour)})

	progress, err := tracker.Today(ctx)
	if err != nil {
		t.Fatalf("Today failed: %v", err)
	}
	if len(progress) != 1 {
		t.Fatalf("unexpected progress %+v", progress)
	}
	p := progress[0]
	if p.Used != 0 || p.Remaining != time.Hour || p.Exceeded || p.Notified {
		t.Errorf("progress = %+v, want a fresh day", p)
	}

	// Reading is not a reset.
	usage, _ := state.DailyUsage(ctx)
	if usage["x.com"] != 90*time.Minute {
		t.Errorf("Today modified stored usage: %v", usage)
	}
	marker, _ := state.DayMarker(ctx)
	if !SameDay(marker.LastReset, yesterday) {
		t.Errorf("Today moved the day marker to %v", marker.LastReset)
	}
}

func TestPreviewDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	tracker, state, sink := newTestTracker(t, nil, "", NewTestClock(time.Now()))
	_ = state.SetGoals(ctx, Goals{{DomainName: "x.com", Limit: time.Minute}})

	res, err := tracker.Preview(ctx, "https://x.com/")
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if res.Outcome != OutcomeNotified {
		t.Errorf("Outcome = %s", res.Outcome)
	}
	usage, _ := state.DailyUsage(ctx)
	if len(usage) != 0 || sink.count() != 0 {
		t.Errorf("Preview persisted state: %v, %d shown", usage, sink.count())
	}
}

func TestExplain(t *testing.T) {
	ctx := context.Background()
	clock := NewTestClock(time.Date(2025, 5, 20, 15, 0, 0, 0, time.Local))
	tracker, state, _ := newTestTracker(t, nil, "", clock)

	_ = state.SetGoals(ctx, Goals{{DomainName: "x.com", Limit: 30 * time.Minute}})
	_ = state.SetDailyUsage(ctx, DailyUsage{"x.com": 29 * time.Minute})

	c, err := tracker.Explain(ctx, "https://www.x.com/feed")
	if err != nil {
		t.Fatalf("Explain failed: %v", err)
	}
	if c.Outcome != OutcomeNotified || c.Domain != "x.com" || !c.HasGoal || !c.Counted {
		t.Errorf("check = %+v", c)
	}
	if c.Used != 30*time.Minute || c.Limit != 30*time.Minute || c.Notified || c.Message == "" {
		t.Errorf("check = %+v", c)
	}

	c, err = tracker.Explain(ctx, "chrome://settings")
	if err != nil {
		t.Fatalf("Explain failed: %v", err)
	}
	if c.Outcome != OutcomeNotWeb || c.HasGoal || c.Domain != "" {
		t.Errorf("check = %+v", c)
	}
}

func TestCheckJSONUsesMilliseconds(t *testing.T) {
	in := Check{URL: "https://x.com", Outcome: OutcomeTracked, Domain: "x.com", HasGoal: true, Limit: time.Hour, Used: 90 * time.Second, Counted: true}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"limit":3600000`) || !strings.Contains(string(data), `"used":90000`) {
		t.Errorf("json = %s", data)
	}

	var out Check
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out != in {
		t.Errorf("decoded %+v, want %+v", out, in)
	}
}
