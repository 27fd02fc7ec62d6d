package api

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goodtune/browseback/internal/history"
	"github.com/goodtune/browseback/internal/storage"
	"github.com/goodtune/browseback/internal/usage"
)

func setupTestClient(t *testing.T) (*testEnv, *Client) {
	t.Helper()

	env := setupTestServer(t)
	ts := httptest.NewServer(env.server.Handler())
	t.Cleanup(ts.Close)

	client := NewClient(ts.URL, 5*time.Second)
	t.Cleanup(func() { _ = client.Close() })
	return env, client
}

func TestClientGoals(t *testing.T) {
	env, client := setupTestClient(t)
	ctx := context.Background()

	if err := client.Health(ctx); err != nil {
		t.Fatalf("Health failed: %v", err)
	}

	if err := client.SetGoal(ctx, "www.x.com", 45*time.Minute); err != nil {
		t.Fatalf("SetGoal failed: %v", err)
	}
	goals, err := client.Goals(ctx)
	if err != nil {
		t.Fatalf("Goals failed: %v", err)
	}
	if len(goals) != 1 || goals[0].DomainName != "x.com" || goals[0].Limit != 45*time.Minute {
		t.Errorf("goals = %+v", goals)
	}

	_ = env.state.SetDayMarker(ctx, storage.DayMarker{LastReset: testNow})
	_ = env.state.SetDailyUsage(ctx, storage.DailyUsage{"x.com": 50 * time.Minute})
	progress, err := client.Today(ctx)
	if err != nil {
		t.Fatalf("Today failed: %v", err)
	}
	if len(progress) != 1 || progress[0].Used != 50*time.Minute || !progress[0].Exceeded {
		t.Errorf("progress = %+v", progress)
	}

	check, err := client.Check(ctx, "https://x.com/home?tab=1")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if check.Outcome != usage.OutcomeNotified || check.Used != 51*time.Minute || check.Limit != 45*time.Minute {
		t.Errorf("check = %+v", check)
	}

	// Zero removes the goal.
	if err := client.SetGoal(ctx, "x.com", 0); err != nil {
		t.Fatalf("SetGoal(0) failed: %v", err)
	}
	if err := client.DeleteGoal(ctx, "x.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("DeleteGoal of a removed goal = %v, want ErrNotFound", err)
	}
}

func TestClientListsAndReport(t *testing.T) {
	env, client := setupTestClient(t)
	ctx := context.Background()

	if err := client.AddToList(ctx, storage.KeyIgnoreList, "https://www.b.com/page"); err != nil {
		t.Fatalf("AddToList failed: %v", err)
	}
	domains, err := client.List(ctx, storage.KeyIgnoreList)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(domains) != 1 || domains[0] != "b.com" {
		t.Errorf("domains = %v", domains)
	}

	_ = env.state.SaveWeeklyHistory(ctx, []history.Visit{
		{ID: "1", URL: "https://a.com/x", LastVisitTime: testNow.Add(-10 * time.Minute), VisitCount: 1},
		{ID: "2", URL: "https://b.com/y", LastVisitTime: testNow.Add(-5 * time.Minute), VisitCount: 1},
	})

	rep, err := client.Report(ctx, 1, 0)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	// b.com is ignored, so a.com is the last visit and gets the trailing time.
	if len(rep.Entries) != 1 || rep.Entries[0].DomainName != "a.com" || rep.Total != 2*time.Minute {
		t.Errorf("report = %+v", rep)
	}

	days, err := client.TimeRange(ctx)
	if err != nil || days != storage.DefaultTimeRange {
		t.Errorf("TimeRange = %d, %v", days, err)
	}

	if err := client.RemoveFromList(ctx, storage.KeyIgnoreList, "b.com"); err != nil {
		t.Fatalf("RemoveFromList failed: %v", err)
	}
	if err := client.RemoveFromList(ctx, storage.KeyIgnoreList, "b.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second RemoveFromList = %v, want ErrNotFound", err)
	}
}

func TestClientUnreachable(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	client := NewClient(url, time.Second)
	if err := client.Health(context.Background()); err == nil {
		t.Error("expected error for a closed server")
	}
}
