package usage

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingChecker struct {
	calls atomic.Int32
}

func (c *countingChecker) CheckDayBoundary(context.Context) (bool, error) {
	c.calls.Add(1)
	return false, nil
}

func TestResetSchedulerChecksOnStartAndInterval(t *testing.T) {
	checker := &countingChecker{}
	rs := NewResetScheduler(checker, 20*time.Millisecond, nil, zerolog.Nop())

	rs.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for checker.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	rs.Stop()

	if n := checker.calls.Load(); n < 3 {
		t.Fatalf("expected at least 3 checks, got %d", n)
	}

	after := checker.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if checker.calls.Load() != after {
		t.Error("checks continued after Stop")
	}
}

func TestResetSchedulerStopWithoutStart(t *testing.T) {
	rs := NewResetScheduler(&countingChecker{}, time.Hour, nil, zerolog.Nop())
	rs.Stop()
	rs.Stop()
}
