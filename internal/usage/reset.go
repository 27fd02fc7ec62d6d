package usage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultResetCheckInterval is how often the day boundary is checked in
// addition to the check at local midnight.
const DefaultResetCheckInterval = time.Hour

// midnightSlack delays the midnight check slightly so it lands on the new day.
const midnightSlack = time.Second

// DayChecker performs a day-boundary check.
type DayChecker interface {
	CheckDayBoundary(ctx context.Context) (bool, error)
}

// ResetScheduler manages daily usage resets. It checks once at start,
// then every interval and at each local midnight. Checks are idempotent, so
// a check missed while the machine slept is made up by the next one.
type ResetScheduler struct {
	checker  DayChecker
	interval time.Duration
	clock    Clock
	logger   zerolog.Logger
	stopChan chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

// NewResetScheduler creates a new reset scheduler
func NewResetScheduler(checker DayChecker, interval time.Duration, clock Clock, logger zerolog.Logger) *ResetScheduler {
	if interval <= 0 {
		interval = DefaultResetCheckInterval
	}
	if clock == nil {
		clock = RealClock{}
	}

	return &ResetScheduler{
		checker:  checker,
		interval: interval,
		clock:    clock,
		logger:   logger.With().Str("component", "reset-scheduler").Logger(),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the reset scheduler
func (rs *ResetScheduler) Start(ctx context.Context) {
	if !rs.started.CompareAndSwap(false, true) {
		return
	}
	go rs.run(ctx)
	rs.logger.Info().
		Dur("interval", rs.interval).
		Msg("Daily usage reset scheduler started")
}

// Stop stops the reset scheduler and waits for an in-flight check.
func (rs *ResetScheduler) Stop() {
	rs.stopOnce.Do(func() { close(rs.stopChan) })
	if rs.started.Load() {
		<-rs.done
	}
	rs.logger.Info().Msg("Daily usage reset scheduler stopped")
}

// run is the main scheduler loop
func (rs *ResetScheduler) run(ctx context.Context) {
	defer close(rs.done)

	for {
		rs.check(ctx)

		wait := NextCheck(rs.clock.Now(), rs.interval)
		rs.logger.Debug().
			Dur("wait_duration", wait).
			Msg("Scheduled next day-boundary check")

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-rs.stopChan:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (rs *ResetScheduler) check(ctx context.Context) {
	if _, err := rs.checker.CheckDayBoundary(ctx); err != nil {
		rs.logger.Error().Err(err).Msg("Day-boundary check failed")
	}
}

// NextCheck returns how long to wait before the next check: the interval, or
// less if local midnight comes first.
func NextCheck(now time.Time, interval time.Duration) time.Duration {
	untilMidnight := NextMidnight(now).Sub(now) + midnightSlack
	if untilMidnight < interval {
		return untilMidnight
	}
	return interval
}

// NextMidnight returns the start of the calendar day after now, in now's
// location.
func NextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}
