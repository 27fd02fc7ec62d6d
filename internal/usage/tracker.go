package usage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goodtune/browseback/internal/activetab"
	"github.com/goodtune/browseback/internal/domain"
	"github.com/goodtune/browseback/internal/metrics"
	"github.com/goodtune/browseback/internal/notify"
	"github.com/goodtune/browseback/internal/storage"
	"github.com/rs/zerolog"
)

// Tracker runs ticks against persisted state. It reads state, calls Tick and
// writes back whatever changed. Ticks and day-boundary checks never overlap.
type Tracker struct {
	state    *storage.State
	tabs     activetab.Provider
	sink     notify.Sink
	clock    Clock
	interval time.Duration
	logger   zerolog.Logger
	mu       sync.Mutex
}

// Config holds tracker configuration
type Config struct {
	Interval time.Duration
}

// NewTracker creates a new usage tracker
func NewTracker(state *storage.State, tabs activetab.Provider, sink notify.Sink, clock Clock, config Config, logger zerolog.Logger) *Tracker {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if clock == nil {
		clock = RealClock{}
	}

	return &Tracker{
		state:    state,
		tabs:     tabs,
		sink:     sink,
		clock:    clock,
		interval: config.Interval,
		logger:   logger.With().Str("component", "usage-tracker").Logger(),
	}
}

// Interval returns the tick cadence.
func (t *Tracker) Interval() time.Duration {
	return t.interval
}

// RunTick performs one tick. On error nothing after the failing step is
// written; the next tick starts again from stored state.
func (t *Tracker) RunTick(ctx context.Context) (TickResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := time.Now()
	defer func() { metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	now := t.clock.Now()

	url, ok, err := t.tabs.CurrentURL(ctx)
	if err != nil {
		return TickResult{}, t.fail("active_tab", fmt.Errorf("query active tab: %w", err))
	}

	in := TickInput{Now: now, ActiveURL: url, HasActive: ok, Interval: t.interval}

	// Tabs that can never be tracked need no stored state.
	if ok && domain.IsWebURL(url) {
		if stage, err := t.readState(ctx, &in); err != nil {
			return TickResult{}, t.fail(stage, err)
		}
	}

	res := Tick(in)

	if res.UsageChanged {
		if err := t.state.SetDailyUsage(ctx, res.Usage); err != nil {
			return res, t.fail("write_usage", err)
		}
		metrics.UsageMinutesTracked.WithLabelValues(res.Domain).Add(t.interval.Minutes())
	}

	if res.Notification != nil {
		n := res.Notification
		if err := t.sink.Show(ctx, n.ID, n.Title, n.Message); err != nil {
			// Leave the log untouched so the next tick retries.
			return res, t.fail("notify", fmt.Errorf("show notification: %w", err))
		}
		if err := t.state.SetNotificationLog(ctx, res.Log); err != nil {
			return res, t.fail("write_log", err)
		}
		metrics.NotificationsTotal.WithLabelValues(res.Domain).Inc()

		t.logger.Info().
			Str("domain", res.Domain).
			Dur("used", res.Usage[res.Domain]).
			Msg("Goal exceeded, notification shown")
	}

	metrics.TicksTotal.WithLabelValues(string(res.Outcome)).Inc()

	t.logger.Debug().
		Str("outcome", string(res.Outcome)).
		Str("domain", res.Domain).
		Msg("Tick complete")

	return res, nil
}

// readState fills in the stored state a tick needs. On failure it returns
// the stage that failed.
func (t *Tracker) readState(ctx context.Context, in *TickInput) (string, error) {
	var err error

	if in.Goals, err = t.state.Goals(ctx); err != nil {
		return "read_goals", err
	}
	if in.Allow, err = t.state.AllowList(ctx); err != nil {
		return "read_allow_list", err
	}
	if in.Usage, err = t.state.DailyUsage(ctx); err != nil {
		return "read_usage", err
	}
	if in.Log, err = t.state.NotificationLog(ctx); err != nil {
		return "read_log", err
	}
	return "", nil
}

func (t *Tracker) fail(stage string, err error) error {
	metrics.TickErrors.WithLabelValues(stage).Inc()
	t.logger.Error().Err(err).Str("stage", stage).Msg("Tick failed")
	return err
}

// CheckDayBoundary clears daily usage and the notification log when the
// calendar day has changed since the last reset. It reports whether a reset
// happened. The day marker is written last, so an interrupted reset is
// retried by the next check.
func (t *Tracker) CheckDayBoundary(ctx context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()

	marker, err := t.state.DayMarker(ctx)
	if err != nil {
		return false, fmt.Errorf("read day marker: %w", err)
	}
	if !NeedsReset(marker, now) {
		return false, nil
	}

	usage, log, next := Reset(now)
	if err := t.state.SetDailyUsage(ctx, usage); err != nil {
		return false, fmt.Errorf("reset daily usage: %w", err)
	}
	if err := t.state.SetNotificationLog(ctx, log); err != nil {
		return false, fmt.Errorf("reset notification log: %w", err)
	}
	if err := t.state.SetDayMarker(ctx, next); err != nil {
		return false, fmt.Errorf("write day marker: %w", err)
	}

	metrics.DailyResets.Inc()

	event := t.logger.Info().Time("now", now)
	if !marker.IsZero() {
		event = event.Time("last_reset", marker.LastReset)
	}
	event.Msg("Daily usage reset")

	return true, nil
}

// Today returns progress toward every goal, ordered by domain. Usage left
// over from an earlier day that has not been reset yet counts as zero.
func (t *Tracker) Today(ctx context.Context) ([]Progress, error) {
	now := t.clock.Now()

	goals, err := t.state.Goals(ctx)
	if err != nil {
		return nil, err
	}
	usage, log, err := t.readDay(ctx, now)
	if err != nil {
		return nil, err
	}

	out := make([]Progress, 0, len(goals))
	for _, g := range goals {
		used := usage[g.DomainName]
		remaining := g.Limit - used
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, Progress{
			Domain:    g.DomainName,
			Used:      used,
			Limit:     g.Limit,
			Remaining: remaining,
			Exceeded:  used >= g.Limit,
			Notified:  NotifiedToday(log, g.DomainName, now),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}

// readDay returns the stored usage and notification log, or empty ones when
// the day marker is not from now's day. Nothing is written.
func (t *Tracker) readDay(ctx context.Context, now time.Time) (DailyUsage, NotificationLog, error) {
	marker, err := t.state.DayMarker(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read day marker: %w", err)
	}
	if NeedsReset(marker, now) {
		return DailyUsage{}, NotificationLog{}, nil
	}

	usage, err := t.state.DailyUsage(ctx)
	if err != nil {
		return nil, nil, err
	}
	log, err := t.state.NotificationLog(ctx)
	if err != nil {
		return nil, nil, err
	}
	return usage, log, nil
}

// Preview runs Tick for rawURL against stored state without persisting
// anything or showing a notification.
func (t *Tracker) Preview(ctx context.Context, rawURL string) (TickResult, error) {
	in, err := t.previewInput(ctx, rawURL)
	if err != nil {
		return TickResult{}, err
	}
	return Tick(in), nil
}

// Explain is Preview summarized for display.
func (t *Tracker) Explain(ctx context.Context, rawURL string) (Check, error) {
	in, err := t.previewInput(ctx, rawURL)
	if err != nil {
		return Check{}, err
	}
	res := Tick(in)

	c := Check{
		URL:     rawURL,
		Outcome: res.Outcome,
		Domain:  res.Domain,
		Counted: res.UsageChanged,
	}
	if res.Domain == "" {
		return c, nil
	}
	if goal, ok := in.Goals.Find(res.Domain); ok {
		c.HasGoal = true
		c.Limit = goal.Limit
		c.Used = res.Usage[res.Domain]
	}
	c.Notified = NotifiedToday(in.Log, res.Domain, in.Now)
	if res.Notification != nil {
		c.Message = res.Notification.Message
	}
	return c, nil
}

func (t *Tracker) previewInput(ctx context.Context, rawURL string) (TickInput, error) {
	in := TickInput{
		Now:       t.clock.Now(),
		ActiveURL: rawURL,
		HasActive: rawURL != "",
		Interval:  t.interval,
	}
	if _, err := t.readState(ctx, &in); err != nil {
		return TickInput{}, err
	}
	return in, nil
}
