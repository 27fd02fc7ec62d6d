// Package scheduler runs named jobs at a fixed cadence.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Job is a periodic callback. A returned error is logged; the job keeps its
// schedule.
type Job func(ctx context.Context) error

type entry struct {
	name      string
	interval  time.Duration
	fn        Job
	immediate bool
}

// Scheduler runs each registered job on its own goroutine. Invocations of one
// job never overlap: ticks that fire while the job is still running are
// dropped.
type Scheduler struct {
	mu      sync.Mutex
	jobs    []entry
	logger  zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates an empty scheduler.
func New(logger zerolog.Logger) *Scheduler {
	return &Scheduler{logger: logger.With().Str("component", "scheduler").Logger()}
}

// Every registers fn to run every interval once the scheduler starts.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(context.Context) error) {
	s.add(entry{name: name, interval: interval, fn: fn})
}

// EveryNow is Every with an extra run as soon as the scheduler starts.
func (s *Scheduler) EveryNow(name string, interval time.Duration, fn func(context.Context) error) {
	s.add(entry{name: name, interval: interval, fn: fn, immediate: true})
}

func (s *Scheduler) add(e entry) {
	if e.interval <= 0 {
		panic("scheduler: non-positive interval for job " + e.name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = append(s.jobs, e)
	if s.running {
		s.launch(s.ctx, e)
	}
}

// Start launches every registered job. Jobs stop when ctx is done or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	for _, e := range s.jobs {
		s.launch(s.ctx, e)
	}
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
}

// launch must be called with s.mu held.
func (s *Scheduler) launch(ctx context.Context, e entry) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx, e)
	}()
}

func (s *Scheduler) loop(ctx context.Context, e entry) {
	logger := s.logger.With().Str("job", e.name).Logger()
	logger.Debug().Dur("interval", e.interval).Msg("Job scheduled")

	if e.immediate {
		s.run(ctx, logger, e)
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx, logger, e)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, logger zerolog.Logger, e entry) {
	if ctx.Err() != nil {
		return
	}
	if err := e.fn(ctx); err != nil {
		logger.Warn().Err(err).Msg("Job failed")
	}
}

// Stop cancels every job and waits for running invocations to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("Scheduler stopped")
}
