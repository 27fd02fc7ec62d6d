package main

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/goodtune/browseback/internal/activetab"
	"github.com/goodtune/browseback/internal/api"
	"github.com/goodtune/browseback/internal/config"
	"github.com/goodtune/browseback/internal/domain"
	"github.com/goodtune/browseback/internal/notify"
	"github.com/goodtune/browseback/internal/report"
	"github.com/goodtune/browseback/internal/storage"
	"github.com/goodtune/browseback/internal/usage"
)

// daemonProbeTimeout bounds the health check made before every command.
const daemonProbeTimeout = 500 * time.Millisecond

// backend is what the one-shot commands need from browseback's state. A
// running server holds the store open (bolt allows a single process), so
// commands go through its API when it answers and open the store otherwise.
type backend interface {
	Today(ctx context.Context) ([]usage.Progress, error)
	Goals(ctx context.Context) (storage.Goals, error)
	SetGoal(ctx context.Context, name string, limit time.Duration) error
	DeleteGoal(ctx context.Context, name string) error
	List(ctx context.Context, key string) ([]string, error)
	AddToList(ctx context.Context, key, name string) error
	RemoveFromList(ctx context.Context, key, name string) error
	TimeRange(ctx context.Context) (int, error)
	Report(ctx context.Context, days, limit int) (report.Report, error)
	Check(ctx context.Context, rawURL string) (usage.Check, error)
	Close() error
}

var _ backend = (*api.Client)(nil)

// openBackend returns a client for the running server, or the store itself
// when no server answers.
func openBackend(ctx context.Context, cfg *config.Config) (backend, error) {
	client := api.NewClient(daemonURL(cfg.Server), 10*time.Second)

	probeCtx, cancel := context.WithTimeout(ctx, daemonProbeTimeout)
	defer cancel()
	if err := client.Health(probeCtx); err == nil {
		return client, nil
	}
	_ = client.Close()

	local, err := openLocalBackend(cfg)
	if err != nil {
		return nil, err
	}
	return local, nil
}

// daemonURL is the loopback address of the server's API.
func daemonURL(cfg config.ServerConfig) string {
	host := cfg.BindAddress
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.APIPort))
}

// localBackend works on the store directly.
type localBackend struct {
	state   *storage.State
	tracker *usage.Tracker
	adapter *report.Adapter
	close   func()
}

var _ backend = (*localBackend)(nil)

func openLocalBackend(cfg *config.Config) (*localBackend, error) {
	estimator, err := newEstimator(cfg.Estimator)
	if err != nil {
		return nil, err
	}
	state, closeState, err := openState(cfg)
	if err != nil {
		return nil, err
	}

	// No active tab and no sink: the tracker only reads.
	tracker := usage.NewTracker(
		state,
		activetab.Static(""),
		notify.Multi{},
		nil,
		usage.Config{Interval: parseDuration(cfg.Tracking.TickInterval, usage.DefaultInterval)},
		quietLogger(),
	)

	return &localBackend{
		state:   state,
		tracker: tracker,
		adapter: report.NewAdapter(estimator),
		close:   closeState,
	}, nil
}

func (b *localBackend) Today(ctx context.Context) ([]usage.Progress, error) {
	return b.tracker.Today(ctx)
}

func (b *localBackend) Goals(ctx context.Context) (storage.Goals, error) {
	return b.state.Goals(ctx)
}

func (b *localBackend) SetGoal(ctx context.Context, name string, limit time.Duration) error {
	return b.state.UpdateGoals(ctx, func(goals storage.Goals) (storage.Goals, error) {
		return goals.Upsert(storage.Goal{DomainName: name, Limit: limit}), nil
	})
}

func (b *localBackend) DeleteGoal(ctx context.Context, name string) error {
	return b.state.UpdateGoals(ctx, func(goals storage.Goals) (storage.Goals, error) {
		if _, ok := goals.Find(name); !ok {
			return nil, storage.ErrNotFound
		}
		return goals.Remove(name), nil
	})
}

func (b *localBackend) List(ctx context.Context, key string) ([]string, error) {
	set, err := b.state.List(ctx, key)
	if err != nil {
		return nil, err
	}
	return set.Slice(), nil
}

func (b *localBackend) AddToList(ctx context.Context, key, name string) error {
	return b.state.UpdateList(ctx, key, func(set domain.Set) error {
		set.Add(name)
		return nil
	})
}

func (b *localBackend) RemoveFromList(ctx context.Context, key, name string) error {
	return b.state.UpdateList(ctx, key, func(set domain.Set) error {
		if !set.Contains(name) {
			return storage.ErrNotFound
		}
		set.Remove(name)
		return nil
	})
}

func (b *localBackend) TimeRange(ctx context.Context) (int, error) {
	return b.state.TimeRange(ctx)
}

func (b *localBackend) Report(ctx context.Context, days, limit int) (report.Report, error) {
	if days <= 0 {
		n, err := b.state.TimeRange(ctx)
		if err != nil {
			return report.Report{}, err
		}
		days = n
	}

	visits, err := b.state.WeeklyHistory(ctx)
	if err != nil {
		return report.Report{}, err
	}
	ignored, err := b.state.IgnoreList(ctx)
	if err != nil {
		return report.Report{}, err
	}

	rep := b.adapter.Build(visits, report.Options{Days: days, Exclude: ignored})
	rep.Entries = rep.Top(limit)
	return rep, nil
}

func (b *localBackend) Check(ctx context.Context, rawURL string) (usage.Check, error) {
	return b.tracker.Explain(ctx, rawURL)
}

func (b *localBackend) Close() error {
	b.close()
	return nil
}
