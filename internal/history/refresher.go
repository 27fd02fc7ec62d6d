package history

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/browseback/internal/metrics"
	"github.com/rs/zerolog"
)

// Snapshotter persists the latest history snapshot.
type Snapshotter interface {
	SaveWeeklyHistory(ctx context.Context, visits []Visit) error
}

// Refresher periodically copies recent history into the state store so that
// reports can be built without touching the browser's database.
type Refresher struct {
	provider   Provider
	store      Snapshotter
	lookback   time.Duration
	maxResults int
	now        func() time.Time
	logger     zerolog.Logger
}

// RefresherConfig holds refresher settings.
type RefresherConfig struct {
	Lookback   time.Duration
	MaxResults int
}

// NewRefresher creates a history refresher.
func NewRefresher(provider Provider, store Snapshotter, cfg RefresherConfig, logger zerolog.Logger) *Refresher {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 7 * 24 * time.Hour
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10000
	}
	return &Refresher{
		provider:   provider,
		store:      store,
		lookback:   cfg.Lookback,
		maxResults: cfg.MaxResults,
		now:        time.Now,
		logger:     logger.With().Str("component", "history").Logger(),
	}
}

// Refresh searches the lookback window and stores the result.
func (r *Refresher) Refresh(ctx context.Context) error {
	since := r.now().Add(-r.lookback)

	visits, err := r.provider.Search(ctx, since, r.maxResults)
	if err != nil {
		metrics.HistoryRefreshTotal.WithLabelValues("search_error").Inc()
		return fmt.Errorf("search history: %w", err)
	}

	if err := r.store.SaveWeeklyHistory(ctx, visits); err != nil {
		metrics.HistoryRefreshTotal.WithLabelValues("store_error").Inc()
		return fmt.Errorf("save history snapshot: %w", err)
	}

	metrics.HistoryRefreshTotal.WithLabelValues("ok").Inc()
	metrics.HistoryVisits.Set(float64(len(visits)))

	r.logger.Debug().
		Int("visits", len(visits)).
		Time("since", since).
		Msg("History snapshot refreshed")

	return nil
}
