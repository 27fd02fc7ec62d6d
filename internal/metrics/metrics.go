package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Tracker metrics
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "browseback_ticks_total",
			Help: "Usage tracker ticks by outcome",
		},
		[]string{"outcome"},
	)

	TickErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "browseback_tick_errors_total",
			Help: "Usage tracker tick failures by stage",
		},
		[]string{"stage"},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "browseback_tick_duration_seconds",
			Help:    "Time spent in a usage tracker tick",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "browseback_notifications_total",
			Help: "Goal-exceeded notifications shown",
		},
		[]string{"domain"},
	)

	UsageMinutesTracked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "browseback_usage_minutes_tracked_total",
			Help: "Minutes added to daily usage",
		},
		[]string{"domain"},
	)

	DailyResets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "browseback_daily_resets_total",
			Help: "Day-boundary resets performed",
		},
	)

	// History metrics
	HistoryRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "browseback_history_refresh_total",
			Help: "History snapshot refreshes by result",
		},
		[]string{"result"},
	)

	HistoryVisits = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "browseback_history_visits",
			Help: "Visits in the latest history snapshot",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "browseback_api_requests_total",
			Help: "Local API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "browseback_api_request_duration_seconds",
			Help:    "Local API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		TickErrors,
		TickDuration,
		NotificationsTotal,
		UsageMinutesTracked,
		DailyResets,
		HistoryRefreshTotal,
		HistoryVisits,
		APIRequestsTotal,
		APIRequestDuration,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // set when systemd hands us the socket
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server in the background
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop shuts the metrics server down
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Shutdown(ctx)
}
