// Package api serves the local HTTP API used by the browser extension and
// the popup: active-tab reports, reports, goals, lists and notifications.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/goodtune/browseback/internal/activetab"
	"github.com/goodtune/browseback/internal/notify"
	"github.com/goodtune/browseback/internal/report"
	"github.com/goodtune/browseback/internal/storage"
	"github.com/goodtune/browseback/internal/usage"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// Config holds the API server configuration.
type Config struct {
	ListenAddr string
	CacheSize  int           // cached reports, keyed by window length
	CacheTTL   time.Duration // how long a cached report may be served
}

// Deps are the components the API exposes.
type Deps struct {
	State   *storage.State
	Tracker *usage.Tracker
	Beacon  *activetab.Beacon
	Adapter *report.Adapter
	Feed    *notify.Feed
}

type cachedReport struct {
	report  report.Report
	builtAt time.Time
}

// Server represents the local API HTTP server.
type Server struct {
	config   Config
	deps     Deps
	cache    *lru.Cache[int, cachedReport]
	server   *http.Server
	router   *mux.Router
	listener net.Listener
	logger   zerolog.Logger
	now      func() time.Time

	mu          sync.Mutex
	unsubscribe []func()
}

// NewServer creates a new API server.
func NewServer(cfg Config, deps Deps, logger zerolog.Logger) (*Server, error) {
	if deps.State == nil || deps.Tracker == nil || deps.Beacon == nil {
		return nil, errors.New("api: state, tracker and beacon are required")
	}
	if deps.Adapter == nil {
		deps.Adapter = report.NewAdapter(nil)
	}
	if deps.Feed == nil {
		deps.Feed = notify.NewFeed(0)
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 16
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}

	cache, err := lru.New[int, cachedReport](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create report cache: %w", err)
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		cache:  cache,
		router: mux.NewRouter(),
		logger: logger.With().Str("component", "api").Logger(),
		now:    time.Now,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/api/active-tab", s.handleReportActiveTab).Methods("POST")
	s.router.HandleFunc("/api/active-tab", s.handleClearActiveTab).Methods("DELETE")

	s.router.HandleFunc("/api/report", s.handleReport).Methods("GET")
	s.router.HandleFunc("/api/time-range", s.handleGetTimeRange).Methods("GET")
	s.router.HandleFunc("/api/time-range", s.handleSetTimeRange).Methods("PUT")

	s.router.HandleFunc("/api/goals", s.handleListGoals).Methods("GET")
	s.router.HandleFunc("/api/goals/{domain}", s.handleSetGoal).Methods("PUT")
	s.router.HandleFunc("/api/goals/{domain}", s.handleDeleteGoal).Methods("DELETE")

	for _, key := range []string{storage.KeyAllowList, storage.KeyIgnoreList} {
		lists := &listHandler{key: key, state: s.deps.State, logger: s.logger}
		s.router.HandleFunc("/api/"+key, lists.List).Methods("GET")
		s.router.HandleFunc("/api/"+key, lists.Add).Methods("POST")
		s.router.HandleFunc("/api/"+key+"/{domain}", lists.Remove).Methods("DELETE")
	}

	s.router.HandleFunc("/api/usage/today", s.handleUsageToday).Methods("GET")
	s.router.HandleFunc("/api/check", s.handleCheck).Methods("GET")
	s.router.HandleFunc("/api/notifications", s.handleNotifications).Methods("GET")
}

// Watch drops cached reports whenever their inputs change. It stays in
// effect until ctx is done or the server is stopped.
func (s *Server) Watch(ctx context.Context) error {
	for _, key := range []string{storage.KeyIgnoreList, storage.KeyWeeklyHistory} {
		key := key
		cancel, err := s.deps.State.Subscribe(ctx, key, func() {
			s.cache.Purge()
			s.logger.Debug().Str("key", key).Msg("Report cache invalidated")
		})
		if err != nil {
			s.stopWatching()
			return fmt.Errorf("subscribe %s: %w", key, err)
		}
		s.mu.Lock()
		s.unsubscribe = append(s.unsubscribe, cancel)
		s.mu.Unlock()
	}
	return nil
}

func (s *Server) stopWatching() {
	s.mu.Lock()
	cancels := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the API server in the background.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting API server")

	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated API listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()

	return nil
}

// Stop gracefully stops the API server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping API server")
	s.stopWatching()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, seenAt, ok := s.deps.Beacon.Snapshot()
	resp := map[string]interface{}{
		"status":    "ok",
		"activeTab": ok,
	}
	if ok {
		resp["activeTabSeenAt"] = seenAt
	}
	writeJSON(w, http.StatusOK, resp)
}
