package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/goodtune/browseback/internal/domain"
	"github.com/goodtune/browseback/internal/report"
	"github.com/goodtune/browseback/internal/storage"
	"github.com/gorilla/mux"
)

type activeTabRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleReportActiveTab(w http.ResponseWriter, r *http.Request) {
	var req activeTabRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.URL == "" {
		s.deps.Beacon.Clear()
	} else {
		s.deps.Beacon.Report(req.URL)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearActiveTab(w http.ResponseWriter, r *http.Request) {
	s.deps.Beacon.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// handleReport returns the usage report for ?days=N, or for the stored time
// range when days is absent. ?limit=N trims the entry list.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	var days int
	if raw := query.Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	} else {
		n, err := s.deps.State.TimeRange(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to read time range")
			writeError(w, http.StatusInternalServerError, "Failed to read time range")
			return
		}
		days = n
	}

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	rep, err := s.buildReport(r, days)
	if err != nil {
		s.logger.Error().Err(err).Int("days", days).Msg("Failed to build report")
		writeError(w, http.StatusInternalServerError, "Failed to build report")
		return
	}

	rep.Entries = rep.Top(limit)
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) buildReport(r *http.Request, days int) (report.Report, error) {
	now := s.now()
	if cached, ok := s.cache.Get(days); ok && now.Sub(cached.builtAt) < s.config.CacheTTL {
		return cached.report, nil
	}

	ctx := r.Context()
	visits, err := s.deps.State.WeeklyHistory(ctx)
	if err != nil {
		return report.Report{}, err
	}
	ignored, err := s.deps.State.IgnoreList(ctx)
	if err != nil {
		return report.Report{}, err
	}

	rep := s.deps.Adapter.Build(visits, report.Options{Days: days, Exclude: ignored})
	s.cache.Add(days, cachedReport{report: rep, builtAt: now})
	return rep, nil
}

type timeRangeRequest struct {
	Days int `json:"days"`
}

func (s *Server) handleGetTimeRange(w http.ResponseWriter, r *http.Request) {
	days, err := s.deps.State.TimeRange(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read time range")
		writeError(w, http.StatusInternalServerError, "Failed to read time range")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":   days,
		"ranges": report.Ranges,
	})
}

func (s *Server) handleSetTimeRange(w http.ResponseWriter, r *http.Request) {
	var req timeRangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Days < 1 {
		writeError(w, http.StatusBadRequest, "days must be at least 1")
		return
	}

	if err := s.deps.State.SetTimeRange(r.Context(), req.Days); err != nil {
		s.logger.Error().Err(err).Msg("Failed to store time range")
		writeError(w, http.StatusInternalServerError, "Failed to store time range")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"days": req.Days})
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.deps.State.Goals(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list goals")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve goals")
		return
	}
	if goals == nil {
		goals = storage.Goals{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"goals": goals,
		"count": len(goals),
	})
}

// goalRequest sets a limit either directly in milliseconds or as a total
// number of hours spread over a number of days.
type goalRequest struct {
	Limit *int64   `json:"limit,omitempty"`
	Hours *float64 `json:"hours,omitempty"`
	Days  int      `json:"days,omitempty"`
}

func (req goalRequest) limit() (time.Duration, error) {
	switch {
	case req.Limit != nil && req.Hours != nil:
		return 0, errors.New("set either limit or hours, not both")
	case req.Limit != nil:
		if *req.Limit < 0 {
			return 0, errors.New("limit must not be negative")
		}
		return time.Duration(*req.Limit) * time.Millisecond, nil
	case req.Hours != nil:
		if *req.Hours < 0 {
			return 0, errors.New("hours must not be negative")
		}
		if req.Days < 0 {
			return 0, errors.New("days must not be negative")
		}
		return report.DailyLimit(*req.Hours, req.Days), nil
	default:
		return 0, errors.New("limit or hours is required")
	}
}

func (s *Server) handleSetGoal(w http.ResponseWriter, r *http.Request) {
	name := domain.Normalize(mux.Vars(r)["domain"])
	if name == "" {
		writeError(w, http.StatusBadRequest, "Domain is required")
		return
	}

	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	limit, err := req.limit()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	goal := storage.Goal{DomainName: name, Limit: limit}
	err = s.deps.State.UpdateGoals(r.Context(), func(goals storage.Goals) (storage.Goals, error) {
		return goals.Upsert(goal), nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("domain", name).Msg("Failed to store goal")
		writeError(w, http.StatusInternalServerError, "Failed to store goal")
		return
	}

	if limit <= 0 {
		s.logger.Info().Str("domain", name).Msg("Goal removed")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.logger.Info().Str("domain", name).Dur("limit", limit).Msg("Goal set")
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	name := domain.Normalize(mux.Vars(r)["domain"])

	err := s.deps.State.UpdateGoals(r.Context(), func(goals storage.Goals) (storage.Goals, error) {
		if _, ok := goals.Find(name); !ok {
			return nil, storage.ErrNotFound
		}
		return goals.Remove(name), nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Goal not found")
			return
		}
		s.logger.Error().Err(err).Str("domain", name).Msg("Failed to delete goal")
		writeError(w, http.StatusInternalServerError, "Failed to delete goal")
		return
	}

	s.logger.Info().Str("domain", name).Msg("Goal removed")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUsageToday(w http.ResponseWriter, r *http.Request) {
	progress, err := s.deps.Tracker.Today(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read today's usage")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve usage")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"goals": progress,
		"count": len(progress),
	})
}

// handleCheck explains what a tick would do for ?url=. Nothing is written.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	check, err := s.deps.Tracker.Explain(r.Context(), rawURL)
	if err != nil {
		s.logger.Error().Err(err).Str("url", rawURL).Msg("Failed to evaluate URL")
		writeError(w, http.StatusInternalServerError, "Failed to evaluate URL")
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	entries := s.deps.Feed.List(r.URL.Query().Get("after"))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": entries,
		"count":         len(entries),
	})
}
