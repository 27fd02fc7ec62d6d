package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goodtune/browseback/internal/domain"
	"github.com/goodtune/browseback/internal/history"
)

// DefaultTimeRange is the report window, in days, used until the user
// picks another.
const DefaultTimeRange = 1

// State provides typed access to the persisted keys. Missing keys read as
// their zero value.
type State struct {
	kv KeyValueStore
}

// NewState wraps a key-value store.
func NewState(kv KeyValueStore) *State {
	return &State{kv: kv}
}

// Store returns the underlying key-value store.
func (s *State) Store() KeyValueStore {
	return s.kv
}

// Subscribe forwards to the underlying store.
func (s *State) Subscribe(ctx context.Context, key string, fn func()) (func(), error) {
	return s.kv.Subscribe(ctx, key, fn)
}

func (s *State) load(ctx context.Context, key string, dst any) (bool, error) {
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *State) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// update runs a typed read-modify-write through KeyValueStore.Update.
func update[T any](ctx context.Context, kv KeyValueStore, key string, fn func(T) (T, error)) error {
	err := kv.Update(ctx, key, func(current []byte) ([]byte, error) {
		var v T
		if current != nil {
			if err := json.Unmarshal(current, &v); err != nil {
				return nil, fmt.Errorf("decode %s: %w", key, err)
			}
		}
		next, err := fn(v)
		if err != nil {
			return nil, err
		}
		return json.Marshal(next)
	})
	if err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}
	return nil
}

// Goals returns the configured goals.
func (s *State) Goals(ctx context.Context) (Goals, error) {
	var goals Goals
	if _, err := s.load(ctx, KeyGoals, &goals); err != nil {
		return nil, err
	}
	return goals, nil
}

// SetGoals replaces the goal list.
func (s *State) SetGoals(ctx context.Context, goals Goals) error {
	if goals == nil {
		goals = Goals{}
	}
	return s.save(ctx, KeyGoals, goals)
}

// UpdateGoals atomically modifies the goal list.
func (s *State) UpdateGoals(ctx context.Context, fn func(Goals) (Goals, error)) error {
	return update(ctx, s.kv, KeyGoals, func(goals Goals) (Goals, error) {
		next, err := fn(goals)
		if next == nil {
			next = Goals{}
		}
		return next, err
	})
}

// DailyUsage returns today's tracked usage.
func (s *State) DailyUsage(ctx context.Context) (DailyUsage, error) {
	usage := DailyUsage{}
	if _, err := s.load(ctx, KeyDailyUsage, &usage); err != nil {
		return nil, err
	}
	return usage, nil
}

// SetDailyUsage replaces today's tracked usage.
func (s *State) SetDailyUsage(ctx context.Context, usage DailyUsage) error {
	if usage == nil {
		usage = DailyUsage{}
	}
	return s.save(ctx, KeyDailyUsage, usage)
}

// DayMarker returns the day-boundary marker. The zero marker means no reset
// has ever happened.
func (s *State) DayMarker(ctx context.Context) (DayMarker, error) {
	var marker DayMarker
	if _, err := s.load(ctx, KeyDayMarker, &marker); err != nil {
		return DayMarker{}, err
	}
	return marker, nil
}

// SetDayMarker stores the day-boundary marker.
func (s *State) SetDayMarker(ctx context.Context, marker DayMarker) error {
	return s.save(ctx, KeyDayMarker, marker)
}

// NotificationLog returns the goal notification log.
func (s *State) NotificationLog(ctx context.Context) (NotificationLog, error) {
	log := NotificationLog{}
	if _, err := s.load(ctx, KeyNotificationLog, &log); err != nil {
		return nil, err
	}
	return log, nil
}

// SetNotificationLog replaces the goal notification log.
func (s *State) SetNotificationLog(ctx context.Context, log NotificationLog) error {
	if log == nil {
		log = NotificationLog{}
	}
	return s.save(ctx, KeyNotificationLog, log)
}

// List returns a domain list stored under key (KeyAllowList or KeyIgnoreList).
func (s *State) List(ctx context.Context, key string) (domain.Set, error) {
	var items []string
	if _, err := s.load(ctx, key, &items); err != nil {
		return nil, err
	}
	return domain.NewSet(items...), nil
}

// UpdateList atomically modifies a domain list.
func (s *State) UpdateList(ctx context.Context, key string, fn func(domain.Set) error) error {
	return update(ctx, s.kv, key, func(items []string) ([]string, error) {
		set := domain.NewSet(items...)
		if err := fn(set); err != nil {
			return nil, err
		}
		return set.Slice(), nil
	})
}

// AllowList returns the domains that are never tracked.
func (s *State) AllowList(ctx context.Context) (domain.Set, error) {
	return s.List(ctx, KeyAllowList)
}

// IgnoreList returns the domains hidden from reports.
func (s *State) IgnoreList(ctx context.Context) (domain.Set, error) {
	return s.List(ctx, KeyIgnoreList)
}

// WeeklyHistory returns the latest history snapshot.
func (s *State) WeeklyHistory(ctx context.Context) ([]history.Visit, error) {
	var visits []history.Visit
	if _, err := s.load(ctx, KeyWeeklyHistory, &visits); err != nil {
		return nil, err
	}
	return visits, nil
}

// SaveWeeklyHistory replaces the history snapshot.
func (s *State) SaveWeeklyHistory(ctx context.Context, visits []history.Visit) error {
	if visits == nil {
		visits = []history.Visit{}
	}
	return s.save(ctx, KeyWeeklyHistory, visits)
}

// TimeRange returns the selected report window in days.
func (s *State) TimeRange(ctx context.Context) (int, error) {
	var days int
	found, err := s.load(ctx, KeyTimeRange, &days)
	if err != nil {
		return 0, err
	}
	if !found || days < 1 {
		return DefaultTimeRange, nil
	}
	return days, nil
}

// SetTimeRange stores the selected report window.
func (s *State) SetTimeRange(ctx context.Context, days int) error {
	if days < 1 {
		return fmt.Errorf("time range must be at least 1 day, got %d", days)
	}
	return s.save(ctx, KeyTimeRange, days)
}
