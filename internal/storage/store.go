package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Logical keys holding the persisted state.
const (
	KeyGoals           = "goals"
	KeyDailyUsage      = "daily-usage"
	KeyDayMarker       = "day-marker"
	KeyNotificationLog = "notification-log"
	KeyAllowList       = "allow-list"
	KeyIgnoreList      = "ignore-list"
	KeyWeeklyHistory   = "weekly-history"
	KeyTimeRange       = "time-range"
)

// Keys lists every logical key.
var Keys = []string{
	KeyGoals,
	KeyDailyUsage,
	KeyDayMarker,
	KeyNotificationLog,
	KeyAllowList,
	KeyIgnoreList,
	KeyWeeklyHistory,
	KeyTimeRange,
}

// KeyValueStore is the root storage interface. Values are opaque bytes;
// State layers typed JSON accessors on top.
type KeyValueStore interface {
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error

	// Update atomically replaces the value of key with the result of fn.
	// fn receives nil when the key is absent. If fn returns an error
	// nothing is written and the error is returned.
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error

	// Subscribe calls fn after every change to key, until the returned
	// cancel function is called or ctx is done.
	Subscribe(ctx context.Context, key string, fn func()) (func(), error)

	Close() error
}
