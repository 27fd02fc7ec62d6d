// Package memory is an in-process storage backend. State does not survive a
// restart; it backs tests and the "memory" storage type.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/goodtune/browseback/internal/storage"
)

var errClosed = errors.New("memory: store closed")

// Store implements storage.KeyValueStore with a mutex-guarded map.
type Store struct {
	mu        sync.Mutex
	data      map[string][]byte
	closed    bool
	listeners storage.Listeners
}

var _ storage.KeyValueStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Get implements storage.KeyValueStore.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errClosed
	}
	v, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(v), nil
}

// Set implements storage.KeyValueStore.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errClosed
	}
	s.data[key] = clone(value)
	s.mu.Unlock()

	s.listeners.Notify(key)
	return nil
}

// Update implements storage.KeyValueStore.
func (s *Store) Update(_ context.Context, key string, fn func([]byte) ([]byte, error)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errClosed
	}
	var current []byte
	if v, ok := s.data[key]; ok {
		current = clone(v)
	}
	next, err := fn(current)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.data[key] = clone(next)
	s.mu.Unlock()

	s.listeners.Notify(key)
	return nil
}

// Subscribe implements storage.KeyValueStore. Callbacks run synchronously on
// the writer's goroutine.
func (s *Store) Subscribe(ctx context.Context, key string, fn func()) (func(), error) {
	remove := s.listeners.Add(key, fn)
	stop := context.AfterFunc(ctx, remove)
	return func() {
		stop()
		remove()
	}, nil
}

// Close implements storage.KeyValueStore.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
