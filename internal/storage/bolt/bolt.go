package bolt

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/goodtune/browseback/internal/storage"
	"go.etcd.io/bbolt"
)

const bucketState = "state"

// Store implements storage.KeyValueStore using bbolt. Change notifications
// are delivered in-process only.
type Store struct {
	db        *bbolt.DB
	listeners storage.Listeners
}

var _ storage.KeyValueStore = (*Store)(nil)

// Open opens a BoltDB-backed store.
func Open(path string) (*Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return storage.EnsureDir(dir)
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketState)); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketState, err)
		}
		return nil
	})
}

// Close closes the underlying store database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get implements storage.KeyValueStore.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketState))
		if b == nil {
			return storage.ErrNotFound
		}
		value := b.Get([]byte(key))
		if value == nil {
			return storage.ErrNotFound
		}
		// value is only valid inside the transaction
		out = append([]byte(nil), value...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Set implements storage.KeyValueStore.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketState))
		if b == nil {
			return fmt.Errorf("bucket missing: %s", bucketState)
		}
		return b.Put([]byte(key), value)
	})
	if err != nil {
		return err
	}
	s.listeners.Notify(key)
	return nil
}

// Update implements storage.KeyValueStore inside a single write
// transaction; bbolt allows one writer at a time.
func (s *Store) Update(ctx context.Context, key string, fn func([]byte) ([]byte, error)) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketState))
		if b == nil {
			return fmt.Errorf("bucket missing: %s", bucketState)
		}

		var current []byte
		if value := b.Get([]byte(key)); value != nil {
			current = append([]byte(nil), value...)
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), next)
	})
	if err != nil {
		return err
	}
	s.listeners.Notify(key)
	return nil
}

// Subscribe implements storage.KeyValueStore. Callbacks run on the writer's
// goroutine after the transaction commits.
func (s *Store) Subscribe(ctx context.Context, key string, fn func()) (func(), error) {
	remove := s.listeners.Add(key, fn)
	stop := context.AfterFunc(ctx, remove)
	return func() {
		stop()
		remove()
	}, nil
}

// Keys returns every stored key, for diagnostics.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	keys := make([]string, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketState))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
