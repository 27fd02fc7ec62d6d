package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/browseback/internal/config"
	"github.com/goodtune/browseback/internal/storage"
	"github.com/redis/go-redis/v9"
)

// maxUpdateRetries bounds optimistic-lock retries in Update.
const maxUpdateRetries = 10

// Store implements storage.KeyValueStore using Redis. Every logical key is
// stored under "<prefix>:<key>" and each write publishes the logical key on
// "<prefix>:changed:<key>".
type Store struct {
	client    *redis.Client
	prefix    string
	setScript *redis.Script
}

var _ storage.KeyValueStore = (*Store)(nil)

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Host may already carry a port (e.g. "127.0.0.1:6379")
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return New(client, cfg.KeyPrefix), nil
}

// New wraps an existing client.
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "browseback"
	}
	return &Store{
		client:    client,
		prefix:    prefix,
		setScript: redis.NewScript(setAndPublishScript),
	}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(name string) string {
	return s.prefix + ":" + name
}

func (s *Store) channel(name string) string {
	return s.prefix + ":changed:" + name
}

// Get implements storage.KeyValueStore.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Set implements storage.KeyValueStore.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	keys := []string{s.key(key)}
	args := []interface{}{value, s.channel(key), key}

	if err := s.setScript.Run(ctx, s.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Update implements storage.KeyValueStore with WATCH/MULTI, retrying when
// another client writes the key between the read and the commit.
func (s *Store) Update(ctx context.Context, key string, fn func([]byte) ([]byte, error)) error {
	redisKey := s.key(key)

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, redisKey).Bytes()
		if errors.Is(err, redis.Nil) {
			current = nil
		} else if err != nil {
			return fmt.Errorf("redis get %s: %w", key, err)
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey, next, 0)
			pipe.Publish(ctx, s.channel(key), key)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, redisKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis update %s: gave up after %d conflicting writes", key, maxUpdateRetries)
}

// Subscribe implements storage.KeyValueStore using Redis pub/sub. fn runs on
// a dedicated goroutine.
func (s *Store) Subscribe(ctx context.Context, key string, fn func()) (func(), error) {
	pubsub := s.client.Subscribe(ctx, s.channel(key))

	// Wait for the subscription to be confirmed so that writes made after
	// Subscribe returns are never missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", key, err)
	}

	done := make(chan struct{})
	ch := pubsub.Channel()

	go func() {
		defer func() { _ = pubsub.Close() }()
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return
				}
				fn()
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}
