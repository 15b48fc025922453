// Package redis backs the entry cache's storage mechanism with Redis, giving
// cached entries a home that survives handler restarts and is visible to
// every replica in the fleet.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/AppSecAI-TEST/invalidationqueue/storage"
)

var ErrNilClient = errors.New("redis storage: nil client")

type Store struct {
	rdb         goredis.UniversalClient
	ttl         time.Duration
	closeClient bool
}

var _ storage.Store = (*Store)(nil)

type Config struct {
	Client goredis.UniversalClient
	// TTL bounds how long entries live. 0 means no expiry; since entries
	// are session-scoped cache values, a TTL around the session lifetime
	// keeps the keyspace from growing without bound.
	TTL time.Duration
	// CloseClient should be true only if this store exclusively owns the client.
	CloseClient bool
}

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Store{rdb: cfg.Client, ttl: cfg.TTL, closeClient: cfg.CloseClient}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Store) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
