// Package ristretto adapts dgraph-io/ristretto as an in-process storage
// mechanism. Ristretto admits writes probabilistically and evicts by cost,
// both of which surface to the entry cache as ordinary misses.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/AppSecAI-TEST/invalidationqueue/storage"
)

type Store struct {
	c   *rc.Cache
	ttl time.Duration
}

var _ storage.Store = (*Store)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
	TTL         time.Duration // per-entry TTL; 0 = no expiry
}

func New(cfg Config) (*Store, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Store{c: c, ttl: cfg.TTL}, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		s.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	// Cost is the payload size; rejected writes are just future misses.
	s.c.SetWithTTL(key, value, int64(len(value)), s.ttl)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.c.Del(key)
	return nil
}

func (s *Store) Close(_ context.Context) error {
	s.c.Wait()
	s.c.Close()
	return nil
}

// Metrics exposes ristretto's metrics when enabled in Config (not part of
// storage.Store).
func (s *Store) Metrics() *rc.Metrics { return s.c.Metrics }
