package storage

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

// Memory is an in-process Store. Entries expire after TTL when one is set.
// Suitable for tests and single-node deployments; sessions that hop between
// replicas will simply miss, which the entry cache tolerates.
type Memory struct {
	mu  sync.RWMutex
	m   map[string]memEntry
	ttl time.Duration
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-process store. ttl of 0 disables expiry.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{m: make(map[string]memEntry), ttl: ttl}
}

func (s *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		s.mu.Lock()
		delete(s.m, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return e.v, true, nil
}

func (s *Memory) Put(_ context.Context, key string, value []byte) error {
	var exp time.Time
	if s.ttl > 0 {
		exp = time.Now().Add(s.ttl)
	}
	s.mu.Lock()
	s.m[key] = memEntry{v: value, exp: exp}
	s.mu.Unlock()
	return nil
}

func (s *Memory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}

func (s *Memory) Close(context.Context) error { return nil }
