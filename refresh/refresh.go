// Package refresh holds the registry of refresh sources: named zero-argument
// producers the entry cache falls back to when a declared entry is absent.
// The registry is assembled once at startup; resolving an unknown id is a
// typed failure, not a reflective lookup.
package refresh

import (
	"context"
	"fmt"
)

// Func produces a fresh value for a cache entry. The context carries the
// cache's refresh timeout when one is configured.
type Func func(ctx context.Context) (any, error)

// Registry maps refresh-source ids to their producers. Populate it fully
// before serving requests; it is not safe to Register concurrently with
// Resolve.
type Registry struct {
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register binds id to fn. Empty ids, nil funcs, and duplicate registrations
// are configuration errors.
func (r *Registry) Register(id string, fn Func) error {
	if id == "" {
		return fmt.Errorf("refresh: empty id")
	}
	if fn == nil {
		return fmt.Errorf("refresh: nil func for %q", id)
	}
	if _, dup := r.funcs[id]; dup {
		return fmt.Errorf("refresh: duplicate id %q", id)
	}
	r.funcs[id] = fn
	return nil
}

// Resolve returns the producer registered under id.
func (r *Registry) Resolve(id string) (Func, bool) {
	fn, ok := r.funcs[id]
	return fn, ok
}
