package invalidationqueue

import (
	"context"
	"reflect"
	"time"

	"github.com/AppSecAI-TEST/invalidationqueue/codec"
	"github.com/AppSecAI-TEST/invalidationqueue/event"
	"github.com/AppSecAI-TEST/invalidationqueue/refresh"
	"github.com/AppSecAI-TEST/invalidationqueue/storage"
)

// Entry declares one named, typed cache slot. Declarations are static
// configuration: resolved once before any request, immutable afterwards.
type Entry struct {
	// Name keys the entry in Store/Get/Clear calls. Unique per cache.
	Name string
	// Type is the declared value type. Stored and refreshed values must
	// match it exactly.
	Type reflect.Type
	// Invalidators lists the event kinds that clear this entry.
	Invalidators []event.Kind
	// RefreshID optionally names a refresh source (see package refresh)
	// that produces a value when the entry is absent. Empty means no
	// refresh: absent is then a normal outcome callers must tolerate.
	RefreshID string
}

// EntryOf declares an entry for value type T.
func EntryOf[T any](name string, refreshID string, invalidators ...event.Kind) Entry {
	return Entry{
		Name:         name,
		Type:         reflect.TypeOf((*T)(nil)).Elem(),
		Invalidators: invalidators,
		RefreshID:    refreshID,
	}
}

// Options configure a component's entry cache. Component, Storage, and
// Entries are required; the rest have defaults.
type Options struct {
	// Component names this cache. It doubles as the log consumer name and
	// as part of storage keys, so it must match [a-zA-Z0-9]+.
	Component string
	// Storage is the (lossy) key-value store entries live in.
	Storage storage.Store
	// Entries declares every slot this cache may hold.
	Entries []Entry

	// Codec serializes non-string entry values. Defaults to JSON.
	Codec codec.Untyped
	// Refreshers resolves Entry.RefreshID values. Required only when some
	// entry declares one; resolution is checked in New.
	Refreshers *refresh.Registry
	// RefreshTimeout bounds each refresh source call. 0 => no timeout.
	RefreshTimeout time.Duration
	// MaxEntryBytes rejects stored payloads larger than this at decode
	// time, guarding against oversized values in a shared store. 0 => no
	// limit.
	MaxEntryBytes int
	// Logger receives diagnostics; nil disables logging.
	Logger Logger
}

// New builds a component entry cache from opts. The returned Cache holds no
// per-session state: call Begin at the start of each request to obtain the
// request-scoped Turn.
func New(opts Options) (*Cache, error) {
	return newCache(opts)
}

// GetEntry is a typed convenience wrapper around Turn.Get.
func GetEntry[T any](ctx context.Context, t *Turn, name string) (T, bool, error) {
	v, ok, err := t.Get(ctx, name)
	if !ok || v == nil {
		var zero T
		return zero, ok, err
	}
	typed, isT := v.(T)
	if !isT {
		var zero T
		return zero, false, &TypeMismatchError{
			Name: name,
			Want: reflect.TypeOf((*T)(nil)).Elem(),
			Got:  reflect.TypeOf(v),
		}
	}
	return typed, ok, err
}
