package invalidationqueue

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"time"

	"github.com/AppSecAI-TEST/invalidationqueue/codec"
	"github.com/AppSecAI-TEST/invalidationqueue/event"
	"github.com/AppSecAI-TEST/invalidationqueue/ilog"
	"github.com/AppSecAI-TEST/invalidationqueue/refresh"
	"github.com/AppSecAI-TEST/invalidationqueue/storage"
)

var stringType = reflect.TypeOf("")

var componentNameRe = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Cache is the static half of a component's entry cache: its declarations,
// storage, and codec. It holds no session state and is safe to share across
// concurrent requests; per-request state lives in the Turn returned by Begin.
type Cache struct {
	component      string
	store          storage.Store
	codec          codec.Untyped
	log            Logger
	refreshers     *refresh.Registry
	refreshTimeout time.Duration
	entries        map[string]Entry
}

func newCache(opts Options) (*Cache, error) {
	if !componentNameRe.MatchString(opts.Component) {
		return nil, fmt.Errorf("invalidationqueue: component name %q must match [a-zA-Z0-9]+", opts.Component)
	}
	if opts.Storage == nil {
		return nil, fmt.Errorf("invalidationqueue: storage is required")
	}
	if len(opts.Entries) == 0 {
		return nil, fmt.Errorf("invalidationqueue: at least one entry must be declared")
	}

	c := &Cache{
		component:      opts.Component,
		store:          opts.Storage,
		refreshers:     opts.Refreshers,
		refreshTimeout: opts.RefreshTimeout,
		entries:        make(map[string]Entry, len(opts.Entries)),
	}

	if opts.Codec != nil {
		c.codec = opts.Codec
	} else {
		c.codec = codec.JSONUntyped{}
	}
	if opts.MaxEntryBytes > 0 {
		c.codec = codec.Limit{Inner: c.codec, MaxDecode: opts.MaxEntryBytes}
	}
	if opts.Logger != nil {
		c.log = opts.Logger
	} else {
		c.log = NopLogger{}
	}

	for _, e := range opts.Entries {
		if e.Name == "" {
			return nil, fmt.Errorf("invalidationqueue: entry with empty name")
		}
		if e.Type == nil {
			return nil, fmt.Errorf("invalidationqueue: entry %q has no declared type", e.Name)
		}
		if _, dup := c.entries[e.Name]; dup {
			return nil, fmt.Errorf("invalidationqueue: duplicate entry %q", e.Name)
		}
		if e.RefreshID != "" {
			if c.refreshers == nil {
				return nil, fmt.Errorf("invalidationqueue: entry %q declares refresh source %q but no registry was supplied", e.Name, e.RefreshID)
			}
			if _, ok := c.refreshers.Resolve(e.RefreshID); !ok {
				return nil, &RefreshUnavailableError{Name: e.Name, RefreshID: e.RefreshID}
			}
		}
		c.entries[e.Name] = e
	}
	return c, nil
}

// Component returns the cache's component name.
func (c *Cache) Component() string { return c.component }

// Turn is one request's view of the cache, bound to a single session's event
// log. Create it with Begin, use it from the one goroutine serving the
// request, and finish with End.
type Turn struct {
	c         *Cache
	sessionID string
	log       *ilog.Log
	beginLen  int // log length observed by Begin; committed by End
}

// Begin starts a request turn: it reads the events this component has not
// seen yet and clears every declared entry they invalidate. The component's
// watermark is NOT advanced here - End commits it - so a request that dies
// mid-processing re-applies its events instead of silently skipping them.
//
// A clear failure is returned as an error: proceeding would leave a stale
// value in place while End moves past the event that invalidated it.
func (c *Cache) Begin(ctx context.Context, sessionID string, log *ilog.Log) (*Turn, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("invalidationqueue: empty session id")
	}
	t := &Turn{c: c, sessionID: sessionID, log: log}

	events, mark := log.NewEvents(c.component)
	t.beginLen = mark
	if len(events) == 0 {
		return t, nil
	}
	for _, e := range c.entries {
		if !invalidatedBy(e, events) {
			continue
		}
		if err := t.Clear(ctx, e.Name); err != nil {
			c.log.Error("invalidation clear failed", Fields{"component": c.component, "entry": e.Name, "err": err})
			return nil, err
		}
		c.log.Debug("entry invalidated", Fields{"component": c.component, "entry": e.Name})
	}
	return t, nil
}

func invalidatedBy(e Entry, events map[event.Kind]struct{}) bool {
	for _, k := range e.Invalidators {
		if _, hit := events[k]; hit {
			return true
		}
	}
	return false
}

// End finishes the turn by committing the watermark observed at Begin time.
// Events appended during this request stay pending for the next turn, which
// is when their invalidations will actually be applied.
func (t *Turn) End() {
	t.log.CommitMark(t.c.component, t.beginLen)
}

// Store serializes value and writes it under the entry's storage key.
// The entry must be declared and value's runtime type must match the
// declared type exactly; nothing is written otherwise.
func (t *Turn) Store(ctx context.Context, name string, value any) error {
	meta, ok := t.c.entries[name]
	if !ok {
		return &UnknownEntryError{Component: t.c.component, Name: name}
	}
	got := reflect.TypeOf(value)
	if got != meta.Type {
		return &TypeMismatchError{Name: name, Want: meta.Type, Got: got}
	}

	var raw []byte
	if s, isStr := value.(string); isStr {
		// textual values pass through untouched
		raw = []byte(s)
	} else {
		var err error
		raw, err = t.c.codec.Marshal(value)
		if err != nil {
			return &EncodeError{Name: name, Err: err}
		}
	}
	return t.c.store.Put(ctx, t.storageKey(name), raw)
}

// Clear tombstones the entry, as if it had never been stored.
func (t *Turn) Clear(ctx context.Context, name string) error {
	if _, ok := t.c.entries[name]; !ok {
		return &UnknownEntryError{Component: t.c.component, Name: name}
	}
	return t.c.store.Delete(ctx, t.storageKey(name))
}

// Get reads the entry's current value.
//
// Absent entries without a refresh source return (nil, false, nil): a normal
// outcome, not an error. Absent entries with one invoke it, cache the
// produced value, and return it; if only the write-back fails, the value is
// still returned together with a *CacheWriteFailedError.
func (t *Turn) Get(ctx context.Context, name string) (any, bool, error) {
	meta, ok := t.c.entries[name]
	if !ok {
		return nil, false, &UnknownEntryError{Component: t.c.component, Name: name}
	}

	raw, hit, err := t.c.store.Get(ctx, t.storageKey(name))
	if err != nil {
		// The store is allowed to be lossy; an unreadable entry is a miss.
		t.c.log.Warn("storage read failed", Fields{"component": t.c.component, "entry": name, "err": err})
		hit = false
	}
	if hit {
		v, err := t.decode(meta, raw)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	}

	if meta.RefreshID == "" {
		return nil, false, nil
	}
	return t.refresh(ctx, meta)
}

func (t *Turn) decode(meta Entry, raw []byte) (any, error) {
	if meta.Type == stringType {
		return string(raw), nil
	}
	dst := reflect.New(meta.Type)
	if err := t.c.codec.Unmarshal(raw, dst.Interface()); err != nil {
		return nil, &DecodeError{Name: meta.Name, Err: err}
	}
	return dst.Elem().Interface(), nil
}

func (t *Turn) refresh(ctx context.Context, meta Entry) (any, bool, error) {
	fn, ok := t.c.refreshers.Resolve(meta.RefreshID)
	if !ok {
		return nil, false, &RefreshUnavailableError{Name: meta.Name, RefreshID: meta.RefreshID}
	}
	if t.c.refreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.c.refreshTimeout)
		defer cancel()
	}
	value, err := fn(ctx)
	if err != nil {
		return nil, false, &RefreshFailedError{Name: meta.Name, RefreshID: meta.RefreshID, Err: err}
	}
	if got := reflect.TypeOf(value); got != meta.Type {
		return nil, false, &RefreshTypeMismatchError{Name: meta.Name, RefreshID: meta.RefreshID, Want: meta.Type, Got: got}
	}
	if err := t.Store(ctx, meta.Name, value); err != nil {
		// The read succeeded; only caching it did not.
		t.c.log.Warn("refreshed value not cached", Fields{"component": t.c.component, "entry": meta.Name, "err": err})
		return value, true, &CacheWriteFailedError{Name: meta.Name, Err: err}
	}
	return value, true, nil
}

func (t *Turn) storageKey(name string) string {
	return t.sessionID + ":" + t.c.component + ":" + name
}
