package invalidationqueue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/AppSecAI-TEST/invalidationqueue/event"
	"github.com/AppSecAI-TEST/invalidationqueue/ilog"
	"github.com/AppSecAI-TEST/invalidationqueue/refresh"
	"github.com/AppSecAI-TEST/invalidationqueue/storage"
)

type balance struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

var testEvents = event.MustRegistry("BalancesChanged", "PayeesChanged")

func mustKind(t *testing.T, name string) event.Kind {
	t.Helper()
	k, ok := testEvents.KindByName(name)
	if !ok {
		t.Fatalf("kind %q not registered", name)
	}
	return k
}

func newTestCache(t *testing.T, store storage.Store, optFn func(*Options)) *Cache {
	t.Helper()
	opts := Options{
		Component: "accounts",
		Storage:   store,
		Entries: []Entry{
			EntryOf[balance]("balance", "", mustKind(t, "BalancesChanged")),
			EntryOf[string]("greeting", ""),
		},
	}
	if optFn != nil {
		optFn(&opts)
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func beginTurn(t *testing.T, c *Cache, log *ilog.Log) *Turn {
	t.Helper()
	turn, err := c.Begin(context.Background(), "sess1", log)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	return turn
}

// ==============================
// Construction
// ==============================

func TestNewValidatesOptions(t *testing.T) {
	store := storage.NewMemory(0)
	base := func() Options {
		return Options{
			Component: "accounts",
			Storage:   store,
			Entries:   []Entry{EntryOf[string]("greeting", "")},
		}
	}

	bad := []struct {
		name   string
		mutate func(*Options)
	}{
		{"bad component name", func(o *Options) { o.Component = "has space" }},
		{"nil storage", func(o *Options) { o.Storage = nil }},
		{"no entries", func(o *Options) { o.Entries = nil }},
		{"duplicate entry", func(o *Options) {
			o.Entries = append(o.Entries, EntryOf[string]("greeting", ""))
		}},
		{"refresh without registry", func(o *Options) {
			o.Entries = []Entry{EntryOf[string]("greeting", "fetchGreeting")}
		}},
		{"unresolvable refresh id", func(o *Options) {
			o.Entries = []Entry{EntryOf[string]("greeting", "fetchGreeting")}
			o.Refreshers = refresh.NewRegistry()
		}},
	}
	for _, tc := range bad {
		opts := base()
		tc.mutate(&opts)
		if _, err := New(opts); err == nil {
			t.Fatalf("%s: New should fail", tc.name)
		}
	}
}

// ==============================
// Store / Get / Clear
// ==============================

func TestStoreGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory(0)
	c := newTestCache(t, store, nil)
	turn := beginTurn(t, c, ilog.New(testEvents))

	v := balance{Amount: "100.00", Currency: "USD"}
	if err := turn.Store(ctx, "balance", v); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, ok, err := turn.Get(ctx, "balance")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.(balance) != v {
		t.Fatalf("Get = %v, want %v", got, v)
	}

	if err := turn.Clear(ctx, "balance"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, err := turn.Get(ctx, "balance"); err != nil || ok {
		t.Fatalf("Get after Clear: ok=%v err=%v", ok, err)
	}
}

// TestStringEntriesPassThrough: string values are stored verbatim, not
// JSON-quoted.
func TestStringEntriesPassThrough(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory(0)
	c := newTestCache(t, store, nil)
	turn := beginTurn(t, c, ilog.New(testEvents))

	if err := turn.Store(ctx, "greeting", "hello"); err != nil {
		t.Fatalf("Store: %v", err)
	}
	raw, ok, err := store.Get(ctx, "sess1:accounts:greeting")
	if err != nil || !ok {
		t.Fatalf("raw read: ok=%v err=%v", ok, err)
	}
	if string(raw) != "hello" {
		t.Fatalf("stored bytes = %q, want raw string", raw)
	}
	got, ok, err := turn.Get(ctx, "greeting")
	if err != nil || !ok || got.(string) != "hello" {
		t.Fatalf("Get: %v %v %v", got, ok, err)
	}
}

func TestUnknownEntry(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, storage.NewMemory(0), nil)
	turn := beginTurn(t, c, ilog.New(testEvents))

	var unknownErr *UnknownEntryError
	if err := turn.Store(ctx, "nope", "x"); !errors.As(err, &unknownErr) {
		t.Fatalf("Store unknown: %v", err)
	}
	if _, _, err := turn.Get(ctx, "nope"); !errors.As(err, &unknownErr) {
		t.Fatalf("Get unknown: %v", err)
	}
	if err := turn.Clear(ctx, "nope"); !errors.As(err, &unknownErr) {
		t.Fatalf("Clear unknown: %v", err)
	}
}

// TestTypeMismatchWritesNothing: a wrongly typed value is rejected before any
// storage write happens.
func TestTypeMismatchWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory(0)
	c := newTestCache(t, store, nil)
	turn := beginTurn(t, c, ilog.New(testEvents))

	var mismatch *TypeMismatchError
	if err := turn.Store(ctx, "balance", "not a balance"); !errors.As(err, &mismatch) {
		t.Fatalf("Store: err = %v, want *TypeMismatchError", err)
	}
	if _, ok, _ := store.Get(ctx, "sess1:accounts:balance"); ok {
		t.Fatalf("mismatch must not write to storage")
	}
}

// TestGetDecodeError: stored bytes that don't match the declared shape
// surface as *DecodeError.
func TestGetDecodeError(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory(0)
	c := newTestCache(t, store, nil)
	turn := beginTurn(t, c, ilog.New(testEvents))

	if err := store.Put(ctx, "sess1:accounts:balance", []byte("not json")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	var decodeErr *DecodeError
	if _, _, err := turn.Get(ctx, "balance"); !errors.As(err, &decodeErr) {
		t.Fatalf("Get: err = %v, want *DecodeError", err)
	}
}

// TestAbsentWithoutRefreshIsNotAnError: a miss on a refresh-less entry is a
// normal outcome.
func TestAbsentWithoutRefreshIsNotAnError(t *testing.T) {
	c := newTestCache(t, storage.NewMemory(0), nil)
	turn := beginTurn(t, c, ilog.New(testEvents))

	v, ok, err := turn.Get(context.Background(), "balance")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok || v != nil {
		t.Fatalf("expected clean miss, got %v", v)
	}
}

// ==============================
// Refresh sources
// ==============================

func refreshedCache(t *testing.T, store storage.Store, calls *int) *Cache {
	t.Helper()
	reg := refresh.NewRegistry()
	err := reg.Register("fetchBalance", func(context.Context) (any, error) {
		*calls++
		return balance{Amount: "100.00", Currency: "USD"}, nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return newTestCache(t, store, func(o *Options) {
		o.Entries = []Entry{
			EntryOf[balance]("balance", "fetchBalance", mustKind(t, "BalancesChanged")),
		}
		o.Refreshers = reg
	})
}

// TestRefreshThenCache: the first Get invokes the source and caches the
// value; the second is served from storage without another invocation.
func TestRefreshThenCache(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory(0)
	calls := 0
	c := refreshedCache(t, store, &calls)
	turn := beginTurn(t, c, ilog.New(testEvents))

	v, ok, err := turn.Get(ctx, "balance")
	if err != nil || !ok {
		t.Fatalf("first Get: ok=%v err=%v", ok, err)
	}
	if v.(balance).Amount != "100.00" {
		t.Fatalf("refreshed value = %v", v)
	}
	if calls != 1 {
		t.Fatalf("refresh calls = %d, want 1", calls)
	}

	if _, ok, err := turn.Get(ctx, "balance"); err != nil || !ok {
		t.Fatalf("second Get: ok=%v err=%v", ok, err)
	}
	if calls != 1 {
		t.Fatalf("second Get re-invoked refresh (%d calls)", calls)
	}
}

func TestRefreshFailed(t *testing.T) {
	reg := refresh.NewRegistry()
	if err := reg.Register("fetchBalance", func(context.Context) (any, error) {
		return nil, fmt.Errorf("backend down")
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	c := newTestCache(t, storage.NewMemory(0), func(o *Options) {
		o.Entries = []Entry{EntryOf[balance]("balance", "fetchBalance")}
		o.Refreshers = reg
	})
	turn := beginTurn(t, c, ilog.New(testEvents))

	var failed *RefreshFailedError
	if _, _, err := turn.Get(context.Background(), "balance"); !errors.As(err, &failed) {
		t.Fatalf("err = %v, want *RefreshFailedError", err)
	}
}

func TestRefreshTypeMismatch(t *testing.T) {
	reg := refresh.NewRegistry()
	if err := reg.Register("fetchBalance", func(context.Context) (any, error) {
		return "wrong type", nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	c := newTestCache(t, storage.NewMemory(0), func(o *Options) {
		o.Entries = []Entry{EntryOf[balance]("balance", "fetchBalance")}
		o.Refreshers = reg
	})
	turn := beginTurn(t, c, ilog.New(testEvents))

	var mismatch *RefreshTypeMismatchError
	if _, _, err := turn.Get(context.Background(), "balance"); !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want *RefreshTypeMismatchError", err)
	}
}

// failingPutStore misses every read and rejects every write.
type failingPutStore struct{ storage.Store }

func (f failingPutStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}
func (f failingPutStore) Put(context.Context, string, []byte) error {
	return fmt.Errorf("storage unavailable")
}

// TestRefreshWriteBackFailure: when only the write-back fails, the refreshed
// value is still returned alongside *CacheWriteFailedError.
func TestRefreshWriteBackFailure(t *testing.T) {
	calls := 0
	c := refreshedCache(t, failingPutStore{storage.NewMemory(0)}, &calls)
	turn := beginTurn(t, c, ilog.New(testEvents))

	v, ok, err := turn.Get(context.Background(), "balance")
	var writeFailed *CacheWriteFailedError
	if !errors.As(err, &writeFailed) {
		t.Fatalf("err = %v, want *CacheWriteFailedError", err)
	}
	if !ok || v.(balance).Amount != "100.00" {
		t.Fatalf("refreshed value must still be returned, got ok=%v v=%v", ok, v)
	}
}

func TestRefreshTimeout(t *testing.T) {
	reg := refresh.NewRegistry()
	if err := reg.Register("fetchBalance", func(ctx context.Context) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return balance{}, nil
		}
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	c := newTestCache(t, storage.NewMemory(0), func(o *Options) {
		o.Entries = []Entry{EntryOf[balance]("balance", "fetchBalance")}
		o.Refreshers = reg
		o.RefreshTimeout = 10 * time.Millisecond
	})
	turn := beginTurn(t, c, ilog.New(testEvents))

	var failed *RefreshFailedError
	if _, _, err := turn.Get(context.Background(), "balance"); !errors.As(err, &failed) {
		t.Fatalf("err = %v, want *RefreshFailedError", err)
	}
}

// ==============================
// Invalidation cycle
// ==============================

// TestInvalidationCycle walks the full loop: cache a value, append the
// invalidating event, and watch the next turn clear the entry and re-refresh.
func TestInvalidationCycle(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory(0)
	calls := 0
	c := refreshedCache(t, store, &calls)
	log := ilog.New(testEvents)

	// Turn 1: refresh populates the cache.
	turn := beginTurn(t, c, log)
	if _, ok, err := turn.Get(ctx, "balance"); err != nil || !ok {
		t.Fatalf("turn 1 Get: ok=%v err=%v", ok, err)
	}
	if calls != 1 {
		t.Fatalf("turn 1 refresh calls = %d", calls)
	}
	turn.End()

	// Something changes the balances.
	log.Append(mustKind(t, "BalancesChanged"))

	// Round-trip the token like a real request boundary would.
	log2, err := ilog.Decode(testEvents, log.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	// Turn 2: Begin clears the entry, Get refreshes again.
	turn2 := beginTurn(t, c, log2)
	if _, ok, _ := store.Get(ctx, "sess1:accounts:balance"); ok {
		t.Fatalf("entry should have been cleared by Begin")
	}
	if _, ok, err := turn2.Get(ctx, "balance"); err != nil || !ok {
		t.Fatalf("turn 2 Get: ok=%v err=%v", ok, err)
	}
	if calls != 2 {
		t.Fatalf("turn 2 refresh calls = %d, want 2", calls)
	}
	turn2.End()

	// Turn 3: no new events, nothing is cleared, no extra refresh.
	turn3 := beginTurn(t, c, log2)
	if _, ok, err := turn3.Get(ctx, "balance"); err != nil || !ok {
		t.Fatalf("turn 3 Get: ok=%v err=%v", ok, err)
	}
	if calls != 2 {
		t.Fatalf("turn 3 refresh calls = %d, want 2", calls)
	}
}

// TestEventsDuringTurnApplyNextTurn: an event appended mid-request does not
// invalidate until the component's next Begin - End only commits the length
// observed at Begin.
func TestEventsDuringTurnApplyNextTurn(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory(0)
	c := newTestCache(t, store, nil)
	log := ilog.New(testEvents)

	turn := beginTurn(t, c, log)
	v := balance{Amount: "1", Currency: "USD"}
	if err := turn.Store(ctx, "balance", v); err != nil {
		t.Fatalf("Store: %v", err)
	}
	log.Append(mustKind(t, "BalancesChanged")) // arrives mid-turn
	turn.End()

	if got := log.Mark("accounts"); got != 0 {
		t.Fatalf("mark = %d; End must not cover events after Begin", got)
	}

	turn2 := beginTurn(t, c, log)
	if _, ok, _ := store.Get(ctx, "sess1:accounts:balance"); ok {
		t.Fatalf("next Begin should clear the entry")
	}
	turn2.End()
	if got := log.Mark("accounts"); got != 1 {
		t.Fatalf("mark after second turn = %d, want 1", got)
	}
}

// ==============================
// Typed helper
// ==============================

func TestGetEntryTyped(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, storage.NewMemory(0), nil)
	turn := beginTurn(t, c, ilog.New(testEvents))

	want := balance{Amount: "5", Currency: "EUR"}
	if err := turn.Store(ctx, "balance", want); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, ok, err := GetEntry[balance](ctx, turn, "balance")
	if err != nil || !ok || got != want {
		t.Fatalf("GetEntry: %v %v %v", got, ok, err)
	}

	var mismatch *TypeMismatchError
	if _, _, err := GetEntry[string](ctx, turn, "balance"); !errors.As(err, &mismatch) {
		t.Fatalf("GetEntry wrong type: err = %v", err)
	}
}
