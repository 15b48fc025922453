// Package transport is the HTTP glue around the token round-trip: it reads
// the inbound log token, opens a turn on every registered component cache,
// runs the wrapped handler, then commits watermarks and writes the outbound
// token. The token travels in a cookie by default; any header-like channel
// works, the rest of the module treats it as an opaque string.
package transport

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	iq "github.com/AppSecAI-TEST/invalidationqueue"
	"github.com/AppSecAI-TEST/invalidationqueue/event"
	"github.com/AppSecAI-TEST/invalidationqueue/ilog"
)

// DefaultCookieName names the log token cookie.
const DefaultCookieName = "invalidationqueue"

// Channel reads and writes the opaque token at the HTTP boundary.
type Channel interface {
	// Read extracts the inbound token; ok is false when none was sent.
	Read(r *http.Request) (token string, ok bool)
	// Write emits the outbound token onto the response headers. It is
	// called before any of the response body is written.
	Write(w http.ResponseWriter, token string)
}

// CookieChannel carries the token in an HttpOnly cookie.
type CookieChannel struct {
	Name string // "" => DefaultCookieName
}

func (c CookieChannel) name() string {
	if c.Name != "" {
		return c.Name
	}
	return DefaultCookieName
}

func (c CookieChannel) Read(r *http.Request) (string, bool) {
	ck, err := r.Cookie(c.name())
	if err != nil {
		return "", false
	}
	return ck.Value, true
}

func (c CookieChannel) Write(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
}

// HeaderChannel carries the token in a request/response header, for callers
// that are not browsers.
type HeaderChannel struct {
	Name string
}

func (c HeaderChannel) Read(r *http.Request) (string, bool) {
	v := r.Header.Get(c.Name)
	return v, v != ""
}

func (c HeaderChannel) Write(w http.ResponseWriter, token string) {
	w.Header().Set(c.Name, token)
}

// Options configure the lifecycle handler.
type Options struct {
	// Registry decodes inbound log tokens. Required.
	Registry *event.Registry
	// Caches are begun/ended around every request.
	Caches []*iq.Cache
	// SessionID yields the session id for the request, e.g. from a
	// session.Store-backed cookie. Errors reject the request: a session
	// token that fails authentication must not fall back to a fresh
	// session. Required.
	SessionID func(r *http.Request) (string, error)
	// Channel transports the log token. Defaults to CookieChannel{}.
	Channel Channel
	// Logger receives diagnostics; nil disables logging.
	Logger iq.Logger
}

// Handler drives one session turn per request.
type Handler struct {
	next      http.Handler
	reg       *event.Registry
	caches    []*iq.Cache
	sessionID func(*http.Request) (string, error)
	channel   Channel
	log       iq.Logger
}

func NewHandler(next http.Handler, opts Options) (*Handler, error) {
	if next == nil {
		return nil, errNilNext
	}
	if opts.Registry == nil {
		return nil, errNilRegistry
	}
	if opts.SessionID == nil {
		return nil, errNilSessionID
	}
	h := &Handler{
		next:      next,
		reg:       opts.Registry,
		caches:    opts.Caches,
		sessionID: opts.SessionID,
	}
	if opts.Channel != nil {
		h.channel = opts.Channel
	} else {
		h.channel = CookieChannel{}
	}
	if opts.Logger != nil {
		h.log = opts.Logger
	} else {
		h.log = iq.NopLogger{}
	}
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// An unparsable log token only costs invalidation precision, so it
	// fails open to a fresh log. The session id is different: it is
	// authenticated, and SessionID errors reject the request.
	var log *ilog.Log
	if token, ok := h.channel.Read(r); ok {
		var err error
		log, err = ilog.Decode(h.reg, token)
		if err != nil {
			h.log.Warn("inbound log token unparsable; starting fresh", iq.Fields{"err": err})
			log = nil
		}
	}
	if log == nil {
		log = ilog.New(h.reg)
	}

	sid, err := h.sessionID(r)
	if err != nil {
		h.log.Warn("session rejected", iq.Fields{"err": err})
		http.Error(w, "invalid session", http.StatusBadRequest)
		return
	}

	turns := make(map[string]*iq.Turn, len(h.caches))
	for _, c := range h.caches {
		turn, err := c.Begin(r.Context(), sid, log)
		if err != nil {
			h.log.Error("begin failed", iq.Fields{"component": c.Component(), "err": err})
			http.Error(w, "cache unavailable", http.StatusInternalServerError)
			return
		}
		turns[c.Component()] = turn
	}

	// The body is buffered so the outbound token can still be attached to
	// the headers after the handler has run.
	bw := &bufferedWriter{rw: w}
	ctx := context.WithValue(r.Context(), turnsKey{}, turns)
	ctx = context.WithValue(ctx, logKey{}, log)
	h.next.ServeHTTP(bw, r.WithContext(ctx))

	for _, turn := range turns {
		turn.End()
	}
	if log.Modified() {
		h.channel.Write(w, log.Encode())
	}
	bw.flush()
}

var (
	errNilNext      = errors.New("transport: next handler is required")
	errNilRegistry  = errors.New("transport: event registry is required")
	errNilSessionID = errors.New("transport: SessionID is required")
)

type (
	turnsKey struct{}
	logKey   struct{}
)

// TurnFor returns the request's turn for the named component cache.
func TurnFor(ctx context.Context, component string) (*iq.Turn, bool) {
	turns, _ := ctx.Value(turnsKey{}).(map[string]*iq.Turn)
	t, ok := turns[component]
	return t, ok
}

// LogFrom returns the request's event log, for handlers that append events.
func LogFrom(ctx context.Context) (*ilog.Log, bool) {
	log, ok := ctx.Value(logKey{}).(*ilog.Log)
	return log, ok
}

// bufferedWriter delays status and body until flush. Headers pass through to
// the underlying writer's header map, which is not sent until then.
type bufferedWriter struct {
	rw     http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header { return b.rw.Header() }

func (b *bufferedWriter) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedWriter) flush() {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	b.rw.WriteHeader(b.status)
	if b.body.Len() > 0 {
		_, _ = b.rw.Write(b.body.Bytes())
	}
}
