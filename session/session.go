// Package session carries per-session state through the client instead of
// server memory. A Store seals a typed payload into a tamper-evident ASCII
// token at the end of a request and restores it at the start of the next one;
// the only thing a minimal deployment needs in the payload is the session id
// that keys the entry cache's storage.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/AppSecAI-TEST/invalidationqueue/codec"
	"github.com/AppSecAI-TEST/invalidationqueue/secure"
)

// NewID returns a fresh random session id: 128 bits, base64url, safe for
// cookies and for use inside storage keys.
func NewID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("session: id generation: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}

// Options configure a session store for payload type T.
type Options[T any] struct {
	// Box seals and opens tokens. Required.
	Box *secure.Box
	// Codec serializes the payload. Defaults to CBOR.
	Codec codec.Codec[T]
	// Fresh produces the payload for a brand-new session (no inbound
	// token). Required: a typical Fresh allocates a session id via NewID.
	Fresh func() (T, error)
}

// DecodeError reports a payload that authenticated but could not be decoded.
// It is distinct from secure.ErrTampered: the token is genuine, its contents
// no longer match the payload type, e.g. after a schema change.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "session: payload decode: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// Store opens and seals session state. Stateless and safe for concurrent
// use; all per-session data lives in the State values it returns.
type Store[T any] struct {
	box   *secure.Box
	codec codec.Codec[T]
	fresh func() (T, error)
}

func New[T any](opts Options[T]) (*Store[T], error) {
	if opts.Box == nil {
		return nil, fmt.Errorf("session: secure box is required")
	}
	if opts.Fresh == nil {
		return nil, fmt.Errorf("session: Fresh is required")
	}
	s := &Store[T]{box: opts.Box, fresh: opts.Fresh}
	if opts.Codec != nil {
		s.codec = opts.Codec
	} else {
		c, err := codec.NewCBOR[T](false)
		if err != nil {
			return nil, err
		}
		s.codec = c
	}
	return s, nil
}

// Open restores session state from an inbound token. An empty token starts a
// fresh session (already marked modified so the new token gets written out).
// A token that fails authentication returns secure.ErrTampered: the caller
// should reject the request, not fall back to a fresh session. A genuine
// token whose contents cannot be decoded returns a *DecodeError.
func (s *Store[T]) Open(token string) (*State[T], error) {
	if token == "" {
		data, err := s.fresh()
		if err != nil {
			return nil, err
		}
		return &State[T]{data: data, modified: true}, nil
	}
	raw, err := s.box.Open(token)
	if err != nil {
		return nil, err
	}
	data, err := s.codec.Decode(raw)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &State[T]{data: data}, nil
}

// Seal serializes and encrypts the state for the outbound token.
func (s *Store[T]) Seal(st *State[T]) (string, error) {
	raw, err := s.codec.Encode(st.data)
	if err != nil {
		return "", fmt.Errorf("session: payload encode: %w", err)
	}
	return s.box.Seal(raw)
}

// State is one request's session payload. Not safe for concurrent use.
type State[T any] struct {
	data     T
	modified bool
}

// Get returns the payload.
func (st *State[T]) Get() T { return st.data }

// Set replaces the payload and marks the state modified so the token is
// rewritten at the end of the request.
func (st *State[T]) Set(data T) {
	st.data = data
	st.modified = true
}

// Modified reports whether the outbound token needs to be written.
func (st *State[T]) Modified() bool { return st.modified }
