// Package invalidationqueue implements a session-scoped, invalidation-aware
// cache for fleets of stateless request handlers. No server holds session
// state: an append-only log of invalidation events and each component's read
// position round-trip through an opaque client-held token on every request.
//
// Components:
//   - event.Registry: the closed set of invalidation event kinds.
//   - ilog.Log: the bounded event log plus per-component watermarks,
//     encoded to/from the ASCII token.
//   - Cache / Turn: named, typed cache slots cleared by log events, able to
//     self-populate through a refresh source (package refresh), stored in a
//     lossy byte store (package storage: memory, Redis, BigCache, Ristretto).
//   - secure.Box: authenticated encryption for tokens that must also carry
//     confidential data (package session builds typed session state on it).
//   - transport: net/http glue reading the inbound token, driving Begin/End,
//     and writing the outbound token.
//
// Request flow:
//
//	token -> ilog.Decode -> cache.Begin (apply invalidations)
//	      -> handler calls turn.Get / turn.Store
//	      -> turn.End (advance watermark) -> log.Encode -> token
//
// Each event invalidates each component exactly once: watermarks advance
// monotonically and only after the invalidations were applied, and a
// component that has fallen behind the log's retained window is told every
// kind occurred rather than a guess.
package invalidationqueue
