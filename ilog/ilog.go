// Package ilog implements the bounded, append-only invalidation event log
// that is round-tripped through a client-held token on every request.
//
// The log keeps at most two fixed-capacity blocks of encoded events (current
// and previous) plus a count of whole blocks that were permanently discarded,
// bounding memory to 2*BlockCapacity bytes no matter how long a session runs.
// Per-consumer watermarks record how far each consumer has read. A consumer
// whose watermark predates the discarded region cannot know which events it
// missed, so NewEvents reports every kind in the registry for it - the log
// over-invalidates when data is gone, it never under-reports.
package ilog

import (
	"github.com/AppSecAI-TEST/invalidationqueue/event"
)

// BlockCapacity is the number of encoded events held by one block.
const BlockCapacity = 256

// Log is one session's invalidation event log, rebuilt from the inbound token
// at the start of a request and discarded at the end. It is request-scoped
// and not safe for concurrent use.
type Log struct {
	reg       *event.Registry
	discarded int    // whole blocks permanently dropped
	prev      []byte // nil, or exactly BlockCapacity event codes
	cur       []byte // 0..BlockCapacity event codes
	marks     map[string]int
	modified  bool
}

// New returns an empty log bound to the given registry.
func New(reg *event.Registry) *Log {
	return &Log{
		reg:   reg,
		cur:   make([]byte, 0, BlockCapacity),
		marks: make(map[string]int),
	}
}

// Append records that an event of the given kind occurred. When the current
// block is full, the previous block (if any) is dropped for good and the
// current block takes its place. Always succeeds.
func (l *Log) Append(k event.Kind) {
	if len(l.cur) >= BlockCapacity {
		if l.prev != nil {
			l.discarded++
		}
		l.prev = l.cur
		l.cur = make([]byte, 0, BlockCapacity)
	}
	l.cur = append(l.cur, k.Code())
	l.modified = true
}

// Len returns the logical length of the log: every event ever appended,
// including those in discarded blocks.
func (l *Log) Len() int {
	n := l.discarded * BlockCapacity
	if l.prev != nil {
		n += BlockCapacity
	}
	return n + len(l.cur)
}

// Mark returns the given consumer's watermark; unknown consumers are at 0.
func (l *Log) Mark(consumer string) int { return l.marks[consumer] }

// Modified reports whether the log changed since it was built, meaning the
// outbound token needs to be rewritten.
func (l *Log) Modified() bool { return l.modified }

// NewEvents returns the set of kinds that occurred after the consumer's
// watermark, and the watermark value to commit once the consumer has acted on
// them. The mark is NOT persisted here: callers apply the returned events
// first and commit via CommitMark afterwards, so a request that dies
// mid-processing never advances past events it did not act on.
//
// If the consumer's unread history reaches into discarded blocks, the result
// is every kind in the registry.
func (l *Log) NewEvents(consumer string) (map[event.Kind]struct{}, int) {
	mark := l.marks[consumer]
	length := l.Len()
	set := make(map[event.Kind]struct{})
	if length <= mark {
		return set, mark
	}

	lost := l.discarded * BlockCapacity
	if mark < lost {
		for _, k := range l.reg.Kinds() {
			set[k] = struct{}{}
		}
		return set, length
	}

	off := mark - lost // offset into prev+cur
	if l.prev != nil {
		if off < BlockCapacity {
			l.collect(l.prev[off:], set)
			off = 0
		} else {
			off -= BlockCapacity
		}
	}
	l.collect(l.cur[off:], set)
	return set, length
}

func (l *Log) collect(codes []byte, set map[event.Kind]struct{}) {
	for _, c := range codes {
		// Append and Decode only admit registered codes.
		if k, ok := l.reg.KindByCode(c); ok {
			set[k] = struct{}{}
		}
	}
}

// MarkConsumed moves the consumer's watermark to the current end of the log
// without collecting anything - a skip-forward for consumers that do not want
// to read.
func (l *Log) MarkConsumed(consumer string) {
	l.CommitMark(consumer, l.Len())
}

// CommitMark persists a watermark captured earlier (typically the length
// returned by NewEvents at the start of a request). Marks are monotonic:
// committing a value below the current mark is a no-op.
func (l *Log) CommitMark(consumer string, mark int) {
	if mark <= l.marks[consumer] {
		return
	}
	l.marks[consumer] = mark
	l.modified = true
}
