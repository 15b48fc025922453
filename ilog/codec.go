package ilog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/AppSecAI-TEST/invalidationqueue/event"
)

// Token layout:
//
//	'[' <discarded> '|' ( <consumer> ':' <mark> '.' )* '|' [prev] cur ']'
//
// Event codes are printable ASCII disjoint from the structural characters, so
// the layout is self-delimiting. Consumer names are emitted sorted for a
// deterministic encoding.

// DecodeError reports a malformed log token. It is always recoverable: treat
// the session as fresh and carry on with an empty log.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "ilog: bad token: " + e.Reason
}

// Encode serializes the log to its ASCII token form.
func (l *Log) Encode() string {
	var b strings.Builder
	b.Grow(16 + 16*len(l.marks) + len(l.prev) + len(l.cur))
	b.WriteByte('[')
	b.WriteString(strconv.Itoa(l.discarded))
	b.WriteByte('|')

	names := make([]string, 0, len(l.marks))
	for name := range l.marks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(l.marks[name]))
		b.WriteByte('.')
	}

	b.WriteByte('|')
	b.Write(l.prev)
	b.Write(l.cur)
	b.WriteByte(']')
	return b.String()
}

// Decode parses a token produced by Encode into a log bound to reg.
// Any structural defect, unknown event code, out-of-range count, or oversized
// block yields a *DecodeError.
func Decode(reg *event.Registry, token string) (*Log, error) {
	if len(token) < 2 || token[0] != '[' || token[len(token)-1] != ']' {
		return nil, &DecodeError{Reason: "missing brackets"}
	}
	sections := strings.Split(token[1:len(token)-1], "|")
	if len(sections) != 3 {
		return nil, &DecodeError{Reason: fmt.Sprintf("want 3 sections, have %d", len(sections))}
	}

	discarded, err := strconv.Atoi(sections[0])
	if err != nil || discarded < 0 {
		return nil, &DecodeError{Reason: "bad discarded-block count " + strconv.Quote(sections[0])}
	}

	marks := make(map[string]int)
	if sections[1] != "" {
		entries := strings.Split(strings.TrimSuffix(sections[1], "."), ".")
		for _, entry := range entries {
			name, markStr, ok := strings.Cut(entry, ":")
			if !ok || name == "" {
				return nil, &DecodeError{Reason: "bad watermark entry " + strconv.Quote(entry)}
			}
			mark, err := strconv.Atoi(markStr)
			if err != nil || mark < 0 {
				return nil, &DecodeError{Reason: "bad watermark value " + strconv.Quote(markStr)}
			}
			marks[name] = mark
		}
	}

	events := sections[2]
	if len(events) > 2*BlockCapacity {
		return nil, &DecodeError{Reason: fmt.Sprintf("%d event bytes exceed two blocks", len(events))}
	}
	for i := 0; i < len(events); i++ {
		if _, ok := reg.KindByCode(events[i]); !ok {
			return nil, &DecodeError{Reason: fmt.Sprintf("unknown event code %d", events[i])}
		}
	}

	var prev, cur []byte
	if len(events) <= BlockCapacity {
		cur = []byte(events)
	} else {
		prev = []byte(events[:BlockCapacity])
		cur = []byte(events[BlockCapacity:])
	}

	return &Log{
		reg:       reg,
		discarded: discarded,
		prev:      prev,
		cur:       cur,
		marks:     marks,
	}, nil
}
