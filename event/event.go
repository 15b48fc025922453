// Package event defines the closed set of cache invalidation event kinds.
//
// A Registry is assembled once at startup from an explicit, reviewed table of
// kind names and wire codes, and is immutable afterwards. Every kind carries a
// single-byte wire code in the printable ASCII range [FirstCode, LastCode],
// minus the structural characters of the log token format that fall inside it
// ('[', ']', '|'); ':' and '.' sit below FirstCode. The registry enforces the
// exclusion, keeping event bytes disjoint from every delimiter.
package event

import (
	"fmt"
	"strings"
)

const (
	// FirstCode and LastCode bound the wire codes a Kind may carry.
	FirstCode byte = 65
	LastCode  byte = 126

	// MaxKinds is how many distinct kinds the wire format can represent:
	// the [FirstCode, LastCode] range minus the three delimiters inside it.
	MaxKinds = int(LastCode-FirstCode) + 1 - 3
)

// reservedCode reports whether c is a log token delimiter that falls inside
// [FirstCode, LastCode] and so must never be assigned to a kind.
func reservedCode(c byte) bool {
	return c == '[' || c == ']' || c == '|'
}

// Kind is one member of the closed invalidation-event set.
// The zero Kind is not valid; obtain Kinds from a Registry.
type Kind struct {
	name string
	code byte
}

func (k Kind) Name() string { return k.name }
func (k Kind) Code() byte   { return k.code }

func (k Kind) String() string { return k.name }

// Mapping is one row of an explicit name-to-code table.
type Mapping struct {
	Name string
	Code byte
}

// Registry is the closed, ordered enumeration of event kinds.
type Registry struct {
	kinds  []Kind
	byName map[string]Kind
	byCode map[byte]Kind
}

// NewRegistry builds a registry from ordered kind names, assigning wire codes
// sequentially from FirstCode and skipping the reserved delimiter codes.
// Order is part of the wire contract: appending names is safe, reordering or
// removing them is not.
func NewRegistry(names ...string) (*Registry, error) {
	if len(names) > MaxKinds {
		return nil, fmt.Errorf("event: %d kinds exceed wire capacity of %d", len(names), MaxKinds)
	}
	table := make([]Mapping, len(names))
	code := FirstCode
	for i, n := range names {
		for reservedCode(code) {
			code++
		}
		table[i] = Mapping{Name: n, Code: code}
		code++
	}
	return NewRegistryFromTable(table)
}

// NewRegistryFromTable builds a registry from an explicit name/code table.
// It fails on empty or duplicate names, codes outside [FirstCode, LastCode],
// codes that collide with a token delimiter, duplicate codes, or more entries
// than the wire format can represent.
func NewRegistryFromTable(table []Mapping) (*Registry, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("event: registry needs at least one kind")
	}
	if len(table) > MaxKinds {
		return nil, fmt.Errorf("event: %d kinds exceed wire capacity of %d", len(table), MaxKinds)
	}
	r := &Registry{
		kinds:  make([]Kind, 0, len(table)),
		byName: make(map[string]Kind, len(table)),
		byCode: make(map[byte]Kind, len(table)),
	}
	for _, m := range table {
		if m.Name == "" || strings.ContainsAny(m.Name, "[]|:.") {
			return nil, fmt.Errorf("event: invalid kind name %q", m.Name)
		}
		if m.Code < FirstCode || m.Code > LastCode {
			return nil, fmt.Errorf("event: kind %q: code %d outside [%d, %d]", m.Name, m.Code, FirstCode, LastCode)
		}
		if reservedCode(m.Code) {
			return nil, fmt.Errorf("event: kind %q: code %d is a token delimiter", m.Name, m.Code)
		}
		if _, dup := r.byName[m.Name]; dup {
			return nil, fmt.Errorf("event: duplicate kind name %q", m.Name)
		}
		if prev, dup := r.byCode[m.Code]; dup {
			return nil, fmt.Errorf("event: kinds %q and %q share code %d", prev.name, m.Name, m.Code)
		}
		k := Kind{name: m.Name, code: m.Code}
		r.kinds = append(r.kinds, k)
		r.byName[m.Name] = k
		r.byCode[m.Code] = k
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error. Intended for
// package-level variables where the kind list is a compile-time constant.
func MustRegistry(names ...string) *Registry {
	r, err := NewRegistry(names...)
	if err != nil {
		panic(err)
	}
	return r
}

// KindByName returns the kind with the given name.
func (r *Registry) KindByName(name string) (Kind, bool) {
	k, ok := r.byName[name]
	return k, ok
}

// KindByCode returns the kind carrying the given wire code.
func (r *Registry) KindByCode(code byte) (Kind, bool) {
	k, ok := r.byCode[code]
	return k, ok
}

// Kinds returns all kinds in registration order. The caller must not mutate
// the returned slice.
func (r *Registry) Kinds() []Kind { return r.kinds }

// Len returns the number of registered kinds.
func (r *Registry) Len() int { return len(r.kinds) }
