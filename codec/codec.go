// Package codec provides value serializers in two shapes: Codec[V] for
// callers that work with one concrete value type (e.g. a sealed session
// payload), and Untyped for the component entry cache, whose entries carry
// heterogeneous declared types resolved at runtime.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Untyped encodes arbitrary values and decodes into a caller-supplied
// destination pointer, in the manner of the stdlib marshal/unmarshal pair.
type Untyped interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(b []byte, dst any) error
}
