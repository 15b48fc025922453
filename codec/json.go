package codec

import "encoding/json"

type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}

// JSONUntyped is the Untyped counterpart of JSON.
type JSONUntyped struct{}

func (JSONUntyped) Marshal(v any) ([]byte, error)     { return json.Marshal(v) }
func (JSONUntyped) Unmarshal(b []byte, dst any) error { return json.Unmarshal(b, dst) }
