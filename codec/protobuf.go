package codec

import "google.golang.org/protobuf/proto"

// Protobuf is a Codec for callers whose value type is a generated protobuf
// message, e.g. a sealed session payload shared with non-Go services. The
// constructor supplies a fresh message for Decode to fill
// (func() *sessionpb.Payload { return &sessionpb.Payload{} }).
type Protobuf[T proto.Message] struct {
	new func() T
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}
