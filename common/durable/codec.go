package durable

import (
	"encoding/json"
	"fmt"
)

// Codec converts map values to and from their stored bytes.
// Decode(Encode(v)) must equal v.
type Codec[V any] interface {
	Encode(v V) ([]byte, error)
	Decode(data []byte) (V, error)
}

// JSONCodec stores values as JSON. []byte fields round-trip through base64;
// string fields must be valid UTF-8, since invalid bytes decode as U+FFFD.
type JSONCodec[V any] struct{}

func (JSONCodec[V]) Encode(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return data, nil
}

func (JSONCodec[V]) Decode(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode value: %w", err)
	}
	return v, nil
}

// StringCodec stores strings verbatim
type StringCodec struct{}

func (StringCodec) Encode(v string) ([]byte, error) {
	return []byte(v), nil
}

func (StringCodec) Decode(data []byte) (string, error) {
	return string(data), nil
}
