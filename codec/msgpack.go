package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack serializes cached upstream responses with vmihailenco/msgpack/v5.
// The zero value is ready to use. A good fit when responses are large and
// stored remotely (redis provider): smaller entries, faster decode than JSON.
//
// Tags differ from JSON; use `msgpack:"fieldName"` for explicit control.
type Msgpack[V any] struct{}

func (Msgpack[V]) Encode(v V) ([]byte, error) {
	return msgpack.Marshal(v)
}
func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	err := msgpack.Unmarshal(b, &v)
	return v, err
}
