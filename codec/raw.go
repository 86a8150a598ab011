package codec

// Bytes is an identity codec for []byte values. Encode/Decode return the
// input unchanged. Useful when the upstream response is already a raw byte
// slice and you only need genguard's framing and validation.
type Bytes struct{}

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return b, nil }

// String is a trivial codec for Go string values (e.g. generated SVG or
// Mermaid text). Assumes UTF-8 and performs no validation.
type String struct{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }
