package encdec

import "fmt"

// rawCodec is the identity driver: a message is an undifferentiated
// byte sequence and the transport defines its boundaries.
type rawCodec struct{}

func newRaw(opts Options) (Codec, error) {
	if len(opts.FieldNames) > 0 {
		return nil, fmt.Errorf("raw driver does not take field_names")
	}
	if opts.AsArray {
		return nil, fmt.Errorf("raw driver does not take as_array")
	}
	return rawCodec{}, nil
}

func (rawCodec) Encode(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	case string:
		return []byte(b), nil
	}
	return nil, formatErrf(-1, -1, "raw driver expects bytes, got %T", v)
}

func (rawCodec) Decode(data []byte) (any, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
