package record

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the scalar type held by a Value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindComplex
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindComplex:
		return "complex"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is one typed scalar field of a record.
// The zero Value is the empty string.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	c    complex128
}

// String wraps a string scalar.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int wraps an integer scalar.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a floating point scalar.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Complex wraps a complex scalar.
func Complex(c complex128) Value { return Value{kind: KindComplex, c: c} }

// Kind returns the scalar type of the value.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload. Only meaningful for KindString.
func (v Value) Str() string { return v.s }

// IntVal returns the integer payload. Only meaningful for KindInt.
func (v Value) IntVal() int64 { return v.i }

// FloatVal returns the float payload. Only meaningful for KindFloat.
func (v Value) FloatVal() float64 { return v.f }

// ComplexVal returns the complex payload. Only meaningful for KindComplex.
func (v Value) ComplexVal() complex128 { return v.c }

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == o.s
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindComplex:
		return v.c == o.c
	}
	return false
}

// Text returns the wire form of the value.
//
// The encoding is chosen so that Parse(Text(v)) always reproduces v:
//   - integers use base-10 digits,
//   - floats always carry a '.' or exponent so they never collapse into
//     an integer on parse,
//   - complex numbers use the parenthesized Go literal form,
//   - strings are written bare, except when the bare form would be
//     re-parsed as a number, is empty, or contains a character that
//     breaks the delimited layout; those are quoted.
func (v Value) Text() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		s := strconv.FormatFloat(v.f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") && !strings.ContainsAny(s, "nN") {
			// "5" -> "5.0" so the parse side sees a float, not an int.
			s += ".0"
		}
		return s
	case KindComplex:
		return strconv.FormatComplex(v.c, 'g', -1, 128)
	}
	if needsQuoting(v.s) {
		return strconv.Quote(v.s)
	}
	return v.s
}

func (v Value) String() string { return v.Text() }

// needsQuoting reports whether a bare string field would be ambiguous
// or would corrupt the surrounding delimited text.
func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	if strings.ContainsAny(s, ",\"\n\r") {
		return true
	}
	// A bare field that parses as a number must be quoted to survive
	// the round trip as a string.
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return true
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return true
	}
	if _, err := strconv.ParseComplex(s, 128); err == nil {
		return true
	}
	return false
}

// Parse interprets one delimited text field as a Value.
// Quoted fields are always strings; bare fields are tried as int,
// float and complex in that order before falling back to string.
func Parse(s string) (Value, error) {
	if strings.HasPrefix(s, "\"") {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return Value{}, fmt.Errorf("malformed quoted field %q: %w", s, err)
		}
		return String(unq), nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f), nil
	}
	if c, err := strconv.ParseComplex(s, 128); err == nil {
		return Complex(c), nil
	}
	return String(s), nil
}
