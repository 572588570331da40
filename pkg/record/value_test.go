package record_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couplet-run/couplet/pkg/record"
)

func TestValue_TextRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		in   record.Value
	}{
		{"int", record.Int(5)},
		{"int zero", record.Int(0)},
		{"int negative", record.Int(-42)},
		{"float", record.Float(3.25)},
		{"float whole", record.Float(5)},
		{"float zero", record.Float(0)},
		{"float negative", record.Float(-0.125)},
		{"float tiny", record.Float(1e-300)},
		{"complex", record.Complex(complex(1, 2))},
		{"complex zero imag", record.Complex(complex(5, 0))},
		{"complex negative", record.Complex(complex(-1.5, -2.5))},
		{"string", record.String("x")},
		{"string empty", record.String("")},
		{"string numeric", record.String("5")},
		{"string with comma", record.String("a,b")},
		{"string with quote", record.String(`say "hi"`)},
		{"string spaces", record.String("hello world")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := record.Parse(tc.in.Text())
			require.NoError(t, err)
			assert.True(t, tc.in.Equal(out), "want %v (%s), got %v (%s)",
				tc.in, tc.in.Kind(), out, out.Kind())
		})
	}
}

func TestValue_TextForms(t *testing.T) {
	assert.Equal(t, "x", record.String("x").Text(), "plain strings stay bare")
	assert.Equal(t, "5", record.Int(5).Text())
	assert.Equal(t, `"5"`, record.String("5").Text(), "numeric-looking strings are quoted")
	assert.Equal(t, `""`, record.String("").Text())
	assert.Equal(t, "5.0", record.Float(5).Text(), "whole floats keep a decimal point")
}

func TestParse_Kinds(t *testing.T) {
	v, err := record.Parse("5")
	require.NoError(t, err)
	assert.Equal(t, record.KindInt, v.Kind())

	v, err = record.Parse("5.5")
	require.NoError(t, err)
	assert.Equal(t, record.KindFloat, v.Kind())

	v, err = record.Parse("(1+2i)")
	require.NoError(t, err)
	assert.Equal(t, record.KindComplex, v.Kind())

	v, err = record.Parse("hello")
	require.NoError(t, err)
	assert.Equal(t, record.KindString, v.Kind())
}

func TestParse_MalformedQuote(t *testing.T) {
	_, err := record.Parse(`"unterminated`)
	assert.Error(t, err)
}

func TestRecord_Equal(t *testing.T) {
	a := record.Record{record.String("x"), record.Int(5)}
	b := record.Record{record.String("x"), record.Int(5)}
	c := record.Record{record.String("x"), record.Float(5)}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c), "int and float are distinct kinds")
	assert.False(t, a.Equal(a[:1]))
}

func TestRecord_Reorder(t *testing.T) {
	r := record.Record{record.String("a"), record.String("b"), record.String("c")}
	got := r.Reorder([]int{2, 0, 1})
	assert.True(t, got.Equal(record.Record{record.String("c"), record.String("a"), record.String("b")}))
}
