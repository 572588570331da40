package encdec

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/couplet-run/couplet/pkg/record"
)

// tableCodec serializes records as human-readable delimited text with
// a header line naming the fields. One message is one row; the
// as_array variant (arrayCodec) treats the whole table as one message.
type tableCodec struct {
	delim string

	declared []string // field names from the declaration, may be empty
	fields   []string // effective field order
	reorder  []int    // header->declared permutation, nil when identity
}

func newTable(opts Options) (Codec, error) {
	delim := opts.Delimiter
	if delim == "" {
		delim = ","
	}
	if len(delim) != 1 {
		return nil, fmt.Errorf("table delimiter must be a single character, got %q", delim)
	}
	for _, name := range opts.FieldNames {
		if name == "" {
			return nil, fmt.Errorf("table field names must be non-empty")
		}
		if strings.Contains(name, delim) {
			return nil, fmt.Errorf("table field name %q contains the delimiter", name)
		}
	}
	t := &tableCodec{
		delim:    delim,
		declared: opts.FieldNames,
		fields:   opts.FieldNames,
	}
	if opts.AsArray {
		// The array variant carries its header inside each message, so
		// it is not a HeaderCodec: there is no separate header frame.
		return &arrayCodec{t: t}, nil
	}
	return t, nil
}

// Header returns the header line for the codec's field layout.
func (c *tableCodec) Header() []byte {
	return []byte(strings.Join(c.fields, c.delim))
}

// ReadHeader consumes the stream header and reconciles it with the
// declared field names, if any. A declaration naming the same fields
// in a different order becomes a decode-side permutation; a
// declaration sharing no names with the header is assumed positional;
// a partial overlap is an error.
func (c *tableCodec) ReadHeader(line []byte) error {
	got, err := splitFields(string(line), c.delim)
	if err != nil {
		return &FormatError{Row: 0, Offset: -1, Reason: "malformed header", Err: err}
	}
	if len(c.declared) == 0 {
		c.fields = got
		c.reorder = nil
		return nil
	}
	if len(got) != len(c.declared) {
		return formatErrf(0, -1, "header names %d fields, declaration names %d", len(got), len(c.declared))
	}

	pos := make(map[string]int, len(got))
	for i, name := range got {
		pos[name] = i
	}
	overlap := 0
	for _, name := range c.declared {
		if _, ok := pos[name]; ok {
			overlap++
		}
	}
	switch {
	case overlap == len(c.declared):
		// Same set; decode rows into declared order.
		idx := make([]int, len(c.declared))
		identity := true
		for i, name := range c.declared {
			idx[i] = pos[name]
			if idx[i] != i {
				identity = false
			}
		}
		c.fields = c.declared
		if !identity {
			c.reorder = idx
		}
	case overlap == 0:
		// Disjoint names, same width: assume a positional mapping.
		c.fields = c.declared
		c.reorder = nil
	default:
		return formatErrf(0, -1, "header fields %v partially overlap declared fields %v", got, c.declared)
	}
	return nil
}

func (c *tableCodec) Encode(v any) ([]byte, error) {
	row, ok := v.(record.Record)
	if !ok {
		return nil, formatErrf(-1, -1, "table driver expects record.Record, got %T", v)
	}
	return c.encodeRow(row, -1)
}

func (c *tableCodec) encodeRow(row record.Record, idx int) ([]byte, error) {
	if len(row) != len(c.fields) {
		return nil, formatErrf(idx, -1, "record has %d fields, channel declares %d", len(row), len(c.fields))
	}
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = c.formatField(v)
	}
	return []byte(strings.Join(parts, c.delim)), nil
}

// formatField quotes string payloads that would collide with a
// non-default delimiter; Value.Text already handles commas.
func (c *tableCodec) formatField(v record.Value) string {
	s := v.Text()
	if c.delim != "," && v.Kind() == record.KindString &&
		strings.Contains(v.Str(), c.delim) && !strings.HasPrefix(s, "\"") {
		s = strconv.Quote(v.Str())
	}
	return s
}

func (c *tableCodec) Decode(data []byte) (any, error) {
	return c.decodeRow(string(data), -1)
}

// arrayCodec is the as_array variant of the table driver: one message
// is the whole table, header line included, rows buffered as a unit.
type arrayCodec struct {
	t *tableCodec
}

func (c *arrayCodec) Encode(v any) ([]byte, error) {
	rows, ok := v.([]record.Record)
	if !ok {
		return nil, formatErrf(-1, -1, "array table driver expects []record.Record, got %T", v)
	}
	var buf bytes.Buffer
	buf.Write(c.t.Header())
	for i, row := range rows {
		line, err := c.t.encodeRow(row, i)
		if err != nil {
			return nil, err
		}
		buf.WriteByte('\n')
		buf.Write(line)
	}
	return buf.Bytes(), nil
}

func (c *arrayCodec) Decode(data []byte) (any, error) {
	lines := splitLines(data)
	if len(lines) == 0 {
		return nil, formatErrf(-1, 0, "truncated array message: missing header")
	}
	if err := c.t.ReadHeader(lines[0]); err != nil {
		return nil, err
	}
	rows := make([]record.Record, 0, len(lines)-1)
	for i, line := range lines[1:] {
		row, err := c.t.decodeRow(string(line), i)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *tableCodec) decodeRow(line string, idx int) (record.Record, error) {
	parts, err := splitFields(line, c.delim)
	if err != nil {
		var fe *fieldError
		if errors.As(err, &fe) {
			return nil, formatErrf(idx, fe.offset, "%s", fe.reason)
		}
		return nil, &FormatError{Row: idx, Offset: -1, Reason: "malformed row", Err: err}
	}
	if len(parts) != len(c.fields) {
		return nil, formatErrf(idx, -1, "row has %d fields, channel declares %d", len(parts), len(c.fields))
	}
	row := make(record.Record, len(parts))
	for i, part := range parts {
		v, err := record.Parse(part)
		if err != nil {
			return nil, &FormatError{Row: idx, Offset: -1, Reason: fmt.Sprintf("field %d", i), Err: err}
		}
		row[i] = v
	}
	if c.reorder != nil {
		row = row.Reorder(c.reorder)
	}
	return row, nil
}

// splitLines splits a whole-table blob into lines, tolerating a single
// trailing newline.
func splitLines(data []byte) [][]byte {
	data = bytes.TrimSuffix(data, []byte("\n"))
	if len(data) == 0 {
		return nil
	}
	return bytes.Split(data, []byte("\n"))
}

type fieldError struct {
	offset int
	reason string
}

func (e *fieldError) Error() string { return e.reason }

// splitFields splits one delimited line while honoring quoted fields.
// The returned fields keep their quotes; record.Parse strips them.
func splitFields(line, delim string) ([]string, error) {
	d := delim[0]
	var fields []string
	i := 0
	for {
		start := i
		if i < len(line) && line[i] == '"' {
			// Scan the quoted section, honoring backslash escapes.
			i++
			for i < len(line) {
				switch line[i] {
				case '\\':
					i += 2
				case '"':
					i++
					goto quoted
				default:
					i++
				}
			}
			return nil, &fieldError{offset: start, reason: "unterminated quoted field"}
		quoted:
			if i < len(line) && line[i] != d {
				return nil, &fieldError{offset: i, reason: "unexpected data after quoted field"}
			}
		} else {
			for i < len(line) && line[i] != d {
				i++
			}
		}
		fields = append(fields, line[start:i])
		if i >= len(line) {
			return fields, nil
		}
		i++ // skip delimiter
	}
}
