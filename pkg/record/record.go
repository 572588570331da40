// Package record defines the typed scalar values exchanged over
// table-encoded channels.
package record

// Record is one ordered row of scalar fields. Field names are not part
// of the record itself; they belong to the channel that carries it.
type Record []Value

// Equal reports whether two records have the same length and
// field-by-field equal values.
func (r Record) Equal(o Record) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if !r[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// Reorder returns a copy of the record with fields permuted by idx,
// where idx[i] is the source position of destination field i.
func (r Record) Reorder(idx []int) Record {
	out := make(Record, len(idx))
	for i, src := range idx {
		out[i] = r[src]
	}
	return out
}
