package encdec

import "fmt"

// FormatError reports an encode/decode mismatch on one message.
// Row and Offset locate the failure inside the message; either may be
// -1 when it does not apply. Channel is filled in by the owning
// endpoint so the failure can be attributed without transport details.
type FormatError struct {
	Channel string
	Row     int
	Offset  int
	Reason  string
	Err     error
}

func (e *FormatError) Error() string {
	msg := e.Reason
	if e.Row >= 0 {
		msg = fmt.Sprintf("row %d: %s", e.Row, msg)
	}
	if e.Offset >= 0 {
		msg = fmt.Sprintf("%s (at byte %d)", msg, e.Offset)
	}
	if e.Channel != "" {
		msg = fmt.Sprintf("channel %s: %s", e.Channel, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

func formatErrf(row, offset int, format string, args ...any) *FormatError {
	return &FormatError{Row: row, Offset: offset, Reason: fmt.Sprintf(format, args...)}
}
