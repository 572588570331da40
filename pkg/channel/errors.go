package channel

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Send and Receive when the counterpart side
// of the channel is gone. It is terminal, not transient.
var ErrClosed = errors.New("endpoint closed")

// ErrTimeout is returned when no data arrives (or no queue capacity
// frees up) within the channel's timeout. The caller decides whether
// to retry or abort; nothing is retried automatically.
var ErrTimeout = errors.New("channel timeout exceeded")

// ErrDirection is returned when Send is called on an input endpoint or
// Receive on an output endpoint.
var ErrDirection = errors.New("operation not allowed for endpoint direction")

// BindingError reports an unresolvable or ambiguous channel graph. It
// is raised during the Bound phase, before any process is spawned.
type BindingError struct {
	Model   string
	Channel string
	Reason  string
}

func (e *BindingError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("binding channel %q: %s", e.Channel, e.Reason)
	}
	return fmt.Sprintf("binding channel %q of model %q: %s", e.Channel, e.Model, e.Reason)
}
