// Package channel implements live channel endpoints: named,
// directional communication objects bound to a file path or to a
// queue in the run's broker namespace, with a pluggable encoding
// driver applied per message.
package channel

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Direction tells which operation an endpoint supports.
type Direction string

const (
	Input  Direction = "input"
	Output Direction = "output"
)

// Transport identifies what backs a channel.
type Transport string

const (
	TransportFile  Transport = "file"
	TransportQueue Transport = "queue"
)

// DefaultTimeout bounds a blocking Receive (and a Send waiting for
// queue capacity) when the declaration does not override it.
const DefaultTimeout = 60 * time.Second

// EnvPrefix is the prefix of every environment variable the runtime
// injects into a model process.
const EnvPrefix = "COUPLET_"

// EnvBroker carries the address of the run's queue namespace.
const EnvBroker = EnvPrefix + "BROKER"

// Spec is the fully resolved, serializable description of one
// endpoint. The runtime computes it during binding and injects it into
// the model process environment; the client library reconstructs the
// endpoint from it by channel name alone.
type Spec struct {
	Name       string         `json:"name"`
	Model      string         `json:"model"`
	Direction  Direction      `json:"direction"`
	Driver     string         `json:"driver"`
	Transport  Transport      `json:"transport"`
	Target     string         `json:"target"`
	Options    map[string]any `json:"options,omitempty"`
	TimeoutSec int            `json:"timeout_seconds,omitempty"`
}

// Timeout returns the effective receive/capacity timeout.
func (s Spec) Timeout() time.Duration {
	if s.TimeoutSec > 0 {
		return time.Duration(s.TimeoutSec) * time.Second
	}
	return DefaultTimeout
}

// EnvVar returns the environment variable name advertising this
// endpoint to the model process, e.g. COUPLET_IN_INPUT1.
func (s Spec) EnvVar() string {
	kind := "IN_"
	if s.Direction == Output {
		kind = "OUT_"
	}
	return EnvPrefix + kind + sanitizeEnvName(s.Name)
}

// MarshalEnv renders the spec as the env var payload.
func (s Spec) MarshalEnv() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal channel spec %q: %w", s.Name, err)
	}
	return string(data), nil
}

// ParseSpec decodes an env var payload back into a Spec.
func ParseSpec(payload string) (Spec, error) {
	var s Spec
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return Spec{}, fmt.Errorf("parse channel spec: %w", err)
	}
	if s.Name == "" {
		return Spec{}, fmt.Errorf("parse channel spec: missing name")
	}
	return s, nil
}

func sanitizeEnvName(name string) string {
	up := strings.ToUpper(name)
	var b strings.Builder
	for _, r := range up {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
