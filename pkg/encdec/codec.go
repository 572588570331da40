// Package encdec holds the pluggable encoding drivers that translate
// one logical channel message between its wire bytes and its in-memory
// form. Drivers are selected by tag through a Registry, resolved once
// at manifest-load time.
package encdec

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// Codec translates one logical message. The in-memory form depends on
// the driver: raw bytes for the file driver, a record.Record for the
// table driver, a []record.Record for the array variant.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// HeaderCodec is implemented by codecs whose message stream begins
// with a self-describing header frame (tabular encodings).
type HeaderCodec interface {
	Codec

	// Header returns the header frame to emit before the first message.
	Header() []byte

	// ReadHeader consumes the stream's header frame, configuring or
	// asserting the codec's field layout.
	ReadHeader(line []byte) error
}

// Options carries the declaration-level settings a driver constructor
// may honor. Unknown keys in the source map are rejected so typos in a
// manifest surface at load time.
type Options struct {
	FieldNames []string `mapstructure:"field_names"`
	AsArray    bool     `mapstructure:"as_array"`
	Delimiter  string   `mapstructure:"delimiter"`
}

// Constructor builds a codec instance for one channel declaration.
type Constructor func(opts Options) (Codec, error)

// Registry maps driver tags to constructors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register adds a driver under the given tag, overwriting any previous
// registration.
func (r *Registry) Register(tag string, fn Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[tag] = fn
}

// Known reports whether a tag has a registered driver.
func (r *Registry) Known(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ctors[tag]
	return ok
}

// Tags lists the registered driver tags, sorted.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.ctors))
	for tag := range r.ctors {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// New resolves a tag and builds a codec from a raw option map
// (typically the channel declaration's option block). field_names may
// be given either as a list or as one comma-separated string.
func (r *Registry) New(tag string, raw map[string]any) (Codec, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown channel driver %q (registered: %v)", tag, r.Tags())
	}

	var opts Options
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &opts,
		ErrorUnused: true,
		DecodeHook: mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return nil, fmt.Errorf("driver %q: %w", tag, err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("driver %q options: %w", tag, err)
	}

	return ctor(opts)
}

// Default returns a registry with the built-in drivers: "raw" (with
// alias "file") and "table".
func Default() *Registry {
	r := NewRegistry()
	r.Register("raw", newRaw)
	r.Register("file", newRaw)
	r.Register("table", newTable)
	return r
}
