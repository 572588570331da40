package manifest

import (
	"fmt"

	"github.com/couplet-run/couplet/pkg/channel"
)

// ValidationError reports one semantic failure in a manifest.
type ValidationError struct {
	Model   string
	Channel string
	Reason  string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Model != "" && e.Channel != "":
		return fmt.Sprintf("model %q, channel %q: %s", e.Model, e.Channel, e.Reason)
	case e.Model != "":
		return fmt.Sprintf("model %q: %s", e.Model, e.Reason)
	}
	return e.Reason
}

// AggregateError collects every validation failure found in one pass.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

// Validate applies the semantic rules the JSON schema cannot express:
// unique names, channel namespaces, and the coupling between encoding
// drivers and their options. It reports every failure, not just the
// first.
func (m *Manifest) Validate() error {
	var errs []error

	if len(m.Models) == 0 {
		errs = append(errs, &ValidationError{Reason: "manifest declares no models"})
	}

	seen := map[string]bool{}
	for _, model := range m.Models {
		if model.Name == "" {
			errs = append(errs, &ValidationError{Reason: "model name must be non-empty"})
			continue
		}
		if seen[model.Name] {
			errs = append(errs, &ValidationError{Model: model.Name, Reason: "duplicate model name"})
		}
		seen[model.Name] = true

		if len(model.Args) == 0 {
			errs = append(errs, &ValidationError{Model: model.Name, Reason: "args must name an entry point"})
		}

		// Channel names are unique within the model's namespace,
		// across inputs and outputs together: the model's own code
		// opens channels by bare name.
		names := map[string]bool{}
		for _, dc := range model.Channels() {
			c := dc.Channel
			if names[c.Name] {
				errs = append(errs, &ValidationError{Model: model.Name, Channel: c.Name, Reason: "duplicate channel name in model namespace"})
			}
			names[c.Name] = true
			errs = append(errs, validateChannel(model.Name, dc.Direction, c)...)
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

func validateChannel(model string, dir channel.Direction, c Channel) []error {
	var errs []error
	fail := func(reason string) {
		errs = append(errs, &ValidationError{Model: model, Channel: c.Name, Reason: reason})
	}

	if c.Args == "" {
		fail("args must name a file path or queue identifier")
	}

	if c.Tabular() {
		// Producers must name their fields; consumers may rely on the
		// header line the producer emits.
		if dir == channel.Output && len(c.FieldNames) == 0 {
			fail("table output requires field_names")
		}
		for _, name := range c.FieldNames {
			if name == "" {
				fail("field_names entries must be non-empty")
				break
			}
		}
	} else {
		if len(c.FieldNames) > 0 {
			fail("field_names is only valid for the table driver")
		}
		if c.AsArray {
			fail("as_array is only valid for the table driver")
		}
	}

	// Zero means the channel default; the schema already rejects an
	// explicit zero in YAML.
	if c.Timeout < 0 {
		fail("timeout must not be negative")
	}
	return errs
}
