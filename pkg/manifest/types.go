// Package manifest loads and validates the declarative description of
// one pipeline run: which models to start and which named channels
// couple them.
package manifest

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/couplet-run/couplet/pkg/channel"
)

// Manifest is the top-level declaration of a pipeline run.
type Manifest struct {
	Models []Model

	// Dir is the directory the manifest was loaded from; relative
	// model working directories and file channels resolve against it.
	Dir string
}

// Model declares one independently executable program in the pipeline.
// It is consumed exactly once: the runtime spawns one process per
// declaration per run.
type Model struct {
	Name       string   `yaml:"name"`
	Driver     string   `yaml:"driver"`
	Args       ArgList  `yaml:"args"`
	WorkingDir string   `yaml:"working_dir"`
	Products   []string `yaml:"products"`

	Inputs  []Channel `yaml:"inputs"`
	Outputs []Channel `yaml:"outputs"`
}

// Channel declares one named, directional communication path. Args is
// the transport argument: a queue identifier when it matches another
// model's channel, otherwise a file path.
type Channel struct {
	Name       string   `yaml:"name"`
	Driver     string   `yaml:"driver"`
	Args       string   `yaml:"args"`
	AsArray    bool     `yaml:"as_array"`
	InTemp     bool     `yaml:"in_temp"`
	FieldNames NameList `yaml:"field_names"`
	Timeout    int      `yaml:"timeout"`
	Delimiter  string   `yaml:"delimiter"`
}

// DriverOptions renders the declaration's encoding settings as the
// option map the driver registry consumes.
func (c Channel) DriverOptions() map[string]any {
	opts := map[string]any{}
	if len(c.FieldNames) > 0 {
		opts["field_names"] = []string(c.FieldNames)
	}
	if c.AsArray {
		opts["as_array"] = true
	}
	if c.Delimiter != "" {
		opts["delimiter"] = c.Delimiter
	}
	return opts
}

// Tabular reports whether the channel uses the table encoder.
func (c Channel) Tabular() bool { return c.Driver == "table" }

// ArgList accepts either a YAML list of strings or one scalar command
// line that is split on whitespace.
type ArgList []string

func (a *ArgList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*a = strings.Fields(s)
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*a = list
		return nil
	}
	return fmt.Errorf("args must be a string or a list of strings")
}

// NameList accepts either a YAML list of strings or one scalar
// comma-separated list.
type NameList []string

func (n *NameList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		*n = parts
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*n = list
		return nil
	}
	return fmt.Errorf("field_names must be a string or a list of strings")
}

// modelList accepts either one model mapping or a list of them, so
// both `model:` and `models:` manifests parse.
type modelList []Model

func (m *modelList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		var one Model
		if err := node.Decode(&one); err != nil {
			return err
		}
		*m = modelList{one}
		return nil
	case yaml.SequenceNode:
		var list []Model
		if err := node.Decode(&list); err != nil {
			return err
		}
		*m = modelList(list)
		return nil
	}
	return fmt.Errorf("model section must be a mapping or a list")
}

// Channels iterates every channel declaration of the model with its
// direction.
func (m Model) Channels() []DeclaredChannel {
	out := make([]DeclaredChannel, 0, len(m.Inputs)+len(m.Outputs))
	for _, c := range m.Inputs {
		out = append(out, DeclaredChannel{Model: m.Name, Direction: channel.Input, Channel: c})
	}
	for _, c := range m.Outputs {
		out = append(out, DeclaredChannel{Model: m.Name, Direction: channel.Output, Channel: c})
	}
	return out
}

// DeclaredChannel is a channel declaration paired with the model that
// owns it and the direction it was declared under.
type DeclaredChannel struct {
	Model     string
	Direction channel.Direction
	Channel   Channel
}
