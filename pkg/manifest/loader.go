package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

var manifestSchema = jsonschema.MustCompileString("manifest.schema.json", schemaJSON)

// Load reads, schema-checks and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve manifest dir: %w", err)
	}
	m.Dir = abs
	return m, nil
}

// Parse decodes manifest bytes. The document is checked against the
// manifest JSON schema before strict decoding, so structural mistakes
// report field paths instead of Go decode errors.
func Parse(data []byte) (*Manifest, error) {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("empty manifest")
	}
	if err := manifestSchema.Validate(tree); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	var raw struct {
		Model  modelList `yaml:"model"`
		Models modelList `yaml:"models"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	m := &Manifest{Models: append([]Model(raw.Model), raw.Models...)}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
