package manifest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couplet-run/couplet/pkg/manifest"
)

const helloManifest = `
models:
  - name: producer
    driver: shell
    args: "echo hello"
    outputs:
      - name: greeting
        driver: raw
        args: q
  - name: consumer
    driver: shell
    args: ["cat"]
    inputs:
      - name: greeting
        driver: raw
        args: q
    outputs:
      - name: sink
        driver: raw
        args: out.txt
        in_temp: true
`

func TestParse_Manifest(t *testing.T) {
	m, err := manifest.Parse([]byte(helloManifest))
	require.NoError(t, err)
	require.Len(t, m.Models, 2)

	prod := m.Models[0]
	assert.Equal(t, "producer", prod.Name)
	assert.Equal(t, "shell", prod.Driver)
	assert.Equal(t, []string{"echo", "hello"}, []string(prod.Args), "scalar args split on whitespace")
	require.Len(t, prod.Outputs, 1)
	assert.Equal(t, "q", prod.Outputs[0].Args)

	cons := m.Models[1]
	assert.Equal(t, []string{"cat"}, []string(cons.Args))
	assert.True(t, cons.Outputs[0].InTemp)
}

func TestParse_SingleModelKey(t *testing.T) {
	m, err := manifest.Parse([]byte(`
model:
  name: only
  driver: executable
  args: ./only
`))
	require.NoError(t, err)
	require.Len(t, m.Models, 1)
	assert.Equal(t, "only", m.Models[0].Name)
}

func TestParse_FieldNamesForms(t *testing.T) {
	m, err := manifest.Parse([]byte(`
model:
  name: tab
  driver: executable
  args: ./tab
  outputs:
    - name: rows
      driver: table
      args: rows.txt
      field_names: name, number
`))
	require.NoError(t, err)
	c := m.Models[0].Outputs[0]
	assert.Equal(t, []string{"name", "number"}, []string(c.FieldNames), "comma list is split and trimmed")

	opts := c.DriverOptions()
	assert.Equal(t, []string{"name", "number"}, opts["field_names"])
	assert.NotContains(t, opts, "as_array")
}

func TestParse_SchemaRejects(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"unknown top-level key", "pipeline:\n  name: x\n"},
		{"model missing driver", "model:\n  name: x\n  args: ./x\n"},
		{"channel missing args", `
model:
  name: x
  driver: executable
  args: ./x
  inputs:
    - name: in
      driver: raw
`},
		{"unknown channel key", `
model:
  name: x
  driver: executable
  args: ./x
  inputs:
    - name: in
      driver: raw
      args: f
      astray: true
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := manifest.Parse([]byte(tc.src))
			assert.Error(t, err)
		})
	}
}

func TestValidate_Semantics(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{
			"duplicate model names",
			`
models:
  - {name: a, driver: shell, args: "true"}
  - {name: a, driver: shell, args: "true"}
`,
			"duplicate model name",
		},
		{
			"duplicate channel in namespace",
			`
model:
  name: a
  driver: shell
  args: "true"
  inputs:
    - {name: c, driver: raw, args: f1}
  outputs:
    - {name: c, driver: raw, args: f2}
`,
			"duplicate channel name",
		},
		{
			"field_names on raw driver",
			`
model:
  name: a
  driver: shell
  args: "true"
  inputs:
    - {name: c, driver: raw, args: f, field_names: x}
`,
			"only valid for the table driver",
		},
		{
			"as_array on raw driver",
			`
model:
  name: a
  driver: shell
  args: "true"
  inputs:
    - {name: c, driver: raw, args: f, as_array: true}
`,
			"only valid for the table driver",
		},
		{
			"table output without field_names",
			`
model:
  name: a
  driver: shell
  args: "true"
  outputs:
    - {name: c, driver: table, args: f}
`,
			"requires field_names",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := manifest.Parse([]byte(tc.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidate_Timeout(t *testing.T) {
	mk := func(timeout int) *manifest.Manifest {
		return &manifest.Manifest{Models: []manifest.Model{{
			Name: "a", Driver: "shell", Args: manifest.ArgList{"true"},
			Inputs: []manifest.Channel{{Name: "c", Driver: "raw", Args: "f", Timeout: timeout}},
		}}}
	}

	err := mk(-5).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout must not be negative")

	// Zero means the channel default and stays valid.
	assert.NoError(t, mk(0).Validate())
}

func TestValidate_TableInputMayOmitFieldNames(t *testing.T) {
	_, err := manifest.Parse([]byte(`
model:
  name: a
  driver: shell
  args: "true"
  inputs:
    - {name: c, driver: table, args: f}
`))
	assert.NoError(t, err, "consumers may rely on header self-description")
}

func TestLoad_SetsDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yml")
	require.NoError(t, os.WriteFile(path, []byte(helloManifest), 0o644))

	m, err := manifest.Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, m.Dir)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := manifest.Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
