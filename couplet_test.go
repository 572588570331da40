package couplet_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	couplet "github.com/couplet-run/couplet"
)

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "couplet.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRun_SingleModel(t *testing.T) {
	path := writeManifest(t, `
model:
  name: hello
  driver: shell
  args: "true"
`)

	res, err := couplet.Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "success", string(res.Outcome))
}

func TestValidate_GoodAndBad(t *testing.T) {
	good := writeManifest(t, `
models:
  - name: producer
    driver: shell
    args: "true"
    outputs:
      - name: out
        driver: raw
        args: q
  - name: consumer
    driver: shell
    args: "true"
    inputs:
      - name: in
        driver: raw
        args: q
`)
	assert.NoError(t, couplet.Validate(context.Background(), good))

	bad := writeManifest(t, `
model:
  name: reader
  driver: shell
  args: "true"
  inputs:
    - name: in
      driver: raw
      args: does-not-exist.txt
`)
	assert.Error(t, couplet.Validate(context.Background(), bad))
}

func TestRun_MissingManifest(t *testing.T) {
	_, err := couplet.Run(context.Background(), filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}
