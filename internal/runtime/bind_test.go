package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couplet-run/couplet/internal/broker"
	"github.com/couplet-run/couplet/internal/process"
	"github.com/couplet-run/couplet/pkg/channel"
	"github.com/couplet-run/couplet/pkg/encdec"
	"github.com/couplet-run/couplet/pkg/manifest"
)

func bindFixture(t *testing.T, m *manifest.Manifest) (*plan, error) {
	t.Helper()
	br, err := broker.Start()
	require.NoError(t, err)
	t.Cleanup(br.Close)
	return bind(context.Background(), m, encdec.Default(), process.DefaultDrivers(), t.TempDir(), br.Client())
}

func TestBind_QueuePairing(t *testing.T) {
	m := &manifest.Manifest{
		Dir: t.TempDir(),
		Models: []manifest.Model{
			{Name: "producer", Driver: "shell", Args: []string{"true"},
				Outputs: []manifest.Channel{{Name: "out", Driver: "raw", Args: "q"}}},
			{Name: "consumer", Driver: "shell", Args: []string{"true"},
				Inputs: []manifest.Channel{{Name: "in", Driver: "raw", Args: "q"}}},
		},
	}

	p, err := bindFixture(t, m)
	require.NoError(t, err)

	require.Len(t, p.specs["producer"], 1)
	out := p.specs["producer"][0]
	assert.Equal(t, channel.TransportQueue, out.Transport)
	assert.Equal(t, "q", out.Target)
	assert.Equal(t, channel.Output, out.Direction)

	require.Len(t, p.specs["consumer"], 1)
	in := p.specs["consumer"][0]
	assert.Equal(t, channel.TransportQueue, in.Transport)
	assert.Equal(t, "q", in.Target)

	assert.Equal(t, []string{"q"}, p.producedQueues["producer"])
	assert.Equal(t, []string{"q"}, p.consumedQueues["consumer"])
	assert.Equal(t, 1, p.queueConsumers["q"])
}

func TestBind_MultipleProducersRejected(t *testing.T) {
	m := &manifest.Manifest{
		Dir: t.TempDir(),
		Models: []manifest.Model{
			{Name: "a", Driver: "shell", Args: []string{"true"},
				Outputs: []manifest.Channel{{Name: "out", Driver: "raw", Args: "q"}}},
			{Name: "b", Driver: "shell", Args: []string{"true"},
				Outputs: []manifest.Channel{{Name: "out", Driver: "raw", Args: "q"}}},
		},
	}

	_, err := bindFixture(t, m)
	var bindErr *channel.BindingError
	require.ErrorAs(t, err, &bindErr)
	assert.Contains(t, bindErr.Reason, "multiple producers")
}

func TestBind_PairedEncodingMismatch(t *testing.T) {
	pair := func(out, in manifest.Channel) *manifest.Manifest {
		return &manifest.Manifest{
			Dir: t.TempDir(),
			Models: []manifest.Model{
				{Name: "producer", Driver: "shell", Args: []string{"true"},
					Outputs: []manifest.Channel{out}},
				{Name: "consumer", Driver: "shell", Args: []string{"true"},
					Inputs: []manifest.Channel{in}},
			},
		}
	}

	// An array producer against a row consumer would make the consumer
	// read the whole table blob as its header frame.
	_, err := bindFixture(t, pair(
		manifest.Channel{Name: "out", Driver: "table", Args: "q", FieldNames: manifest.NameList{"a", "b"}, AsArray: true},
		manifest.Channel{Name: "in", Driver: "table", Args: "q"},
	))
	var bindErr *channel.BindingError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, "consumer", bindErr.Model)
	assert.Contains(t, bindErr.Reason, "as_array")

	_, err = bindFixture(t, pair(
		manifest.Channel{Name: "out", Driver: "table", Args: "q", FieldNames: manifest.NameList{"a", "b"}},
		manifest.Channel{Name: "in", Driver: "raw", Args: "q"},
	))
	require.ErrorAs(t, err, &bindErr)
	assert.Contains(t, bindErr.Reason, "does not match")
}

func TestBind_MissingInputFile(t *testing.T) {
	m := &manifest.Manifest{
		Dir: t.TempDir(),
		Models: []manifest.Model{
			{Name: "reader", Driver: "shell", Args: []string{"true"},
				Inputs: []manifest.Channel{{Name: "in", Driver: "raw", Args: "absent.txt"}}},
		},
	}

	_, err := bindFixture(t, m)
	var bindErr *channel.BindingError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, "reader", bindErr.Model)
	assert.Equal(t, "in", bindErr.Channel)
}

func TestBind_ExistingInputFileResolves(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.txt"), []byte("x"), 0o644))

	m := &manifest.Manifest{
		Dir: dir,
		Models: []manifest.Model{
			{Name: "reader", Driver: "shell", Args: []string{"true"},
				Inputs: []manifest.Channel{{Name: "in", Driver: "raw", Args: "data.txt"}}},
		},
	}

	p, err := bindFixture(t, m)
	require.NoError(t, err)
	spec := p.specs["reader"][0]
	assert.Equal(t, channel.TransportFile, spec.Transport)
	assert.Equal(t, filepath.Join(dir, "data.txt"), spec.Target)
}

func TestBind_InTempRelocation(t *testing.T) {
	br, err := broker.Start()
	require.NoError(t, err)
	t.Cleanup(br.Close)

	tempDir := t.TempDir()
	m := &manifest.Manifest{
		Dir: t.TempDir(),
		Models: []manifest.Model{
			{Name: "writer", Driver: "shell", Args: []string{"true"},
				Outputs: []manifest.Channel{{Name: "scratch", Driver: "raw", Args: "scratch.bin", InTemp: true}}},
		},
	}

	p, err := bind(context.Background(), m, encdec.Default(), process.DefaultDrivers(), tempDir, br.Client())
	require.NoError(t, err)
	spec := p.specs["writer"][0]
	assert.Equal(t, channel.TransportFile, spec.Transport)
	assert.Equal(t, filepath.Join(tempDir, "scratch.bin"), spec.Target)
}

func TestBind_UnknownDrivers(t *testing.T) {
	badModel := &manifest.Manifest{
		Dir: t.TempDir(),
		Models: []manifest.Model{
			{Name: "m", Driver: "fortran", Args: []string{"x"}},
		},
	}
	_, err := bindFixture(t, badModel)
	var bindErr *channel.BindingError
	require.ErrorAs(t, err, &bindErr)

	badChannel := &manifest.Manifest{
		Dir: t.TempDir(),
		Models: []manifest.Model{
			{Name: "m", Driver: "shell", Args: []string{"true"},
				Outputs: []manifest.Channel{{Name: "out", Driver: "hdf5", Args: "q"}}},
		},
	}
	_, err = bindFixture(t, badChannel)
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, "out", bindErr.Channel)
}

func TestBind_ResolvesArgv(t *testing.T) {
	m := &manifest.Manifest{
		Dir: t.TempDir(),
		Models: []manifest.Model{
			{Name: "m", Driver: "python", Args: []string{"model.py"}},
		},
	}
	p, err := bindFixture(t, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"python3", "model.py"}, p.argv["m"])
}
