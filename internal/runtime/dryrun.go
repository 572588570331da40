package runtime

import (
	"context"
	"os"

	"github.com/couplet-run/couplet/internal/broker"
	"github.com/couplet-run/couplet/internal/process"
	"github.com/couplet-run/couplet/pkg/encdec"
	"github.com/couplet-run/couplet/pkg/manifest"
)

// DryRun resolves every binding of the manifest without spawning a
// single process. It surfaces the same BindingError a real run would
// hit, so `validate` catches graph problems before anything executes.
func DryRun(ctx context.Context, m *manifest.Manifest) error {
	br, err := broker.Start()
	if err != nil {
		return err
	}
	defer br.Close()

	tempDir, err := os.MkdirTemp("", "couplet-validate-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tempDir)

	_, err = bind(ctx, m, encdec.Default(), process.DefaultDrivers(), tempDir, br.Client())
	return err
}
