// Package couplet couples independently written programs into one
// running pipeline. Each program ("model") is declared in a manifest
// with the named channels it reads and writes; the runtime resolves
// matching channel names into shared queues, binds the rest to files,
// spawns every model as its own process, and supervises the run until
// all of them have exited.
//
// Models stay ignorant of transports. At spawn time every endpoint is
// advertised through the child's environment, and the model's client
// library (pkg/client for Go) opens channels by name alone.
package couplet

import (
	"context"

	"github.com/couplet-run/couplet/internal/runtime"
	"github.com/couplet-run/couplet/pkg/manifest"
)

// Version is the release version of couplet.
const Version = "0.1.0"

// Result is the aggregate outcome of one pipeline run.
type Result = runtime.Result

// Option configures a pipeline run.
type Option = runtime.Option

// Re-exported run options.
var (
	WithLogger       = runtime.WithLogger
	WithGrace        = runtime.WithGrace
	WithKeepProducts = runtime.WithKeepProducts
)

// Run loads the manifest at path and executes the pipeline to
// completion.
func Run(ctx context.Context, path string, opts ...Option) (*Result, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	return runtime.New(m, opts...).Execute(ctx)
}

// Validate loads the manifest at path and resolves every binding
// without spawning a process.
func Validate(ctx context.Context, path string) error {
	m, err := manifest.Load(path)
	if err != nil {
		return err
	}
	return runtime.DryRun(ctx, m)
}
