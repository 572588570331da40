package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	backend "github.com/redis/go-redis/v9"

	"github.com/couplet-run/couplet/internal/process"
	"github.com/couplet-run/couplet/pkg/channel"
	"github.com/couplet-run/couplet/pkg/encdec"
	"github.com/couplet-run/couplet/pkg/manifest"
)

// plan is the fully resolved binding of a manifest: every endpoint
// spec per model plus the queue bookkeeping the supervisor needs to
// release endpoints as processes exit.
type plan struct {
	// specs holds the resolved endpoint specs per model name, in
	// declaration order.
	specs map[string][]channel.Spec

	// producedQueues and consumedQueues map a model name to the queue
	// targets it writes and reads.
	producedQueues map[string][]string
	consumedQueues map[string][]string

	// queueConsumers counts the consumer endpoints per queue target. A
	// queue is closed from the consumer side only when all of its
	// consumers' processes have exited.
	queueConsumers map[string]int

	// argv holds the resolved command line per model.
	argv map[string][]string
}

// bind resolves every declared channel to a transport, validates all
// driver tags, and registers queue consumers. Any failure is a
// *channel.BindingError; nothing is spawned and no file is created
// beyond output parent directories.
func bind(ctx context.Context, m *manifest.Manifest, codecs *encdec.Registry, drivers *process.DriverRegistry, tempDir string, rdb *backend.Client) (*plan, error) {
	p := &plan{
		specs:          make(map[string][]channel.Spec),
		producedQueues: make(map[string][]string),
		consumedQueues: make(map[string][]string),
		queueConsumers: make(map[string]int),
		argv:           make(map[string][]string),
	}

	for _, model := range m.Models {
		d, err := drivers.Resolve(model.Driver)
		if err != nil {
			return nil, &channel.BindingError{Model: model.Name, Reason: err.Error()}
		}
		argv, err := d(model.Args)
		if err != nil {
			return nil, &channel.BindingError{Model: model.Name, Reason: err.Error()}
		}
		p.argv[model.Name] = argv
	}

	// Channels pair into a queue when one model's output argument
	// matches another's input argument. in_temp channels are file
	// relocations and never pair.
	producers := make(map[string][]manifest.DeclaredChannel)
	consumers := make(map[string][]manifest.DeclaredChannel)
	var all []manifest.DeclaredChannel
	for _, model := range m.Models {
		for _, decl := range model.Channels() {
			all = append(all, decl)
			if decl.Channel.InTemp {
				continue
			}
			if decl.Direction == channel.Output {
				producers[decl.Channel.Args] = append(producers[decl.Channel.Args], decl)
			} else {
				consumers[decl.Channel.Args] = append(consumers[decl.Channel.Args], decl)
			}
		}
	}

	for target, outs := range producers {
		if len(outs) > 1 {
			second := outs[1]
			return nil, &channel.BindingError{
				Model:   second.Model,
				Channel: second.Channel.Name,
				Reason:  fmt.Sprintf("multiple producers for %q (first declared by model %q)", target, outs[0].Model),
			}
		}
		// Paired endpoints must agree on their encoding, or the consumer
		// would misparse the producer's frames mid-run.
		out := outs[0]
		for _, in := range consumers[target] {
			if in.Channel.Driver != out.Channel.Driver {
				return nil, &channel.BindingError{
					Model:   in.Model,
					Channel: in.Channel.Name,
					Reason: fmt.Sprintf("driver %q does not match driver %q of producer %q (model %q)",
						in.Channel.Driver, out.Channel.Driver, out.Channel.Name, out.Model),
				}
			}
			if in.Channel.AsArray != out.Channel.AsArray {
				return nil, &channel.BindingError{
					Model:   in.Model,
					Channel: in.Channel.Name,
					Reason: fmt.Sprintf("as_array disagrees with producer %q (model %q)",
						out.Channel.Name, out.Model),
				}
			}
		}
	}

	for _, decl := range all {
		c := decl.Channel
		if _, err := codecs.New(c.Driver, c.DriverOptions()); err != nil {
			return nil, &channel.BindingError{Model: decl.Model, Channel: c.Name, Reason: err.Error()}
		}

		spec := channel.Spec{
			Name:       c.Name,
			Model:      decl.Model,
			Direction:  decl.Direction,
			Driver:     c.Driver,
			Options:    c.DriverOptions(),
			TimeoutSec: c.Timeout,
		}

		paired := !c.InTemp &&
			((decl.Direction == channel.Output && len(consumers[c.Args]) > 0) ||
				(decl.Direction == channel.Input && len(producers[c.Args]) > 0))

		if paired {
			spec.Transport = channel.TransportQueue
			spec.Target = c.Args
			if decl.Direction == channel.Output {
				p.producedQueues[decl.Model] = append(p.producedQueues[decl.Model], c.Args)
			} else {
				p.consumedQueues[decl.Model] = append(p.consumedQueues[decl.Model], c.Args)
				p.queueConsumers[c.Args]++
				if err := channel.RegisterConsumer(ctx, rdb, c.Args); err != nil {
					return nil, &channel.BindingError{Model: decl.Model, Channel: c.Name, Reason: err.Error()}
				}
			}
		} else {
			target, err := resolveFile(m.Dir, tempDir, decl)
			if err != nil {
				return nil, err
			}
			spec.Transport = channel.TransportFile
			spec.Target = target
		}

		p.specs[decl.Model] = append(p.specs[decl.Model], spec)
	}

	return p, nil
}

// resolveFile turns a file-backed declaration into an absolute path,
// applying the in_temp relocation and checking that inputs exist.
func resolveFile(dir, tempDir string, decl manifest.DeclaredChannel) (string, error) {
	c := decl.Channel
	var target string
	if c.InTemp {
		target = filepath.Join(tempDir, c.Args)
	} else {
		target = absAgainst(dir, c.Args)
	}

	if decl.Direction == channel.Input {
		if _, err := os.Stat(target); err != nil {
			return "", &channel.BindingError{
				Model:   decl.Model,
				Channel: c.Name,
				Reason:  fmt.Sprintf("no producer for %q and no such file: %s", c.Args, target),
			}
		}
		return target, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", &channel.BindingError{Model: decl.Model, Channel: c.Name, Reason: err.Error()}
	}
	return target, nil
}

func absAgainst(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
