package runtime

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/couplet-run/couplet/internal/broker"
	"github.com/couplet-run/couplet/internal/logging"
	"github.com/couplet-run/couplet/internal/observability"
	"github.com/couplet-run/couplet/internal/process"
	"github.com/couplet-run/couplet/pkg/channel"
	"github.com/couplet-run/couplet/pkg/encdec"
	"github.com/couplet-run/couplet/pkg/manifest"
)

// DefaultGrace is how long remaining processes get to finish once any
// sibling has exited.
const DefaultGrace = 10 * time.Second

// Option configures a Run.
type Option func(*Run)

// WithLogger sets the run logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Run) { r.log = log }
}

// WithGrace overrides the draining grace period.
func WithGrace(d time.Duration) Option {
	return func(r *Run) {
		if d > 0 {
			r.grace = d
		}
	}
}

// WithKeepProducts disables post-run removal of declared model
// products.
func WithKeepProducts(keep bool) Option {
	return func(r *Run) { r.keepProducts = keep }
}

// WithMetrics attaches run counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Run) { r.metrics = m }
}

// WithDrivers overrides the language driver registry.
func WithDrivers(reg *process.DriverRegistry) Option {
	return func(r *Run) { r.drivers = reg }
}

// WithCodecs overrides the encoding driver registry.
func WithCodecs(reg *encdec.Registry) Option {
	return func(r *Run) { r.codecs = reg }
}

// Run executes one manifest once.
type Run struct {
	manifest *manifest.Manifest

	log          *slog.Logger
	grace        time.Duration
	keepProducts bool
	metrics      *observability.Metrics
	drivers      *process.DriverRegistry
	codecs       *encdec.Registry

	// spawn is replaceable so tests can observe or suppress process
	// creation.
	spawn func(process.Config) (*process.Handle, error)

	mu     sync.Mutex
	state  State
	status map[string]observability.ModelStatus
}

// New prepares a run for the manifest. Nothing is allocated until
// Execute.
func New(m *manifest.Manifest, opts ...Option) *Run {
	r := &Run{
		manifest: m,
		log:      logging.NewNop(),
		grace:    DefaultGrace,
		drivers:  process.DefaultDrivers(),
		codecs:   encdec.Default(),
		spawn:    process.Spawn,
		state:    StateLoaded,
		status:   make(map[string]observability.ModelStatus),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, model := range m.Models {
		r.status[model.Name] = observability.ModelStatus{Name: model.Name, State: "pending"}
	}
	return r
}

// State returns the current lifecycle phase.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Status snapshots the run for the status endpoint.
func (r *Run) Status() observability.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := observability.RunStatus{State: string(r.state)}
	for _, model := range r.manifest.Models {
		st.Models = append(st.Models, r.status[model.Name])
	}
	return st
}

func (r *Run) setState(to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !canTransition(r.state, to) {
		panic(errBadTransition(r.state, to))
	}
	r.state = to
}

func (r *Run) setModelStatus(name, state string, exitCode *int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status[name] = observability.ModelStatus{Name: name, State: state, ExitCode: exitCode}
}

// Execute runs the pipeline to completion. The returned error covers
// infrastructure failures only; binding and model failures are
// reported through the Result.
func (r *Run) Execute(ctx context.Context) (*Result, error) {
	br, err := broker.Start()
	if err != nil {
		return nil, err
	}
	defer br.Close()

	tempDir, err := os.MkdirTemp("", "couplet-run-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tempDir)

	p, err := bind(ctx, r.manifest, r.codecs, r.drivers, tempDir, br.Client())
	if err != nil {
		r.setState(StateTerminated)
		r.log.Error("binding failed", "error", err)
		return &Result{Outcome: OutcomeFailure, Err: err}, nil
	}
	r.setState(StateBound)
	r.log.Info("bindings resolved", "models", len(r.manifest.Models), "broker", br.Addr())

	results := r.superviseModels(ctx, p, br)

	r.setStateTerminated()

	ordered := make([]ModelResult, 0, len(r.manifest.Models))
	for _, model := range r.manifest.Models {
		ordered = append(ordered, results[model.Name])
	}
	outcome := aggregate(ordered)

	if !r.keepProducts {
		r.removeProducts()
	}

	r.log.Info("run terminated", "outcome", outcome)
	return &Result{Outcome: outcome, Models: ordered}, nil
}

func (r *Run) setStateTerminated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateTerminated
}

// superviseModels spawns every model and runs the single control loop
// until all processes are accounted for.
func (r *Run) superviseModels(ctx context.Context, p *plan, br *broker.Broker) map[string]ModelResult {
	rdb := br.Client()
	results := make(map[string]ModelResult)
	consumersLeft := make(map[string]int, len(p.queueConsumers))
	for q, n := range p.queueConsumers {
		consumersLeft[q] = n
	}

	closeQueue := func(q string) {
		if err := channel.CloseQueue(context.Background(), rdb, q); err != nil {
			r.log.Warn("closing queue", "queue", q, "error", err)
			return
		}
		if r.metrics != nil {
			r.metrics.QueuesClosed.Inc()
		}
	}

	// release drops a finished model's side of every queue it touched.
	// Producer queues close immediately so consumers see end of
	// stream; consumer queues close once the last consumer is gone so
	// a blocked producer fails instead of hanging.
	release := func(name string) {
		for _, q := range p.producedQueues[name] {
			closeQueue(q)
		}
		for _, q := range p.consumedQueues[name] {
			consumersLeft[q]--
			if consumersLeft[q] <= 0 {
				closeQueue(q)
			}
		}
	}

	var handles []*process.Handle
	for _, model := range r.manifest.Models {
		h, err := r.spawnModel(model, p, br.Addr())
		if err != nil {
			r.log.Error("spawn failed", "model", model.Name, "error", err)
			code := -1
			results[model.Name] = ModelResult{Name: model.Name, ExitCode: -1, Err: err}
			r.setModelStatus(model.Name, "spawn_failed", &code)
			release(model.Name)
			continue
		}
		handles = append(handles, h)
		r.setModelStatus(model.Name, "running", nil)
		if r.metrics != nil {
			r.metrics.ProcessesSpawned.Inc()
		}
	}
	r.setState(StateRunning)

	exits := make(chan *process.Handle, len(handles))
	for _, h := range handles {
		h := h
		go func() {
			<-h.Done()
			exits <- h
		}()
	}

	remaining := len(handles)
	finished := make(map[string]bool)

	var graceC <-chan time.Time
	draining := func() {
		if r.State() == StateRunning {
			r.setState(StateDraining)
		}
		graceC = time.After(r.grace)
	}
	if len(results) > 0 && remaining > 0 {
		draining()
	}

	terminateStragglers := func() {
		for _, h := range handles {
			if !finished[h.Name()] {
				r.log.Warn("force terminating", "model", h.Name())
				h.Terminate()
				if r.metrics != nil {
					r.metrics.ForcedTerminations.Inc()
				}
			}
		}
	}

	ctxDone := ctx.Done()
	for remaining > 0 {
		select {
		case h := <-exits:
			st := h.Status()
			code := st.Code
			results[h.Name()] = ModelResult{
				Name:     h.Name(),
				ExitCode: st.Code,
				Forced:   st.Forced,
				Duration: st.Duration,
				Err:      st.Err,
			}
			finished[h.Name()] = true
			r.setModelStatus(h.Name(), "exited", &code)
			if r.metrics != nil {
				result := "success"
				if st.Code != 0 || st.Forced || st.Err != nil {
					result = "failure"
				}
				r.metrics.ProcessesExited.WithLabelValues(result).Inc()
			}
			r.log.Info("model exited", "model", h.Name(), "code", st.Code, "forced", st.Forced, "duration", st.Duration)
			release(h.Name())
			remaining--
			if remaining > 0 {
				draining()
			}

		case <-graceC:
			graceC = nil
			terminateStragglers()

		case <-ctxDone:
			ctxDone = nil
			r.log.Warn("run cancelled, terminating models")
			terminateStragglers()
		}
	}

	return results
}

// spawnModel resolves the working directory and endpoint environment
// for one model and starts its process.
func (r *Run) spawnModel(model manifest.Model, p *plan, brokerAddr string) (*process.Handle, error) {
	dir := r.manifest.Dir
	if model.WorkingDir != "" {
		dir = absAgainst(r.manifest.Dir, model.WorkingDir)
	}

	env := make([]string, 0, len(p.specs[model.Name])+1)
	for _, spec := range p.specs[model.Name] {
		payload, err := spec.MarshalEnv()
		if err != nil {
			return nil, err
		}
		env = append(env, spec.EnvVar()+"="+payload)
	}
	env = append(env, channel.EnvBroker+"="+brokerAddr)

	return r.spawn(process.Config{
		Name:   model.Name,
		Argv:   p.argv[model.Name],
		Dir:    dir,
		Env:    env,
		Stdout: &lineWriter{log: r.log, model: model.Name, stream: "stdout"},
		Stderr: &lineWriter{log: r.log, model: model.Name, stream: "stderr"},
	})
}

// removeProducts deletes declared per-model product files after the
// run.
func (r *Run) removeProducts() {
	for _, model := range r.manifest.Models {
		dir := r.manifest.Dir
		if model.WorkingDir != "" {
			dir = absAgainst(r.manifest.Dir, model.WorkingDir)
		}
		for _, product := range model.Products {
			path := absAgainst(dir, product)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				r.log.Warn("removing product", "model", model.Name, "path", path, "error", err)
			}
		}
	}
}

// lineWriter forwards a child process stream line by line to the run
// logger.
type lineWriter struct {
	log    *slog.Logger
	model  string
	stream string

	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			return len(p), nil
		}
		line := string(w.buf.Next(i + 1))
		w.log.Info(strings.TrimRight(line, "\r\n"), "model", w.model, "stream", w.stream)
	}
}
