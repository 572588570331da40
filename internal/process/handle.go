package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"
)

// Config describes one process to spawn.
type Config struct {
	// Name identifies the model in logs and results.
	Name string

	// Argv is the resolved command line; Argv[0] is the program.
	Argv []string

	// Dir is the working directory.
	Dir string

	// Env holds extra KEY=VALUE entries appended to the inherited
	// environment. This is how channel specs reach the child.
	Env []string

	// Stdout and Stderr receive the child's output. Nil writers fall
	// back to this process's streams.
	Stdout io.Writer
	Stderr io.Writer
}

// ExitStatus is the outcome of one finished process.
type ExitStatus struct {
	// Code is the exit code. -1 when the process was killed.
	Code int

	// Forced reports that Terminate ended the process rather than a
	// voluntary exit.
	Forced bool

	// Duration is wall time from spawn to exit.
	Duration time.Duration

	// Err holds any non-exit-code failure from waiting.
	Err error
}

// Success reports a voluntary zero exit.
func (s ExitStatus) Success() bool {
	return s.Code == 0 && !s.Forced && s.Err == nil
}

// Handle is one spawned model process. The process runs in its own
// group so Terminate takes down children it forked.
type Handle struct {
	name    string
	cmd     *exec.Cmd
	started time.Time

	done    chan struct{}
	waitErr error
	exited  time.Time
	forced  atomic.Bool
}

// Spawn starts the process described by cfg.
func Spawn(cfg Config) (*Handle, error) {
	if len(cfg.Argv) == 0 {
		return nil, fmt.Errorf("spawn %q: empty argv", cfg.Name)
	}

	cmd := exec.Command(cfg.Argv[0], cfg.Argv[1:]...)
	cmd.Dir = cfg.Dir
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	cmd.Stdout = cfg.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = cfg.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	h := &Handle{
		name:    cfg.Name,
		cmd:     cmd,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %q: %w", cfg.Name, err)
	}
	go func() {
		h.waitErr = cmd.Wait()
		h.exited = time.Now()
		close(h.done)
	}()
	return h, nil
}

// Name returns the model name the handle was spawned under.
func (h *Handle) Name() string { return h.name }

// Pid returns the child's process id.
func (h *Handle) Pid() int { return h.cmd.Process.Pid }

// Done is closed once the process has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the process exits or ctx is done.
func (h *Handle) Wait(ctx context.Context) (ExitStatus, error) {
	select {
	case <-ctx.Done():
		return ExitStatus{}, ctx.Err()
	case <-h.done:
	}
	return h.status(), nil
}

// Status reports the exit status of a finished process. It must only
// be called after Done is closed.
func (h *Handle) Status() ExitStatus { return h.status() }

func (h *Handle) status() ExitStatus {
	st := ExitStatus{
		Duration: h.exited.Sub(h.started),
		Forced:   h.forced.Load(),
	}
	var exitErr *exec.ExitError
	switch {
	case h.waitErr == nil:
		st.Code = 0
	case errors.As(h.waitErr, &exitErr):
		st.Code = exitErr.ExitCode()
	default:
		st.Code = -1
		st.Err = h.waitErr
	}
	return st
}

// Terminate kills the whole process group. It is safe to call on an
// already-exited process.
func (h *Handle) Terminate() {
	select {
	case <-h.done:
		return
	default:
	}
	h.forced.Store(true)
	syscall.Kill(-h.cmd.Process.Pid, syscall.SIGKILL)
}
