// Package runtime executes one pipeline run: it resolves channel
// bindings from the manifest, spawns every model process with its
// endpoint environment, supervises the processes from a single control
// loop, and aggregates the outcome.
package runtime

import "fmt"

// State is the lifecycle phase of a pipeline run.
type State string

const (
	// StateLoaded means the manifest is parsed and no resources are
	// allocated yet.
	StateLoaded State = "loaded"

	// StateBound means every channel binding resolved; nothing has
	// been spawned.
	StateBound State = "bound"

	// StateRunning means all model processes are started.
	StateRunning State = "running"

	// StateDraining means at least one process has exited and the
	// rest are being given a grace period to finish.
	StateDraining State = "draining"

	// StateTerminated means every process is accounted for and the
	// aggregate outcome is final.
	StateTerminated State = "terminated"
)

// transitions is the allowed successor set per state.
var transitions = map[State][]State{
	StateLoaded:   {StateBound, StateTerminated},
	StateBound:    {StateRunning, StateTerminated},
	StateRunning:  {StateDraining, StateTerminated},
	StateDraining: {StateTerminated},
}

// canTransition reports whether moving from one state to another is
// legal.
func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Outcome is the aggregate result of a terminated run.
type Outcome string

const (
	// OutcomeSuccess means every model exited zero on its own.
	OutcomeSuccess Outcome = "success"

	// OutcomePartialFailure means some models exited non-zero but all
	// of them exited voluntarily.
	OutcomePartialFailure Outcome = "partial_failure"

	// OutcomeFailure means binding never completed or at least one
	// process had to be force-terminated.
	OutcomeFailure Outcome = "failure"
)

// ExitCode maps the outcome to the process exit code of `couplet run`.
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeSuccess:
		return 0
	case OutcomePartialFailure:
		return 1
	default:
		return 2
	}
}

func (s State) String() string { return string(s) }

func (o Outcome) String() string { return string(o) }

// errBadTransition builds the error for an illegal state move. The
// run only hits this on programming mistakes, never on user input.
func errBadTransition(from, to State) error {
	return fmt.Errorf("illegal run state transition %s -> %s", from, to)
}
