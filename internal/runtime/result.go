package runtime

import "time"

// ModelResult is the recorded outcome of one model process.
type ModelResult struct {
	Name string `json:"name"`

	// ExitCode is the process exit code, -1 when the process never
	// reported one.
	ExitCode int `json:"exit_code"`

	// Forced reports that the supervisor terminated the process after
	// the grace period expired.
	Forced bool `json:"forced"`

	Duration time.Duration `json:"duration"`

	// Err holds a spawn or wait failure, distinct from a non-zero
	// exit.
	Err error `json:"-"`
}

// Failed reports whether the model counts against the aggregate
// outcome.
func (m ModelResult) Failed() bool {
	return m.ExitCode != 0 || m.Forced || m.Err != nil
}

// Result is the aggregate outcome of one pipeline run.
type Result struct {
	Outcome Outcome       `json:"outcome"`
	Models  []ModelResult `json:"models"`

	// Err is set when the run failed before or outside of model
	// execution, e.g. a binding error.
	Err error `json:"-"`
}

// aggregate derives the outcome from the per-model results.
func aggregate(models []ModelResult) Outcome {
	outcome := OutcomeSuccess
	for _, m := range models {
		if m.Forced || m.Err != nil {
			return OutcomeFailure
		}
		if m.ExitCode != 0 {
			outcome = OutcomePartialFailure
		}
	}
	return outcome
}
