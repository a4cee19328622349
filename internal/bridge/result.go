package bridge

import "github.com/ppiankov/codexbridge/internal/stream"

// Outcome is the final disposition of one codex invocation.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeAborted   Outcome = "aborted"
)

// Result is the single settled answer of an invocation. Exactly one Result
// is produced per Run call, regardless of which termination trigger fired.
type Result struct {
	Outcome  Outcome
	Message  string // latest agent_message text captured before settlement
	Stderr   string // captured stderr, populated on failure
	ExitCode int
	Events   []stream.Event
	Usage    *stream.Usage
}

// Progress is a mid-run snapshot handed to the progress callback. Events is
// a copy: later stream activity never mutates a snapshot already delivered.
type Progress struct {
	Events      []stream.Event
	LastMessage string
	Streaming   bool
}

// synthesize builds the final Result from accumulated operation state.
// Cancellation takes precedence over exit status: a process that was asked
// to stop may exit non-zero, and that must still read as aborted.
// All state reads go through the mutex: on the abandonment path the consume
// goroutine may still be appending while the result is built.
func synthesize(st *opState, cancelled bool, exitCode int, stderr string) *Result {
	res := &Result{
		Message:  st.last(),
		ExitCode: exitCode,
		Events:   st.snapshotEvents(),
		Usage:    st.usageSnapshot(),
	}
	switch {
	case cancelled:
		res.Outcome = OutcomeAborted
	case exitCode == 0:
		res.Outcome = OutcomeSucceeded
	default:
		res.Outcome = OutcomeFailed
		res.Stderr = stderr
	}
	return res
}
