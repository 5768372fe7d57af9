package scheduler

import "time"

// Options controls one Scheduler.Run invocation. Grounded on the teacher's
// pkg/engine/options.go ExecutionOptions, generalized to the polling model
// spec.md §4.7 requires in place of the teacher's wave/MaxParallelism knob
// (kept here as MaxParallelNodes, same idea, different loop shape).
type Options struct {
	// MaxParallelNodes bounds how many node handlers run concurrently.
	MaxParallelNodes int

	// PollInterval is how long the step loop waits before re-scanning
	// readiness when no node is currently ready to dispatch.
	PollInterval time.Duration

	// MaxPollRetries is how many consecutive empty polls (no ready node,
	// none running) are tolerated before the scheduler declares a deadlock
	// and fails the execution with ErrDeadlock.
	MaxPollRetries int

	// NodeTimeout bounds a single node's handler invocation; zero means no
	// per-node timeout beyond the execution-level one.
	NodeTimeout time.Duration

	// ExecutionTimeout bounds the whole run; zero means no execution-level
	// timeout.
	ExecutionTimeout time.Duration

	// RetryPolicy governs node handler retries on failure.
	RetryPolicy RetryPolicy

	// ContinueOnError, when true, lets sibling-branch nodes keep running
	// after a node failure instead of failing the whole execution
	// immediately (spec.md's fail-fast-at-node-granularity policy: the
	// failed node's own downstream is abandoned either way, but unrelated
	// branches may still complete when this is set).
	ContinueOnError bool
}

// DefaultOptions mirrors the teacher's DefaultExecutionOptions, adapted to
// the polling fields.
func DefaultOptions() Options {
	return Options{
		MaxParallelNodes: 10,
		PollInterval:     50 * time.Millisecond,
		MaxPollRetries:   20,
		NodeTimeout:      5 * time.Minute,
		ExecutionTimeout: 30 * time.Minute,
		RetryPolicy:      DefaultRetryPolicy(),
	}
}
