package scheduler

import (
	"context"

	"github.com/flexplan/flexplan"
)

// Schedulable is the type-erased view of a flexplan.Task[R] a Scheduler
// needs: every method here is free of R in its signature, so *Task[R] for
// any R satisfies this interface without a wrapper.
type Schedulable interface {
	flexplan.Gettable

	// After returns the names of this task's predecessors.
	After() *flexplan.Set[string]
	// Invoked reports whether Invoke has already been called this run.
	Invoked() bool
	// Ready reports whether this task's future has finished.
	Ready() bool
	// Prepare resolves Placeholder arguments against items immediately
	// before Invoke.
	Prepare(ctx context.Context, items map[string]flexplan.Gettable) error
	// Invoke runs the task's callable, blocking until it completes.
	Invoke(ctx context.Context)
	// Reset returns the task to its pre-invocation state for a re-run.
	Reset()
}
