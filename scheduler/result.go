package scheduler

import (
	"context"
	"fmt"

	"github.com/flexplan/flexplan"
)

// Result is the read-only view a caller watches after RunDetached (or
// holds onto after Run). Ready/Get accept an empty name to mean "every
// task"; a non-empty name narrows to just that one.
type Result struct {
	tasks map[string]Schedulable
	done  chan struct{}
	err   error
}

func newResult(tasks map[string]Schedulable) *Result {
	return &Result{tasks: tasks, done: make(chan struct{})}
}

func (r *Result) finish(err error) {
	r.err = err
	close(r.done)
}

// Join blocks until the run finishes or ctx is done, returning the run's
// terminal error (if any).
func (r *Result) Join(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether name's task has finished, or (name == "") whether
// every task has finished.
func (r *Result) Ready(name string) bool {
	if name != "" {
		t, ok := r.tasks[name]
		return ok && t.Ready()
	}
	for _, t := range r.tasks {
		if !t.Ready() {
			return false
		}
	}
	return true
}

// Get returns name's result (applying its error policy), or (name == "")
// a map of every task's result keyed by name. The first error encountered
// (in the all-tasks case) is returned alongside the partial map.
func (r *Result) Get(ctx context.Context, name string) (any, error) {
	if name != "" {
		t, ok := r.tasks[name]
		if !ok {
			return nil, fmt.Errorf("%s: %w: %q", flexplan.Namespace, ErrTaskNotFound, name)
		}
		return t.GetAny(ctx)
	}

	out := make(map[string]any, len(r.tasks))
	var firstErr error
	for taskName, t := range r.tasks {
		v, err := t.GetAny(ctx)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		out[taskName] = v
	}
	return out, firstErr
}
