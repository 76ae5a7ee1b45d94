package flexplan

import "fmt"

// InstanceCreator is a deferred worker-instance construction recipe: a
// worker class identifier plus the bound constructor arguments needed to
// build one instance, without actually building it. A workshop holds one
// InstanceCreator per registered worker class and invokes New to produce
// each running instance a station hosts.
type InstanceCreator[T any] struct {
	workerClassID string
	args          []any
	kwargs        map[string]any
	build         func(args []any, kwargs map[string]any) (T, error)
}

// NewInstanceCreator binds workerClassID to build, the worker class's
// constructor, and the arguments it should be called with for every
// instance produced from this creator.
func NewInstanceCreator[T any](workerClassID string, build func(args []any, kwargs map[string]any) (T, error), args []any, kwargs map[string]any) *InstanceCreator[T] {
	return &InstanceCreator[T]{
		workerClassID: workerClassID,
		args:          args,
		kwargs:        kwargs,
		build:         build,
	}
}

// WorkerClassID returns the worker class this creator builds instances of.
func (c *InstanceCreator[T]) WorkerClassID() string { return c.workerClassID }

// New builds one worker instance from the bound recipe. A panic in the
// constructor is recovered and returned as an error.
func (c *InstanceCreator[T]) New() (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v, err = zero, fmt.Errorf("%s: instantiate worker class %q: panicked: %v", Namespace, c.workerClassID, r)
		}
	}()
	v, err = c.build(c.args, c.kwargs)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s: instantiate worker class %q: %w", Namespace, c.workerClassID, err)
	}
	return v, nil
}
