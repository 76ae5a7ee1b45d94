package flexplan

import (
	"context"
	"fmt"
	"reflect"
)

// ErrorPolicy selects what Task.Get does when the task's callable returned
// an error.
type ErrorPolicy int

const (
	// OnErrorRaise wraps the error naming the task and re-raises it.
	OnErrorRaise ErrorPolicy = iota
	// OnErrorIgnore returns the zero value and swallows the error.
	OnErrorIgnore
	// OnErrorCoerce calls the task's Coerce callable (or returns its value
	// verbatim) in place of the error.
	OnErrorCoerce
)

// TaskState is a task's position in its defined -> invoked -> ready -> got
// lifecycle. Transitions are monotonic.
type TaskState int

const (
	TaskDefined TaskState = iota
	TaskInvoked
	TaskReady
	TaskGot
)

// TaskFunc is the callable shape a Task executes. args/kwargs are the
// task's positional/keyword arguments after placeholder substitution.
type TaskFunc[R any] func(ctx context.Context, args []any, kwargs map[string]any) (R, error)

// Gettable is the type-erased view of a Task used by placeholder
// resolution and by code that must hold a set of heterogeneous-result
// tasks (e.g. DependencyChain successors) without knowing each one's R.
type Gettable interface {
	// Name returns the task's name.
	Name() string
	// GetAny blocks until the task's future is done and returns its result
	// as an untyped value, applying the task's error policy.
	GetAny(ctx context.Context) (any, error)
	// State returns the task's current lifecycle state.
	State() TaskState
}

// Task is a named unit of work: a callable plus positional and keyword
// arguments (which may contain Placeholder references to other tasks'
// results), an error policy, and a future that carries its result once
// invoked.
type Task[R any] struct {
	name    string
	fn      TaskFunc[R]
	args    []any
	kwargs  map[string]any
	after   *Set[string]
	onError ErrorPolicy

	coerce       any
	coerceArgs   []any
	coerceKwArgs map[string]any

	future *Future[R]
	state  TaskState
}

// NewTask constructs a Task. after lists the names of predecessor tasks
// whose results this task's arguments may reference via Placeholder.
func NewTask[R any](name string, fn TaskFunc[R], after ...string) *Task[R] {
	return &Task[R]{
		name:   name,
		fn:     fn,
		after:  NewSet(after...),
		future: NewFuture[R](),
		state:  TaskDefined,
	}
}

// WithArgs sets positional arguments.
func (t *Task[R]) WithArgs(args ...any) *Task[R] { t.args = args; return t }

// WithKwArgs sets keyword arguments.
func (t *Task[R]) WithKwArgs(kwargs map[string]any) *Task[R] { t.kwargs = kwargs; return t }

// WithOnError sets the error policy, and for OnErrorCoerce the coercion
// callable or verbatim value plus any bound arguments passed to it. The
// callable may be a func(error, R) R, a func(error, R, ...any) R (given
// coerceArgs), or a func(error, R, []any, map[string]any) R (given
// coerceArgs and coerceKwArgs).
func (t *Task[R]) WithOnError(policy ErrorPolicy, coerce any, coerceArgs []any, coerceKwArgs map[string]any) *Task[R] {
	t.onError = policy
	t.coerce = coerce
	t.coerceArgs = coerceArgs
	t.coerceKwArgs = coerceKwArgs
	return t
}

// Name returns the task's name.
func (t *Task[R]) Name() string { return t.name }

// After returns the set of predecessor task names.
func (t *Task[R]) After() *Set[string] { return t.after }

// State returns the task's current lifecycle state.
func (t *Task[R]) State() TaskState { return t.state }

// Future returns the task's underlying future.
func (t *Task[R]) Future() *Future[R] { return t.future }

// Invoked reports whether the task's future has been assigned (Invoke has
// run, even if the result isn't ready yet).
func (t *Task[R]) Invoked() bool { return t.state >= TaskInvoked }

// Ready reports whether the task's future has finished.
func (t *Task[R]) Ready() bool { return t.future.Done() }

// Invoke runs the task's callable against args already substituted by
// FillPlaceholders, recording the result or error on the task's future. A
// panic inside fn is recovered and recorded as an error.
func (t *Task[R]) Invoke(ctx context.Context) {
	t.state = TaskInvoked

	type outcome struct {
		result R
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		var out outcome
		defer func() {
			if r := recover(); r != nil {
				out.err = fmt.Errorf("%s: task %q panicked: %v", Namespace, t.name, r)
			}
			done <- out
		}()
		out.result, out.err = t.fn(ctx, t.args, t.kwargs)
	}()

	var out outcome
	select {
	case <-ctx.Done():
		out = outcome{err: ctx.Err()}
	case out = <-done:
	}

	t.state = TaskReady
	if out.err != nil {
		t.future.SetException(out.err)
		return
	}
	t.future.SetResult(out.result)
}

// Get blocks on the task's future and applies the error policy.
func (t *Task[R]) Get(ctx context.Context) (R, error) {
	result, err := t.future.Result(ctx)
	t.state = TaskGot
	if err == nil {
		return result, nil
	}
	return t.applyPolicy(err, result)
}

// GetAny implements Gettable.
func (t *Task[R]) GetAny(ctx context.Context) (any, error) { return t.Get(ctx) }

// Prepare resolves any Placeholder values in the task's bound arguments
// against items, a lookup of predecessor task name to its Gettable view.
// A scheduler calls this immediately before Invoke, once every predecessor
// named in After is known to be ready.
func (t *Task[R]) Prepare(ctx context.Context, items map[string]Gettable) error {
	return FillPlaceholdersContext(ctx, items, &t.args, &t.kwargs)
}

// Reset returns the task to its pre-invocation state with a fresh future,
// so a scheduler can re-dispatch it on a subsequent run.
func (t *Task[R]) Reset() {
	t.state = TaskDefined
	t.future = NewFuture[R]()
}

// GetLocal runs the task synchronously, blocking the caller until it
// finishes, substituting placeholders from items first, and returns its result
// through the same error policy as Get.
func (t *Task[R]) GetLocal(ctx context.Context, items map[string]Gettable) (R, error) {
	if err := FillPlaceholdersContext(ctx, items, &t.args, &t.kwargs); err != nil {
		var zero R
		return zero, err
	}
	t.Invoke(ctx)
	return t.Get(ctx)
}

func (t *Task[R]) applyPolicy(err error, partial R) (R, error) {
	switch t.onError {
	case OnErrorIgnore:
		var zero R
		return zero, nil

	case OnErrorCoerce:
		if fn, ok := t.coerce.(func(error, R, ...any) R); ok {
			return fn(err, partial, t.coerceArgs...), nil
		}
		if fn, ok := t.coerce.(func(error, R, []any, map[string]any) R); ok {
			return fn(err, partial, t.coerceArgs, t.coerceKwArgs), nil
		}
		if fn, ok := t.coerce.(func(error, R) R); ok {
			return fn(err, partial), nil
		}
		if v, ok := t.coerce.(R); ok {
			return v, nil
		}
		// Coerce value recorded under a different concrete type (e.g. a
		// literal passed as `any`): best-effort reflect-based conversion.
		if t.coerce != nil {
			var zero R
			rv := reflect.ValueOf(t.coerce)
			if rv.Type().ConvertibleTo(reflect.TypeOf(zero)) {
				return rv.Convert(reflect.TypeOf(zero)).Interface().(R), nil
			}
		}
		var zero R
		return zero, nil

	default: // OnErrorRaise
		var zero R
		return zero, fmt.Errorf("%s: task %q failed: %w", Namespace, t.name, err)
	}
}

// Placeholder is a deferred reference to another task's result, resolved
// by FillPlaceholders before a task's callable is invoked. Handler, if
// non-nil, is applied to the predecessor's resolved value.
type Placeholder struct {
	TaskName string
	Handler  func(any) any
}

// NewPlaceholder constructs a Placeholder referencing taskName, optionally
// transforming the resolved value with handler.
func NewPlaceholder(taskName string, handler func(any) any) Placeholder {
	return Placeholder{TaskName: taskName, Handler: handler}
}

func (p Placeholder) resolve(ctx context.Context, items map[string]Gettable) (any, error) {
	src, ok := items[p.TaskName]
	if !ok {
		return nil, fmt.Errorf("%s: placeholder references unknown task %q", Namespace, p.TaskName)
	}
	val, err := src.GetAny(ctx)
	if err != nil {
		return nil, err
	}
	if p.Handler != nil {
		val = p.Handler(val)
	}
	return val, nil
}

// FillPlaceholders walks args and kwargs in place, resolving every
// Placeholder found (recursing into slices, *Set[any], and maps) against
// items, a lookup of task name to its Gettable view.
func FillPlaceholders(items map[string]Gettable, args *[]any, kwargs *map[string]any) error {
	return FillPlaceholdersContext(context.Background(), items, args, kwargs)
}

// FillPlaceholdersContext is FillPlaceholders with an explicit context,
// propagated into each resolved predecessor's GetAny call.
func FillPlaceholdersContext(ctx context.Context, items map[string]Gettable, args *[]any, kwargs *map[string]any) error {
	if args != nil {
		resolved, err := resolveContainer(ctx, items, *args)
		if err != nil {
			return err
		}
		*args = resolved
	}
	if kwargs != nil && *kwargs != nil {
		out := make(map[string]any, len(*kwargs))
		for k, v := range *kwargs {
			rv, err := resolveValue(ctx, items, v)
			if err != nil {
				return err
			}
			out[k] = rv
		}
		*kwargs = out
	}
	return nil
}

// resolveValue resolves a single value: a Placeholder directly, or recurses
// into supported container types. Unknown container types pass through
// unchanged (only Placeholder, slice, *Set[any], and map are visited, per
// the explicit-visitor design note).
func resolveValue(ctx context.Context, items map[string]Gettable, v any) (any, error) {
	switch val := v.(type) {
	case Placeholder:
		return val.resolve(ctx, items)

	case []any:
		return resolveContainer(ctx, items, val)

	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			rv, err := resolveValue(ctx, items, item)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil

	case *Set[any]:
		out := NewSet[any]()
		for _, item := range val.Items() {
			rv, err := resolveValue(ctx, items, item)
			if err != nil {
				return nil, err
			}
			out.Add(rv)
		}
		return out, nil

	default:
		return v, nil
	}
}

func resolveContainer(ctx context.Context, items map[string]Gettable, in []any) ([]any, error) {
	out := make([]any, len(in))
	for i, v := range in {
		rv, err := resolveValue(ctx, items, v)
		if err != nil {
			return nil, err
		}
		out[i] = rv
	}
	return out, nil
}
