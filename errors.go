package flexplan

import "errors"

// Namespace prefixes every sentinel error message exported by this module,
// so error text is attributable to it at a glance.
const Namespace = "flexplan"

var (
	// ErrItemExists is returned by DependencyChain.Add when the item is
	// already present and its prior state was not cyclic.
	ErrItemExists = errors.New(Namespace + ": item already exists in chain")

	// ErrSelfDependency is returned when an item is declared to depend on
	// itself, directly or via its own "after" set.
	ErrSelfDependency = errors.New(Namespace + ": item cannot depend on itself")

	// ErrItemNotFound is returned by chain queries on an absent item.
	ErrItemNotFound = errors.New(Namespace + ": item not found in chain")

	// ErrInvalidItems is returned by a run when the chain contains cyclic,
	// missing, or invalid-dependency items.
	ErrInvalidItems = errors.New(Namespace + ": chain contains invalid items")

	// ErrFutureAlreadySet is returned when both Future.SetResult and
	// Future.SetException are attempted, or either is attempted twice.
	ErrFutureAlreadySet = errors.New(Namespace + ": future result already set")

	// ErrFutureNotCancellable is returned by Future.Cancel once the future
	// has left the pending state.
	ErrFutureNotCancellable = errors.New(Namespace + ": future is no longer pending")

	// ErrMessageParamsSet is returned when Message.Params is called twice.
	ErrMessageParamsSet = errors.New(Namespace + ": message params already set")

	// ErrNoContext is returned when Message.Submit/Emit is called from code
	// that is not executing on behalf of a running worker.
	ErrNoContext = errors.New(Namespace + ": no worker context for message send")

	// ErrWorkerNotFound is returned when mail is routed to a worker class
	// with no registered station.
	ErrWorkerNotFound = errors.New(Namespace + ": worker not found for instruction")

	// ErrReservedInstruction is returned when a mail's instruction is a
	// reserved string sentinel.
	ErrReservedInstruction = errors.New(Namespace + ": instruction is reserved")
)

// ChainError reports an invalid-chain condition discovered before or during
// a run, naming the offending items.
type ChainError struct {
	Cyclic    []string
	NotFound  []string
	ErrorDeps []string
}

func (e *ChainError) Error() string {
	return Namespace + ": invalid dependency chain (cyclic=" + joinOrNone(e.Cyclic) +
		", not_found=" + joinOrNone(e.NotFound) + ", error_dep=" + joinOrNone(e.ErrorDeps) + ")"
}

func (e *ChainError) Unwrap() error { return ErrInvalidItems }

// WorkerNotFoundError reports mail routed to a worker class with no
// registered station.
type WorkerNotFoundError struct {
	WorkerClassID string
	MethodID      string
}

func (e *WorkerNotFoundError) Error() string {
	return Namespace + ": no station registered for worker class " + e.WorkerClassID +
		" (method " + e.MethodID + ")"
}

func (e *WorkerNotFoundError) Unwrap() error { return ErrWorkerNotFound }

// WorkerRuntimeError reports a workbench that terminated abnormally: its
// worker failed to construct, its post-init or scope acquisition failed,
// or it observed a system-level failure.
type WorkerRuntimeError struct {
	WorkerClassID string
	Err           error
}

func (e *WorkerRuntimeError) Error() string {
	return Namespace + ": worker " + e.WorkerClassID + " terminated: " + e.Err.Error()
}

func (e *WorkerRuntimeError) Unwrap() error { return e.Err }

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	out := items[0]
	for _, it := range items[1:] {
		out += "," + it
	}
	return out
}
