package station

import (
	"context"
	"fmt"
	"sync"

	"github.com/flexplan/flexplan"
)

// CallFunc is the shape of a worker-class method binding, identical to the
// function signature carried inline by flexplan.Instruction.Call.
type CallFunc func(ctx context.Context, receiver any, args []any, kwargs map[string]any) (any, error)

// instructionCalls is a process-wide table of (worker class, method) ->
// call binding. A process station cannot ship a Go closure across the
// process boundary, so instead it ships the (worker class, method) pair
// and the child process — which is a re-exec of the very same binary —
// resolves the call from this identically-populated table. Register every
// instruction a process-hosted worker class exposes here at init time.
var (
	callsMu sync.RWMutex
	calls   = map[string]map[string]CallFunc{}
)

// WorkerFactory builds a worker instance for a process-hosted worker
// class. Like instruction calls, a factory is a closure that cannot cross
// a process boundary: a ProcessStation's child (a re-exec of the same
// binary) resolves it from this table by worker class id alone.
type WorkerFactory func(args []any, kwargs map[string]any) (any, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]WorkerFactory{}
)

// RegisterWorkerFactory binds workerClassID to factory so a ProcessStation's
// child process can construct the worker without serializing the
// constructor itself.
func RegisterWorkerFactory(workerClassID string, factory WorkerFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[workerClassID] = factory
}

// ResolveWorkerFactory looks up a previously registered factory.
func ResolveWorkerFactory(workerClassID string) (WorkerFactory, error) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[workerClassID]
	if !ok {
		return nil, fmt.Errorf("%s: no worker factory registered for class %q", flexplan.Namespace, workerClassID)
	}
	return f, nil
}

// RegisterInstruction binds (workerClassID, methodID) to call so that a
// ProcessStation's child process can resolve instructions received over
// the wire without serializing the call itself.
func RegisterInstruction(workerClassID, methodID string, call CallFunc) {
	callsMu.Lock()
	defer callsMu.Unlock()
	if calls[workerClassID] == nil {
		calls[workerClassID] = map[string]CallFunc{}
	}
	calls[workerClassID][methodID] = call
}

// ResolveInstruction looks up a previously registered call binding, and
// builds a flexplan.Instruction around it for in-process delivery. Only
// ProcessStation's child loop calls it, to reconstruct the Instruction from
// the wire envelope; ThreadStation runs the Instruction as the caller
// provided it.
func ResolveInstruction(workerClassID, methodID string) (flexplan.Instruction, error) {
	callsMu.RLock()
	defer callsMu.RUnlock()
	fns, ok := calls[workerClassID]
	if !ok {
		return flexplan.Instruction{}, fmt.Errorf("%s: no instructions registered for worker class %q", flexplan.Namespace, workerClassID)
	}
	fn, ok := fns[methodID]
	if !ok {
		return flexplan.Instruction{}, fmt.Errorf("%s: worker class %q has no method %q", flexplan.Namespace, workerClassID, methodID)
	}
	return flexplan.Instruction{WorkerClassID: workerClassID, MethodID: methodID, Call: fn}, nil
}
