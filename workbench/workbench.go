// Package workbench runs a single worker's message-processing loop on
// behalf of a station: construct the worker, signal readiness, then pull
// mail from an inbox and dispatch each one to the worker instance until a
// terminate signal (or fatal mail) is observed.
package workbench

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flexplan/flexplan"
	"github.com/flexplan/flexplan/observability"
)

// State is a workbench's position in its run lifecycle.
type State int

const (
	StateInitial State = iota
	StateStarted
	StateStopping
	StateStopped
)

// ErrWorkerClassMismatch is returned (and recorded on the offending mail's
// future) when an instruction targets a worker class other than the one
// this workbench's worker was constructed from.
var ErrWorkerClassMismatch = errors.New(flexplan.Namespace + ": instruction worker class does not match running worker")

// PostIniter is implemented by worker instances that need a one-time hook
// invoked after construction and before the run loop begins.
type PostIniter interface {
	PostInit(ctx context.Context) error
}

// ScopedWorker is implemented by worker instances that hold a resource for
// the lifetime of the run loop (step 5/8 of the lifecycle: acquire before
// looping, release on exit).
type ScopedWorker interface {
	Acquire() error
	Release()
}

// Workbench runs one worker instance's message loop.
type Workbench interface {
	// Run constructs the worker and processes mail until terminated or ctx
	// is done. It blocks until the loop exits.
	Run(ctx context.Context)
	WorkerClassID() string
	Inbox() *flexplan.Mailbox
	Outbox() *flexplan.Mailbox
	State() State
	// Running reports whether the worker has completed construction and
	// post-init and is actively processing mail.
	Running() bool
}

// pollInterval is the short timeout used for each inbox poll (lifecycle
// step 6), letting the loop notice ctx cancellation promptly without
// busy-waiting.
const pollInterval = 50 * time.Millisecond

// base holds the state shared by Loop and ConcurrentLoop.
type base struct {
	workerClassID string
	creator       *flexplan.InstanceCreator[any]
	inbox         *flexplan.Mailbox
	outbox        *flexplan.Mailbox
	observer      observability.Observer

	mu      sync.RWMutex
	state   State
	running bool
}

func newBase(workerClassID string, creator *flexplan.InstanceCreator[any], inbox, outbox *flexplan.Mailbox, observer observability.Observer) base {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	return base{
		workerClassID: workerClassID,
		creator:       creator,
		inbox:         inbox,
		outbox:        outbox,
		observer:      observer,
	}
}

func (b *base) WorkerClassID() string     { return b.workerClassID }
func (b *base) Inbox() *flexplan.Mailbox  { return b.inbox }
func (b *base) Outbox() *flexplan.Mailbox { return b.outbox }

func (b *base) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *base) Running() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

func (b *base) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

func (b *base) setRunning(v bool) {
	b.mu.Lock()
	b.running = v
	b.mu.Unlock()
}

// construct builds the worker instance and, on failure, pushes a fatal mail
// onto the outbox before returning ok=false. It never panics: the
// creator's own panic protection lives in InstanceCreator.New.
func (b *base) construct(ctx context.Context) (worker any, ok bool) {
	instance, err := b.creator.New()
	if err != nil {
		b.outbox.Put(flexplan.NewFatalMail[any](&flexplan.WorkerRuntimeError{WorkerClassID: b.workerClassID, Err: err}, nil))
		b.observer.OnEvent(ctx, observability.Event{
			Type:   "workbench.construct_failed",
			Level:  observability.LevelError,
			Source: b.workerClassID,
			Data:   map[string]any{"error": err.Error()},
		})
		return nil, false
	}
	b.observer.OnEvent(ctx, observability.Event{
		Type:   observability.EventWorkerConstruct,
		Level:  observability.LevelVerbose,
		Source: b.workerClassID,
	})
	return instance, true
}

func (b *base) runPostInit(ctx context.Context, worker any) error {
	if pi, ok := worker.(PostIniter); ok {
		return pi.PostInit(ctx)
	}
	return nil
}

func (b *base) acquireScope(worker any) (func(), error) {
	sw, ok := worker.(ScopedWorker)
	if !ok {
		return func() {}, nil
	}
	if err := sw.Acquire(); err != nil {
		return func() {}, err
	}
	return sw.Release, nil
}

// dispatch resolves and invokes mail's instruction against worker, then
// delivers the outcome to mail's future sink. The worker's outbox is
// installed as the current context for the duration of the invocation, so
// Message.Submit/Emit called from inside the instruction posts onto this
// worker's outbox; the value does not outlive the call. A panic never
// escapes the worker invocation.
func dispatch(ctx context.Context, workerClassID string, worker any, outbox *flexplan.Mailbox, mail *flexplan.Mail) {
	if mail.Instruction.WorkerClassID != "" && mail.Instruction.WorkerClassID != workerClassID {
		mail.Deliver(nil, ErrWorkerClassMismatch)
		return
	}

	result, err := invokeRecovered(flexplan.ContextWithOutbox(ctx, outbox), mail, worker)
	mail.Deliver(result, err)
}

func invokeRecovered(ctx context.Context, mail *flexplan.Mail, worker any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: instruction %q panicked: %v", flexplan.Namespace, mail.Instruction.MethodID, r)
		}
	}()
	if mail.Instruction.Call == nil {
		return nil, fmt.Errorf("%s: instruction %q has no call binding", flexplan.Namespace, mail.Instruction.MethodID)
	}
	return mail.Instruction.Call(ctx, worker, mail.Args, mail.KwArgs)
}

// drainBestEffort empties the inbox without blocking, delivering a shutdown
// error to every drained mail's future, per lifecycle step 8.
func drainBestEffort(inbox *flexplan.Mailbox) {
	for {
		mail, ok := inbox.Get(0)
		if !ok {
			return
		}
		if mail == nil {
			continue
		}
		mail.Deliver(nil, errors.New(flexplan.Namespace+": workbench stopped before mail was processed"))
	}
}
