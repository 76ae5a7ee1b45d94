package workbench

import (
	"context"
	"sync"

	"github.com/flexplan/flexplan"
	"github.com/flexplan/flexplan/observability"
)

// ConcurrentLoop is the intra-worker-concurrent Workbench variant: each
// mail is dispatched to its own goroutine as soon as it is pulled, rather
// than blocking the loop until the previous mail's instruction returns.
// In-flight dispatches are tracked with a WaitGroup so shutdown can wait
// for them to drain before releasing the worker's scope.
type ConcurrentLoop struct {
	base
	inflight sync.WaitGroup
}

// NewConcurrentLoop constructs a concurrent workbench for workerClassID.
func NewConcurrentLoop(workerClassID string, creator *flexplan.InstanceCreator[any], inbox, outbox *flexplan.Mailbox, observer observability.Observer) *ConcurrentLoop {
	return &ConcurrentLoop{base: newBase(workerClassID, creator, inbox, outbox, observer)}
}

func (l *ConcurrentLoop) Run(ctx context.Context) {
	l.setState(StateStarted)

	worker, ok := l.construct(ctx)
	if !ok {
		l.setState(StateStopped)
		return
	}

	l.setRunning(true)

	if err := l.runPostInit(ctx, worker); err != nil {
		l.setRunning(false)
		l.setState(StateStopped)
		l.outbox.Put(flexplan.NewFatalMail[any](&flexplan.WorkerRuntimeError{WorkerClassID: l.workerClassID, Err: err}, nil))
		return
	}

	release, err := l.acquireScope(worker)
	if err != nil {
		l.setRunning(false)
		l.setState(StateStopped)
		l.outbox.Put(flexplan.NewFatalMail[any](&flexplan.WorkerRuntimeError{WorkerClassID: l.workerClassID, Err: err}, nil))
		return
	}

	l.loop(ctx, worker)
	l.inflight.Wait()
	release()
}

func (l *ConcurrentLoop) loop(ctx context.Context, worker any) {
	for {
		select {
		case <-ctx.Done():
			l.finish()
			return
		default:
		}

		mail, ok := l.inbox.Get(pollInterval)
		if !ok {
			continue
		}
		if mail == nil { // poison pill
			l.finish()
			return
		}
		if mail.Fatal != nil {
			mail.Deliver(nil, mail.Fatal)
			l.finish()
			return
		}

		l.observer.OnEvent(ctx, observability.Event{
			Type:   observability.EventTaskDispatched,
			Level:  observability.LevelVerbose,
			Source: l.workerClassID,
		})

		l.inflight.Add(1)
		go func(m *flexplan.Mail) {
			defer l.inflight.Done()
			dispatch(ctx, l.workerClassID, worker, l.outbox, m)
		}(mail)
	}
}

func (l *ConcurrentLoop) finish() {
	l.setState(StateStopping)
	drainBestEffort(l.inbox)
	l.setRunning(false)
	l.setState(StateStopped)
}
