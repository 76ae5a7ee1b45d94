package workbench

import (
	"context"

	"github.com/flexplan/flexplan"
	"github.com/flexplan/flexplan/observability"
)

// Loop is the sequential Workbench: it processes one mail at a time in
// the goroutine that calls Run, so the worker instance never sees two
// instructions concurrently.
type Loop struct {
	base
}

// NewLoop constructs a sequential workbench for workerClassID, built by
// creator, exchanging mail over inbox/outbox.
func NewLoop(workerClassID string, creator *flexplan.InstanceCreator[any], inbox, outbox *flexplan.Mailbox, observer observability.Observer) *Loop {
	return &Loop{base: newBase(workerClassID, creator, inbox, outbox, observer)}
}

func (l *Loop) Run(ctx context.Context) {
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
	defer release()

	l.loop(ctx, worker)
}

func (l *Loop) loop(ctx context.Context, worker any) {
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
		dispatch(ctx, l.workerClassID, worker, l.outbox, mail)
	}
}

func (l *Loop) finish() {
	l.setState(StateStopping)
	drainBestEffort(l.inbox)
	l.setRunning(false)
	l.setState(StateStopped)
}
