package station

import (
	"context"
	"sync"
	"time"

	"github.com/flexplan/flexplan"
	"github.com/flexplan/flexplan/observability"
	"github.com/flexplan/flexplan/workbench"
)

// ThreadStation hosts a worker on a dedicated goroutine, backed by a Loop
// or ConcurrentLoop workbench.
type ThreadStation struct {
	workerClassID string
	newWorkbench  func(inbox, outbox *flexplan.Mailbox) workbench.Workbench
	observer      observability.Observer

	mu       sync.Mutex
	state    State
	inbox    *flexplan.Mailbox
	outbox   *flexplan.Mailbox
	bench    workbench.Workbench
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewThreadStation constructs a station that hosts workerClassID, building
// its workbench with newWorkbench once Start is called. inboxSize/outboxSize
// size the mail queues.
func NewThreadStation(workerClassID string, newWorkbench func(inbox, outbox *flexplan.Mailbox) workbench.Workbench, inboxSize, outboxSize int, observer observability.Observer) *ThreadStation {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	return &ThreadStation{
		workerClassID: workerClassID,
		newWorkbench:  newWorkbench,
		observer:      observer,
		inbox:         flexplan.NewMailbox(inboxSize),
		outbox:        flexplan.NewMailbox(outboxSize),
	}
}

func (s *ThreadStation) WorkerClassID() string { return s.workerClassID }

func (s *ThreadStation) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ThreadStation) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return ErrNotRestartable
	}
	if s.state != StateInitial {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.bench = s.newWorkbench(s.inbox, s.outbox)
	s.done = make(chan struct{})
	s.state = StateStarted
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		s.bench.Run(runCtx)
	}()

	s.observer.OnEvent(ctx, observability.Event{
		Type:   observability.EventStationStarted,
		Level:  observability.LevelInfo,
		Source: s.workerClassID,
	})
	return nil
}

func (s *ThreadStation) Stop() error {
	var (
		inbox  *flexplan.Mailbox
		cancel context.CancelFunc
		done   chan struct{}
	)

	s.mu.Lock()
	if s.state == StateInitial {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	inbox, cancel, done = s.inbox, s.cancel, s.done
	s.mu.Unlock()

	s.stopOnce.Do(func() {
		inbox.Put(nil) // terminate pill
		if done != nil {
			<-done
		}
		if cancel != nil {
			cancel()
		}
	})

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()

	s.observer.OnEvent(context.Background(), observability.Event{
		Type:   observability.EventStationStopped,
		Level:  observability.LevelInfo,
		Source: s.workerClassID,
	})
	return nil
}

func (s *ThreadStation) IsRunning() bool {
	s.mu.Lock()
	bench := s.bench
	s.mu.Unlock()
	return bench != nil && bench.Running()
}

func (s *ThreadStation) Send(mail *flexplan.Mail) { s.inbox.Put(mail) }

func (s *ThreadStation) Recv(timeout time.Duration) (*flexplan.Mail, bool) {
	return s.outbox.Get(timeout)
}
