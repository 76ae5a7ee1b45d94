package workshop

import (
	"context"
	"errors"
	"sync"

	"github.com/flexplan/flexplan"
	"github.com/flexplan/flexplan/observability"
	"github.com/flexplan/flexplan/station"
	"github.com/flexplan/flexplan/workbench"
)

// State mirrors the station state machine: the workshop is a supervisor
// worker in its own right, even though it drives its own loop directly
// instead of being wrapped in another workbench.
type State int

const (
	StateInitial State = iota
	StateStarted
	StateStopping
	StateStopped
)

// OwnMethod is a supervisor-handled instruction: one invoked directly
// against the Workshop rather than forwarded to a registered worker's
// station.
type OwnMethod func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// Workshop is the supervisor: it starts a station per registered worker
// class, routes incoming mail to the right one, and polls every worker
// station's outbox each tick for cross-worker mail to re-route.
type Workshop struct {
	classID  string
	registry *Registry
	observer observability.Observer
	cfg      Config

	mu         sync.RWMutex
	state      State
	fatal      error
	stations   map[string]station.Station
	ownMethods map[string]OwnMethod

	inbox  *flexplan.Mailbox
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWorkshop constructs a workshop identified by classID (the worker
// class id instructions use to address the supervisor itself), routing
// according to registry.
func NewWorkshop(classID string, registry *Registry, observer observability.Observer, opts ...Option) *Workshop {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			panic(flexplan.Namespace + ": nil workshop option")
		}
		opt(&cfg)
	}
	if err := validateConfig(&cfg); err != nil {
		panic(err)
	}

	return &Workshop{
		classID:    classID,
		registry:   registry,
		observer:   observer,
		cfg:        cfg,
		stations:   map[string]station.Station{},
		ownMethods: map[string]OwnMethod{},
		inbox:      flexplan.NewMailbox(cfg.InboxSize),
	}
}

// RegisterOwnMethod exposes fn as methodID on the supervisor's own worker
// class, invoked directly rather than routed to a station.
func (w *Workshop) RegisterOwnMethod(methodID string, fn OwnMethod) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ownMethods[methodID] = fn
}

// ClassID returns the worker class id instructions use to address the
// supervisor directly.
func (w *Workshop) ClassID() string { return w.classID }

// Inbox is the workshop's own mail entry point.
func (w *Workshop) Inbox() *flexplan.Mailbox { return w.inbox }

// Start builds and starts a station for every worker class visible in the
// registry, then launches the routing loop.
func (w *Workshop) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateInitial {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.state = StateStarted
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.mu.Unlock()

	for _, spec := range w.registry.All() {
		st, err := buildStation(spec)
		if err != nil {
			return err
		}
		if err := st.Start(runCtx); err != nil {
			return err
		}
		w.mu.Lock()
		w.stations[spec.WorkerClassID] = st
		w.mu.Unlock()

		display := spec.DisplayName
		if display == "" {
			display = spec.WorkerClassID
		}
		w.observer.OnEvent(ctx, observability.Event{
			Type:   observability.EventWorkerRegistered,
			Level:  observability.LevelInfo,
			Source: w.classID,
			Data:   map[string]any{"worker_class": spec.WorkerClassID, "display_name": display, "station": spec.Station.String()},
		})
	}

	trackWorkshop(w)

	go func() {
		defer close(w.done)
		w.runLoop(runCtx)
	}()
	return nil
}

func buildStation(spec StationSpec) (station.Station, error) {
	switch spec.Station {
	case StationThread:
		return station.NewThreadStation(spec.WorkerClassID, func(inbox, outbox *flexplan.Mailbox) workbench.Workbench {
			if spec.Workbench == WorkbenchConcurrentLoop {
				return workbench.NewConcurrentLoop(spec.WorkerClassID, spec.Creator, inbox, outbox, spec.Observer)
			}
			return workbench.NewLoop(spec.WorkerClassID, spec.Creator, inbox, outbox, spec.Observer)
		}, spec.InboxSize, spec.OutboxSize, spec.Observer), nil

	case StationProcess, StationProcessFork, StationProcessForkServer, StationProcessSpawn:
		kind := processKindOf(spec.Station)
		return station.NewProcessStation(spec.WorkerClassID, kind, spec.CtorArgs, spec.CtorKwArgs, spec.InboxSize, spec.OutboxSize, spec.Observer), nil

	default:
		return nil, errors.New(flexplan.Namespace + ": unknown station kind")
	}
}

func processKindOf(k StationKind) station.ProcessKind {
	switch k {
	case StationProcessFork:
		return station.ProcessFork
	case StationProcessForkServer:
		return station.ProcessForkServer
	default:
		return station.ProcessSpawn
	}
}

// Send posts mail to the workshop's own inbox (the external entry point);
// it is routed the same way mail forwarded from a worker station's outbox
// is.
func (w *Workshop) Send(mail *flexplan.Mail) { w.inbox.Put(mail) }

func (w *Workshop) runLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if mail, ok := w.inbox.Get(w.cfg.PollInterval); ok {
			if mail == nil {
				return
			}
			if fatal := w.route(ctx, mail); fatal != nil {
				return
			}
		}

		w.mu.RLock()
		stations := make([]station.Station, 0, len(w.stations))
		for _, st := range w.stations {
			stations = append(stations, st)
		}
		w.mu.RUnlock()

		for _, st := range stations {
			mail, ok := st.Recv(0)
			if ok && mail != nil {
				if fatal := w.route(ctx, mail); fatal != nil {
					return
				}
			}
		}
	}
}

// route implements the supervisor's handling step: a fatal mail (a worker
// that failed to construct or died on a system-level error) records the
// failure and terminates the routing loop; reserved instructions are
// rejected; instructions addressed to the supervisor's own class are
// invoked directly; everything else is forwarded to the station hosting
// the target worker class. The returned error is non-nil only for fatal
// mail.
func (w *Workshop) route(ctx context.Context, mail *flexplan.Mail) error {
	if mail.Fatal != nil {
		w.mu.Lock()
		if w.fatal == nil {
			w.fatal = mail.Fatal
		}
		w.mu.Unlock()
		mail.Deliver(nil, mail.Fatal)
		w.observer.OnEvent(ctx, observability.Event{Type: observability.EventMailDropped, Level: observability.LevelError, Source: w.classID,
			Data: map[string]any{"error": mail.Fatal.Error()}})
		return mail.Fatal
	}

	if mail.Instruction.IsReserved() {
		mail.Deliver(nil, flexplan.ErrReservedInstruction)
		w.observer.OnEvent(ctx, observability.Event{Type: observability.EventMailDropped, Level: observability.LevelWarning, Source: w.classID})
		return nil
	}

	if mail.Instruction.WorkerClassID == w.classID {
		w.mu.RLock()
		fn, ok := w.ownMethods[mail.Instruction.MethodID]
		w.mu.RUnlock()
		if !ok {
			mail.Deliver(nil, flexplan.ErrWorkerNotFound)
			return nil
		}
		result, err := invokeOwnRecovered(ctx, fn, mail)
		mail.Deliver(result, err)
		return nil
	}

	w.mu.RLock()
	st, ok := w.stations[mail.Instruction.WorkerClassID]
	w.mu.RUnlock()
	if !ok {
		mail.Deliver(nil, &flexplan.WorkerNotFoundError{
			WorkerClassID: mail.Instruction.WorkerClassID,
			MethodID:      mail.Instruction.MethodID,
		})
		w.observer.OnEvent(ctx, observability.Event{Type: observability.EventMailDropped, Level: observability.LevelWarning, Source: w.classID,
			Data: map[string]any{"target": mail.Instruction.WorkerClassID}})
		return nil
	}
	mail.Meta.Trace = append(mail.Meta.Trace, w.classID)
	st.Send(mail)
	w.observer.OnEvent(ctx, observability.Event{Type: observability.EventMailRouted, Level: observability.LevelVerbose, Source: w.classID,
		Data: map[string]any{"target": mail.Instruction.WorkerClassID}})
	return nil
}

func invokeOwnRecovered(ctx context.Context, fn OwnMethod, mail *flexplan.Mail) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(flexplan.Namespace + ": supervisor method panicked")
		}
	}()
	return fn(ctx, mail.Args, mail.KwArgs)
}

// Err returns the first fatal worker error observed by the routing loop,
// if any.
func (w *Workshop) Err() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fatal
}

// Stop stops every registered station and the routing loop. If a worker
// died with a fatal error before Stop, that error is returned.
func (w *Workshop) Stop() error {
	w.mu.Lock()
	if w.state == StateInitial {
		w.mu.Unlock()
		return nil
	}
	w.state = StateStopping
	done := w.done
	cancel := w.cancel
	stations := make([]station.Station, 0, len(w.stations))
	for _, st := range w.stations {
		stations = append(stations, st)
	}
	w.mu.Unlock()

	w.inbox.Put(nil)
	if done != nil {
		<-done
	}
	if cancel != nil {
		cancel()
	}
	for _, st := range stations {
		st.Stop()
	}

	w.mu.Lock()
	w.state = StateStopped
	fatal := w.fatal
	w.mu.Unlock()

	untrackWorkshop(w)
	return fatal
}

// State returns the workshop's current lifecycle state.
func (w *Workshop) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}
