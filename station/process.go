package station

import (
	"bufio"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/docker/docker/pkg/reexec"
	"github.com/google/uuid"

	"github.com/flexplan/flexplan"
	"github.com/flexplan/flexplan/observability"
)

// ProcessKind selects how a ProcessStation negotiates its child process.
// Go has no fork(2) that preserves a running runtime image the way CPython
// can; these three kinds are Go-native construction profiles rather than
// a literal fork, spawn, or forkserver:
//
//   - ProcessFork and ProcessForkServer both re-exec the current binary
//     through docker/docker/pkg/reexec's self-registration (the same
//     re-exec-with-a-marker-subcommand technique used by Moby/containerd),
//     the way fork-based worker pools "fork" a fresh copy of the running
//     program image.
//   - ProcessSpawn re-execs the current binary the same way but with an
//     empty environment, closer to CPython's spawn start method.
type ProcessKind int

const (
	ProcessFork ProcessKind = iota
	ProcessForkServer
	ProcessSpawn
)

const reexecCommandName = "flexplan-process-station"

func init() {
	reexec.Register(reexecCommandName, childEntrypoint)
}

// MaybeRunProcessEntrypoint must be called near the top of main() by any
// program that constructs ProcessStations. If the process was launched as
// a flexplan process-station child (via reexec.Command), it runs the
// child's worker loop and returns true once that loop ends; otherwise it
// returns false immediately.
func MaybeRunProcessEntrypoint() bool {
	return reexec.Init()
}

// wireRequest is one instruction call shipped to the child process. Args,
// KwArgs, and Result cross the wire as gob-encoded interface values: any
// concrete type placed in them must be registered with gob.Register by the
// caller before Start, the same requirement gob imposes on any interface
// payload.
type wireRequest struct {
	ID       string
	MethodID string
	Args     []any
	KwArgs   map[string]any
}

// wireResponse is the child's reply to a wireRequest.
type wireResponse struct {
	ID     string
	Result any
	Err    string
}

// ProcessStation hosts a worker on a child OS process, communicating over
// gob-encoded request/response pairs on the child's stdin/stdout.
type ProcessStation struct {
	workerClassID string
	kind          ProcessKind
	ctorArgs      []any
	ctorKwArgs    map[string]any
	observer      observability.Observer

	mu      sync.Mutex
	state   State
	inbox   *flexplan.Mailbox
	outbox  *flexplan.Mailbox
	cmd     *exec.Cmd
	pending map[string]*flexplan.Mail
	done    chan struct{}
}

// NewProcessStation constructs a station that hosts workerClassID (which
// must have been registered with RegisterWorkerFactory and
// RegisterInstruction) on a child process built per kind.
func NewProcessStation(workerClassID string, kind ProcessKind, ctorArgs []any, ctorKwArgs map[string]any, inboxSize, outboxSize int, observer observability.Observer) *ProcessStation {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	return &ProcessStation{
		workerClassID: workerClassID,
		kind:          kind,
		ctorArgs:      ctorArgs,
		ctorKwArgs:    ctorKwArgs,
		observer:      observer,
		inbox:         flexplan.NewMailbox(inboxSize),
		outbox:        flexplan.NewMailbox(outboxSize),
		pending:       map[string]*flexplan.Mail{},
	}
}

func (s *ProcessStation) WorkerClassID() string { return s.workerClassID }

func (s *ProcessStation) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ProcessStation) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return ErrNotRestartable
	}
	if s.state != StateInitial {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.mu.Unlock()

	cmd := reexec.Command(reexecCommandName, s.workerClassID)
	if s.kind == ProcessSpawn {
		cmd.Env = []string{}
	} else {
		cmd.Env = os.Environ()
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%s: process station stdin pipe: %w", flexplan.Namespace, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%s: process station stdout pipe: %w", flexplan.Namespace, err)
	}
	cmd.Stderr = os.Stderr

	if err := withSignalsMasked(cmd.Start); err != nil {
		return fmt.Errorf("%s: start process station for %q: %w", flexplan.Namespace, s.workerClassID, err)
	}

	enc := gob.NewEncoder(stdin)
	if err := enc.Encode(ctorEnvelope{Args: s.ctorArgs, KwArgs: s.ctorKwArgs}); err != nil {
		return fmt.Errorf("%s: send constructor args to process station: %w", flexplan.Namespace, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.state = StateStarted
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.pump(stdin, stdout)

	s.observer.OnEvent(ctx, observability.Event{
		Type:   observability.EventStationStarted,
		Level:  observability.LevelInfo,
		Source: s.workerClassID,
		Data:   map[string]any{"pid": cmd.Process.Pid, "kind": int(s.kind)},
	})
	return nil
}

// pump drives the request/response loop for the lifetime of the child
// process: it reads mail from the inbox, ships a wireRequest, and
// dispatches wireResponses read from stdout back to their waiting mail.
func (s *ProcessStation) pump(stdin io.WriteCloser, stdout io.Reader) {
	defer close(s.done)

	responses := make(chan wireResponse)
	readErr := make(chan error, 1)
	go func() {
		dec := gob.NewDecoder(bufio.NewReader(stdout))
		for {
			var resp wireResponse
			if err := dec.Decode(&resp); err != nil {
				readErr <- err
				return
			}
			responses <- resp
		}
	}()

	enc := gob.NewEncoder(stdin)

	for {
		select {
		case resp := <-responses:
			s.mu.Lock()
			mail := s.pending[resp.ID]
			delete(s.pending, resp.ID)
			s.mu.Unlock()
			if mail == nil {
				continue
			}
			if resp.Err != "" {
				mail.Deliver(nil, errors.New(resp.Err))
			} else {
				mail.Deliver(resp.Result, nil)
			}

		case <-readErr:
			stdin.Close()
			return

		default:
			mail, ok := s.inbox.Get(pollInterval)
			if !ok {
				continue
			}
			if mail == nil { // terminate pill
				enc.Encode(wireRequest{ID: "__terminate__"})
				stdin.Close()
				return
			}
			id := uuid.NewString()
			s.mu.Lock()
			s.pending[id] = mail
			s.mu.Unlock()
			if err := enc.Encode(wireRequest{ID: id, MethodID: mail.Instruction.MethodID, Args: mail.Args, KwArgs: mail.KwArgs}); err != nil {
				mail.Deliver(nil, err)
			}
		}
	}
}

func (s *ProcessStation) Stop() error {
	s.mu.Lock()
	if s.state == StateInitial || s.state == StateStopped {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	cmd := s.cmd
	done := s.done
	s.mu.Unlock()

	s.inbox.Put(nil)
	if done != nil {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			if cmd != nil && cmd.Process != nil {
				cmd.Process.Kill()
			}
		}
	}
	if cmd != nil {
		cmd.Wait()
	}

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

func (s *ProcessStation) IsRunning() bool { return s.State() == StateStarted }

func (s *ProcessStation) Send(mail *flexplan.Mail) { s.inbox.Put(mail) }

func (s *ProcessStation) Recv(timeout time.Duration) (*flexplan.Mail, bool) {
	return s.outbox.Get(timeout)
}

const pollInterval = 50 * time.Millisecond

type ctorEnvelope struct {
	Args   []any
	KwArgs map[string]any
}

// childEntrypoint runs inside the re-exec'd child process. os.Args[1] is
// the worker class id (passed by reexec.Command above); the factory and
// instructions for that class must already be registered by this same
// binary's init functions, since registration runs identically in parent
// and child.
func childEntrypoint() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "flexplan: process station child missing worker class argument")
		os.Exit(1)
	}
	workerClassID := os.Args[1]

	dec := gob.NewDecoder(bufio.NewReader(os.Stdin))
	var ctor ctorEnvelope
	if err := dec.Decode(&ctor); err != nil {
		fmt.Fprintf(os.Stderr, "flexplan: process station child failed to read constructor args: %v\n", err)
		os.Exit(1)
	}

	factory, err := ResolveWorkerFactory(workerClassID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	worker, err := factory(ctor.Args, ctor.KwArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flexplan: process station child failed to construct worker: %v\n", err)
		os.Exit(1)
	}

	enc := gob.NewEncoder(os.Stdout)
	ctx := context.Background()

	for {
		var req wireRequest
		if err := dec.Decode(&req); err != nil {
			return
		}
		if req.ID == "__terminate__" {
			return
		}

		instruction, err := ResolveInstruction(workerClassID, req.MethodID)
		if err != nil {
			enc.Encode(wireResponse{ID: req.ID, Err: err.Error()})
			continue
		}

		result, callErr := safeCall(ctx, instruction, worker, req.Args, req.KwArgs)
		if callErr != nil {
			enc.Encode(wireResponse{ID: req.ID, Err: callErr.Error()})
			continue
		}
		enc.Encode(wireResponse{ID: req.ID, Result: result})
	}
}

func safeCall(ctx context.Context, instruction flexplan.Instruction, worker any, args []any, kwargs map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: instruction %q panicked: %v", flexplan.Namespace, instruction.MethodID, r)
		}
	}()
	return instruction.Call(ctx, worker, args, kwargs)
}
