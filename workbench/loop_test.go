package workbench_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flexplan/flexplan"
	"github.com/flexplan/flexplan/workbench"
)

type echoWorker struct {
	postInitCalled bool
	acquired       bool
	released       bool
}

func (w *echoWorker) PostInit(ctx context.Context) error {
	w.postInitCalled = true
	return nil
}

func (w *echoWorker) Acquire() error {
	w.acquired = true
	return nil
}

func (w *echoWorker) Release() { w.released = true }

func echoCall(ctx context.Context, receiver any, args []any, kwargs map[string]any) (any, error) {
	return args[0], nil
}

func newEchoCreator(w *echoWorker) *flexplan.InstanceCreator[any] {
	return flexplan.NewInstanceCreator[any]("echo", func(args []any, kwargs map[string]any) (any, error) {
		return w, nil
	}, nil, nil)
}

// submitInto sends a message whose target is addressed to inbox as if it
// were a sender's outbox, mirroring how a station relays external mail in.
func submitInto[R any](t *testing.T, inbox *flexplan.Mailbox, instruction flexplan.Instruction, args ...any) *flexplan.Future[R] {
	t.Helper()
	ctx := flexplan.ContextWithOutbox(context.Background(), inbox)
	msg, err := flexplan.NewMessage[R](instruction).Params(args, nil)
	require.NoError(t, err)
	msg = msg.To([]flexplan.Contact{flexplan.NewContact(instruction.WorkerClassID)}, false)
	future, err := msg.Submit(ctx)
	require.NoError(t, err)
	return future
}

func TestLoop_DispatchesMailAndTerminatesOnPoisonPill(t *testing.T) {
	w := &echoWorker{}
	inbox := flexplan.NewMailbox(2)
	outbox := flexplan.NewMailbox(2)

	l := workbench.NewLoop("echo", newEchoCreator(w), inbox, outbox, nil)

	done := make(chan struct{})
	go func() { l.Run(context.Background()); close(done) }()

	future := submitInto[any](t, inbox, flexplan.NewMethodInstruction("echo", "call", echoCall), "hi")

	v, err := future.Result(context.Background())
	require.NoError(t, err)
	require.Equal(t, "hi", v)

	inbox.Put(nil) // terminate

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("workbench did not terminate on poison pill")
	}

	require.True(t, w.postInitCalled)
	require.True(t, w.acquired)
	require.True(t, w.released)
	require.Equal(t, workbench.StateStopped, l.State())
}

func TestLoop_ConstructionFailurePushesFatalMail(t *testing.T) {
	inbox := flexplan.NewMailbox(1)
	outbox := flexplan.NewMailbox(1)

	boom := errors.New("construction failed")
	creator := flexplan.NewInstanceCreator[any]("echo", func(args []any, kwargs map[string]any) (any, error) {
		return nil, boom
	}, nil, nil)

	l := workbench.NewLoop("echo", creator, inbox, outbox, nil)
	l.Run(context.Background())

	mail, ok := outbox.Get(time.Second)
	require.True(t, ok)
	require.Error(t, mail.Fatal)
	require.False(t, l.Running())
}

func TestLoop_WrongWorkerClassMismatchDeliversError(t *testing.T) {
	w := &echoWorker{}
	inbox := flexplan.NewMailbox(2)
	outbox := flexplan.NewMailbox(2)

	l := workbench.NewLoop("echo", newEchoCreator(w), inbox, outbox, nil)
	go l.Run(context.Background())

	future := submitInto[any](t, inbox, flexplan.Instruction{WorkerClassID: "other", MethodID: "call", Call: echoCall}, "x")

	_, err := future.Result(context.Background())
	require.ErrorIs(t, err, workbench.ErrWorkerClassMismatch)

	inbox.Put(nil)
}

func TestLoop_InstructionCanEmitOntoWorkerOutbox(t *testing.T) {
	w := &echoWorker{}
	inbox := flexplan.NewMailbox(2)
	outbox := flexplan.NewMailbox(2)

	l := workbench.NewLoop("echo", newEchoCreator(w), inbox, outbox, nil)
	go l.Run(context.Background())

	relay := flexplan.NewMethodInstruction("echo", "relay", func(ctx context.Context, receiver any, args []any, kwargs map[string]any) (any, error) {
		msg, err := flexplan.NewMessage[any](flexplan.NewMethodInstruction("other", "call", nil)).Params(args, nil)
		if err != nil {
			return nil, err
		}
		if err := msg.To([]flexplan.Contact{flexplan.NewContact("other")}, false).Emit(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	})

	future := submitInto[any](t, inbox, relay, "payload")
	_, err := future.Result(context.Background())
	require.NoError(t, err)

	emitted, ok := outbox.Get(time.Second)
	require.True(t, ok)
	require.Equal(t, "other", emitted.Instruction.WorkerClassID)
	require.Equal(t, []any{"payload"}, emitted.Args)

	inbox.Put(nil)
}

func TestConcurrentLoop_DispatchesConcurrentlyAndDrainsOnShutdown(t *testing.T) {
	w := &echoWorker{}
	inbox := flexplan.NewMailbox(4)
	outbox := flexplan.NewMailbox(4)

	l := workbench.NewConcurrentLoop("echo", newEchoCreator(w), inbox, outbox, nil)

	done := make(chan struct{})
	go func() { l.Run(context.Background()); close(done) }()

	f1 := submitInto[any](t, inbox, flexplan.NewMethodInstruction("echo", "call", echoCall), "a")
	f2 := submitInto[any](t, inbox, flexplan.NewMethodInstruction("echo", "call", echoCall), "b")

	v1, err := f1.Result(context.Background())
	require.NoError(t, err)
	require.Equal(t, "a", v1)

	v2, err := f2.Result(context.Background())
	require.NoError(t, err)
	require.Equal(t, "b", v2)

	inbox.Put(nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("concurrent workbench did not terminate on poison pill")
	}
}
