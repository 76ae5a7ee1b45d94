package station_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flexplan/flexplan"
	"github.com/flexplan/flexplan/station"
	"github.com/flexplan/flexplan/workbench"
)

type greeter struct{}

func greetCall(ctx context.Context, receiver any, args []any, kwargs map[string]any) (any, error) {
	return "hello " + args[0].(string), nil
}

// buildAndSend constructs a Message, submits it onto a throwaway relay
// mailbox (standing in for a sender's outbox), then forwards the resulting
// mail onto the station's inbox via Send — the same two-hop path a
// supervisor's routing layer takes.
func buildAndSend(t *testing.T, st station.Station, instruction flexplan.Instruction, args ...any) *flexplan.Future[any] {
	t.Helper()
	relay := flexplan.NewMailbox(1)
	ctx := flexplan.ContextWithOutbox(context.Background(), relay)

	msg, err := flexplan.NewMessage[any](instruction).Params(args, nil)
	require.NoError(t, err)
	msg = msg.To([]flexplan.Contact{flexplan.NewContact(instruction.WorkerClassID)}, false)
	future, err := msg.Submit(ctx)
	require.NoError(t, err)

	mail, ok := relay.Get(time.Second)
	require.True(t, ok)
	st.Send(mail)

	return future
}

func newGreeterStation() *station.ThreadStation {
	creator := flexplan.NewInstanceCreator[any]("greeter", func(args []any, kwargs map[string]any) (any, error) {
		return &greeter{}, nil
	}, nil, nil)
	return station.NewThreadStation("greeter", func(inbox, outbox *flexplan.Mailbox) workbench.Workbench {
		return workbench.NewLoop("greeter", creator, inbox, outbox, nil)
	}, 4, 4, nil)
}

func TestThreadStation_StartSendStop(t *testing.T) {
	st := newGreeterStation()
	require.NoError(t, st.Start(context.Background()))

	future := buildAndSend(t, st, flexplan.NewMethodInstruction("greeter", "call", greetCall), "world")

	v, err := future.Result(context.Background())
	require.NoError(t, err)
	require.Equal(t, "hello world", v)

	require.NoError(t, st.Stop())
	require.False(t, st.IsRunning())
}

func TestThreadStation_StartTwiceFails(t *testing.T) {
	st := newGreeterStation()
	require.NoError(t, st.Start(context.Background()))
	err := st.Start(context.Background())
	require.ErrorIs(t, err, station.ErrAlreadyStarted)
	st.Stop()
}

func TestThreadStation_StopIsIdempotent(t *testing.T) {
	st := newGreeterStation()
	require.NoError(t, st.Start(context.Background()))
	require.NoError(t, st.Stop())
	require.NoError(t, st.Stop())
}

func TestThreadStation_RestartAfterStopFails(t *testing.T) {
	st := newGreeterStation()
	require.NoError(t, st.Start(context.Background()))
	require.NoError(t, st.Stop())

	err := st.Start(context.Background())
	require.ErrorIs(t, err, station.ErrNotRestartable)
}
