package flexplan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFuture_SetResultThenResult(t *testing.T) {
	f := NewFuture[int]()
	require.NoError(t, f.SetResult(42))

	v, err := f.Result(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42, v)
	require.Equal(t, FutureFinished, f.State())
}

func TestFuture_SetResultTwiceFails(t *testing.T) {
	f := NewFuture[int]()
	require.NoError(t, f.SetResult(1))
	err := f.SetResult(2)
	require.ErrorIs(t, err, ErrFutureAlreadySet)
}

func TestFuture_SetExceptionPropagates(t *testing.T) {
	f := NewFuture[int]()
	sentinel := context.DeadlineExceeded
	require.NoError(t, f.SetException(sentinel))

	_, err := f.Result(context.Background())
	require.ErrorIs(t, err, sentinel)
}

func TestFuture_CancelOnlyWhilePending(t *testing.T) {
	f := NewFuture[int]()
	require.NoError(t, f.Cancel())
	require.Equal(t, FutureCancelled, f.State())

	err := f.Cancel()
	require.ErrorIs(t, err, ErrFutureNotCancellable)

	_, err = f.Result(context.Background())
	require.ErrorIs(t, err, context.Canceled)
}

func TestFuture_ResultRespectsContextCancellation(t *testing.T) {
	f := NewFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Result(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFuture_AddDoneCallbackFiresAfterFinish(t *testing.T) {
	f := NewFuture[int]()
	fired := make(chan int, 1)
	f.AddDoneCallback(func(done *Future[int]) {
		v, _ := done.Result(context.Background())
		fired <- v
	})

	require.NoError(t, f.SetResult(7))

	select {
	case v := <-fired:
		require.Equal(t, 7, v)
	case <-time.After(time.Second):
		t.Fatal("callback did not fire")
	}
}

func TestFuture_AddDoneCallbackFiresImmediatelyWhenAlreadyDone(t *testing.T) {
	f := NewFuture[int]()
	require.NoError(t, f.SetResult(9))

	fired := make(chan int, 1)
	f.AddDoneCallback(func(done *Future[int]) {
		v, _ := done.Result(context.Background())
		fired <- v
	})

	select {
	case v := <-fired:
		require.Equal(t, 9, v)
	case <-time.After(time.Second):
		t.Fatal("callback did not fire for an already-done future")
	}
}

func TestFuture_CallbackPanicIsRecovered(t *testing.T) {
	f := NewFuture[int]()
	done := make(chan struct{})
	f.AddDoneCallback(func(*Future[int]) {
		defer close(done)
		panic("boom")
	})

	require.NoError(t, f.SetResult(1))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("panicking callback should still run to completion")
	}
}

func TestProxyFuture_RoundTripsSerializedPayload(t *testing.T) {
	inner := NewFuture[[]byte]()
	p := NewProxyFuture[int](
		inner,
		func(v int) ([]byte, error) { return []byte{byte(v)}, nil },
		func(b []byte) (int, error) { return int(b[0]), nil },
	)

	require.NoError(t, p.SetResult(5))

	v, err := p.Result(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, v)
}

func TestProxyFuture_ExceptionForwardedUnchanged(t *testing.T) {
	inner := NewFuture[[]byte]()
	p := NewProxyFuture[int](
		inner,
		func(v int) ([]byte, error) { return nil, nil },
		func(b []byte) (int, error) { return 0, nil },
	)

	sentinel := context.DeadlineExceeded
	require.NoError(t, p.SetException(sentinel))

	_, err := p.Result(context.Background())
	require.ErrorIs(t, err, sentinel)
}
