package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type worker struct{ id int }

func countingNew(counter *int32) func() any {
	return func() any {
		return &worker{id: int(atomic.AddInt32(counter, 1))}
	}
}

func TestFixed_CreatesUpToCapacityThenBlocksUntilPut(t *testing.T) {
	var created int32
	p := NewFixed(2, countingNew(&created))

	w1 := p.Get().(*worker)
	w2 := p.Get().(*worker)
	require.NotSame(t, w1, w2)
	require.EqualValues(t, 2, atomic.LoadInt32(&created))

	got := make(chan any, 1)
	go func() { got <- p.Get() }()

	select {
	case <-got:
		t.Fatal("third Get should block while both slots are checked out")
	case <-time.After(50 * time.Millisecond):
	}

	p.Put(w1)

	select {
	case v := <-got:
		require.Same(t, w1, v, "blocked Get should receive the returned slot")
	case <-time.After(time.Second):
		t.Fatal("blocked Get did not resume after Put")
	}
	require.EqualValues(t, 2, atomic.LoadInt32(&created))
}

func TestFixed_ReusesIdleSlotBeforeCreating(t *testing.T) {
	var created int32
	p := NewFixed(3, countingNew(&created))

	w := p.Get()
	p.Put(w)

	require.Same(t, w, p.Get())
	require.EqualValues(t, 1, atomic.LoadInt32(&created))
}

func TestFixed_ConcurrentUseNeverExceedsCapacity(t *testing.T) {
	const capacity = 5
	var created int32
	p := NewFixed(capacity, countingNew(&created))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := p.Get()
			time.Sleep(2 * time.Millisecond)
			p.Put(w)
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, atomic.LoadInt32(&created), int32(capacity))
	require.GreaterOrEqual(t, atomic.LoadInt32(&created), int32(1))
}

func TestFixed_ZeroCapacityGetBlocksForever(t *testing.T) {
	var created int32
	p := NewFixed(0, countingNew(&created))

	done := make(chan struct{})
	go func() {
		p.Get()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Get on a zero-capacity pool should never return")
	case <-time.After(50 * time.Millisecond):
	}
	require.EqualValues(t, 0, atomic.LoadInt32(&created))
}
