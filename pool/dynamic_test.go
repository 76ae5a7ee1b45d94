package pool

import (
	"sync/atomic"
	"testing"
)

func TestDynamicPool_GetNeverBlocksAndReusesPutSlots(t *testing.T) {
	var created int32
	p := NewDynamic(func() any {
		atomic.AddInt32(&created, 1)
		return &worker{id: int(atomic.LoadInt32(&created))}
	})

	w1 := p.Get()
	if w1 == nil {
		t.Fatalf("expected a freshly created slot")
	}
	p.Put(w1)

	// After Put, the next Get prefers the retained slot over creating a new
	// one (best-effort: sync.Pool may drop it under GC pressure, but not in
	// a quiet test).
	w2 := p.Get()
	if w2 != w1 {
		t.Logf("retained slot was dropped; got a new one (allowed)")
	}

	if got := atomic.LoadInt32(&created); got < 1 {
		t.Fatalf("newFn never called; created=%d", got)
	}
}
