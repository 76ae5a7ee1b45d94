package pool

import "sync"

type dynamic struct {
	inner sync.Pool
}

// NewDynamic returns an unbounded pool: Get never blocks, and idle slots
// are retained on a best-effort basis (sync.Pool semantics).
func NewDynamic(newFn func() any) Pool {
	return &dynamic{inner: sync.Pool{New: newFn}}
}

func (p *dynamic) Get() any   { return p.inner.Get() }
func (p *dynamic) Put(el any) { p.inner.Put(el) }
