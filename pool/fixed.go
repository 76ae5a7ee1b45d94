package pool

type fixed struct {
	available chan any      // idle slots previously Put back
	created   chan struct{} // creation tokens; buffer bounds total slots
	newFn     func() any
}

// NewFixed returns a pool holding at most capacity slots. Get reuses an
// idle slot when one is available, creates a new slot while fewer than
// capacity exist, and otherwise blocks until Put frees one. A capacity of
// zero yields a pool whose Get never returns.
func NewFixed(capacity uint, newFn func() any) Pool {
	return &fixed{
		available: make(chan any, capacity),
		created:   make(chan struct{}, capacity),
		newFn:     newFn,
	}
}

func (p *fixed) Get() any {
	select {
	case el := <-p.available:
		return el
	default:
	}

	select {
	case el := <-p.available:
		return el
	case p.created <- struct{}{}:
		return p.newFn()
	}
}

func (p *fixed) Put(el any) {
	select {
	case p.available <- el:
	default:
	}
}
