package metrics

import (
	"sync"
	"sync/atomic"
)

// BasicProvider aggregates measurements in process memory, for programs
// that only want to read the numbers back out rather than export them. Instruments are created
// on first use and shared across every subsequent request for the same
// name.
type BasicProvider struct {
	mu          sync.Mutex
	instruments map[string]any
	meta        map[string]InstrumentConfig
}

// NewBasicProvider constructs an empty BasicProvider.
func NewBasicProvider() *BasicProvider {
	return &BasicProvider{
		instruments: make(map[string]any),
		meta:        make(map[string]InstrumentConfig),
	}
}

// instrument returns the instrument registered under name, creating it
// with build on first use. The caller supplies the concrete type via T;
// registering the same name with two different instrument kinds panics,
// surfacing the naming bug at the registration site.
func instrument[T any](p *BasicProvider, name string, opts []InstrumentOption, build func() T) T {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.instruments[name]; ok {
		typed, ok := existing.(T)
		if !ok {
			panic("metrics: instrument " + name + " already registered with a different kind")
		}
		return typed
	}

	var cfg InstrumentConfig
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	p.meta[name] = cfg

	created := build()
	p.instruments[name] = created
	return created
}

// Counter returns the monotonic counter registered under name.
func (p *BasicProvider) Counter(name string, opts ...InstrumentOption) Counter {
	return instrument(p, name, opts, func() *BasicCounter { return &BasicCounter{} })
}

// UpDownCounter returns the up/down counter registered under name.
func (p *BasicProvider) UpDownCounter(name string, opts ...InstrumentOption) UpDownCounter {
	return instrument(p, name, opts, func() *BasicUpDownCounter { return &BasicUpDownCounter{} })
}

// Histogram returns the histogram registered under name.
func (p *BasicProvider) Histogram(name string, opts ...InstrumentOption) Histogram {
	return instrument(p, name, opts, func() *BasicHistogram { return &BasicHistogram{} })
}

// Meta returns the advisory metadata recorded when name was first
// registered.
func (p *BasicProvider) Meta(name string) (InstrumentConfig, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cfg, ok := p.meta[name]
	return cfg, ok
}

// BasicCounter is an atomically updated monotonic counter.
type BasicCounter struct {
	val atomic.Int64
}

// Add increments the counter by n.
func (c *BasicCounter) Add(n int64) { c.val.Add(n) }

// Snapshot returns the current value.
func (c *BasicCounter) Snapshot() int64 { return c.val.Load() }

// BasicUpDownCounter is an atomically updated bidirectional counter.
type BasicUpDownCounter struct {
	val atomic.Int64
}

// Add moves the value by n, which may be negative.
func (u *BasicUpDownCounter) Add(n int64) { u.val.Add(n) }

// Snapshot returns the current value.
func (u *BasicUpDownCounter) Snapshot() int64 { return u.val.Load() }

// BasicHistogram aggregates count, sum, min, and max of recorded
// measurements. It keeps no buckets.
type BasicHistogram struct {
	mu    sync.Mutex
	count int64
	sum   float64
	min   float64
	max   float64
}

// Record folds v into the aggregate.
func (h *BasicHistogram) Record(v float64) {
	h.mu.Lock()
	if h.count == 0 || v < h.min {
		h.min = v
	}
	if h.count == 0 || v > h.max {
		h.max = v
	}
	h.count++
	h.sum += v
	h.mu.Unlock()
}

// HistSnapshot is an immutable view of a BasicHistogram.
type HistSnapshot struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
	Mean  float64
}

// Snapshot returns the aggregate at the time of the call.
func (h *BasicHistogram) Snapshot() HistSnapshot {
	h.mu.Lock()
	s := HistSnapshot{Count: h.count, Sum: h.sum, Min: h.min, Max: h.max}
	h.mu.Unlock()
	if s.Count > 0 {
		s.Mean = s.Sum / float64(s.Count)
	}
	return s
}
