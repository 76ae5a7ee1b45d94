// Package executor runs scheduler jobs with bounded concurrency over a
// pool of reusable slots, generalizing a typed worker pool (one
// dispatcher+worker[R] pair per result type) into a single pool that
// accepts any callable, since a DependencyChain's ready set mixes tasks of
// many different result types in the same batch.
package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/flexplan/flexplan"
	"github.com/flexplan/flexplan/metrics"
	"github.com/flexplan/flexplan/pool"
)

// ErrPoolClosed is recorded on futures returned by Apply once Close has
// been called.
var ErrPoolClosed = errors.New(flexplan.Namespace + ": executor pool is closed")

// Job is a unit of work submitted to a HybridPool. It receives the
// scheduler-supplied context and is expected to record its own outcome
// (e.g. by calling a Task's Invoke).
type Job func(ctx context.Context)

// HybridPool executes submitted jobs over a fixed- or dynamic-capacity
// pool.Pool of slots, tracking in-flight jobs with a WaitGroup: the
// dispatcher accounts inflight work while pool.Get/Put bounds concurrency,
// generalized from typed *worker[R] slots to type-erased tokens since Job
// carries everything it needs via closure.
type HybridPool struct {
	slots    pool.Pool
	provider metrics.Provider

	inflightGauge metrics.UpDownCounter
	completed     metrics.Counter
	duration      metrics.Histogram

	mu       sync.Mutex
	inflight sync.WaitGroup
	closed   bool
}

// newHybridPool builds the concrete pool from cfg: Capacity == 0 selects a
// dynamic (sync.Pool-backed) slot pool, Capacity > 0 a fixed-capacity one
// that blocks Get until a slot frees up.
func newHybridPool(cfg *Config, provider metrics.Provider) *HybridPool {
	if provider == nil {
		provider = metrics.NewNoopProvider()
	}

	newSlot := func() interface{} { return struct{}{} }
	var slots pool.Pool
	if cfg.Capacity > 0 {
		slots = pool.NewFixed(cfg.Capacity, newSlot)
	} else {
		slots = pool.NewDynamic(newSlot)
	}

	return &HybridPool{
		slots:         slots,
		provider:      provider,
		inflightGauge: provider.UpDownCounter("flexplan_executor_inflight_jobs"),
		completed:     provider.Counter("flexplan_executor_completed_jobs_total"),
		duration:      provider.Histogram("flexplan_executor_job_duration_seconds", metrics.WithUnit("seconds")),
	}
}

// Submit runs job on a pooled slot in its own goroutine and returns
// immediately, reporting whether the job was accepted (a closed pool
// rejects new work). Wait blocks until every accepted job has completed.
func (p *HybridPool) Submit(ctx context.Context, job Job) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.inflight.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.inflight.Done()

		slot := p.slots.Get()
		defer p.slots.Put(slot)

		p.inflightGauge.Add(1)
		defer p.inflightGauge.Add(-1)

		start := time.Now()
		job(ctx)
		p.duration.Record(time.Since(start).Seconds())
		p.completed.Add(1)
	}()
	return true
}

// Apply submits fn to p and returns a Future carrying its result: the
// future transitions to running when a slot is acquired and finishes with
// fn's return value or error. Callers may block on Result or register a
// done-callback. It is a free function because Go methods cannot introduce
// the result type parameter R.
func Apply[R any](ctx context.Context, p *HybridPool, fn func(ctx context.Context) (R, error)) *flexplan.Future[R] {
	future := flexplan.NewFuture[R]()
	accepted := p.Submit(ctx, func(ctx context.Context) {
		future.SetRunning()
		result, err := fn(ctx)
		if err != nil {
			future.SetException(err)
			return
		}
		future.SetResult(result)
	})
	if !accepted {
		future.SetException(ErrPoolClosed)
	}
	return future
}

// Wait blocks until every job submitted so far has completed.
func (p *HybridPool) Wait() { p.inflight.Wait() }

// Close marks the pool as no longer accepting new jobs and waits for
// in-flight jobs to finish. It is idempotent.
func (p *HybridPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.inflight.Wait()
}
