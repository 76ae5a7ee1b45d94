package scheduler

import (
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/time/rate"

	"github.com/flexplan/flexplan"
	"github.com/flexplan/flexplan/executor"
	"github.com/flexplan/flexplan/observability"
)

// Scheduler dispatches a set of Schedulable tasks according to the
// dependencies recorded in an embedded flexplan.DependencyChain: it drains
// a queue of ready tasks the way a dispatcher drains a queue of workers,
// generalized from a flat queue to a DAG-ordered one.
type Scheduler struct {
	cfg   Config
	chain *flexplan.DependencyChain[string]

	mu    sync.Mutex
	tasks map[string]Schedulable
}

// New constructs a Scheduler directly from cfg, a Config-based constructor
// alongside the Option-based NewOptions: it panics if cfg fails
// validation.
func New(cfg Config) *Scheduler {
	if err := validateConfig(&cfg); err != nil {
		panic(fmt.Errorf("invalid scheduler config: %w", err))
	}
	return newScheduler(&cfg)
}

func newScheduler(cfg *Config) *Scheduler {
	c := *cfg
	if c.Observer == nil {
		c.Observer = observability.NoOpObserver{}
	}
	chain := c.Chain
	if chain == nil {
		chain = flexplan.NewDependencyChain[string]()
	}
	return &Scheduler{
		cfg:   c,
		chain: chain,
		tasks: make(map[string]Schedulable),
	}
}

// Add registers task, recording its dependency edges in the chain.
func (s *Scheduler) Add(task Schedulable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := task.Name()
	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("%w: %q", ErrTaskExists, name)
	}
	if err := s.chain.Add(name, task.After().Items()...); err != nil {
		return err
	}
	s.tasks[name] = task
	return nil
}

// Remove drops name from the chain and the task set.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.chain.Remove(name); err != nil {
		return err
	}
	delete(s.tasks, name)
	return nil
}

// Ignore removes name from the chain without treating its absence as
// invalidating tasks that depend on it (flexplan.DependencyChain.Ignore).
func (s *Scheduler) Ignore(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.chain.Ignore(name); err != nil {
		return err
	}
	delete(s.tasks, name)
	return nil
}

// chainError builds a *flexplan.ChainError from the chain's current
// invalid items, or nil if the chain is entirely valid.
func (s *Scheduler) chainError() error {
	cyclic := s.chain.CyclicItems()
	notFound := s.chain.NotFoundItems()
	errorDeps := s.chain.ErrorDepItems()
	if len(cyclic) == 0 && len(notFound) == 0 && len(errorDeps) == 0 {
		return nil
	}
	return &flexplan.ChainError{Cyclic: cyclic, NotFound: notFound, ErrorDeps: errorDeps}
}

// Run executes every registered task to completion, blocking until the
// whole chain is done (or ctx is cancelled). A second Run resets every
// task to its pre-invocation state first, so the workflow can be re-run
// from scratch.
func (s *Scheduler) Run(ctx context.Context) error {
	result := s.RunDetached(ctx)
	return result.Join(ctx)
}

// RunDetached starts dispatching in the background and returns immediately
// with a *Result the caller can poll or Join on.
func (s *Scheduler) RunDetached(ctx context.Context) *Result {
	s.mu.Lock()
	if err := s.chainError(); err != nil {
		s.mu.Unlock()
		result := newResult(nil)
		result.finish(err)
		return result
	}

	tasks := make(map[string]Schedulable, len(s.tasks))
	for name, t := range s.tasks {
		t.Reset()
		tasks[name] = t
	}
	chain := s.chain
	cfg := s.cfg
	s.mu.Unlock()

	result := newResult(tasks)
	go func() {
		result.finish(s.dispatch(ctx, chain, tasks, cfg))
	}()
	return result
}

// dispatch drives the chain to completion per cfg.Mode, applying the
// independent/dependent quota split and, when a handler is installed, the
// per-tick heartbeat loop.
func (s *Scheduler) dispatch(ctx context.Context, chain *flexplan.DependencyChain[string], tasks map[string]Schedulable, cfg Config) error {
	if cfg.Workers <= 1 && cfg.PoolCapacity == 0 && cfg.Executor == nil &&
		cfg.Heartbeat == nil && cfg.HeartbeatWorkflow == nil {
		return s.runSequential(ctx, chain, tasks, cfg)
	}

	pool := cfg.Executor
	if pool == nil {
		pool = executor.NewHybridPool(nil, poolOption(cfg))
		defer pool.Close()
	}

	if cfg.Mode == ModeBFS && cfg.Heartbeat == nil && cfg.HeartbeatWorkflow == nil {
		return s.runBFS(ctx, chain, tasks, cfg, pool)
	}
	return s.runTicks(ctx, chain, tasks, cfg, pool)
}

func poolOption(cfg Config) executor.Option {
	if cfg.PoolCapacity > 0 {
		return executor.WithFixedPool(cfg.PoolCapacity)
	}
	if cfg.Workers > 0 {
		return executor.WithFixedPool(uint(cfg.Workers))
	}
	return executor.WithDynamicPool()
}

// runSequential executes tasks one at a time on the goroutine RunDetached
// starts (Run blocks until it finishes; each task's callable runs on its
// own goroutine inside Invoke), the fallback for Workers<=1 with no pool
// override and no
// heartbeat handler: first every independent task, then each level in
// order, substituting placeholders immediately before each call.
func (s *Scheduler) runSequential(ctx context.Context, chain *flexplan.DependencyChain[string], tasks map[string]Schedulable, cfg Config) error {
	for _, name := range chain.IndependentItems() {
		task, ok := tasks[name]
		if !ok {
			continue
		}
		if err := s.invokeOne(ctx, task, tasks, cfg); err != nil {
			return err
		}
	}
	for level := 0; level < chain.Levels(); level++ {
		for _, name := range chain.GetLevel(level) {
			task, ok := tasks[name]
			if !ok {
				continue
			}
			if err := s.invokeOne(ctx, task, tasks, cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// errSink collects the first error reported by concurrently submitted jobs.
type errSink struct {
	mu  sync.Mutex
	err error
}

func (e *errSink) set(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.mu.Unlock()
}

func (e *errSink) get() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// runBFS dispatches a whole chain level concurrently and waits for it to
// finish before advancing to the next. Independent tasks are interleaved
// with each level pass up to the independent quota, then whatever remains
// of them is drained after the last level.
func (s *Scheduler) runBFS(ctx context.Context, chain *flexplan.DependencyChain[string], tasks map[string]Schedulable, cfg Config, pool *executor.HybridPool) error {
	var errs errSink
	for level := 0; level < chain.Levels(); level++ {
		names := append(chain.GetLevel(level), chain.IndependentItems()...)
		independentCap, lift := quota(cfg, chain, names, tasks)
		dispatched := 0
		for _, name := range names {
			task, ok := tasks[name]
			if !ok || task.Invoked() {
				continue
			}
			if s.isIndependent(chain, name) && !lift {
				if dispatched >= independentCap {
					continue
				}
				dispatched++
			}
			t := task
			pool.Submit(ctx, func(ctx context.Context) { errs.set(s.invokeOne(ctx, t, tasks, cfg)) })
		}
		pool.Wait()
		if err := errs.get(); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	// Levels are done; only independents can remain. No dependent tasks are
	// left, so the quota no longer applies.
	for _, name := range chain.IndependentItems() {
		task, ok := tasks[name]
		if !ok || task.Invoked() {
			continue
		}
		t := task
		pool.Submit(ctx, func(ctx context.Context) { errs.set(s.invokeOne(ctx, t, tasks, cfg)) })
	}
	pool.Wait()
	if err := errs.get(); err != nil {
		return err
	}
	return ctx.Err()
}

// runTicks implements DFS/Mix and every heartbeat-driven run: each tick
// marks newly ready tasks, dispatches every task whose immediate
// predecessors are all Ready (independents throttled by the quota), runs
// the heartbeat handler or nested workflow if one is installed, then waits
// cfg.Interval before the next tick.
func (s *Scheduler) runTicks(ctx context.Context, chain *flexplan.DependencyChain[string], tasks map[string]Schedulable, cfg Config, pool *executor.HybridPool) error {
	limiter := rate.NewLimiter(rate.Every(cfg.Interval), 1)
	var errs errSink
	for {
		if ctx.Err() != nil {
			pool.Wait()
			return ctx.Err()
		}
		if err := errs.get(); err != nil {
			pool.Wait()
			return err
		}

		names := chain.DependentItems()
		names = append(names, chain.IndependentItems()...)
		independentCap, lift := quota(cfg, chain, names, tasks)
		independentInFlight := s.countIndependentInFlight(chain, tasks)

		for _, name := range names {
			task, ok := tasks[name]
			if !ok || task.Invoked() {
				continue
			}
			if !predecessorsReady(chain, name, tasks) {
				continue
			}
			if s.isIndependent(chain, name) && !lift {
				if independentInFlight >= independentCap {
					continue
				}
				independentInFlight++
			}
			t := task
			pool.Submit(ctx, func(ctx context.Context) { errs.set(s.invokeOne(ctx, t, tasks, cfg)) })
		}

		cfg.Observer.OnEvent(ctx, observability.Event{Type: observability.EventHeartbeat, Level: observability.LevelVerbose})

		if cfg.HeartbeatWorkflow != nil {
			if err := cfg.HeartbeatWorkflow.Run(ctx); err != nil {
				pool.Wait()
				return err
			}
		} else if cfg.Heartbeat != nil {
			if err := cfg.Heartbeat(ctx); err != nil {
				pool.Wait()
				return err
			}
		}

		if s.allReady(tasks) {
			pool.Wait()
			return errs.get()
		}

		if err := limiter.Wait(ctx); err != nil {
			pool.Wait()
			return err
		}
	}
}

// invokeOne prepares task (resolving any cross-task placeholders) and
// invokes it, emitting dispatched/finished events.
func (s *Scheduler) invokeOne(ctx context.Context, task Schedulable, tasks map[string]Schedulable, cfg Config) error {
	items := make(map[string]flexplan.Gettable, task.After().Len())
	for _, name := range task.After().Items() {
		if t, ok := tasks[name]; ok {
			items[name] = t
		}
	}
	if err := task.Prepare(ctx, items); err != nil {
		return err
	}

	cfg.Observer.OnEvent(ctx, observability.Event{Type: observability.EventTaskDispatched, Level: observability.LevelVerbose, Source: task.Name()})
	task.Invoke(ctx)
	cfg.Observer.OnEvent(ctx, observability.Event{Type: observability.EventTaskFinished, Level: observability.LevelVerbose, Source: task.Name()})
	return nil
}

func (s *Scheduler) allReady(tasks map[string]Schedulable) bool {
	for _, t := range tasks {
		if !t.Ready() {
			return false
		}
	}
	return true
}

func (s *Scheduler) isIndependent(chain *flexplan.DependencyChain[string], name string) bool {
	p, err := chain.Priority(name)
	return err == nil && p == flexplan.PriorityIndependent
}

// predecessorsReady reports whether every immediate predecessor of name is
// either absent from tasks (already removed/ignored) or Ready.
func predecessorsReady(chain *flexplan.DependencyChain[string], name string, tasks map[string]Schedulable) bool {
	preds, err := chain.SupOf(name, false)
	if err != nil {
		return false
	}
	for _, p := range preds {
		t, ok := tasks[p]
		if ok && !t.Ready() {
			return false
		}
	}
	return true
}

// quota computes the independent/dependent worker split for the current
// pass: n_ind = ceil(Workers*IndependentRatio) and n_dep = Workers-n_ind.
// lift is true when the number of remaining (not-yet-Ready) dependent
// tasks across names has dropped to n_dep or below, at which point the
// independent throttle no longer applies and all remaining independents
// may be dispatched in the same pass.
func quota(cfg Config, chain *flexplan.DependencyChain[string], names []string, tasks map[string]Schedulable) (independentCap int, lift bool) {
	independentCap = int(math.Ceil(float64(cfg.Workers) * cfg.IndependentRatio))
	if independentCap < 1 {
		independentCap = 1
	}
	dependentCap := cfg.Workers - independentCap

	dependentRemaining := 0
	for _, name := range names {
		t, ok := tasks[name]
		if !ok || t.Ready() {
			continue
		}
		if p, err := chain.Priority(name); err == nil && p >= 0 {
			dependentRemaining++
		}
	}
	return independentCap, dependentRemaining <= dependentCap
}

// countIndependentInFlight counts independent tasks that have been invoked
// but are not yet done, so the quota bounds independents in flight rather
// than independents dispatched per tick.
func (s *Scheduler) countIndependentInFlight(chain *flexplan.DependencyChain[string], tasks map[string]Schedulable) int {
	n := 0
	for _, name := range chain.IndependentItems() {
		t, ok := tasks[name]
		if ok && t.Invoked() && !t.Ready() {
			n++
		}
	}
	return n
}
