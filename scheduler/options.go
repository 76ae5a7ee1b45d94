package scheduler

import (
	"fmt"
	"time"

	"github.com/flexplan/flexplan"
	"github.com/flexplan/flexplan/executor"
	"github.com/flexplan/flexplan/observability"
)

// Option configures a Scheduler. Use NewOptions(opts...) to construct one
// via functional options.
type Option func(*Config)

// WithMode selects the dispatch strategy.
func WithMode(m Mode) Option { return func(c *Config) { c.Mode = m } }

// WithWorkers sets the executor's worker quota (used by the independent /
// dependent quota split, and as the fixed pool capacity when PoolCapacity
// is left at its default).
func WithWorkers(n int) Option { return func(c *Config) { c.Workers = n } }

// WithPoolCapacity overrides the executor pool's capacity independently of
// Workers. Zero leaves the capacity at Workers.
func WithPoolCapacity(n uint) Option { return func(c *Config) { c.PoolCapacity = n } }

// WithExecutor dispatches through a caller-owned pool instead of one built
// from Workers/PoolCapacity. The scheduler never closes it, so a single
// pool may serve several workflows.
func WithExecutor(p *executor.HybridPool) Option { return func(c *Config) { c.Executor = p } }

// WithChain seeds the scheduler with an existing dependency chain instead
// of an empty one.
func WithChain(chain *flexplan.DependencyChain[string]) Option {
	return func(c *Config) { c.Chain = chain }
}

// WithIndependentRatio sets r in the n_ind = ceil(Workers*r) quota formula.
func WithIndependentRatio(r float64) Option { return func(c *Config) { c.IndependentRatio = r } }

// WithInterval sets the heartbeat loop's wait-between-ticks duration.
func WithInterval(d time.Duration) Option { return func(c *Config) { c.Interval = d } }

// WithHeartbeat installs fn as the per-tick heartbeat handler. Conflicts
// with WithHeartbeatWorkflow.
func WithHeartbeat(fn HeartbeatFunc) Option { return func(c *Config) { c.Heartbeat = fn } }

// WithHeartbeatWorkflow installs nested as a heartbeat handler: nested.Run
// is invoked synchronously once per tick. Conflicts with WithHeartbeat.
func WithHeartbeatWorkflow(nested *Scheduler) Option {
	return func(c *Config) { c.HeartbeatWorkflow = nested }
}

// WithObserver installs an observability.Observer for scheduler lifecycle
// events.
func WithObserver(o observability.Observer) Option { return func(c *Config) { c.Observer = o } }

// NewOptions constructs a Scheduler via functional options.
func NewOptions(opts ...Option) *Scheduler {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			panic(fmt.Errorf("%s: nil scheduler option", flexplan.Namespace))
		}
		opt(&cfg)
	}
	if err := validateConfig(&cfg); err != nil {
		panic(fmt.Errorf("invalid scheduler config: %w", err))
	}
	return newScheduler(&cfg)
}
