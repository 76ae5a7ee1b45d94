package scheduler

import (
	"context"
	"time"

	"github.com/flexplan/flexplan"
	"github.com/flexplan/flexplan/executor"
	"github.com/flexplan/flexplan/observability"
)

// Config holds Scheduler configuration.
type Config struct {
	// Mode selects the dispatch strategy.
	// Default: ModeMix.
	Mode Mode

	// Workers is the number of concurrent slots the scheduler's executor
	// pool offers. Workers <= 1 with PoolCapacity == 0, no Executor, and no
	// heartbeat handler installed selects the single-threaded fallback.
	// Default: 1.
	Workers int

	// PoolCapacity bounds the executor's concurrent slot count. Zero means
	// a fixed pool of Workers slots.
	// Default: 0.
	PoolCapacity uint

	// Executor, if set, is a caller-owned pool used for dispatch instead of
	// one built from Workers/PoolCapacity. The scheduler never closes it.
	Executor *executor.HybridPool

	// Chain, if set, seeds the scheduler with an existing dependency chain
	// (e.g. a SubChain of a larger workflow) instead of an empty one.
	Chain *flexplan.DependencyChain[string]

	// IndependentRatio is r in the n_ind = ceil(Workers*r) quota formula.
	// Must be in [0.05, 1.0].
	// Default: 0.2.
	IndependentRatio float64

	// Interval is how long the heartbeat loop waits between ticks.
	// Must be >= 1 microsecond.
	// Default: 10ms.
	Interval time.Duration

	// Heartbeat, if set, is invoked once per heartbeat tick after newly
	// ready tasks are marked done and before the interval wait.
	Heartbeat HeartbeatFunc

	// HeartbeatWorkflow, if set, is a nested Scheduler whose Run is invoked
	// synchronously once per heartbeat tick instead of Heartbeat. At most
	// one of Heartbeat/HeartbeatWorkflow may be set.
	HeartbeatWorkflow *Scheduler

	// Observer receives lifecycle events (task dispatched/finished,
	// heartbeat ticks). Default: observability.NoOpObserver.
	Observer observability.Observer
}

// HeartbeatFunc is a user callback invoked once per heartbeat tick. Bound
// arguments are expressed the idiomatic Go way: capture them in the
// closure passed to WithHeartbeat, rather than a separate bound-args API.
type HeartbeatFunc func(ctx context.Context) error

// defaultConfig centralizes default values for Config. These defaults are
// the base that NewOptions applies its options to; New uses the Config it
// is given as is.
func defaultConfig() Config {
	return Config{
		Mode:             ModeMix,
		Workers:          1,
		PoolCapacity:     0,
		IndependentRatio: 0.2,
		Interval:         10 * time.Millisecond,
	}
}

// validateConfig performs lightweight invariant checks.
func validateConfig(cfg *Config) error {
	if cfg.Workers < 1 {
		return errInvalidWorkers
	}
	if cfg.IndependentRatio < 0.05 || cfg.IndependentRatio > 1.0 {
		return errInvalidIndependentRatio
	}
	if cfg.Interval < time.Microsecond {
		return errInvalidInterval
	}
	if cfg.Heartbeat != nil && cfg.HeartbeatWorkflow != nil {
		return errConflictingHeartbeats
	}
	return nil
}
