package executor

import (
	"fmt"

	"github.com/flexplan/flexplan/metrics"
)

// Option configures a HybridPool. Use NewHybridPool(provider, opts...) to
// construct one via options.
type Option func(*configOptions)

// internal builder state for options assembly.
type configOptions struct {
	cfg          Config
	poolSelected poolType
}

type poolType int

const (
	poolUnspecified poolType = iota
	poolDynamic
	poolFixed
)

// WithFixedPool selects a fixed-capacity slot pool (n must be > 0): at most
// n jobs run concurrently, and further submitted jobs wait for a slot.
func WithFixedPool(n uint) Option {
	return func(co *configOptions) {
		if co.poolSelected != poolUnspecified && co.poolSelected != poolFixed {
			panic("conflicting pool options: WithFixedPool and WithDynamicPool both specified")
		}
		if n == 0 {
			panic("WithFixedPool requires n > 0")
		}
		co.poolSelected = poolFixed
		co.cfg.Capacity = n
	}
}

// WithDynamicPool selects a dynamic-size slot pool (the default if no pool
// option is given): concurrency is bounded only by how many jobs are
// in-flight.
func WithDynamicPool() Option {
	return func(co *configOptions) {
		if co.poolSelected != poolUnspecified && co.poolSelected != poolDynamic {
			panic("conflicting pool options: WithFixedPool and WithDynamicPool both specified")
		}
		co.poolSelected = poolDynamic
		co.cfg.Capacity = 0
	}
}

// NewHybridPool constructs a HybridPool via functional options. A nil
// provider defaults to a no-op one.
func NewHybridPool(provider metrics.Provider, opts ...Option) *HybridPool {
	co := configOptions{cfg: defaultConfig(), poolSelected: poolUnspecified}
	for _, opt := range opts {
		if opt == nil {
			panic("nil executor option")
		}
		opt(&co)
	}

	if co.poolSelected == poolUnspecified {
		co.poolSelected = poolDynamic
		co.cfg.Capacity = 0
	}

	if err := validateConfig(&co.cfg); err != nil {
		panic(fmt.Errorf("invalid executor config: %w", err))
	}

	return newHybridPool(&co.cfg, provider)
}
