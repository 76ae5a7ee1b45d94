package scheduler

import (
	"errors"

	"github.com/flexplan/flexplan"
)

// ErrChainInvalid is an alias for flexplan.ErrInvalidItems: a run refuses
// to start while the chain has cyclic, missing, or invalid-dependency
// items. Scheduler reuses flexplan.ChainError itself (see Run) rather than
// redeclaring an identical type.
var ErrChainInvalid = flexplan.ErrInvalidItems

var (
	// ErrTaskExists is returned by Add when a task name was already added.
	ErrTaskExists = errors.New(flexplan.Namespace + ": scheduler task already added")
	// ErrTaskNotFound is returned by Result lookups for an unknown task name.
	ErrTaskNotFound = errors.New(flexplan.Namespace + ": scheduler task not found")

	errInvalidWorkers          = errors.New(flexplan.Namespace + ": scheduler workers must be >= 1")
	errInvalidIndependentRatio = errors.New(flexplan.Namespace + ": scheduler independent ratio must be in [0.05, 1.0]")
	errInvalidInterval         = errors.New(flexplan.Namespace + ": scheduler interval must be >= 1 microsecond")
	errConflictingHeartbeats   = errors.New(flexplan.Namespace + ": at most one of Heartbeat and HeartbeatWorkflow may be set")
)
