// Package station hosts a single worker on a dedicated thread (goroutine)
// or OS process, exchanging mail with it over an inbox/outbox pair.
package station

import (
	"context"
	"errors"
	"time"

	"github.com/flexplan/flexplan"
)

// State is a station's position in its lifecycle: initial -> started
// (running event set) -> stopping (terminate observed) -> stopped.
// Re-start from stopped is disallowed.
type State int

const (
	StateInitial State = iota
	StateStarted
	StateStopping
	StateStopped
)

var (
	// ErrAlreadyStarted is returned by Start on a station that has left
	// StateInitial.
	ErrAlreadyStarted = errors.New(flexplan.Namespace + ": station already started")
	// ErrNotRestartable is returned by Start on a station already StateStopped.
	ErrNotRestartable = errors.New(flexplan.Namespace + ": station cannot be restarted once stopped")
)

// Station hosts one worker instance and exchanges mail with it.
type Station interface {
	// Start installs the inbox/outbox, constructs the workbench, and
	// launches its run loop on a new thread or process. It returns
	// immediately.
	Start(ctx context.Context) error
	// Stop is idempotent: it posts a terminate pill and joins.
	Stop() error
	// IsRunning reflects the workbench's running event.
	IsRunning() bool
	// Send enqueues mail onto the station's inbox.
	Send(mail *flexplan.Mail)
	// Recv pops from the station's outbox (used by a supervisor to forward
	// cross-worker mail emitted by this station's worker).
	Recv(timeout time.Duration) (*flexplan.Mail, bool)
	// WorkerClassID exposes the worker type for routing.
	WorkerClassID() string
	// State returns the station's current lifecycle state.
	State() State
}
