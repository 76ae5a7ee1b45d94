package workshop

import (
	"errors"

	"github.com/flexplan/flexplan"
)

var (
	errInvalidInboxSize    = errors.New(flexplan.Namespace + ": workshop inbox size must be > 0")
	errInvalidPollInterval = errors.New(flexplan.Namespace + ": workshop poll interval must be > 0")

	// ErrAlreadyStarted is returned by Start on a workshop that has left
	// StateInitial.
	ErrAlreadyStarted = errors.New(flexplan.Namespace + ": workshop already started")
)
