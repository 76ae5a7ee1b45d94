// Package observability provides event-based observability for the
// scheduler, workshop, and station subsystems. Level values align with
// OpenTelemetry SeverityNumbers for zero-translation compatibility with
// OTel collectors.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Level represents event severity aligned with OTel SeverityNumber ranges.
type Level int

const (
	LevelVerbose Level = 5  // OTel DEBUG (5-8), maps to slog.LevelDebug
	LevelInfo    Level = 9  // OTel INFO (9-12), maps to slog.LevelInfo
	LevelWarning Level = 13 // OTel WARN (13-16), maps to slog.LevelWarn
	LevelError   Level = 17 // OTel ERROR (17-20), maps to slog.LevelError
)

// SlogLevel maps this level to the corresponding slog.Level for log emission.
func (l Level) SlogLevel() slog.Level {
	switch {
	case l <= 8:
		return slog.LevelDebug
	case l <= 12:
		return slog.LevelInfo
	case l <= 16:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// EventType identifies the kind of event emitted by a station, workshop, or
// scheduler, e.g. "station.started", "mail.routed", "task.finished".
type EventType string

// Station lifecycle and routing event types.
const (
	EventStationStarted   EventType = "station.started"
	EventStationStopped   EventType = "station.stopped"
	EventWorkerConstruct  EventType = "station.worker_constructed"
	EventWorkerRegistered EventType = "workshop.worker_registered"
	EventMailRouted       EventType = "mail.routed"
	EventMailDropped      EventType = "mail.dropped"
	EventTaskDispatched   EventType = "task.dispatched"
	EventTaskFinished     EventType = "task.finished"
	EventHeartbeat        EventType = "scheduler.heartbeat"
)

// Event is an observability event emitted by subsystems.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// Observer receives events from subsystems for logging, tracing, or metrics.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}
