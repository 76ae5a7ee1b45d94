package observability

import "context"

// NoOpObserver discards all events with zero overhead. It is the default
// observer for every station, workshop, and scheduler.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(ctx context.Context, event Event) {}
