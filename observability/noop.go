package observability

import "context"

// NoOpObserver discards all events with zero overhead. Stores constructed
// directly, without WithObserver, default to it.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(ctx context.Context, event Event) {}
