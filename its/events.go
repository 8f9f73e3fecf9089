package its

import (
	"context"
	"time"

	"github.com/embeddedkv/itstore/observability"
)

// Storage event types emitted through the configured observer.
const (
	EventSet     observability.EventType = "storage.set"
	EventGet     observability.EventType = "storage.get"
	EventGetInfo observability.EventType = "storage.get_info"
	EventRemove  observability.EventType = "storage.remove"
	EventMount   observability.EventType = "storage.mount"
	EventError   observability.EventType = "storage.error"
)

func emit(ctx context.Context, obs observability.Observer, source string, typ observability.EventType, level observability.Level, data map[string]any) {
	obs.OnEvent(ctx, observability.Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	})
}

func emitError(ctx context.Context, obs observability.Observer, source, op string, uid UID, err error) {
	emit(ctx, obs, source, EventError, observability.LevelError, map[string]any{
		"op":    op,
		"uid":   uint64(uid),
		"error": err.Error(),
	})
}
