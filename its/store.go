// Package its implements a fixed-capacity trusted object store in the shape
// of PSA Internal Trusted Storage. Callers set, get, inspect, and remove
// opaque binary objects keyed by a caller-chosen 64-bit uid. Two
// interchangeable backends realize the contract: a volatile in-RAM slot
// table and a persistent backend mounted on a log-structured flash engine.
package its

import (
	"context"

	"github.com/embeddedkv/itstore/observability"
)

// UID identifies a stored object. Callers choose the value; it is the sole
// lookup key, unique among live objects.
type UID uint64

// Info describes a stored object without exposing its payload.
type Info struct {
	Size uint32 // valid payload bytes as of the last successful Set
}

// Store is the uniform storage contract both backends present. Operations
// are synchronous and run to completion; errors come from the sentinel
// taxonomy in errors.go and a nil error means success.
//
// Implementations do no internal locking. Callers invoking a Store from
// multiple execution contexts must serialize access themselves.
type Store interface {
	// Set stores data under uid, creating the object or superseding its
	// previous content wholesale.
	Set(ctx context.Context, uid UID, data []byte) error

	// Get copies stored bytes starting at offset into out and returns the
	// count copied, clamped to the bytes available past offset. An offset
	// beyond the stored size is an invalid argument.
	Get(ctx context.Context, uid UID, offset uint32, out []byte) (int, error)

	// GetInfo reports metadata for the object stored under uid.
	GetInfo(ctx context.Context, uid UID) (Info, error)

	// Remove deletes the object stored under uid. Subsequent lookups for
	// the same uid report absence.
	Remove(ctx context.Context, uid UID) error
}

// Option configures a store at construction time.
type Option func(*options)

type options struct {
	observer observability.Observer
}

// WithObserver sets the observability sink for store events. The default
// discards events.
func WithObserver(o observability.Observer) Option {
	return func(opts *options) { opts.observer = o }
}

func applyOptions(opts []Option) options {
	applied := options{observer: observability.NoOpObserver{}}
	for _, opt := range opts {
		opt(&applied)
	}
	return applied
}
