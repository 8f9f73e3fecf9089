package flashlog

import "errors"

// Sentinel errors for log operations.
var (
	ErrNotFound       = errors.New("id not found")
	ErrNoSpace        = errors.New("log full")
	ErrDeviceNotReady = errors.New("flash device not ready")
)
