package its

import "errors"

// The status taxonomy for store operations. Backend-local failures are
// translated into these sentinels at the backend boundary, with the cause
// kept in the wrap chain for errors.Is / errors.As inspection. Nothing is
// retried internally; retry is the caller's responsibility.
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrDoesNotExist        = errors.New("object does not exist")
	ErrInsufficientStorage = errors.New("insufficient storage")
	ErrIO                  = errors.New("storage i/o failure")
)
