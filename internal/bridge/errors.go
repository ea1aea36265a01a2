package bridge

import "errors"

var (
	// ErrInvalidCommand indicates a command payload that failed
	// validation.
	ErrInvalidCommand = errors.New("bridge: invalid command")

	// ErrSessionUnavailable indicates the Miniserver session rejected a
	// command because it is not in a usable state.
	ErrSessionUnavailable = errors.New("bridge: session unavailable")
)
