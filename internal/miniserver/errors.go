package miniserver

import "errors"

// Domain errors for the miniserver session manager.
var (
	// ErrFetchFailed is returned by Setup when the structure document
	// could not be retrieved (connection-level failure).
	ErrFetchFailed = errors.New("miniserver: structure document fetch failed")

	// ErrFetchStatus is returned by Setup when the fetch completed but
	// reported a non-success status code.
	ErrFetchStatus = errors.New("miniserver: structure document fetch returned non-success status")

	// ErrTransportInit is returned by Setup when the websocket transport
	// could not be constructed or initialised (e.g. authentication failure).
	ErrTransportInit = errors.New("miniserver: transport initialization failed")

	// ErrNotReady is returned when an operation requires a successful
	// Setup that has not happened.
	ErrNotReady = errors.New("miniserver: session not ready")

	// ErrStopped is returned when an operation is attempted after the
	// session has been stopped. Stopped is a terminal state.
	ErrStopped = errors.New("miniserver: session stopped")
)
