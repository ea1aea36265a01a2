package loxws

import "errors"

var (
	// ErrNotConnected indicates an operation that requires an
	// established connection was called before Init succeeded.
	ErrNotConnected = errors.New("loxws: not connected")

	// ErrDialFailed indicates the websocket connection could not be
	// established.
	ErrDialFailed = errors.New("loxws: dial failed")

	// ErrKeyExchange indicates the getkey request failed or returned an
	// unusable key.
	ErrKeyExchange = errors.New("loxws: key exchange failed")

	// ErrAuthFailed indicates the Miniserver rejected the
	// authentication digest.
	ErrAuthFailed = errors.New("loxws: authentication failed")

	// ErrProtocol indicates an unexpected or malformed response during
	// the session handshake.
	ErrProtocol = errors.New("loxws: protocol error")
)
