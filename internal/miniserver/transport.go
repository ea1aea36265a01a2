package miniserver

import "context"

// Transport is the authenticated websocket channel to the Miniserver.
//
// Implementations own key exchange, message framing, and the low-level
// send/receive loop; the session manager only drives their lifecycle.
// See the loxws subpackage for the production implementation.
type Transport interface {
	// Init establishes and authenticates the connection. It must be
	// called before Start. An authentication or key-exchange failure
	// is reported as an error.
	Init(ctx context.Context) error

	// Start begins the active read/command loop. Inbound messages are
	// delivered, in arrival order, to the callback installed via
	// SetMessageCallback.
	Start(ctx context.Context) error

	// Stop shuts the transport down, unblocking any pending operations
	// it owns. The returned string is a diagnostic for logging only.
	// Stop must be safe to call repeatedly.
	Stop(ctx context.Context) (string, error)

	// SendCommand sends a plain (unsecured) command to a device.
	SendCommand(ctx context.Context, deviceID, value string) error

	// SendSecuredCommand sends a command requiring a visual
	// authorization code.
	SendSecuredCommand(ctx context.Context, deviceID, value, code string) error

	// SetMessageCallback installs the function invoked once per inbound
	// message, replacing any previously installed callback.
	SetMessageCallback(callback func(payload []byte))
}

// TransportConfig carries everything a transport needs to establish a
// session with the Miniserver.
type TransportConfig struct {
	Username string
	Password string
	Host     string
	Port     int

	// BaseURL is the Miniserver's HTTP base URL (token and image
	// requests are made against it by richer transports).
	BaseURL string

	// Structure is the fetched structure document for this session.
	Structure *Document
}

// TransportFactory constructs a transport for one session. The session
// manager calls it once per successful structure fetch.
type TransportFactory func(cfg TransportConfig) (Transport, error)
