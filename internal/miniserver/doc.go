// Package miniserver implements the session lifecycle for one Loxone
// Miniserver connection.
//
// # Architecture
//
// The session manager owns the authenticated connection end to end:
//
//	┌────────────┐  fetch   ┌──────────────┐  websocket  ┌────────────┐
//	│  Manager   │─────────►│ ConfigFetcher│             │ Transport  │
//	│ (this pkg) │          └──────────────┘             │  (loxws)   │
//	│            │────────────── init/start/stop ───────►│            │
//	└────────────┘                                       └────────────┘
//
// Setup fetches the structure document (the JSON description of all
// controllable devices and Miniserver identity metadata), validates the
// fetch status, constructs the websocket transport, and initialises it.
// Start and Stop drive the transport's read/command loop. Identity
// accessors project serial, name, software version, and model out of the
// structure document without ever failing: missing or malformed fields
// yield an absent value.
//
// # Lifecycle
//
//	Uninitialized ──Setup──► Ready ──Start──► Running ──Stop──► Stopped
//	      │                                                        ▲
//	      └──Setup failure──► Failed ──(retry Setup)───────────────┘
//
// Stop is terminal and idempotent: it is safe before a successful Setup
// and safe to call repeatedly. A reconnect requires a fresh Manager.
//
// # Thread Safety
//
// All Manager methods are safe for concurrent use.
package miniserver
