// Package bridge connects a Miniserver session to the MQTT event bus.
//
// # Architecture
//
//	                 ┌──────────────────────────────┐
//	 MQTT broker ───►│ loxone/command               │
//	                 │ loxone/command/secured       │──► session.SendCommand
//	                 │                              │    session.SendSecuredCommand
//	 MQTT broker ◄───│ loxone/event                 │◄── inbound message relay
//	                 │ loxone/health     (retained) │◄── health reporter
//	                 │ loxone/discovery  (retained) │◄── registry entries
//	                 └──────────────────────────────┘
//
// Commands arrive as JSON envelopes on the command topics (or through
// HandleServiceCommand, which shares the same execution path) and are
// forwarded to the Miniserver. Inbound Miniserver messages are relayed
// to the event topic verbatim, in arrival order, through a single
// buffered channel drained by one goroutine.
//
// Malformed command payloads are logged and dropped; they never
// interrupt the relay.
//
// Thread safety: all exported methods are safe for concurrent use.
package bridge
