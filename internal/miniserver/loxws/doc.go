// Package loxws implements the websocket transport to a Loxone
// Miniserver.
//
// # Protocol
//
// The Miniserver exposes a websocket endpoint at /ws/rfc6455 using the
// "remotecontrol" subprotocol. A session is established in two steps:
//
//	client                          miniserver
//	  |--- jdev/sys/getkey ----------->|
//	  |<-- {"LL":{"value":"<hexkey>"}} |
//	  |--- authenticate/<hmac> ------->|
//	  |<-- {"LL":{"Code":"200"}}       |
//
// The authentication digest is HMAC-SHA1 over "username:password",
// keyed with the hex-decoded getkey value.
//
// After authentication, Start enables binary status updates and runs a
// read loop that delivers every inbound payload, in arrival order, to
// the registered callback. A keepalive message is sent on a fixed
// interval to hold the session open.
//
// # Commands
//
//	jdev/sps/io/<uuid>/<value>              plain command
//	jdev/sps/ios/<code>/<uuid>/<value>      visual-authorization command
//
// The transport never logs credentials or authentication digests.
package loxws
