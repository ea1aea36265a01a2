// Package api provides the HTTP REST API for the bridge.
//
// It exposes session status, the persisted structure snapshot, and a
// command endpoint that shares the bridge's command execution path.
//
// The server follows the same lifecycle pattern as other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use.
package api
