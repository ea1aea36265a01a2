// Package snapshot persists the last known Miniserver identity and
// structure document.
//
// A snapshot is written after each successful session setup. On later
// inspection (the API's snapshot endpoint) the stored copy answers
// without a round trip to the Miniserver, and it survives restarts
// when the Miniserver itself is unreachable.
//
// Storage is a single SQLite table; only the most recent snapshot per
// miniserver is kept.
package snapshot
