// Package database provides SQLite connectivity for the Loxone bridge.
//
// The bridge persists a small amount of local state (identity snapshots
// captured on each successful session setup). SQLite keeps the bridge
// self-contained: no external database service is required.
//
// # Usage
//
//	db, err := database.Open(database.Config{
//	    Path:        "./data/loxbridge.db",
//	    WALMode:     true,
//	    BusyTimeout: 5,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
// WAL mode is recommended: it allows concurrent reads while a write is
// in progress, which suits the read-mostly access pattern here.
package database
