package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/loxone-bridge/internal/infrastructure/database"
)

// ErrNotFound indicates no snapshot has been stored yet.
var ErrNotFound = errors.New("snapshot: not found")

// Snapshot is one captured view of a Miniserver.
type Snapshot struct {
	// MiniserverID is the configured instance identifier.
	MiniserverID string `json:"miniserver_id"`

	// Serial is the Miniserver serial number, if present in the
	// structure document.
	Serial string `json:"serial,omitempty"`

	// Name is the Miniserver display name.
	Name string `json:"name,omitempty"`

	// SWVersion is the dotted firmware version.
	SWVersion string `json:"sw_version,omitempty"`

	// Model is the human-readable model name.
	Model string `json:"model,omitempty"`

	// Host is the Miniserver network address.
	Host string `json:"host"`

	// Structure is the raw structure document JSON.
	Structure []byte `json:"-"`

	// FetchedAt is when the structure was fetched (UTC).
	FetchedAt time.Time `json:"fetched_at"`
}

// Store persists snapshots in SQLite.
type Store struct {
	db *database.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS miniserver_snapshots (
    miniserver_id  TEXT PRIMARY KEY,
    serial         TEXT NOT NULL DEFAULT '',
    name           TEXT NOT NULL DEFAULT '',
    sw_version     TEXT NOT NULL DEFAULT '',
    model          TEXT NOT NULL DEFAULT '',
    host           TEXT NOT NULL DEFAULT '',
    structure_json BLOB,
    fetched_at     TIMESTAMP NOT NULL
);`

// NewStore creates a store and ensures its schema exists.
func NewStore(ctx context.Context, db *database.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("snapshot: database is required")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("snapshot: creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save upserts the snapshot for a miniserver.
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	if snap.MiniserverID == "" {
		return fmt.Errorf("snapshot: miniserver_id is required")
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO miniserver_snapshots
    (miniserver_id, serial, name, sw_version, model, host, structure_json, fetched_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(miniserver_id) DO UPDATE SET
    serial = excluded.serial,
    name = excluded.name,
    sw_version = excluded.sw_version,
    model = excluded.model,
    host = excluded.host,
    structure_json = excluded.structure_json,
    fetched_at = excluded.fetched_at;`

	_, err := s.db.ExecContext(ctx, query,
		snap.MiniserverID, snap.Serial, snap.Name, snap.SWVersion,
		snap.Model, snap.Host, snap.Structure, snap.FetchedAt.UTC())
	if err != nil {
		return fmt.Errorf("snapshot: saving: %w", err)
	}
	return nil
}

// Latest returns the stored snapshot for a miniserver.
func (s *Store) Latest(ctx context.Context, miniserverID string) (*Snapshot, error) {
	const query = `
SELECT miniserver_id, serial, name, sw_version, model, host, structure_json, fetched_at
FROM miniserver_snapshots
WHERE miniserver_id = ?;`

	var snap Snapshot
	err := s.db.QueryRowContext(ctx, query, miniserverID).Scan(
		&snap.MiniserverID, &snap.Serial, &snap.Name, &snap.SWVersion,
		&snap.Model, &snap.Host, &snap.Structure, &snap.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: loading: %w", err)
	}
	return &snap, nil
}
