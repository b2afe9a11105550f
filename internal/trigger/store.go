package trigger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StateStore persists enable flags keyed by a stable trigger or instance key.
type StateStore interface {
	LoadStates(ctx context.Context) (map[string]bool, error)
	SaveState(ctx context.Context, key string, enabled bool) error
}

// SQLiteStateStore keeps enable flags in the toggle_states table.
type SQLiteStateStore struct {
	db *sql.DB
}

// NewSQLiteStateStore creates a store on an opened, migrated database.
func NewSQLiteStateStore(db *sql.DB) *SQLiteStateStore {
	return &SQLiteStateStore{db: db}
}

// LoadStates returns every persisted flag.
func (s *SQLiteStateStore) LoadStates(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, enabled FROM toggle_states")
	if err != nil {
		return nil, fmt.Errorf("querying toggle states: %w", err)
	}
	defer rows.Close()

	states := make(map[string]bool)
	for rows.Next() {
		var key string
		var enabled int
		if err := rows.Scan(&key, &enabled); err != nil {
			return nil, fmt.Errorf("scanning toggle state: %w", err)
		}
		states[key] = enabled != 0
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating toggle states: %w", err)
	}
	return states, nil
}

// SaveState upserts one flag.
func (s *SQLiteStateStore) SaveState(ctx context.Context, key string, enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO toggle_states (key, enabled, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET enabled = excluded.enabled, updated_at = excluded.updated_at`,
		key, v, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving toggle state %q: %w", key, err)
	}
	return nil
}
