package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// schema is applied on construction. CREATE IF NOT EXISTS keeps startup
// idempotent across restarts.
const schema = `
CREATE TABLE IF NOT EXISTS variable_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	variable_id TEXT    NOT NULL,
	value       TEXT    NOT NULL,
	valid       INTEGER NOT NULL DEFAULT 1,
	recorded_at TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_variable_history_lookup
	ON variable_history (variable_id, recorded_at DESC);
`

// SQLiteRepository implements Repository on SQLite.
//
// Values are stored as JSON so int, float, flag and string variables all
// round-trip through one column.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates the repository and ensures its schema
// exists.
func NewSQLiteRepository(ctx context.Context, db *sql.DB) (*SQLiteRepository, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Record inserts one history row for a variable change.
func (r *SQLiteRepository) Record(ctx context.Context, variableID string, value any, valid bool, at time.Time) error {
	if variableID == "" {
		return fmt.Errorf("variable id is required")
	}
	if at.IsZero() {
		at = time.Now()
	}

	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshalling value: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO variable_history (variable_id, value, valid, recorded_at) VALUES (?, ?, ?, ?)",
		variableID,
		string(valueJSON),
		boolToInt(valid),
		at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting variable history: %w", err)
	}

	return nil
}

// GetHistory returns recent entries for a variable, newest first.
// The limit defaults to 50 and is clamped to 500.
func (r *SQLiteRepository) GetHistory(ctx context.Context, variableID string, limit int) ([]Entry, error) {
	if variableID == "" {
		return nil, fmt.Errorf("variable id is required")
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, variable_id, value, valid, recorded_at
		 FROM variable_history
		 WHERE variable_id = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		variableID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying variable history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		var valueJSON string
		var valid int
		var recordedAt string

		if err := rows.Scan(&entry.ID, &entry.VariableID, &valueJSON, &valid, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning variable history: %w", err)
		}

		if err := json.Unmarshal([]byte(valueJSON), &entry.Value); err != nil {
			return nil, fmt.Errorf("unmarshalling value: %w", err)
		}
		entry.Valid = valid != 0

		timestamp, err := time.Parse(time.RFC3339, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}
		entry.RecordedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating variable history: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than the given retention window and
// returns the number of rows removed.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM variable_history WHERE recorded_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting variable history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
