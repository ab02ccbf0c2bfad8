package history

import (
	"context"
	"time"
)

// Entry is a single recorded variable value.
type Entry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// VariableID identifies the variable in the registry.
	VariableID string `json:"variable_id"`

	// Value is the decoded value at the time of the change.
	Value any `json:"value"`

	// Valid mirrors the cache validity flag: false rows record
	// availability loss, not a value change.
	Valid bool `json:"valid"`

	// RecordedAt is when the change was observed (UTC).
	RecordedAt time.Time `json:"recorded_at"`
}

// Repository stores and retrieves variable change history.
//
// Implementations must be safe for concurrent use and store UTC
// timestamps.
type Repository interface {
	// Record persists one variable change.
	Record(ctx context.Context, variableID string, value any, valid bool, at time.Time) error

	// GetHistory returns recent entries for a variable, newest first.
	// Implementations may clamp the limit.
	GetHistory(ctx context.Context, variableID string, limit int) ([]Entry, error)
}
