// Package history persists variable value changes to SQLite.
//
// Every change the coordinator reports (new value, invalidation,
// recovery) becomes one row in the variable_history table, giving the
// API a local change log that survives restarts and works without the
// optional time-series database.
//
// The repository owns its schema: tables and indexes are created on
// construction with CREATE IF NOT EXISTS.
package history
