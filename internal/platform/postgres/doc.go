// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces defined in the internal/store package. It handles
// query execution, mapping between domain entities and rows, and the
// embedded goose migrations that create the schema.
//
// Generations are stored as one row plus an ordered set of task rows; the
// variant snapshot lives in a JSONB column so later template or parameter
// edits never rewrite a generation's history.
package postgres
