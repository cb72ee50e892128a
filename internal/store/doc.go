// Package store declares the persistence contracts for parameters,
// templates and generations, along with the errors every implementation
// returns.
//
// internal/platform/postgres holds the durable implementation and
// internal/platform/memory the in-process one.
package store
