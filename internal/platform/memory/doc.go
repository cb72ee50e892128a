// Package memory implements the store interfaces on process memory.
//
// It backs the service when no database URL is configured and is the store
// used by the scheduler and service tests. Every read returns a deep copy,
// so callers can mutate what they get without touching stored state.
package memory
