// Package task turns a generation's variants into tasks and runs them.
//
// Each generation gets its own Scheduler: an actor goroutine that accepts
// start and stop commands and drives the generation's tasks one at a time
// through pending, processing and a terminal status, pacing task starts to
// the generation's rate limit. The Manager owns the schedulers and serializes
// every other mutation of a generation's task list behind the same lock the
// running scheduler uses.
package task
