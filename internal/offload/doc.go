// Package offload hands generation tasks to a delayed queue for execution
// outside the in-process scheduler.
//
// Each task is enqueued as a Message with a delay that spaces messages by
// the generation's pacing interval. A Worker pops due messages, runs them
// through the same retrying executor the scheduler uses and writes the
// outcome to a result sink, from which the API later syncs it back into the
// generation.
package offload
