// Package redis provides Redis-backed implementations of the result sink and
// the offload queue.
//
// Results are stored one hash per task under {prefix}:result:{task_id} with
// a TTL. The queue is a sorted set of message IDs scored by due time plus a
// hash holding the message bodies. Multi-key reads that must also delete run
// as Lua scripts so concurrent consumers never see the same entry twice.
package redis
