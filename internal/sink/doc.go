// Package sink defines where task results are written for later pickup.
//
// A ResultSink is write-then-forget for producers and pull-based for
// consumers: Put upserts a result by task ID, and Take hands each stored
// result out at most once. Implementations live here (in-memory), in
// internal/platform/redis and in the httpsink subpackage.
package sink
