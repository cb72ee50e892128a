// Package events carries notifications about task outcomes between the
// scheduler and whatever wants to observe them.
//
// The scheduler emits a TaskSettledEvent each time a task reaches a terminal
// status. Handlers registered on an EventEmitter receive every event; the
// result sink forwarder is the main consumer.
package events
