// Package service contains the application use cases: parameter and
// template management, and the lifecycle of generations from creation
// through scheduling, offloading and result synchronization.
//
// Services depend on the store interfaces, the task scheduler manager and
// the offload collaborators, never on concrete infrastructure. Expected
// failures are returned as sentinel errors; anything else is wrapped in a
// ServiceError carrying the failed operation.
package service
