// Package api exposes parameters, templates, generations and offload task
// results over HTTP. Handlers decode and validate JSON requests, call the
// service layer and map domain errors to status codes with messages that
// are safe to return to clients.
package api
