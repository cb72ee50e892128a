// Package config loads the service configuration from defaults, an optional
// YAML file and IMAGEGEN_* environment variables, then validates it.
//
// The sections map onto the components that consume them: server and
// logging, the Postgres database, the image model backend, the
// per-generation schedulers, the retrying executor, Redis, and the offload
// worker with its signed result callbacks.
package config
