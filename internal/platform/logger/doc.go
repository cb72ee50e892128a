// Package logger configures the process-wide slog JSON logger and carries
// request-scoped loggers through context.Context.
//
// Attribute values pass through a redacting handler before they are
// written, so API keys, connection strings and inline image data stay out of logs.
package logger
