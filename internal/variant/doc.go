// Package variant turns a template with {{name}} placeholders and a set of
// parameter values into the full cartesian set of resolved prompts.
//
// Everything here is pure: the same content and the same parameter values
// always produce the same variants, in the same order, with the same IDs.
package variant
