// Package generation defines the boundary between the task pipeline and the
// external image-generation service. The ImageGenerator interface is what the
// scheduler and the offload worker call; the Gemini adapter in
// internal/platform/gemini implements it.
//
// Errors returned across this boundary are classified as terminal or
// transient (see IsTerminal) so callers can decide whether retrying has any
// chance of succeeding.
package generation
