// Package gemini provides an implementation of the generation.ImageGenerator
// interface backed by Google's generative AI API.
//
// This package is an infrastructure adapter: it translates a resolved prompt
// and a model selector into a call to Imagen (GenerateImages) or to the
// Gemini flash image model (GenerateContent with inline image output), and
// translates API failures into the error classification of the generation
// package so the retry layer can tell validation faults from transient ones.
//
// A process-wide request cap (golang.org/x/time/rate) sits in front of every
// call so concurrently running generations cannot exceed the account quota.
package gemini
