// Package domain contains the core business entities of the image generation
// pipeline: parameters, templates, the variants derived from them, and the
// generations that own a queue of generation tasks. It is independent of any
// storage, transport or scheduling concerns.
package domain
