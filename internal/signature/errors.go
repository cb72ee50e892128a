package signature

import "errors"

// Common signature errors
var (
	// ErrInvalidSignature indicates the token is malformed or its signature doesn't match
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrExpiredSignature indicates the token has expired
	ErrExpiredSignature = errors.New("signature has expired")

	// ErrBodyMismatch indicates the token was issued for a different body
	ErrBodyMismatch = errors.New("signature does not match body")

	// ErrMissingSignature indicates a signature was expected but not provided
	ErrMissingSignature = errors.New("signature is missing")

	// ErrWeakKey indicates the signing key is shorter than 32 bytes
	ErrWeakKey = errors.New("signing key must be at least 32 characters")
)
