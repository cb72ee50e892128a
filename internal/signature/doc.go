// Package signature signs and verifies result callback bodies.
//
// A signature is an HS256 JWT whose "body" claim is the base64url SHA-256
// digest of the request body, so a token cannot be replayed against a
// different payload. Tokens are short-lived.
package signature
