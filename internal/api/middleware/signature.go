package middleware

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/phrazzld/imagegen-api/internal/api/shared"
	"github.com/phrazzld/imagegen-api/internal/platform/logger"
	"github.com/phrazzld/imagegen-api/internal/redact"
	"github.com/phrazzld/imagegen-api/internal/signature"
)

// SignatureMiddleware rejects request bodies that do not carry a valid
// signature.Header token.
type SignatureMiddleware struct {
	signer signature.Signer
}

// NewSignatureMiddleware creates a new SignatureMiddleware.
func NewSignatureMiddleware(signer signature.Signer) *SignatureMiddleware {
	return &SignatureMiddleware{signer: signer}
}

// Verify checks the signature against the raw body and hands the body on
// unchanged.
func (m *SignatureMiddleware) Verify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(signature.Header)
		if token == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Missing signature")
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, shared.MaxBodyBytes+1))
		_ = r.Body.Close()
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		if len(body) > shared.MaxBodyBytes {
			shared.RespondWithError(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}

		if err := m.signer.Verify(r.Context(), token, body); err != nil {
			switch {
			case errors.Is(err, signature.ErrExpiredSignature):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Signature expired")
			case errors.Is(err, signature.ErrInvalidSignature),
				errors.Is(err, signature.ErrBodyMismatch):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid signature")
			default:
				logger.FromContextOrDefault(r.Context(), slog.Default()).Error(
					"failed to verify signature", "error", redact.Error(err))
				shared.RespondWithError(w, r, http.StatusInternalServerError, "Signature verification error")
			}
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}
