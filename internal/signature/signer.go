package signature

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/platform/logger"
)

// Header carries the signature on callback requests.
const Header = "X-Imagegen-Signature"

const (
	issuer          = "imagegen"
	defaultLifetime = 5 * time.Minute
)

// Signer creates and checks body signatures.
type Signer interface {
	// Sign returns a token bound to body.
	Sign(ctx context.Context, body []byte) (string, error)

	// Verify checks that token is valid and was issued for body.
	Verify(ctx context.Context, token string, body []byte) error
}

// hmacSigner is an implementation of Signer using HMAC-SHA256.
type hmacSigner struct {
	key       []byte
	lifetime  time.Duration
	timeFunc  func() time.Time // Injectable for testing
	clockSkew time.Duration
}

type bodyClaims struct {
	Body string `json:"body"`
	jwt.RegisteredClaims
}

var _ Signer = (*hmacSigner)(nil)

// NewSigner creates a Signer from a key of at least 32 characters.
func NewSigner(key string) (Signer, error) {
	if len(key) < 32 {
		return nil, ErrWeakKey
	}
	return &hmacSigner{
		key:       []byte(key),
		lifetime:  defaultLifetime,
		timeFunc:  time.Now,
		clockSkew: 30 * time.Second,
	}, nil
}

func digest(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Sign implements Signer.
func (s *hmacSigner) Sign(ctx context.Context, body []byte) (string, error) {
	now := s.timeFunc()

	claims := bodyClaims{
		Body: digest(body),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
			ID:        uuid.New().String(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		logger.FromContext(ctx).Error("failed to sign callback body",
			"error", err,
			"signing_method", jwt.SigningMethodHS256.Name)
		return "", fmt.Errorf("failed to sign body with HMAC-SHA256: %w", err)
	}
	return token, nil
}

// Verify implements Signer.
func (s *hmacSigner) Verify(ctx context.Context, tokenString string, body []byte) error {
	log := logger.FromContext(ctx)

	if tokenString == "" {
		return ErrMissingSignature
	}

	now := s.timeFunc()
	token, err := jwt.ParseWithClaims(
		tokenString,
		&bodyClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(issuer),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			log.Debug("signature validation failed: token expired", "error", err)
			return ErrExpiredSignature
		}
		log.Debug("signature validation failed", "error", err)
		return ErrInvalidSignature
	}

	claims, ok := token.Claims.(*bodyClaims)
	if !ok || !token.Valid {
		return ErrInvalidSignature
	}

	if subtle.ConstantTimeCompare([]byte(claims.Body), []byte(digest(body))) != 1 {
		log.Debug("signature validation failed: body digest mismatch")
		return ErrBodyMismatch
	}
	return nil
}
