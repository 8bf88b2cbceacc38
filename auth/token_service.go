package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	serrors "go.pilab.hu/stats/errors"
)

// DefaultValidity is how long an expiring token stays valid.
const DefaultValidity = 24 * time.Hour

// TokenService issues and verifies stateless HS256 access tokens. Tokens
// are never stored; a token is valid as long as its signature checks out
// and its exp claim, when present, lies in the future.
type TokenService struct {
	signer   *TokenSigner
	key      []byte
	validity time.Duration
	now      func() time.Time
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithValidity overrides the lifetime of expiring tokens.
func WithValidity(d time.Duration) TokenOption {
	return func(s *TokenService) {
		if d > 0 {
			s.validity = d
		}
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// DeriveSigningKey returns the hex encoded SHA-256 of username+password,
// the key shared by every instance configured with the same admin secrets.
func DeriveSigningKey(username, password string) []byte {
	sum := sha256.Sum256([]byte(username + password))
	return []byte(hex.EncodeToString(sum[:]))
}

// NewTokenService creates a TokenService whose key is derived from the
// administrative credentials.
func NewTokenService(username, password string, opts ...TokenOption) *TokenService {
	key := DeriveSigningKey(username, password)
	signer := NewTokenSigner()
	signer.AddKeySigner(key)

	s := &TokenService{
		signer:   signer,
		key:      key,
		validity: DefaultValidity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue signs a token for username. A negative expiresIn yields a token
// without expiry; any other value yields a token valid for the configured
// window. The magnitude of expiresIn is not used.
func (s *TokenService) Issue(username string, expiresIn int) (string, *int64, error) {
	claims := jwt.MapClaims{"sub": username}

	var expiresAt *int64
	if expiresIn >= 0 {
		exp := s.now().UTC().Add(s.validity).Unix()
		claims["exp"] = exp
		expiresAt = &exp
	}

	token, err := s.signer.Sign(claims, "")
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify checks signature and expiry and returns the token subject.
func (s *TokenService) Verify(tokenValue string) (string, error) {
	if tokenValue == "" {
		return "", serrors.NewUnauthenticated(nil, "missing access token")
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenValue, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", serrors.NewUnauthenticated(err, "token expired")
		case errors.Is(err, jwt.ErrTokenMalformed):
			return "", serrors.NewUnauthenticated(err, "malformed token")
		default:
			return "", serrors.NewUnauthenticated(err, "invalid token")
		}
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", serrors.NewUnauthenticated(err, "token has no subject")
	}
	return subject, nil
}
