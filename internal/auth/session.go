package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tunegate/internal/shared"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is how long a session token stays valid after login.
const DefaultSessionTTL = 30 * time.Minute

// SessionIssuer signs and validates HS256 session tokens whose subject is the user's email.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// SessionOpts configures a [SessionIssuer].
type SessionOpts struct {
	TTL time.Duration
	Now func() time.Time // defaults to time.Now
}

// NewSessionIssuer creates an issuer for the process-wide secret.
func NewSessionIssuer(secret string, opts SessionOpts) (*SessionIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: session secret", shared.ErrMissingConfig)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &SessionIssuer{secret: []byte(secret), ttl: ttl, now: now}, nil
}

// TTL returns the lifetime of issued tokens.
func (s *SessionIssuer) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for email that expires TTL from now.
func (s *SessionIssuer) Issue(email string) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, expiresAt.UTC(), nil
}

// Validate checks the signature and expiry of token and returns its subject.
func (s *SessionIssuer) Validate(token string) (string, error) {
	if token == "" {
		return "", shared.ErrSessionMissing
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)

	switch {
	case err == nil && parsed.Valid:
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", shared.ErrSessionExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "", shared.ErrSessionInvalidSignature
	default:
		return "", fmt.Errorf("%w: %v", shared.ErrSessionMalformed, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", shared.ErrSessionMalformed)
	}
	return claims.Subject, nil
}
