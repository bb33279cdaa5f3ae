package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/tunegate/internal/shared"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestIssuer(t *testing.T, clock *fakeClock) *SessionIssuer {
	t.Helper()
	issuer, err := NewSessionIssuer("test-secret", SessionOpts{Now: clock.Now})
	require.NoError(t, err)
	return issuer
}

func TestSessionIssuer(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("round trip", func(t *testing.T) {
		issuer := newTestIssuer(t, &fakeClock{t: start})

		token, expiresAt, err := issuer.Issue("user@example.com")
		require.NoError(t, err)
		assert.Equal(t, start.Add(30*time.Minute), expiresAt)

		email, err := issuer.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, "user@example.com", email)
	})

	t.Run("valid at T+29 expired at T+31", func(t *testing.T) {
		clock := &fakeClock{t: start}
		issuer := newTestIssuer(t, clock)

		token, _, err := issuer.Issue("user@example.com")
		require.NoError(t, err)

		clock.t = start.Add(29 * time.Minute)
		_, err = issuer.Validate(token)
		assert.NoError(t, err)

		clock.t = start.Add(31 * time.Minute)
		_, err = issuer.Validate(token)
		assert.ErrorIs(t, err, shared.ErrSessionExpired)
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
	})

	t.Run("wrong secret", func(t *testing.T) {
		clock := &fakeClock{t: start}
		other, err := NewSessionIssuer("other-secret", SessionOpts{Now: clock.Now})
		require.NoError(t, err)

		token, _, err := other.Issue("user@example.com")
		require.NoError(t, err)

		_, err = newTestIssuer(t, clock).Validate(token)
		assert.ErrorIs(t, err, shared.ErrSessionInvalidSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		clock := &fakeClock{t: start}
		issuer := newTestIssuer(t, clock)

		victim, _, err := issuer.Issue("victim@example.com")
		require.NoError(t, err)
		attacker, _, err := issuer.Issue("attacker@example.com")
		require.NoError(t, err)

		v := strings.Split(victim, ".")
		a := strings.Split(attacker, ".")
		forged := strings.Join([]string{a[0], v[1], a[2]}, ".")

		_, err = issuer.Validate(forged)
		assert.ErrorIs(t, err, shared.ErrSessionInvalidSignature)
	})

	t.Run("other signing method", func(t *testing.T) {
		clock := &fakeClock{t: start}
		token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
			Subject:   "user@example.com",
			ExpiresAt: jwt.NewNumericDate(start.Add(time.Hour)),
		})
		signed, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = newTestIssuer(t, clock).Validate(signed)
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
	})

	t.Run("missing expiry", func(t *testing.T) {
		clock := &fakeClock{t: start}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user@example.com"})
		signed, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = newTestIssuer(t, clock).Validate(signed)
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := newTestIssuer(t, &fakeClock{t: start}).Validate("not.a.jwt")
		assert.ErrorIs(t, err, shared.ErrSessionMalformed)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := newTestIssuer(t, &fakeClock{t: start}).Validate("")
		assert.ErrorIs(t, err, shared.ErrSessionMissing)
	})
}

func TestNewSessionIssuer(t *testing.T) {
	_, err := NewSessionIssuer("", SessionOpts{})
	assert.ErrorIs(t, err, shared.ErrMissingConfig)

	issuer, err := NewSessionIssuer("s", SessionOpts{})
	require.NoError(t, err)
	assert.Equal(t, DefaultSessionTTL, issuer.TTL())
}
