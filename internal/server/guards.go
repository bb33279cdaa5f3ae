package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunegate/internal/delegation"
	"github.com/desertthunder/tunegate/internal/models"
	"github.com/desertthunder/tunegate/internal/shared"
)

// PasswordHasher hashes and checks user passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	VerifyNone(password string)
}

// SessionIssuer issues and validates first-party session tokens.
type SessionIssuer interface {
	Issue(email string) (string, time.Time, error)
	Validate(token string) (string, error)
}

// UserLookup resolves a session subject to its user record.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// DelegationBroker manages the delegated Spotify tokens.
type DelegationBroker interface {
	AuthorizationURL(ctx context.Context, userID string) (string, error)
	ExchangeCode(ctx context.Context, userID, code, state string) error
	EnsureValidToken(ctx context.Context, userID string) (string, error)
	Status(ctx context.Context, userID string) (delegation.Status, error)
}

// Identity is the authenticated caller attached by [RequireSession].
type Identity struct {
	UserID string
	Email  string
}

type ctxKey int

const (
	identityKey ctxKey = iota
	accessTokenKey
)

// IdentityFrom returns the caller identity placed on ctx by [RequireSession].
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// AccessTokenFrom returns the live Spotify access token placed on ctx by [RequireDelegation].
func AccessTokenFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(accessTokenKey).(string)
	return token, ok && token != ""
}

// bearerToken extracts the token from an `Authorization: Bearer <token>` header.
func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", shared.ErrSessionMissing
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", fmt.Errorf("%w: expected bearer token", shared.ErrSessionMalformed)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", shared.ErrSessionMissing
	}
	return token, nil
}

// RequireSession rejects requests without a valid session token and attaches the caller's [Identity].
func RequireSession(sessions SessionIssuer, users UserLookup, logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				writeError(w, logger, err)
				return
			}

			email, err := sessions.Validate(token)
			if err != nil {
				writeError(w, logger, err)
				return
			}

			user, err := users.GetByEmail(r.Context(), email)
			if errors.Is(err, shared.ErrNotFound) {
				writeError(w, logger, fmt.Errorf("%w: account no longer exists", shared.ErrUnauthorized))
				return
			}
			if err != nil {
				writeError(w, logger, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, Identity{UserID: user.ID, Email: user.Email})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireDelegation must run after [RequireSession]. It obtains a live Spotify access token for the caller,
// refreshing it when needed, and attaches it to the request context.
func RequireDelegation(broker DelegationBroker, logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				writeError(w, logger, shared.ErrUnauthorized)
				return
			}

			token, err := broker.EnsureValidToken(r.Context(), id.UserID)
			if err != nil {
				writeError(w, logger, err)
				return
			}

			ctx := context.WithValue(r.Context(), accessTokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
