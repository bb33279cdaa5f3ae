// package models defines the data model for the authentication gateway
package models

import (
	"context"
	"time"
)

// User is a first-party account with at most one linked Spotify delegation.
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DelegatedToken *DelegatedToken
}

// Linked reports whether the user has completed the Spotify authorization flow.
func (u *User) Linked() bool {
	return u.DelegatedToken != nil
}

// DelegatedToken holds the Spotify credentials kept on the user's behalf.
//
// ExpiresAt is absolute: it is computed once, when the token response is received.
type DelegatedToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// NewDelegatedToken builds a token whose expiry is receivedAt plus the lifetime declared by the server.
func NewDelegatedToken(accessToken, refreshToken string, receivedAt time.Time, lifetime time.Duration) DelegatedToken {
	return DelegatedToken{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    receivedAt.Add(lifetime).UTC(),
	}
}

// Expiring reports whether now falls inside the skew window before ExpiresAt (or past it).
func (t DelegatedToken) Expiring(now time.Time, skew time.Duration) bool {
	return now.After(t.ExpiresAt.Add(-skew))
}

// CredentialStore persists user identities and password hashes.
type CredentialStore interface {
	Exists(ctx context.Context, email string) (bool, error)                 // Exists reports whether the normalized email is registered
	Create(ctx context.Context, email, passwordHash string) (string, error) // Create inserts a user and returns its ID
	PasswordHash(ctx context.Context, email string) (string, bool, error)   // PasswordHash returns the stored hash, ok=false when absent
	GetByEmail(ctx context.Context, email string) (*User, error)            // GetByEmail loads the full user record
}

// DelegatedTokenStore persists, per user, the Spotify token triple.
type DelegatedTokenStore interface {
	Get(ctx context.Context, userID string) (*DelegatedToken, error)     // Get returns nil when the user has not linked
	Save(ctx context.Context, userID string, token DelegatedToken) error // Save overwrites any previous token wholesale
}
