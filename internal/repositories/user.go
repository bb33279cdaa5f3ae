package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tunegate/internal/models"
	"github.com/desertthunder/tunegate/internal/shared"
)

// UserRepository implements [models.CredentialStore] for [models.User] persistence.
type UserRepository struct {
	db  *shared.DB
	now func() time.Time
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *shared.DB) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

// Exists reports whether a user with the normalized email is registered.
func (r *UserRepository) Exists(ctx context.Context, email string) (bool, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var exists bool
	query := r.db.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`)
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, storageError("query user", err)
	}
	return exists, nil
}

// Create inserts a new user with a generated ID.
//
// Uniqueness is enforced by the users.email constraint, so of two concurrent registrations for the same email exactly
// one succeeds and the other gets [shared.ErrDuplicateEmail].
func (r *UserRepository) Create(ctx context.Context, email, passwordHash string) (string, error) {
	if email == "" || passwordHash == "" {
		return "", fmt.Errorf("%w: email and password hash are required", shared.ErrInvalidInput)
	}

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	id := shared.GenerateID()
	now := r.now().UTC()

	query := r.db.Rebind(`
		INSERT INTO users (id, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
	`)

	if _, err := r.db.ExecContext(ctx, query, id, email, passwordHash, now, now); err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: %s", shared.ErrDuplicateEmail, email)
		}
		return "", storageError("insert user", err)
	}

	return id, nil
}

// PasswordHash returns the stored bcrypt hash for email; ok is false when no such user exists.
func (r *UserRepository) PasswordHash(ctx context.Context, email string) (string, bool, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var hash string
	query := r.db.Rebind(`SELECT password_hash FROM users WHERE email = ?`)
	err := r.db.QueryRowContext(ctx, query, email).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageError("query password hash", err)
	}
	return hash, true, nil
}

// GetByEmail retrieves a user, including any delegated token, by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(`
		SELECT id, email, password_hash, created_at, updated_at,
		       oauth_access_token, oauth_refresh_token, oauth_expires_at
		FROM users
		WHERE email = ?
	`)

	var (
		user         models.User
		accessToken  sql.NullString
		refreshToken sql.NullString
		expiresAt    sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt,
		&accessToken, &refreshToken, &expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, email)
	}
	if err != nil {
		return nil, storageError("query user", err)
	}

	user.DelegatedToken = scanDelegatedToken(accessToken, refreshToken, expiresAt)
	return &user, nil
}
