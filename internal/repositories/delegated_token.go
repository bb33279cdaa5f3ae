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

// DelegatedTokenRepository implements [models.DelegatedTokenStore] on the oauth_* columns of the users table.
type DelegatedTokenRepository struct {
	db  *shared.DB
	now func() time.Time
}

// NewDelegatedTokenRepository creates a new [DelegatedTokenRepository] with the given database connection
func NewDelegatedTokenRepository(db *shared.DB) *DelegatedTokenRepository {
	return &DelegatedTokenRepository{db: db, now: time.Now}
}

// Get returns the user's delegated token, or nil when the user has not linked Spotify.
func (r *DelegatedTokenRepository) Get(ctx context.Context, userID string) (*models.DelegatedToken, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(`
		SELECT oauth_access_token, oauth_refresh_token, oauth_expires_at
		FROM users
		WHERE id = ?
	`)

	var (
		accessToken  sql.NullString
		refreshToken sql.NullString
		expiresAt    sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, userID).Scan(&accessToken, &refreshToken, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, userID)
	}
	if err != nil {
		return nil, storageError("query delegated token", err)
	}

	return scanDelegatedToken(accessToken, refreshToken, expiresAt), nil
}

// Save overwrites the user's delegated token in a single statement.
func (r *DelegatedTokenRepository) Save(ctx context.Context, userID string, token models.DelegatedToken) error {
	if token.AccessToken == "" {
		return fmt.Errorf("%w: access token is required", shared.ErrInvalidInput)
	}

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(`
		UPDATE users
		SET oauth_access_token = ?, oauth_refresh_token = ?, oauth_expires_at = ?, updated_at = ?
		WHERE id = ?
	`)

	result, err := r.db.ExecContext(ctx, query,
		token.AccessToken, nullString(token.RefreshToken), token.ExpiresAt.UTC(), r.now().UTC(), userID)
	if err != nil {
		return storageError("save delegated token", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return storageError("get affected rows", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: user %s", shared.ErrNotFound, userID)
	}

	return nil
}

func scanDelegatedToken(accessToken, refreshToken sql.NullString, expiresAt sql.NullTime) *models.DelegatedToken {
	if !accessToken.Valid || accessToken.String == "" {
		return nil
	}
	return &models.DelegatedToken{
		AccessToken:  accessToken.String,
		RefreshToken: refreshToken.String,
		ExpiresAt:    expiresAt.Time.UTC(),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
