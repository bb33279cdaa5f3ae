package repositories

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/desertthunder/tunegate/internal/models"
	"github.com/desertthunder/tunegate/internal/shared"
	"github.com/jackc/pgx/v5/pgconn"
)

func newPostgresMock(t *testing.T) (*shared.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return shared.WrapDB(db, shared.DriverPostgres), mock
}

func TestPostgresUserRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create binds numbered placeholders", func(t *testing.T) {
		db, mock := newPostgresMock(t)
		repo := NewUserRepository(db)

		q := `(?s)INSERT\s+INTO\s+users\s*\(id,\s*email,\s*password_hash,\s*created_at,\s*updated_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)`
		mock.ExpectExec(q).
			WithArgs(sqlmock.AnyArg(), "user@example.com", "hash", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		if _, err := repo.Create(ctx, "user@example.com", "hash"); err != nil {
			t.Fatalf("Create error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("Create maps unique_violation", func(t *testing.T) {
		db, mock := newPostgresMock(t)
		repo := NewUserRepository(db)

		mock.ExpectExec(`INSERT\s+INTO\s+users`).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

		_, err := repo.Create(ctx, "user@example.com", "hash")
		if !errors.Is(err, shared.ErrDuplicateEmail) {
			t.Fatalf("expected ErrDuplicateEmail, got %v", err)
		}
	})

	t.Run("Create maps other errors to storage", func(t *testing.T) {
		db, mock := newPostgresMock(t)
		repo := NewUserRepository(db)

		mock.ExpectExec(`INSERT\s+INTO\s+users`).
			WillReturnError(&pgconn.PgError{Code: "08006", Message: "connection failure"})

		_, err := repo.Create(ctx, "user@example.com", "hash")
		if !errors.Is(err, shared.ErrStorage) {
			t.Fatalf("expected ErrStorage, got %v", err)
		}
		if errors.Is(err, shared.ErrDuplicateEmail) {
			t.Fatal("connection failure must not look like a duplicate")
		}
		if !regexp.MustCompile(`insert user`).MatchString(err.Error()) {
			t.Errorf("expected operation in error, got %v", err)
		}
	})

	t.Run("PasswordHash", func(t *testing.T) {
		db, mock := newPostgresMock(t)
		repo := NewUserRepository(db)

		q := `(?s)SELECT\s+password_hash\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1`
		mock.ExpectQuery(q).
			WithArgs("user@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"password_hash"}).AddRow("hash"))

		hash, ok, err := repo.PasswordHash(ctx, "user@example.com")
		if err != nil || !ok || hash != "hash" {
			t.Fatalf("PasswordHash() = %q, %v, %v", hash, ok, err)
		}
	})
}

func TestPostgresDelegatedTokenRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Save", func(t *testing.T) {
		db, mock := newPostgresMock(t)
		repo := NewDelegatedTokenRepository(db)
		expiresAt := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

		q := `(?s)UPDATE\s+users\s+SET\s+oauth_access_token\s*=\s*\$1,\s*oauth_refresh_token\s*=\s*\$2,\s*oauth_expires_at\s*=\s*\$3,\s*updated_at\s*=\s*\$4\s+WHERE\s+id\s*=\s*\$5`
		mock.ExpectExec(q).
			WithArgs("access", "refresh", expiresAt, sqlmock.AnyArg(), "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		token := models.DelegatedToken{AccessToken: "access", RefreshToken: "refresh", ExpiresAt: expiresAt}
		if err := repo.Save(ctx, "user-1", token); err != nil {
			t.Fatalf("Save error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("Get db error", func(t *testing.T) {
		db, mock := newPostgresMock(t)
		repo := NewDelegatedTokenRepository(db)

		mock.ExpectQuery(`SELECT\s+oauth_access_token`).WillReturnError(errors.New("db down"))

		if _, err := repo.Get(ctx, "user-1"); !errors.Is(err, shared.ErrStorage) {
			t.Fatalf("expected ErrStorage, got %v", err)
		}
	})
}
