// package repositories provides persistence layer implementations for all model types.
//
// Each repository implements a models store interface on top of [shared.DB], which works with both sqlite3 and pgx.
package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/tunegate/internal/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// pgUniqueViolation is the SQLSTATE postgres reports for UNIQUE constraint failures.
const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure from either driver.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	return false
}

// storageError wraps err as [shared.ErrStorage] while keeping the cause (including [context.DeadlineExceeded])
// reachable through errors.Is.
func storageError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s timed out: %w", shared.ErrStorage, op, err)
	}
	return fmt.Errorf("%w: failed to %s: %w", shared.ErrStorage, op, err)
}
