package shared

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"

	defaultQueryTimeout = 3 * time.Second
)

// DB wraps [sql.DB] with the driver name and a per-query timeout.
//
// Queries are written with `?` placeholders; [DB.Rebind] rewrites them for drivers that expect `$n`.
type DB struct {
	*sql.DB
	driver  string
	timeout time.Duration
}

// NewDatabase opens a connection using the given driver and data source name.
//
// The sqlite3 path can be ":memory:" for an in-memory database, in which case the pool is pinned to a single
// connection so every query sees the same database.
// Returns an open database connection or an error if connection fails.
func NewDatabase(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite && strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, driver: driver, timeout: defaultQueryTimeout}, nil
}

// WrapDB adapts an already opened [sql.DB] (e.g. a test double) for the given driver.
func WrapDB(db *sql.DB, driver string) *DB {
	return &DB{DB: db, driver: driver, timeout: defaultQueryTimeout}
}

// OpenDatabase opens the database described by [DatabaseConfig] and applies its pool settings.
func OpenDatabase(cfg DatabaseConfig) (*DB, error) {
	db, err := NewDatabase(cfg.DriverName(), cfg.URL)
	if err != nil {
		return nil, err
	}

	if cfg.DriverName() != DriverSQLite || !strings.Contains(cfg.URL, ":memory:") {
		ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)
	}
	if cfg.QueryTimeout > 0 {
		db.timeout = cfg.QueryTimeout
	}
	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database.
// Recommended for production use to limit connections and improve performance.
func ConfigureDatabase(db *DB, maxOpenConns, maxIdleConns int) {
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
}

// Driver returns the database/sql driver name.
func (db *DB) Driver() string {
	return db.driver
}

// SetQueryTimeout changes the deadline applied by [DB.WithTimeout].
func (db *DB) SetQueryTimeout(d time.Duration) {
	db.timeout = d
}

// WithTimeout derives a context bounded by the configured query timeout.
func (db *DB) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.timeout)
}

// Rebind rewrites `?` placeholders to `$1..$n` for postgres and returns the query unchanged for sqlite.
func (db *DB) Rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
