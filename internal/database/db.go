package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Dialect identifies the SQL flavour behind a connection.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// DB provides a centralized database connection
type DB struct {
	SQL     *sql.DB
	Dialect Dialect
}

// Open connects to DATABASE_URL. "sqlite://<path>" (or "sqlite://:memory:") uses
// modernc.org/sqlite, "postgres://" and "postgresql://" use lib/pq.
func Open(databaseURL string) (*DB, error) {
	dialect, dsn, err := parseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	if dialect == SQLite && dsn != ":memory:" {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == SQLite {
		// SQLite allows a single writer; in-memory databases exist per connection.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{SQL: db, Dialect: dialect}, nil
}

// OpenMemory opens a migrated in-memory SQLite database.
func OpenMemory() (*DB, error) {
	db, err := Open("sqlite://:memory:")
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(zap.NewNop()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.SQL.Close()
}

// Migrate applies the embedded migrations for the connection's dialect.
func (d *DB) Migrate(logger *zap.Logger) error {
	src, err := iofs.New(migrationsFS, "migrations/"+string(d.Dialect))
	if err != nil {
		return fmt.Errorf("failed to create iofs driver: %w", err)
	}

	var driver migratedb.Driver
	switch d.Dialect {
	case Postgres:
		driver, err = postgres.WithInstance(d.SQL, &postgres.Config{})
	default:
		driver, err = sqlite.WithInstance(d.SQL, &sqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}

	// The instance is not closed: that would close the shared *sql.DB.
	m, err := migrate.NewWithInstance("iofs", src, string(d.Dialect), driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("database migrations applied",
		zap.String("dialect", string(d.Dialect)),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// Rebind rewrites "?" placeholders to the connection's dialect.
func (d *DB) Rebind(query string) string {
	return Rebind(d.Dialect, query)
}

// Rebind rewrites "?" placeholders to "$n" for Postgres and leaves SQLite queries untouched.
func Rebind(dialect Dialect, query string) string {
	if dialect != Postgres {
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

func parseURL(raw string) (Dialect, string, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "sqlite://"):
		path := strings.TrimPrefix(raw, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("DATABASE_URL has an empty sqlite path")
		}
		return SQLite, path, nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return Postgres, raw, nil
	default:
		return "", "", fmt.Errorf("unsupported DATABASE_URL scheme: %q", raw)
	}
}
