// Package canonicalstore is the authoritative durable store (C2): runs,
// evidence, and claims. Backed by PostgreSQL via pgx, with schema applied
// through embedded golang-migrate migrations at startup, the same shape as
// the teacher's pkg/database — minus the ent ORM layer, since the canonical
// store here is small enough to drive with hand-written SQL directly over
// database/sql.
package canonicalstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver for database/sql
)

//go:embed migrations
var migrationsFS embed.FS

// Client wraps a pooled *sql.DB and implements Store.
type Client struct {
	db *sql.DB
}

// NewClient opens a pooled connection, applies pending migrations, and
// returns a ready Client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db, cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Client{db: db}, nil
}

// NewClientFromDB wraps an already-open *sql.DB (used by tests against a
// testcontainers-provisioned database).
func NewClientFromDB(db *sql.DB) *Client {
	return &Client{db: db}
}

// DB returns the underlying pool for health checks.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// MigrateForTest runs the embedded migrations against an already-open test
// database. Exposed for test/dbtest, which provisions its own *sql.DB via
// testcontainers rather than going through NewClient.
func MigrateForTest(_ context.Context, db *sql.DB, databaseName string) error {
	return runMigrations(db, databaseName)
}

func runMigrations(db *sql.DB, databaseName string) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("no embedded migration files found — binary may be built incorrectly")
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, databaseName, driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	// Do not call m.Close(): that also closes the shared *sql.DB via the
	// postgres driver. Close only the migration source.
	return sourceDriver.Close()
}

// HealthStatus mirrors the teacher's database.HealthStatus shape for the
// HTTP health endpoint.
type HealthStatus struct {
	Status          string        `json:"status"`
	ResponseTime    time.Duration `json:"response_time_ms"`
	OpenConnections int           `json:"open_connections"`
	InUse           int           `json:"in_use"`
	Idle            int           `json:"idle"`
	MaxOpenConns    int           `json:"max_open_conns"`
}

// Health pings the database and reports pool statistics.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	if err := c.db.PingContext(ctx); err != nil {
		return &HealthStatus{Status: "unhealthy", ResponseTime: time.Since(start)}, err
	}
	stats := c.db.Stats()
	return &HealthStatus{
		Status:          "healthy",
		ResponseTime:    time.Since(start),
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		MaxOpenConns:    stats.MaxOpenConnections,
	}, nil
}
