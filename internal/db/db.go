// Package db opens the relational store, applies the embedded schema
// migrations and runs background maintenance over it.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/atinyakov/asrcollect/internal/config"
	"github.com/atinyakov/asrcollect/internal/db/migrations"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

const sqlitePragmas = "_pragma=busy_timeout(10000)&_pragma=foreign_keys(1)"

// Init opens a connection pool for driver ("sqlite" or "postgres"), checks
// it and migrates the schema to the latest version.
func Init(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	var dialect string
	switch driver {
	case config.DriverSQLite:
		dsn = withSQLitePragmas(dsn)
		dialect = "sqlite3"
	case config.DriverPostgres:
		dialect = "postgres"
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if err := Migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate applies all pending migrations using the given goose dialect.
func Migrate(ctx context.Context, db *sql.DB, dialect string) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func withSQLitePragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqlitePragmas
	}
	return dsn + "?" + sqlitePragmas
}
