// Package database opens the SQL backing store for the directory and identity
// stores and brings its schema up to date with goose.
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/tenantadmin/internal/common"
	"github.com/dmitrijs2005/tenantadmin/internal/database/migrations"
	"github.com/dmitrijs2005/tenantadmin/internal/dbx"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Open.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

var sqlOpen = sql.Open

// DialectFor maps a driver name to its SQL dialect.
func DialectFor(driver string) (dbx.Dialect, error) {
	switch driver {
	case DriverPostgres:
		return dbx.Postgres, nil
	case DriverSQLite:
		return dbx.SQLite, nil
	default:
		return "", fmt.Errorf("%q: %w", driver, common.ErrUnknownDriver)
	}
}

// RunMigrations applies the embedded migrations for dialect.
func RunMigrations(ctx context.Context, db *sql.DB, dialect dbx.Dialect) error {
	goose.SetBaseFS(migrations.Migrations)

	gooseDialect := "postgres"
	if dialect == dbx.SQLite {
		gooseDialect = "sqlite3"
	}
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	return gooseUpContext(ctx, db, string(dialect))
}

// Open connects with the given driver and dsn and runs migrations.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, dbx.Dialect, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, "", err
	}

	db, err := sqlOpen(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("db open error: %w", err)
	}
	if dialect == dbx.SQLite {
		// one writer; a second connection would see a separate in-memory database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("db ping error: %w", err)
	}

	if err := RunMigrations(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("migration error: %w", err)
	}

	return db, dialect, nil
}
