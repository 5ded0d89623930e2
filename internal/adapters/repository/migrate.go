package repository

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// Migration tables. The cache lives in its own table so it can share a
// database with the ledger.
const (
	ledgerMigrationsTable = "rollcall_schema_migrations"
	cacheMigrationsTable  = "rollcall_cache_migrations"
)

// migrateUp applies every pending migration under dir.
func migrateUp(db *sql.DB, d dialect, dir, table string) error {
	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrMigrate, dir, err)
	}

	var drv database.Driver
	switch d.name {
	case "postgres":
		drv, err = migratepg.WithInstance(db, &migratepg.Config{MigrationsTable: table})
	case "sqlite":
		drv, err = migratesqlite.WithInstance(db, &migratesqlite.Config{MigrationsTable: table})
	case "mysql":
		drv, err = migratemysql.WithInstance(db, &migratemysql.Config{MigrationsTable: table})
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedDriver, d.name)
	}
	if err != nil {
		return fmt.Errorf("%w: driver: %w", ErrMigrate, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, d.name, drv)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigrate, err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: up: %w", ErrMigrate, err)
	}
	return nil
}
