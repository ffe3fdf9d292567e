// Package platform holds the database schema and its migration runner.
package platform

import (
	"database/sql"
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/rotisserie/eris"
)

// Dialect selects the migration set and driver.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

// AutoMigrate runs all pending database migrations for the given dialect.
func AutoMigrate(db *sql.DB, dialect Dialect) error {
	source, err := iofs.New(migrationsFS, "migrations/"+string(dialect))
	if err != nil {
		return eris.Wrap(err, "create migration source")
	}

	var driver database.Driver
	switch dialect {
	case DialectPostgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	case DialectSQLite:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	default:
		return eris.Errorf("unknown migration dialect %q", dialect)
	}
	if err != nil {
		return eris.Wrap(err, "create migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", source, string(dialect), driver)
	if err != nil {
		return eris.Wrap(err, "create migrator")
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return eris.Wrap(err, "run migrations")
	}

	return nil
}

// MigratePostgres opens a short-lived connection to databaseURL and applies
// the Postgres migrations.
func MigratePostgres(databaseURL string) error {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return eris.Wrap(err, "open database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return eris.Wrap(err, "ping database")
	}
	return AutoMigrate(db, DialectPostgres)
}
