package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var ledgerMigrations embed.FS

// ErrDirtySchema means a previous migration stopped half way. The ledger is
// not opened until the schema is repaired by hand.
var ErrDirtySchema = errors.New("ledger schema is dirty")

// SchemaVersion is the state recorded in schema_migrations. Version 0 means
// no migration has run.
type SchemaVersion struct {
	Version uint
	Dirty   bool
}

// RunMigrations applies pending ledger migrations to the database at dbPath
// and returns the resulting schema version.
func RunMigrations(dbPath string) (SchemaVersion, error) {
	var out SchemaVersion
	err := withMigrator(dbPath, func(m *migrate.Migrate) error {
		before, err := schemaVersion(m)
		if err != nil {
			return err
		}
		if before.Dirty {
			return fmt.Errorf("%w at version %d", ErrDirtySchema, before.Version)
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("apply ledger migrations: %w", err)
		}
		out, err = schemaVersion(m)
		return err
	})
	return out, err
}

// CurrentSchema reads the schema version without migrating.
func CurrentSchema(dbPath string) (SchemaVersion, error) {
	var out SchemaVersion
	err := withMigrator(dbPath, func(m *migrate.Migrate) error {
		var err error
		out, err = schemaVersion(m)
		return err
	})
	return out, err
}

// withMigrator runs fn on its own connection; closing the migrator closes
// that connection and never the repository pool.
func withMigrator(dbPath string, fn func(*migrate.Migrate) error) error {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	driver, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		conn.Close()
		return fmt.Errorf("sqlite migration driver: %w", err)
	}
	src, err := iofs.New(ledgerMigrations, "migrations")
	if err != nil {
		driver.Close()
		return fmt.Errorf("ledger migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		src.Close()
		driver.Close()
		return fmt.Errorf("ledger migrator: %w", err)
	}
	defer m.Close()
	return fn(m)
}

func schemaVersion(m *migrate.Migrate) (SchemaVersion, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return SchemaVersion{}, nil
	}
	if err != nil {
		return SchemaVersion{}, fmt.Errorf("read schema version: %w", err)
	}
	return SchemaVersion{Version: v, Dirty: dirty}, nil
}
