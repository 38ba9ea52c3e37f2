package repository

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/doomedramen/autopwn-sub005/pkg/debug"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrateLogger routes migrate's output to the debug logger
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	debug.Debug("migrate: "+format, v...)
}

func (migrateLogger) Verbose() bool {
	return false
}

// Migrate applies the embedded schema migrations. databaseURL must be a
// postgres:// URL.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		src.Close()
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	m.Log = migrateLogger{}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			debug.Warning("Failed to close migrator: %v, %v", srcErr, dbErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	debug.Info("Database schema at version %d (dirty: %v)", version, dirty)
	return nil
}
