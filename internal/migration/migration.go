package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

// Run brings the schema to the latest version, seeds reference data and
// records the bootstrap state. Postgres applies the embedded SQL files
// under an advisory lock; other drivers fall back to AutoMigrate.
func Run(ctx context.Context, db *gorm.DB) (*BootstrapState, error) {
	if db == nil {
		return nil, errors.New("migration database handle is required")
	}

	latest, err := LatestMigrationVersion()
	if err != nil {
		return nil, err
	}
	checksum, err := MigrationsChecksum()
	if err != nil {
		return nil, err
	}

	if db.Dialector.Name() == "postgres" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		if err := applySQL(ctx, sqlDB, latest); err != nil {
			return nil, err
		}
	} else if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	if err := seedReferenceData(ctx, db); err != nil {
		return nil, err
	}
	return activateBootstrapState(ctx, db, strconv.FormatUint(uint64(latest), 10), checksum)
}

func applySQL(ctx context.Context, db *sql.DB, latest uint) error {
	conn, unlock, err := acquireAdvisoryLock(ctx, db)
	if err != nil {
		return err
	}
	defer func() {
		_ = unlock(context.WithoutCancel(ctx))
	}()

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if _, err := ensureNotDirty(migrator); err != nil {
		return err
	}
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	current, err := ensureNotDirty(migrator)
	if err != nil {
		return err
	}
	if current != latest {
		return fmt.Errorf("schema version mismatch after migrate: got %d want %d", current, latest)
	}
	return nil
}

func ensureNotDirty(migrator *migrate.Migrate) (uint, error) {
	version, dirty, err := migrator.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, nil
		}
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("database migrations are dirty at version %d", version)
	}
	return version, nil
}
