package migrations

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/uptrace/bun"

	"ms-pos/internal/logger"
)

type Options struct {
	// MigrationsDir is the directory holding NNNNNN_name.{up,down}.sql files.
	MigrationsDir string
}

// Runner applies the postgres schema migrations.
type Runner struct {
	db       *bun.DB
	options  Options
	log      *logger.Logger
	migrator *migrate.Migrate
}

func NewRunner(db *bun.DB, opts Options, log *logger.Logger) *Runner {
	return &Runner{db: db, options: opts, log: log}
}

func (r *Runner) init() error {
	if r.migrator != nil {
		return nil
	}
	if _, err := os.Stat(r.options.MigrationsDir); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory does not exist: %s", r.options.MigrationsDir)
	}

	driver, err := postgres.WithInstance(r.db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}

	migrator, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", r.options.MigrationsDir),
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	r.migrator = migrator
	return nil
}

// Up applies all pending migrations, forcing a dirty version clean first.
func (r *Runner) Up() error {
	if err := r.init(); err != nil {
		return err
	}

	version, dirty, err := r.migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		r.log.Warn("DATABASE", fmt.Sprintf("Dirty migration at version %d, forcing", version))
		if err := r.migrator.Force(int(version)); err != nil {
			return fmt.Errorf("failed to fix dirty migration: %w", err)
		}
	}

	if err := r.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	if version, _, err := r.migrator.Version(); err == nil {
		r.log.LogDatabase("MIGRATE", "schema_migrations", fmt.Sprintf("Current schema version: %d", version))
	}
	return nil
}

// Down rolls back every migration.
func (r *Runner) Down() error {
	if err := r.init(); err != nil {
		return err
	}
	if err := r.migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

func (r *Runner) Close() error {
	if r.migrator == nil {
		return nil
	}
	sourceErr, databaseErr := r.migrator.Close()
	if sourceErr != nil {
		return fmt.Errorf("error closing migrator source: %w", sourceErr)
	}
	if databaseErr != nil {
		return fmt.Errorf("error closing migrator database: %w", databaseErr)
	}
	return nil
}
