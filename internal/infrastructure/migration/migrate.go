package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/erp/settlement/migrations"
)

// Migrator applies versioned schema files to a PostgreSQL database
type Migrator struct {
	m   *migrate.Migrate
	log *zap.Logger
}

// New opens a migrator on db. A nil source means the schema embedded in the
// binary; pass os.DirFS(dir) to work from files on disk.
func New(db *sql.DB, source fs.FS, logger *zap.Logger) (*Migrator, error) {
	if source == nil {
		source = migrations.FS
	}
	src, err := iofs.New(source, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Migrator{m: m, log: logger.Named("migrate")}, nil
}

// apply runs step and treats "nothing to do" as success
func (mg *Migrator) apply(action string, step func() error, fields ...zap.Field) error {
	mg.log.Info("Migration started", append([]zap.Field{zap.String("action", action)}, fields...)...)
	err := step()
	if errors.Is(err, migrate.ErrNoChange) {
		mg.log.Info("No migrations to apply", zap.String("action", action))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", action, err)
	}
	version, dirty, err := mg.Version()
	if err != nil {
		return err
	}
	mg.log.Info("Migration finished", zap.String("action", action), zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// Up applies every pending migration
func (mg *Migrator) Up() error {
	return mg.apply("up", mg.m.Up)
}

// Down rolls every migration back
func (mg *Migrator) Down() error {
	return mg.apply("down", mg.m.Down)
}

// Steps moves n versions, forward when positive
func (mg *Migrator) Steps(n int) error {
	return mg.apply("steps", func() error { return mg.m.Steps(n) }, zap.Int("steps", n))
}

// GoTo migrates up or down to version
func (mg *Migrator) GoTo(version uint) error {
	return mg.apply("goto", func() error { return mg.m.Migrate(version) }, zap.Uint("target", version))
}

// Version reports the applied version, 0 on an empty database
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migration version: %w", err)
	}
	return version, dirty, nil
}

// Force records version without running anything. It clears the dirty flag
// after a failed migration was repaired by hand.
func (mg *Migrator) Force(version int) error {
	mg.log.Warn("Forcing migration version", zap.Int("version", version))
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Drop removes every object in the database
func (mg *Migrator) Drop() error {
	mg.log.Warn("Dropping every database object")
	if err := mg.m.Drop(); err != nil {
		return fmt.Errorf("drop: %w", err)
	}
	return nil
}

// Close releases the source and the database driver
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}
