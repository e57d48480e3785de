package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	eventdomain "github.com/smallbiznis/spinwheel/internal/event/domain"
	inventorydomain "github.com/smallbiznis/spinwheel/internal/inventory/domain"
	sessiondomain "github.com/smallbiznis/spinwheel/internal/session/domain"
	spindomain "github.com/smallbiznis/spinwheel/internal/spin/domain"
	"gorm.io/gorm"
)

// Apply brings the schema up to date. Postgres runs the versioned SQL
// migrations; other dialects fall back to model-driven AutoMigrate.
func Apply(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() != "postgres" {
		return AutoMigrate(conn)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&eventdomain.Event{},
		&inventorydomain.Prize{},
		&sessiondomain.SessionRecord{},
		&spindomain.SpinRecord{},
	)
}
