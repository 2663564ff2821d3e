package jobs

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrateToLatest applies every pending migration in migrationsDir
// (file://-style path) to db, grounded on the teacher's
// ComplianceDatabase.MigrateToLatest.
func MigrateToLatest(db *sql.DB, migrationsDir string) error {
	driver, err := mysql.WithInstance(db, &mysql.Config{})
	if err != nil {
		return fmt.Errorf("jobs: migrate driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", migrationsDir), "mysql", driver)
	if err != nil {
		return fmt.Errorf("jobs: migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("jobs: migrate up: %w", err)
	}
	return nil
}
