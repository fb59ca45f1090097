package repository

import (
	"database/sql"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"

	"kiosk-system/db/migrations"
)

// MigrateUp applies all pending schema migrations from the embedded FS.
func MigrateUp(db *sql.DB, dbName string) error {
	m, err := prepareMigrate(db, dbName)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}

// MigrateDown rolls back all migrations.
func MigrateDown(db *sql.DB, dbName string) error {
	m, err := prepareMigrate(db, dbName)
	if err != nil {
		return err
	}
	if err := m.Down(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "roll back migrations")
	}
	return nil
}

func prepareMigrate(db *sql.DB, dbName string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.Files, ".")
	if err != nil {
		return nil, errors.Wrap(err, "open embedded migrations")
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "create migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, dbName, driver)
	if err != nil {
		return nil, errors.Wrap(err, "create migrations instance")
	}
	return m, nil
}
