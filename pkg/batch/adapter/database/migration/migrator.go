// Package migration applies versioned SQL schema migrations with golang-migrate.
package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

// DefaultMigrationsTable is the version table golang-migrate maintains.
const DefaultMigrationsTable = "schema_migrations"

// Migrator applies migrations from an fs.FS to one database.
type Migrator struct {
	sqlDB  *sql.DB
	dbType string
}

// NewMigrator creates a Migrator over sqlDB. dbType is one of "sqlite",
// "mysql" or "postgres".
func NewMigrator(sqlDB *sql.DB, dbType string) *Migrator {
	return &Migrator{sqlDB: sqlDB, dbType: dbType}
}

func (m *Migrator) getDatabaseDriver(tableName string) (database.Driver, error) {
	switch m.dbType {
	case "postgres":
		return postgres.WithInstance(m.sqlDB, &postgres.Config{MigrationsTable: tableName})
	case "mysql":
		return mysql.WithInstance(m.sqlDB, &mysql.Config{MigrationsTable: tableName})
	case "sqlite":
		return sqlite.WithInstance(m.sqlDB, &sqlite.Config{MigrationsTable: tableName})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", m.dbType)
	}
}

func (m *Migrator) getMigrateInstance(migrationFS fs.FS, path string, tableName string) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationFS, path)
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs source driver for path %s: %w", path, err)
	}
	dbDriver, err := m.getDatabaseDriver(tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}
	mInstance, err := migrate.NewWithInstance("iofs", sourceDriver, m.dbType, dbDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return mInstance, nil
}

// Up applies every pending migration found under path. An up-to-date schema
// is not an error.
func (m *Migrator) Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) error {
	if tableName == "" {
		tableName = DefaultMigrationsTable
	}
	logger.Infof("Executing migration 'up' (Path: %s, Table: %s)", path, tableName)

	mInstance, err := m.getMigrateInstance(migrationFS, path, tableName)
	if err != nil {
		return err
	}

	// golang-migrate closes the database driver too, which would close the
	// shared pool. Only the source is released here.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			mInstance.GracefulStop <- true
		case <-stop:
		}
	}()

	if err := mInstance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		if version, dirty, vErr := mInstance.Version(); vErr == nil {
			logger.Errorf("Migration failed at version %d (dirty=%t)", version, dirty)
		}
		return fmt.Errorf("migration failed (DB: %s, Path: %s): %w", m.dbType, path, err)
	}

	version, _, err := mInstance.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	logger.Infof("Migration 'up' completed successfully. Schema version: %d", version)
	return nil
}
