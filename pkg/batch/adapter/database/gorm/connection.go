package gorm

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/yotposync/pkg/batch/adapter/database/config"
	"github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

// Connection is one named gorm connection.
type Connection struct {
	db    *gorm.DB
	sqlDB *sql.DB
	cfg   dbconfig.DatabaseConfig
	name  string
}

// NewConnection wraps db.
func NewConnection(db *gorm.DB, cfg dbconfig.DatabaseConfig, name string) (*Connection, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	return &Connection{db: db, sqlDB: sqlDB, cfg: cfg, name: name}, nil
}

// DB returns the gorm handle.
func (c *Connection) DB() *gorm.DB {
	return c.db
}

// SQLDB returns the underlying *sql.DB.
func (c *Connection) SQLDB() *sql.DB {
	return c.sqlDB
}

// Type returns the database type ("sqlite", "mysql", "postgres").
func (c *Connection) Type() string {
	return c.cfg.Type
}

// Name returns the configured connection name.
func (c *Connection) Name() string {
	return c.name
}

// Ping verifies the connection is alive.
func (c *Connection) Ping(ctx context.Context) error {
	return c.sqlDB.PingContext(ctx)
}

// Close closes the underlying pool.
func (c *Connection) Close() error {
	logger.Infof("Closing database connection '%s'...", c.name)
	return c.sqlDB.Close()
}
