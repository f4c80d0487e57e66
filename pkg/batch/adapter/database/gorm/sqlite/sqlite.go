// Package sqlite registers the SQLite dialector with the gorm adapter.
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/yotposync/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/yotposync/pkg/batch/adapter/database/gorm"
)

func init() {
	gormadapter.RegisterDialector("sqlite", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		connStr, err := ConnectionString(cfg)
		if err != nil {
			return nil, err
		}
		return sqlite.Open(connStr), nil
	})
}

// ConnectionString returns the database file path. Foreign keys are enabled
// and a busy timeout is set so concurrent writers wait instead of failing.
func ConnectionString(cfg dbconfig.DatabaseConfig) (string, error) {
	if cfg.Database == "" {
		return "", errors.New("sqlite database path cannot be empty")
	}
	if cfg.Database == ":memory:" {
		return "file::memory:?cache=shared&_foreign_keys=on", nil
	}
	return cfg.Database + "?_foreign_keys=on&_busy_timeout=5000", nil
}
