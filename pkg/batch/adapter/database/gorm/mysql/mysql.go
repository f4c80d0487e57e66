// Package mysql registers the MySQL dialector with the gorm adapter.
package mysql

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/yotposync/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/yotposync/pkg/batch/adapter/database/gorm"
)

func init() {
	gormadapter.RegisterDialector("mysql", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString builds a go-sql-driver DSN from cfg. Multi-statement
// execution is enabled for migration files.
func ConnectionString(cfg dbconfig.DatabaseConfig) string {
	userPass := ""
	if cfg.User != "" {
		userPass = cfg.User
		if cfg.Password != "" {
			userPass += ":" + cfg.Password
		}
		userPass += "@"
	}
	return fmt.Sprintf("%stcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&multiStatements=true",
		userPass, cfg.Host, cfg.Port, cfg.Database)
}
