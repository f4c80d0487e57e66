// Package schema embeds the SQL migrations of every supported dialect.
// Each dialect lives in its own directory named after the database type.
package schema

import "embed"

//go:embed migrations
var FS embed.FS

// Dir returns the migration directory for dbType ("sqlite", "mysql", "postgres").
func Dir(dbType string) string {
	return "migrations/" + dbType
}
