// Package migrations embeds the SQL schema into the binary and registers it
// with the database package on import.
package migrations

import (
	"embed"

	"github.com/nerrad567/doorguard/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
