package storage

import (
	"embed"

	"github.com/md-rashed-zaman/bookslot/libs/db"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the schema at databaseURL up to date.
func Migrate(databaseURL string) error {
	return db.Migrate(databaseURL, migrationsFS, "migrations")
}
