// Package migrations bundles the schema files for each supported database.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// dirs maps a database/sql driver name to its migration directory.
var dirs = map[string]string{
	"sqlite3":  "sqlite",
	"postgres": "postgres",
}

// For returns the migration files for driver, rooted at their directory.
func For(driver string) (fs.FS, error) {
	dir, ok := dirs[driver]
	if !ok {
		return nil, fmt.Errorf("no migrations for database driver %q", driver)
	}
	return fs.Sub(files, dir)
}
