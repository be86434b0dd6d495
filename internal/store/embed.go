package store

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
)

//go:embed migrations
var migrationsFS embed.FS

// DevMode switches getMigrationsFS to read migration files from the local
// source tree instead of the embedded copy, so schema work does not require
// a rebuild between edits.
var DevMode = false

// devMigrationsDir is where the migration sources live relative to the
// repository root.
const devMigrationsDir = "internal/store/migrations"

// getMigrationsFS returns a filesystem whose root contains the numbered
// .up.sql and .down.sql migration files.
func getMigrationsFS() (fs.FS, error) {
	if DevMode {
		if _, err := os.Stat(devMigrationsDir); err != nil {
			return nil, fmt.Errorf("dev mode: migrations directory not found at %s: %w", devMigrationsDir, err)
		}
		return os.DirFS(devMigrationsDir), nil
	}

	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to access embedded migrations: %w", err)
	}
	return sub, nil
}
