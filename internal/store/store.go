// Package store is the SQLite persistence layer: participants, raw sensor
// readings, per-participant baselines, inferred affect states, monitoring
// rules with their alerts, and EMA self-reports. Schema changes are managed
// exclusively through the embedded migrations; see migrate.go.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is wrapped by lookups whose subject does not exist.
// Callers branch with errors.Is.
var ErrNotFound = errors.New("not found")

type Store struct {
	*sql.DB
}

// OpenStore opens the database at path and applies the connection PRAGMAs
// without touching the schema. Use this when migrations are being managed
// explicitly, such as from the migrate CLI.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db}, nil
}

// NewStore opens the database at path and brings the schema up to date by
// applying all pending embedded migrations.
func NewStore(path string) (*Store, error) {
	s, err := OpenStore(path)
	if err != nil {
		return nil, err
	}

	fsys, err := getMigrationsFS()
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := s.MigrateUp(fsys); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// NewStoreWithMigrationCheck opens the database and either applies pending
// migrations (autoMigrate true) or refuses to start when the schema is out
// of date. Production binaries pass false so operators apply migrations
// deliberately.
func NewStoreWithMigrationCheck(path string, autoMigrate bool) (*Store, error) {
	if autoMigrate {
		return NewStore(path)
	}

	s, err := OpenStore(path)
	if err != nil {
		return nil, err
	}

	fsys, err := getMigrationsFS()
	if err != nil {
		s.Close()
		return nil, err
	}
	if blocked, err := s.CheckMigrations(fsys); blocked {
		s.Close()
		return nil, err
	}

	return s, nil
}

// applyPragmas configures the connection for concurrent readers alongside a
// writer. WAL and the busy timeout are what let the ingest path, the sweep
// scheduler and the HTTP handlers share one file without SQLITE_BUSY churn.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return nil
}
