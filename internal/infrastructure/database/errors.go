package database

import "errors"

var (
	// ErrNoPath is returned by Open when no database path is configured.
	ErrNoPath = errors.New("database: path is required")

	// ErrNoDownMigration is returned when rolling back a migration that
	// ships no .down.sql file.
	ErrNoDownMigration = errors.New("database: migration has no down SQL")

	// ErrMigrationMissing is returned when an applied migration is no longer
	// present in the registered source.
	ErrMigrationMissing = errors.New("database: applied migration not found in source")
)
