// Package database provides the SQLite state store for cuebridge.
//
// The database holds operator state that must survive a restart: enable
// overrides for triggers and module instances. Schema changes are versioned
// .sql files registered with RegisterMigrations (see the top-level
// migrations package) and applied by Migrate.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
