// Package database provides SQLite connectivity for Doorguard.
//
// The policy store (passcode, enrolled cards and fingerprints, mode and its
// history) and the access audit trail live in one SQLite file opened here.
// Schema changes are forward-only migrations embedded by the migrations
// package and applied at startup.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
