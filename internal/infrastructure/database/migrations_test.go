package database

import (
	"context"
	"testing"
	"testing/fstest"
)

func withMigrations(t *testing.T, fsys fstest.MapFS) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	MigrationsFS, MigrationsDir = fsys, "."
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})
}

func TestMigrate(t *testing.T) {
	withMigrations(t, fstest.MapFS{
		"20260101_000000_cards.up.sql": {Data: []byte(`CREATE TABLE cards (id TEXT PRIMARY KEY);`)},
		"20260102_000000_more.up.sql": {Data: []byte(`
			CREATE TABLE fingerprints (id INTEGER PRIMARY KEY);
			INSERT INTO cards (id) VALUES ('DEADBEEF');`)},
		"README.md": {Data: []byte("ignored")},
	})

	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cards").Scan(&n); err != nil {
		t.Fatalf("cards table missing: %v", err)
	}
	if n != 1 {
		t.Errorf("cards rows = %d, want 1 (second migration ran after the first)", n)
	}

	count, err := db.AppliedCount(ctx)
	if err != nil {
		t.Fatalf("AppliedCount() error = %v", err)
	}
	if count != 2 {
		t.Errorf("AppliedCount() = %d, want 2", count)
	}

	// Idempotent: the INSERT would violate the primary key if re-applied.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrate_FailureRollsBack(t *testing.T) {
	withMigrations(t, fstest.MapFS{
		"20260101_000000_ok.up.sql":     {Data: []byte(`CREATE TABLE ok (id INTEGER);`)},
		"20260102_000000_broken.up.sql": {Data: []byte(`CREATE TABLE broken (id INTEGER); SELECT nope FROM nowhere;`)},
	})

	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() expected error from broken migration")
	}

	count, err := db.AppliedCount(ctx)
	if err != nil {
		t.Fatalf("AppliedCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("AppliedCount() = %d, want 1", count)
	}

	var name string
	err = db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE name = 'broken'").Scan(&name)
	if err == nil {
		t.Error("table from failed migration was not rolled back")
	}
}

func TestMigrate_NoMigrations(t *testing.T) {
	origFS := MigrationsFS
	MigrationsFS = nil
	t.Cleanup(func() { MigrationsFS = origFS })

	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() with no migrations error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{"20260301_090000_policy.up.sql", "20260301_090000", "policy", true},
		{"20260301_090100_audit_logs.up.sql", "20260301_090100", "audit_logs", true},
		{"20260301_090000.up.sql", "20260301_090000", "", true},
		{"20260301_090000_policy.down.sql", "", "", false},
		{"20260301_090000_policy.sql", "", "", false},
		{"nounderscore.up.sql", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK || version != tt.wantVersion || name != tt.wantName {
				t.Errorf("parseMigrationFilename(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.filename, version, name, ok, tt.wantVersion, tt.wantName, tt.wantOK)
			}
		})
	}
}
