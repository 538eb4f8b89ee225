package database

import (
	"context"
	"testing"
	"testing/fstest"
)

// useMigrations swaps MigrationsFS for the duration of a test.
func useMigrations(t *testing.T, fsys fstest.MapFS) {
	t.Helper()

	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})

	MigrationsFS = fsys
	MigrationsDir = "."
}

func TestMigrate(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20261019_120000_create_items.up.sql":   {Data: []byte("CREATE TABLE items (id TEXT PRIMARY KEY);")},
		"20261019_120000_create_items.down.sql": {Data: []byte("DROP TABLE items;")},
		"20261020_090000_add_name.up.sql":       {Data: []byte("ALTER TABLE items ADD COLUMN name TEXT;")},
		"README.md":                             {Data: []byte("ignored")},
	})

	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	if _, err := db.ExecContext(ctx, "INSERT INTO items (id, name) VALUES ('a', 'b')"); err != nil {
		t.Fatalf("migrated schema unusable: %v", err)
	}

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != "20261020_090000" {
		t.Errorf("SchemaVersion() = %q, want 20261020_090000", version)
	}

	// Running again should be idempotent
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrate_FailureKeepsEarlierMigrations(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20261019_120000_ok.up.sql":     {Data: []byte("CREATE TABLE ok_table (id INTEGER);")},
		"20261019_130000_broken.up.sql": {Data: []byte("CREATE TABLE (;")},
	})

	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() expected error for broken migration")
	}

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != "20261019_120000" {
		t.Errorf("SchemaVersion() = %q, want 20261019_120000", version)
	}
}

func TestMigrate_NoMigrations(t *testing.T) {
	origFS := MigrationsFS
	t.Cleanup(func() { MigrationsFS = origFS })
	MigrationsFS = nil

	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != "" {
		t.Errorf("SchemaVersion() = %q, want empty", version)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{"20261019_120000_command_journal.up.sql", "20261019_120000", true, true},
		{"20261019_120000_command_journal.down.sql", "20261019_120000", false, true},
		{"20261019_120000.up.sql", "20261019_120000", true, true},
		{"20261019_120000_command_journal.sql", "", false, false},
		{"20261019.up.sql", "", false, false},
		{"embed.go", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.name)
			if version != tt.wantVersion || isUp != tt.wantUp || ok != tt.wantOK {
				t.Errorf("parseMigrationFilename(%q) = (%q, %v, %v), want (%q, %v, %v)",
					tt.name, version, isUp, ok, tt.wantVersion, tt.wantUp, tt.wantOK)
			}
		})
	}
}

func TestMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20261019_120000_command_journal.up.sql", "command_journal"},
		{"20261019_120000_command_journal.down.sql", "command_journal"},
		{"20261019_120000.up.sql", "20261019_120000"},
	}

	for _, tt := range tests {
		if got := migrationName(tt.filename); got != tt.want {
			t.Errorf("migrationName(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}
