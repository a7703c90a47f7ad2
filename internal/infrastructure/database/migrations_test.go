package database

import (
	"context"
	"embed"
	"testing"
	"testing/fstest"
)

// testMigrationsDir is the directory containing test migration files.
const testMigrationsDir = "testdata"

//go:embed testdata
var testMigrationsFS embed.FS

// TestLoadMigrations verifies migration files are loaded in version order.
func TestLoadMigrations(t *testing.T) {
	migrations, err := LoadMigrations(testMigrationsFS, testMigrationsDir)
	if err != nil {
		t.Fatalf("LoadMigrations() error = %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "create_users" {
		t.Errorf("migrations[0] = %d/%s, want 1/create_users", migrations[0].Version, migrations[0].Name)
	}
	if migrations[1].Version != 2 || migrations[1].Name != "add_email" {
		t.Errorf("migrations[1] = %d/%s, want 2/add_email", migrations[1].Version, migrations[1].Name)
	}

	// The loaded SQL must apply cleanly in order.
	h := openTestHandle(t)
	for _, m := range migrations {
		if err := h.Exec(context.Background(), m.SQL); err != nil {
			t.Fatalf("applying %s: %v", m.Name, err)
		}
	}
}

// TestLoadMigrationsMissingDir verifies a missing directory means no migrations.
func TestLoadMigrationsMissingDir(t *testing.T) {
	migrations, err := LoadMigrations(testMigrationsFS, "does-not-exist")
	if err != nil {
		t.Fatalf("LoadMigrations() error = %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected 0 migrations, got %d", len(migrations))
	}

	migrations, err = LoadMigrations(nil, ".")
	if err != nil {
		t.Fatalf("LoadMigrations(nil) error = %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected 0 migrations from nil FS, got %d", len(migrations))
	}
}

// TestLoadMigrationsDuplicateVersion verifies colliding versions are rejected.
func TestLoadMigrationsDuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_first.up.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"001_second.up.sql": {Data: []byte("CREATE TABLE b (id INTEGER);")},
		"0002_third.up.sql": {Data: []byte("CREATE TABLE c (id INTEGER);")},
	}

	if _, err := LoadMigrations(fsys, "."); err == nil {
		t.Error("LoadMigrations() expected error for duplicate version, got nil")
	}
}

// TestParseMigrationFilename verifies filename parsing.
func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion int
		wantOk      bool
	}{
		{
			name:        "valid up migration",
			filename:    "0001_create_users.up.sql",
			wantVersion: 1,
			wantOk:      true,
		},
		{
			name:        "large version",
			filename:    "20260118_add_index.up.sql",
			wantVersion: 20260118,
			wantOk:      true,
		},
		{
			name:     "down migration ignored",
			filename: "0001_create_users.down.sql",
			wantOk:   false,
		},
		{
			name:     "not sql file",
			filename: "readme.txt",
			wantOk:   false,
		},
		{
			name:     "missing direction",
			filename: "0001_create_users.sql",
			wantOk:   false,
		},
		{
			name:     "non-numeric version",
			filename: "abc_create_users.up.sql",
			wantOk:   false,
		},
		{
			name:     "zero version",
			filename: "0000_baseline.up.sql",
			wantOk:   false,
		},
		{
			name:     "missing description",
			filename: "0003.up.sql",
			wantOk:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Errorf("ok = %v, want %v", ok, tt.wantOk)
			}
			if ok && version != tt.wantVersion {
				t.Errorf("version = %v, want %v", version, tt.wantVersion)
			}
		})
	}
}

// TestExtractMigrationName verifies name extraction.
func TestExtractMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"0001_create_users.up.sql", "create_users"},
		{"0002_initial_schema.up.sql", "initial_schema"},
		{"0010_add_email_to_users.up.sql", "add_email_to_users"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got := extractMigrationName(tt.filename)
			if got != tt.want {
				t.Errorf("extractMigrationName(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
