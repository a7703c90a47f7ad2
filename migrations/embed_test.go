package migrations

import (
	"testing"

	"github.com/nerrad567/sqlsession/internal/infrastructure/database"
)

func TestEmbeddedMigrations(t *testing.T) {
	steps, err := database.LoadMigrations(FS, Dir)
	if err != nil {
		t.Fatalf("LoadMigrations() error = %v", err)
	}
	if len(steps) == 0 {
		t.Fatal("no embedded migrations found")
	}
	for i, m := range steps {
		if m.Version != i+1 {
			t.Errorf("migration %d has version %d, want contiguous versions from 1", i, m.Version)
		}
		if m.SQL == "" {
			t.Errorf("migration %d (%s) is empty", m.Version, m.Name)
		}
	}
	if steps[0].Name != "local_storage" {
		t.Errorf("first migration = %q, want local_storage", steps[0].Name)
	}
}
