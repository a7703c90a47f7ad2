package database

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

// Migration filename parsing constants.
const (
	// upSuffix marks a forward migration file: NNNN_description.up.sql
	upSuffix = ".up.sql"

	// migrationFilenameParts is the number of parts when splitting the base name by "_".
	migrationFilenameParts = 2
)

// Migration is one forward step of the schema catalogue.
//
// Applying it moves the schema from the previous migration's version
// (or 0) to Version.
type Migration struct {
	// Version is the schema version after this migration (from the filename prefix).
	Version int

	// Name is the human-readable migration name.
	Name string

	// SQL is the batch to execute.
	SQL string
}

// LoadMigrations reads every NNNN_description.up.sql file in dir of fsys
// and returns them sorted by version (oldest first).
//
// Files that don't match the pattern (including .down.sql files) are
// ignored. A missing directory yields no migrations. Two files with the
// same version are an error.
//
// Parameters:
//   - fsys: Filesystem holding the migration files (embed.FS, os.DirFS, ...)
//   - dir: Directory within fsys; "." for the root
//
// Returns:
//   - []Migration: Migrations in ascending version order
//   - error: If a file cannot be read or versions collide
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	if fsys == nil {
		return nil, nil
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		// Directory might not exist if no migrations
		return nil, nil //nolint:nilerr // Absent directory means an empty catalogue
	}

	seen := make(map[int]string)
	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		version, ok := parseMigrationFilename(name)
		if !ok {
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", version, prev, name)
		}
		seen[version] = name

		body, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}

		migrations = append(migrations, Migration{
			Version: version,
			Name:    extractMigrationName(name),
			SQL:     string(body),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// parseMigrationFilename extracts the version from a forward migration filename.
// Returns ok=false for anything other than NNNN_description.up.sql with NNNN > 0.
func parseMigrationFilename(name string) (version int, ok bool) {
	if !strings.HasSuffix(name, upSuffix) {
		return 0, false
	}

	base := strings.TrimSuffix(name, upSuffix)
	parts := strings.SplitN(base, "_", migrationFilenameParts)
	if len(parts) < migrationFilenameParts || parts[1] == "" {
		return 0, false
	}

	version, err := strconv.Atoi(parts[0])
	if err != nil || version <= 0 {
		return 0, false
	}
	return version, true
}

// extractMigrationName extracts a human-readable name from the filename.
// Example: "0002_add_tasks.up.sql" -> "add_tasks"
func extractMigrationName(filename string) string {
	base := strings.TrimSuffix(filename, upSuffix)

	parts := strings.SplitN(base, "_", migrationFilenameParts)
	if len(parts) == migrationFilenameParts {
		return parts[1]
	}
	return base
}
