package database

import (
	"context"
	"fmt"
	"strings"
)

// catalogQuery lists every user-created schema object, ordered so that
// dependents (views, triggers) are dropped before the tables they reference.
// Internal objects are matched on the literal "sqlite_" prefix; in LIKE the
// underscore would match any character and hide tables such as "sqlitex".
const catalogQuery = `
	SELECT type, name FROM sqlite_master
	WHERE substr(name, 1, 7) <> 'sqlite_'
	ORDER BY CASE type
		WHEN 'view' THEN 0
		WHEN 'trigger' THEN 1
		WHEN 'table' THEN 2
		ELSE 3
	END, name`

// catalogObject is one row of sqlite_master.
type catalogObject struct {
	kind string
	name string
}

// SetResetMode toggles force-clear mode.
//
// While enabled, foreign key enforcement is off and Vacuum drops every
// schema object before rebuilding the file. Disabling restores the
// foreign key setting that was in effect when the mode was enabled.
//
// The driver does not expose sqlite3_db_config(SQLITE_DBCONFIG_RESET_DATABASE),
// so the catalog is cleared object by object instead.
//
// Must be called outside a transaction: PRAGMA foreign_keys is a no-op
// inside one.
func (h *Handle) SetResetMode(ctx context.Context, enabled bool) error {
	if enabled == h.resetMode {
		return nil
	}

	if enabled {
		var fk int
		if err := h.conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
			return fmt.Errorf("enabling reset mode: %w", err)
		}
		if _, err := h.conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
			return fmt.Errorf("enabling reset mode: %w", err)
		}
		h.savedForeignKeys = fk
		h.resetMode = true
		return nil
	}

	if _, err := h.conn.ExecContext(ctx, fmt.Sprintf("PRAGMA foreign_keys = %d", h.savedForeignKeys)); err != nil {
		return fmt.Errorf("disabling reset mode: %w", err)
	}
	h.resetMode = false
	return nil
}

// ResetMode reports whether force-clear mode is enabled.
func (h *Handle) ResetMode() bool {
	return h.resetMode
}

// Vacuum rebuilds the database file. In reset mode the catalog is cleared
// first, leaving an empty database.
//
// SQLite refuses VACUUM inside a transaction; so does this method.
func (h *Handle) Vacuum(ctx context.Context) error {
	if h.resetMode {
		if err := h.clearCatalog(ctx); err != nil {
			return err
		}
	}
	if _, err := h.conn.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuuming database: %w", err)
	}
	return nil
}

// clearCatalog drops every user-created schema object and zeroes the
// schema version, matching a freshly created file.
func (h *Handle) clearCatalog(ctx context.Context) error {
	objects, err := h.listCatalog(ctx)
	if err != nil {
		return err
	}

	for _, obj := range objects {
		// Dropping a table also drops its indexes and triggers, hence IF EXISTS.
		stmt := fmt.Sprintf("DROP %s IF EXISTS %s", strings.ToUpper(obj.kind), QuoteIdentifier(obj.name))
		if _, err := h.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("dropping %s %s: %w", obj.kind, obj.name, err)
		}
	}

	if _, err := h.conn.ExecContext(ctx, "PRAGMA user_version = 0"); err != nil {
		return fmt.Errorf("clearing schema version: %w", err)
	}
	return nil
}

// listCatalog reads the catalog into memory. The cursor must be closed
// before any DROP runs against the same connection.
func (h *Handle) listCatalog(ctx context.Context) ([]catalogObject, error) {
	rows, err := h.conn.QueryContext(ctx, catalogQuery)
	if err != nil {
		return nil, fmt.Errorf("listing schema objects: %w", err)
	}
	defer rows.Close()

	var objects []catalogObject
	for rows.Next() {
		var obj catalogObject
		if err := rows.Scan(&obj.kind, &obj.name); err != nil {
			return nil, fmt.Errorf("scanning schema object: %w", err)
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schema objects: %w", err)
	}
	return objects, nil
}

// QuoteIdentifier returns name as a double-quoted SQL identifier, safe to
// splice into statement text.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
