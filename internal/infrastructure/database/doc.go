// Package database provides the SQLite engine handle used by sessions.
//
// This package manages:
//   - A single dedicated connection (pragmas, keys and transactions are per connection)
//   - Batch execution, transaction control and statement preparation
//   - The schema version stored in the database header (PRAGMA user_version)
//   - Force-clear mode and VACUUM for destructive resets
//   - Loading integer-versioned migration files
//
// It deliberately knows nothing about pragma ordering, caching or locking;
// the session package layers those on top.
//
// Security Considerations:
//   - Database file permissions are set to 0600 (owner read/write only)
//   - Encryption requires linking SQLCipher (build with the libsqlite3 tag
//     against a SQLCipher libsqlite3); see CipherVersion
//
// Usage:
//
//	h, err := database.Open(ctx, "./data/store.db")
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
//
//	if err := h.Configure(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
//	    return err
//	}
//
// Migration Files:
//
// Migrations are forward-only and named NNNN_description.up.sql, where
// NNNN is the schema version the file produces:
//
//	0001_local_storage.up.sql
//	0002_add_tasks.up.sql
package database
