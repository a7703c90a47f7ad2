// Package session manages one SQLite connection for the lifetime of its owner.
//
// A Session wraps a single engine connection together with two caches:
//   - a compiled-statement cache keyed by SQL text
//   - a record-existence cache of "table$id" keys the caller has confirmed
//
// and the two schema operations: Migrate (incremental, transactional,
// version-checked) and ResetDatabase (destructive reset-and-reseed).
//
// Every public method takes the same mutex for its whole duration, so
// cache updates never interleave with a migration or reset.
//
// Opening:
//
// Open runs the connection initialisation batch in a fixed order. With a
// password, the SQLCipher key and cipher settings come first; then
// temp_store and synchronous; then WAL journaling with a 5000 ms busy
// timeout; then exclusive locking when requested.
//
// Usage:
//
//	s, err := session.Open(ctx, session.Options{Path: "./data/store.db"})
//	if err != nil {
//	    return err
//	}
//	defer s.Destroy()
//
//	if err := s.Migrate(ctx, "CREATE TABLE t (id TEXT PRIMARY KEY)", 0, 1); err != nil {
//	    return err
//	}
//
// Destroy is never called implicitly. A Session that is dropped without
// Destroy leaks its connection until process exit.
package session
