package session

import "errors"

// Domain errors for session operations.
//
// Umbrella kinds (ErrMigration, ErrReset) wrap the originating kind, so a
// failed migration satisfies both errors.Is(err, ErrMigration) and, for
// example, errors.Is(err, ErrSQL).
var (
	// ErrOpen indicates the connection could not be established or initialised.
	ErrOpen = errors.New("session: open failed")

	// ErrConfig indicates an engine configuration toggle (reset mode) failed.
	ErrConfig = errors.New("session: engine configuration failed")

	// ErrSQL indicates a statement or batch failed to prepare or execute.
	ErrSQL = errors.New("session: sql failed")

	// ErrTx indicates begin, commit or rollback failed.
	ErrTx = errors.New("session: transaction failed")

	// ErrIncompatibleMigration indicates the stored schema version does not
	// match the version a migration expects to start from.
	ErrIncompatibleMigration = errors.New("session: incompatible migration set")

	// ErrMigration wraps any failure of Migrate.
	ErrMigration = errors.New("session: migration failed")

	// ErrReset wraps any failure of ResetDatabase.
	ErrReset = errors.New("session: reset failed")

	// ErrDestroyed indicates the session has been destroyed.
	ErrDestroyed = errors.New("session: destroyed")
)
