package session

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/nerrad567/sqlsession/internal/infrastructure/database"
)

// SchemaVersion returns the schema version stored in the database.
func (s *Session) SchemaVersion(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return 0, ErrDestroyed
	}

	version, err := s.engine.SchemaVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSQL, err)
	}
	return version, nil
}

// Migrate moves the schema from fromVersion to toVersion by running
// migrationSQL inside a single transaction.
//
// The version check, the batch and the version bump commit together or not
// at all. If the stored version is not fromVersion nothing is executed and
// the error wraps ErrIncompatibleMigration. The record-existence cache is
// left untouched.
//
// Migrate ignores ctx cancellation: once started it runs to commit or to
// rollback.
//
// Parameters:
//   - ctx: Context carrying request values
//   - migrationSQL: Batch to execute
//   - fromVersion: Version the schema must currently be at
//   - toVersion: Version recorded on success
//
// Returns:
//   - error: Wrapping ErrMigration and the originating kind
func (s *Session) Migrate(ctx context.Context, migrationSQL string, fromVersion, toVersion int) error {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	s.mu.Lock()
	err := s.migrateLocked(ctx, migrationSQL, fromVersion, toVersion)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("migration failed",
			"session_id", s.id,
			"from_version", fromVersion,
			"to_version", toVersion,
			"error", err,
		)
	} else {
		s.logger.Info("migration applied",
			"session_id", s.id,
			"from_version", fromVersion,
			"to_version", toVersion,
			"duration", time.Since(start),
		)
	}

	s.notify(Event{
		Type:        EventMigrated,
		Duration:    time.Since(start),
		FromVersion: fromVersion,
		ToVersion:   toVersion,
		Err:         err,
	})
	return err
}

func (s *Session) migrateLocked(ctx context.Context, migrationSQL string, fromVersion, toVersion int) error {
	if s.destroyed {
		return fmt.Errorf("%w: %w", ErrMigration, ErrDestroyed)
	}
	if err := checkVersions(fromVersion, toVersion); err != nil {
		return fmt.Errorf("%w: %w: %w", ErrMigration, ErrSQL, err)
	}

	if err := s.engine.Begin(ctx); err != nil {
		return fmt.Errorf("%w: %w: %w", ErrMigration, ErrTx, err)
	}

	if err := s.migrateTx(ctx, migrationSQL, fromVersion, toVersion); err != nil {
		s.rollback(ctx, "migrate")
		return fmt.Errorf("%w: %w", ErrMigration, err)
	}
	return nil
}

// migrateTx runs the body of a migration. A transaction is open on entry.
func (s *Session) migrateTx(ctx context.Context, migrationSQL string, fromVersion, toVersion int) error {
	current, err := s.engine.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("%w: reading schema version: %w", ErrSQL, err)
	}
	if current != fromVersion {
		return fmt.Errorf("%w: schema is at version %d, migration expects %d",
			ErrIncompatibleMigration, current, fromVersion)
	}

	if err := s.engine.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("%w: %w", ErrSQL, err)
	}
	if err := s.engine.SetSchemaVersion(ctx, toVersion); err != nil {
		return fmt.Errorf("%w: %w", ErrSQL, err)
	}
	if err := s.engine.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrTx, err)
	}
	return nil
}

// ResetDatabase destroys every table and all data, then creates schemaSQL
// and records schemaVersion.
//
// The sequence is: finalize cached statements, enable reset mode, vacuum,
// disable reset mode, then in one transaction clear the record-existence
// cache, run schemaSQL and set the version. Vacuum runs outside the
// transaction because SQLite refuses it inside one.
//
// Failures before the transaction are returned as is. Failures inside it
// are rolled back; the database is then either empty or at its pre-reset
// schema, never partially seeded.
//
// Like Migrate, ResetDatabase ignores ctx cancellation.
func (s *Session) ResetDatabase(ctx context.Context, schemaSQL string, schemaVersion int) error {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	s.mu.Lock()
	err := s.resetLocked(ctx, schemaSQL, schemaVersion)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("reset failed",
			"session_id", s.id,
			"schema_version", schemaVersion,
			"error", err,
		)
	} else {
		s.logger.Info("database reset",
			"session_id", s.id,
			"schema_version", schemaVersion,
			"duration", time.Since(start),
		)
	}

	s.notify(Event{
		Type:      EventReset,
		Duration:  time.Since(start),
		ToVersion: schemaVersion,
		Err:       err,
	})
	return err
}

func (s *Session) resetLocked(ctx context.Context, schemaSQL string, schemaVersion int) error {
	if s.destroyed {
		return fmt.Errorf("%w: %w", ErrReset, ErrDestroyed)
	}
	// Checked before anything is dropped.
	if err := checkVersions(schemaVersion); err != nil {
		return fmt.Errorf("%w: %w: %w", ErrReset, ErrSQL, err)
	}

	// Compiled statements may reference tables that are about to vanish.
	s.finalizeStatements()

	if err := s.engine.SetResetMode(ctx, true); err != nil {
		return fmt.Errorf("%w: %w: %w", ErrReset, ErrConfig, err)
	}
	if err := s.engine.Vacuum(ctx); err != nil {
		if modeErr := s.engine.SetResetMode(ctx, false); modeErr != nil {
			s.logger.Error("disabling reset mode after failed vacuum",
				"session_id", s.id,
				"error", modeErr,
			)
		}
		return fmt.Errorf("%w: %w: %w", ErrReset, ErrSQL, err)
	}
	if err := s.engine.SetResetMode(ctx, false); err != nil {
		return fmt.Errorf("%w: %w: %w", ErrReset, ErrConfig, err)
	}

	if err := s.engine.Begin(ctx); err != nil {
		return fmt.Errorf("%w: %w: %w", ErrReset, ErrTx, err)
	}
	if err := s.reseedTx(ctx, schemaSQL, schemaVersion); err != nil {
		s.rollback(ctx, "reset")
		return fmt.Errorf("%w: %w", ErrReset, err)
	}
	return nil
}

// reseedTx seeds an emptied database. A transaction is open on entry.
func (s *Session) reseedTx(ctx context.Context, schemaSQL string, schemaVersion int) error {
	clear(s.records)

	if err := s.engine.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%w: %w", ErrSQL, err)
	}
	if err := s.engine.SetSchemaVersion(ctx, schemaVersion); err != nil {
		return fmt.Errorf("%w: %w", ErrSQL, err)
	}
	if err := s.engine.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrTx, err)
	}
	return nil
}

// checkVersions rejects versions the database header cannot store.
func checkVersions(versions ...int) error {
	for _, v := range versions {
		if err := database.CheckSchemaVersion(v); err != nil {
			return err
		}
	}
	return nil
}

// rollback aborts the open transaction. A rollback failure is logged; the
// caller returns the error that triggered it.
func (s *Session) rollback(ctx context.Context, op string) {
	if err := s.engine.Rollback(ctx); err != nil {
		s.logger.Error("rollback failed",
			"session_id", s.id,
			"operation", op,
			"error", err,
		)
	}
}

// ApplyMigrations runs steps in ascending version order, skipping any at
// or below the current schema version. Each step is its own Migrate call
// from the version then in effect.
//
// Returns:
//   - int: Number of steps applied
//   - error: The first failing step's error; earlier steps stay committed
func (s *Session) ApplyMigrations(ctx context.Context, steps []database.Migration) (int, error) {
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return 0, err
	}

	ordered := slices.Clone(steps)
	slices.SortStableFunc(ordered, func(a, b database.Migration) int {
		return cmp.Compare(a.Version, b.Version)
	})

	applied := 0
	for _, step := range ordered {
		if step.Version <= current {
			continue
		}

		if err := s.Migrate(ctx, step.SQL, current, step.Version); err != nil {
			return applied, fmt.Errorf("applying %04d_%s: %w", step.Version, step.Name, err)
		}

		s.logger.Debug("migration step applied",
			"session_id", s.id,
			"version", step.Version,
			"name", step.Name,
		)
		current = step.Version
		applied++
	}

	return applied, nil
}
