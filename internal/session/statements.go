package session

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nerrad567/sqlsession/internal/infrastructure/database"
)

// FindResult reports how Find resolved a row.
type FindResult int

// Find outcomes.
const (
	// FindMissing means the row was queried and not found.
	FindMissing FindResult = iota

	// FindFound means the row was queried, found and is now cached.
	FindFound

	// FindCached means the row was already known; the store was not queried.
	FindCached
)

// String returns the result name.
func (r FindResult) String() string {
	switch r {
	case FindFound:
		return "found"
	case FindCached:
		return "cached"
	default:
		return "missing"
	}
}

// CacheAction is the record-existence cache effect of a batch operation.
type CacheAction int

// Cache actions applied after a batch commits.
const (
	CacheNone CacheAction = iota
	CacheAdd
	CacheRemove
)

// Operation is one statement in a Batch.
type Operation struct {
	Query    string
	Args     []any
	CacheKey string
	Cache    CacheAction
}

// statement returns the compiled statement for query, preparing and caching
// it on first use. Caller must hold s.mu.
func (s *Session) statement(ctx context.Context, query string) (*sql.Stmt, error) {
	if stmt, ok := s.statements[query]; ok {
		return stmt, nil
	}

	stmt, err := s.engine.Prepare(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSQL, err)
	}
	s.statements[query] = stmt
	return stmt, nil
}

// finalizeStatements releases every cached statement and empties the cache.
// Every release is attempted; failures are logged and never returned.
// Caller must hold s.mu.
func (s *Session) finalizeStatements() {
	failed := 0
	for query, stmt := range s.statements {
		if err := s.engine.Finalize(stmt); err != nil {
			failed++
			s.logger.Warn("finalizing statement",
				"session_id", s.id,
				"query", query,
				"error", err,
			)
		}
	}
	if failed > 0 {
		s.logger.Warn("statements failed to finalize",
			"session_id", s.id,
			"failed", failed,
			"total", len(s.statements),
		)
	}
	clear(s.statements)
}

// Exec runs a single statement through the statement cache.
//
// Returns:
//   - int64: Rows affected
//   - error: Wrapping ErrSQL or ErrDestroyed
func (s *Session) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return 0, ErrDestroyed
	}

	stmt, err := s.statement(ctx, query)
	if err != nil {
		return 0, err
	}

	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSQL, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSQL, err)
	}
	return n, nil
}

// Count runs a query returning a single integer, typically SELECT count(*).
func (s *Session) Count(ctx context.Context, query string, args ...any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return 0, ErrDestroyed
	}

	stmt, err := s.statement(ctx, query)
	if err != nil {
		return 0, err
	}

	var n int
	if err := stmt.QueryRowContext(ctx, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSQL, err)
	}
	return n, nil
}

// Query runs query and calls scan once per result row.
//
// scan runs with the session lock held and must not call back into the
// session.
func (s *Session) Query(ctx context.Context, query string, args []any, scan func(*sql.Rows) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return ErrDestroyed
	}

	stmt, err := s.statement(ctx, query)
	if err != nil {
		return err
	}
	_, err = scanRows(ctx, stmt, args, scan)
	return err
}

// scanRows runs stmt and feeds each row to scan.
func scanRows(ctx context.Context, stmt *sql.Stmt, args []any, scan func(*sql.Rows) error) (n int, err error) {
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSQL, err)
	}
	defer rows.Close()

	for rows.Next() {
		n++
		if scan == nil {
			continue
		}
		if err := scan(rows); err != nil {
			return n, err
		}
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("%w: %w", ErrSQL, err)
	}
	return n, nil
}

// Find looks up the row with the given id in table.
//
// If CacheKey(table, id) is already cached the store is not touched and
// scan is not called. Otherwise the row is queried; when it exists, scan
// receives it and the key is marked as cached.
//
// Parameters:
//   - ctx: Context for the query
//   - table: Table name (quoted before use)
//   - id: Value of the table's id column
//   - scan: Optional row reader, called at most once
//
// Returns:
//   - FindResult: How the row was resolved
//   - error: Wrapping ErrSQL or ErrDestroyed, or scan's error
func (s *Session) Find(ctx context.Context, table, id string, scan func(*sql.Rows) error) (FindResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := CacheKey(table, id)
	if _, ok := s.records[key]; ok {
		return FindCached, nil
	}
	if s.destroyed {
		return FindMissing, ErrDestroyed
	}

	query := "SELECT * FROM " + database.QuoteIdentifier(table) + " WHERE id = ? LIMIT 1"
	stmt, err := s.statement(ctx, query)
	if err != nil {
		return FindMissing, err
	}

	n, err := scanRows(ctx, stmt, []any{id}, scan)
	if err != nil {
		return FindMissing, err
	}
	if n == 0 {
		return FindMissing, nil
	}

	s.records[key] = struct{}{}
	return FindFound, nil
}

// Batch executes ops in one transaction.
//
// Record-existence cache effects are applied only after the commit
// succeeds; a failed batch is rolled back and leaves the cache unchanged.
func (s *Session) Batch(ctx context.Context, ops []Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return ErrDestroyed
	}
	if len(ops) == 0 {
		return nil
	}

	if err := s.engine.Begin(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrTx, err)
	}

	if err := s.batchTx(ctx, ops); err != nil {
		s.rollback(context.WithoutCancel(ctx), "batch")
		return err
	}

	for _, op := range ops {
		switch op.Cache {
		case CacheAdd:
			s.records[op.CacheKey] = struct{}{}
		case CacheRemove:
			delete(s.records, op.CacheKey)
		}
	}
	return nil
}

// batchTx runs every operation and commits. A transaction is open on entry.
func (s *Session) batchTx(ctx context.Context, ops []Operation) error {
	for i, op := range ops {
		stmt, err := s.statement(ctx, op.Query)
		if err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, op.Args...); err != nil {
			return fmt.Errorf("operation %d: %w: %w", i, ErrSQL, err)
		}
	}

	if err := s.engine.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrTx, err)
	}
	return nil
}
