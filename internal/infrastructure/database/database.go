package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Database configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// connectionTimeout is the timeout for acquiring the dedicated connection.
	connectionTimeout = 5 * time.Second

	// memoryPath is the SQLite name for a private in-memory database.
	memoryPath = ":memory:"
)

var (
	// ErrEncryptionUnavailable is returned when a password is supplied but the
	// linked SQLite library has no codec (it is not SQLCipher).
	ErrEncryptionUnavailable = errors.New("database: encryption requested but SQLite has no codec")

	// ErrVersionRange rejects schema versions PRAGMA user_version cannot
	// store: the header field is a signed 32-bit integer.
	ErrVersionRange = errors.New("database: schema version outside 32-bit range")
)

// Handle is a single dedicated SQLite connection.
//
// Connection-scoped state (pragmas, the cipher key, an open transaction,
// prepared statements) only makes sense on one connection, so the pool is
// pinned to a single *sql.Conn for the lifetime of the Handle.
//
// Thread Safety:
//   - Handle is NOT safe for concurrent use. Callers serialise access
//     (the session package holds one lock around every call).
type Handle struct {
	db   *sql.DB
	conn *sql.Conn
	path string

	// created is set when Open found no file at path.
	created bool

	// resetMode and savedForeignKeys track the force-clear mode toggled by SetResetMode.
	resetMode        bool
	savedForeignKeys int
}

// Open opens the database at path and pins a single connection.
//
// It performs the following setup:
//  1. Creates the database directory if it doesn't exist (file databases only)
//  2. Opens the database (creates the file if not present)
//  3. Acquires the dedicated connection every later call runs on
//  4. Sets file permissions to 0600
//
// No pragma is issued here: the caller owns the pragma sequence, and an
// encrypted database must receive its key before anything else.
//
// Parameters:
//   - ctx: Context bounding connection acquisition
//   - path: Filesystem path, or ":memory:" for a private in-memory database
//
// Returns:
//   - *Handle: Open handle
//   - error: If the directory, driver or connection fails
func Open(ctx context.Context, path string) (*Handle, error) {
	if path == "" {
		return nil, fmt.Errorf("opening database: path is required")
	}

	onDisk := isFilePath(path)
	created := false
	if onDisk {
		if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		_, statErr := os.Stat(path)
		created = errors.Is(statErr, fs.ErrNotExist)
	}

	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Exactly one connection: a second one would not see the key, the
	// pragmas or (for :memory:) even the same database.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	connCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	conn, err := sqlDB.Conn(connCtx)
	if err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("acquiring database connection: %w", err)
	}

	if onDisk {
		// File may not exist until the first write; fixed up on the next open.
		_ = os.Chmod(path, filePermissions) //nolint:errcheck // Intentional: first run creates file later
	}

	return &Handle{
		db:      sqlDB,
		conn:    conn,
		path:    path,
		created: created,
	}, nil
}

// isFilePath reports whether path names a plain file on disk.
func isFilePath(path string) bool {
	return path != memoryPath && !strings.HasPrefix(path, "file:")
}

// Close closes the dedicated connection and the underlying pool.
// Prepared statements must be finalized first. Safe to call more than once.
//
// Returns:
//   - error: If closing fails
func (h *Handle) Close() error {
	if h.db == nil {
		return nil
	}

	var errs []error
	if h.conn != nil {
		if err := h.conn.Close(); err != nil {
			errs = append(errs, err)
		}
		h.conn = nil
	}
	if err := h.db.Close(); err != nil {
		errs = append(errs, err)
	}
	h.db = nil

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Discard closes the handle and, when Open created the file, removes it
// together with its -journal, -wal and -shm companions. An existing
// database is only closed. Used to back out of a failed initialisation.
func (h *Handle) Discard() error {
	errs := []error{h.Close()}
	if h.created {
		for _, suffix := range []string{"", "-journal", "-wal", "-shm"} {
			if err := os.Remove(h.path + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("discarding database: %w", err)
	}
	return nil
}

// Path returns the path the handle was opened with.
func (h *Handle) Path() string {
	return h.path
}

// HealthCheck verifies the connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (h *Handle) HealthCheck(ctx context.Context) error {
	var result int
	if err := h.conn.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Configure executes a pragma script as one batch.
// Statements run in order; no result rows are expected.
func (h *Handle) Configure(ctx context.Context, script string) error {
	if _, err := h.conn.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("configuring connection: %w", err)
	}
	return nil
}

// Exec executes a batch of semicolon-separated statements in order.
func (h *Handle) Exec(ctx context.Context, script string) error {
	if _, err := h.conn.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("executing batch: %w", err)
	}
	return nil
}

// QueryRowContext executes a query that returns at most one row.
func (h *Handle) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return h.conn.QueryRowContext(ctx, query, args...)
}

// CipherVersion returns the SQLCipher version string, or "" when the linked
// SQLite has no codec.
func (h *Handle) CipherVersion(ctx context.Context) (string, error) {
	var version string
	err := h.conn.QueryRowContext(ctx, "PRAGMA cipher_version").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading cipher version: %w", err)
	}
	return version, nil
}

// Begin starts a transaction on the dedicated connection.
func (h *Handle) Begin(ctx context.Context) error {
	if _, err := h.conn.ExecContext(ctx, "BEGIN"); err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	return nil
}

// Commit commits the open transaction.
func (h *Handle) Commit(ctx context.Context) error {
	if _, err := h.conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Rollback rolls back the open transaction.
func (h *Handle) Rollback(ctx context.Context) error {
	if _, err := h.conn.ExecContext(ctx, "ROLLBACK"); err != nil {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return nil
}

// SchemaVersion returns the schema version stored in the database header
// (PRAGMA user_version).
func (h *Handle) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := h.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// CheckSchemaVersion returns ErrVersionRange if version does not fit the
// 32-bit header field.
func CheckSchemaVersion(version int) error {
	if version < math.MinInt32 || version > math.MaxInt32 {
		return fmt.Errorf("%w: %d", ErrVersionRange, version)
	}
	return nil
}

// SetSchemaVersion stores the schema version in the database header.
// Inside a transaction the change commits or rolls back with it.
// Out-of-range versions are refused rather than truncated.
func (h *Handle) SetSchemaVersion(ctx context.Context, version int) error {
	if err := CheckSchemaVersion(version); err != nil {
		return err
	}
	// Pragmas take no bound parameters; an int cannot inject anything.
	if _, err := h.conn.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("setting schema version: %w", err)
	}
	return nil
}

// Prepare compiles query into a reusable statement bound to the dedicated connection.
func (h *Handle) Prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	stmt, err := h.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	return stmt, nil
}

// Finalize releases a statement returned by Prepare.
func (h *Handle) Finalize(stmt *sql.Stmt) error {
	if stmt == nil {
		return nil
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("finalizing statement: %w", err)
	}
	return nil
}
