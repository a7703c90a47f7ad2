package session

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/sqlsession/internal/infrastructure/database"
)

// Engine is the storage capability a Session drives.
// *database.Handle implements it.
type Engine interface {
	Configure(ctx context.Context, script string) error
	Exec(ctx context.Context, script string) error
	CipherVersion(ctx context.Context) (string, error)
	SetResetMode(ctx context.Context, enabled bool) error
	Vacuum(ctx context.Context) error
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int, error)
	SetSchemaVersion(ctx context.Context, version int) error
	Prepare(ctx context.Context, query string) (*sql.Stmt, error)
	Finalize(stmt *sql.Stmt) error
	Close() error
}

// Logger defines the logging interface used by the Session.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures Open.
type Options struct {
	// Path is the database file, or ":memory:".
	Path string

	// Password keys the database when non-empty. Requires SQLCipher.
	Password string

	// ExclusiveLocking switches the connection to exclusive locking mode,
	// trading multi-process access for lower per-operation locking cost.
	ExclusiveLocking bool

	// TempStore is the temp_store pragma value ("memory", "file"); empty leaves the default.
	TempStore string

	// Synchronous is the synchronous pragma value ("OFF", "NORMAL", "FULL", "EXTRA");
	// empty leaves the default.
	Synchronous string

	// Logger receives lifecycle and failure logs. Optional.
	Logger Logger

	// Observers are notified of lifecycle events. Optional.
	Observers []Observer
}

// Stats is a point-in-time view of a Session's caches.
type Stats struct {
	CachedStatements int  `json:"cached_statements"`
	CachedRecords    int  `json:"cached_records"`
	Destroyed        bool `json:"destroyed"`
}

// Session owns one engine connection, its compiled-statement cache and the
// record-existence cache.
//
// Every public method holds a single mutex for its full duration, so no two
// operations on the same Session ever interleave.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Session struct {
	id        string
	engine    Engine
	logger    Logger
	observers []Observer

	mu         sync.Mutex
	destroyed  bool
	statements map[string]*sql.Stmt
	records    map[string]struct{}
}

// Open opens the database described by opts and runs the connection
// initialisation sequence (see initScript).
//
// Parameters:
//   - ctx: Context bounding the open
//   - opts: Path, password, locking mode and tuning
//
// Returns:
//   - *Session: Ready session; call Destroy when done
//   - error: Wrapping ErrOpen on any failure
func Open(ctx context.Context, opts Options) (*Session, error) {
	start := time.Now()

	if err := validateOptions(opts); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}

	h, err := database.Open(ctx, opts.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}

	s, err := newSession(ctx, h, opts)
	if err != nil {
		// A file this call created must not outlive the failure: a rejected
		// encrypted open would otherwise leave a plaintext database behind.
		if discardErr := h.Discard(); discardErr != nil && opts.Logger != nil {
			opts.Logger.Warn("discarding database after failed open", "path", opts.Path, "error", discardErr)
		}
		return nil, err
	}

	s.logger.Info("session opened",
		"session_id", s.id,
		"path", opts.Path,
		"encrypted", opts.Password != "",
		"exclusive_locking", opts.ExclusiveLocking,
	)
	s.notify(Event{Type: EventOpened, Duration: time.Since(start)})
	return s, nil
}

// newSession initialises an open engine and wraps it in a Session.
// Open discards the engine if this fails.
func newSession(ctx context.Context, engine Engine, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	// cipher_version reads no pages, so it is safe before the key.
	if opts.Password != "" {
		if err := requireCodec(ctx, engine); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOpen, err)
		}
	}

	if err := engine.Configure(ctx, initScript(opts)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}

	if opts.Password != "" {
		if err := verifyKey(ctx, engine); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOpen, err)
		}
	}

	return &Session{
		id:         uuid.NewString(),
		engine:     engine,
		logger:     logger,
		observers:  opts.Observers,
		statements: make(map[string]*sql.Stmt),
		records:    make(map[string]struct{}),
	}, nil
}

// requireCodec fails unless a codec is linked. Without one, PRAGMA key is
// silently ignored and the data would be written in the clear.
func requireCodec(ctx context.Context, engine Engine) error {
	version, err := engine.CipherVersion(ctx)
	if err != nil {
		return err
	}
	if version == "" {
		return database.ErrEncryptionUnavailable
	}
	return nil
}

// verifyKey confirms the key opens the file. A wrong key only surfaces
// once a page is read.
func verifyKey(ctx context.Context, engine Engine) error {
	if err := engine.Exec(ctx, "SELECT count(*) FROM sqlite_master"); err != nil {
		return fmt.Errorf("verifying key: %w", err)
	}
	return nil
}

// ID returns the identifier assigned to this session at open.
func (s *Session) ID() string {
	return s.id
}

// Destroy finalizes every cached statement and closes the connection.
//
// It is idempotent: only the first call has any effect. Statement
// finalization failures are logged and never stop teardown; statements
// are always released before the connection closes.
func (s *Session) Destroy() {
	start := time.Now()

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true

	s.finalizeStatements()
	if err := s.engine.Close(); err != nil {
		s.logger.Error("closing engine", "session_id", s.id, "error", err)
	}
	s.mu.Unlock()

	s.logger.Info("session destroyed", "session_id", s.id)
	s.notify(Event{Type: EventDestroyed, Duration: time.Since(start)})
}

// Stats returns the current cache sizes.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		CachedStatements: len(s.statements),
		CachedRecords:    len(s.records),
		Destroyed:        s.destroyed,
	}
}
