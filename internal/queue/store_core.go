package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"courier/internal/config"
)

// dbtx is satisfied by both *sql.DB and *sql.Conn.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	q    dbtx
	conn *sql.Conn
	path string
}

const (
	sqliteBusyCode          = 5
	sqliteLockedCode        = 6
	busyRetryAttempts       = 6
	busyRetryInitialBackoff = 50 * time.Millisecond
	busyRetryMaxBackoff     = time.Second
	busyTimeoutMillis       = 10000
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		// Extended result codes keep the primary code in the low byte.
		switch coder.Code() & 0xff {
		case sqliteBusyCode, sqliteLockedCode:
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "sqlite_busy") || strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	ctx = ensureContext(ctx)
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.q.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// readWithRetry runs a whole read, row iteration included, under retryOnBusy
// so a lock hit mid-scan restarts the read instead of failing it.
func readWithRetry[T any](ctx context.Context, read func(context.Context) (T, error)) (T, error) {
	ctx = ensureContext(ctx)
	var out T
	err := retryOnBusy(ctx, func() error {
		var err error
		out, err = read(ctx)
		return err
	})
	return out, err
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	_, err := s.execWithRetry(ctx, query, args...)
	return err
}

// Open initializes or connects to the job database under the configured data directory.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("queue: config is nil")
	}
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens the job database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("queue: database path is empty")
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dataSourceName(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &Store{db: db, q: db, path: dbPath}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite db: %w", err)
	}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// dataSourceName encodes the pragmas so every pooled connection gets them,
// not just the first one.
func dataSourceName(dbPath string) string {
	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMillis))
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "synchronous(NORMAL)")
	return dbPath + "?" + params.Encode()
}

// Dedicated returns a Store bound to a single connection from the pool. Each
// worker holds its own so handles are never shared between goroutines. Close
// on the returned Store releases the connection, not the pool.
func (s *Store) Dedicated(ctx context.Context) (*Store, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("queue: store is closed")
	}
	conn, err := s.db.Conn(ensureContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("acquire dedicated connection: %w", err)
	}
	return &Store{db: s.db, q: conn, conn: conn, path: s.path}, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database, or releases the connection for a
// dedicated store.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
