package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/poiesic/verbatim/storage"
)

const driverName = "sqlite"

type config struct {
	busyTimeout int
	journalMode string
	logger      *slog.Logger
}

func defaults() config {
	return config{
		busyTimeout: 10_000,
		journalMode: "WAL",
		logger:      slog.Default(),
	}
}

// Option customises how a store is opened.
type Option func(*config)

// WithLogger sets the logger used by the backend.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// Backend wraps a SQLite database holding a verbatim store.
type Backend struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenBackend opens an existing verbatim store.
// Returns storage.ErrStoreNotFound if path does not exist or holds no verbatim table.
func OpenBackend(path string, opts ...Option) (*Backend, error) {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrStoreNotFound, path)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", storage.ErrStoreNotFound, path)
	}

	db, err := openDB(path, &cfg)
	if err != nil {
		return nil, err
	}

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'verbatim'`).Scan(&name)
	if err != nil {
		db.Close()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s has no verbatim table", storage.ErrStoreNotFound, path)
		}
		return nil, fmt.Errorf("inspecting %s: %w", path, err)
	}

	return &Backend{
		db:     db,
		path:   path,
		logger: cfg.logger,
	}, nil
}

// openDB opens path and applies pragmas. A single connection keeps the
// pragmas and transactions on the same handle.
func openDB(path string, cfg *config) (*sql.DB, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		fmt.Sprintf("PRAGMA journal_mode = %s", cfg.journalMode),
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s on %s: %w", p, path, err)
		}
	}
	return db, nil
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Path returns the file the backend was opened from.
func (b *Backend) Path() string {
	return b.path
}

type txKey struct{}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns the transaction carried by ctx, or the database itself.
func (b *Backend) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return b.db
}

// WithTransaction executes fn within a transaction carried by the context.
// Nested calls join the outer transaction.
func (b *Backend) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTransaction(ctx, b.db, fn)
}

func withTransaction(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", storage.ErrTransactionFailed, err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("%w: rollback: %w", storage.ErrTransactionFailed, rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", storage.ErrTransactionFailed, err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
