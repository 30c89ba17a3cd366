package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/poiesic/verbatim/core"
	"github.com/poiesic/verbatim/storage"
)

const buildingSuffix = ".building"

// Builder fills a new store next to the target path and swaps it in on Commit.
type Builder struct {
	db       *sql.DB
	path     string
	building string
	logger   *slog.Logger
	done     bool
}

var _ storage.SnapshotBuilder = (*Builder)(nil)

// Rebuild starts a new snapshot for the store at path.
// The store at path, if any, is untouched until Commit.
func Rebuild(path string, opts ...Option) (*Builder, error) {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}
	// The building file is renamed on commit, so it must not depend on a WAL.
	cfg.journalMode = "DELETE"

	building := path + buildingSuffix
	if err := removeDatabaseFiles(building); err != nil {
		return nil, fmt.Errorf("clearing stale %s: %w", building, err)
	}

	db, err := openDB(building, &cfg)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		removeDatabaseFiles(building)
		return nil, fmt.Errorf("creating schema in %s: %w", building, err)
	}

	cfg.logger.Debug("building store", "path", building)
	return &Builder{
		db:       db,
		path:     path,
		building: building,
		logger:   cfg.logger,
	}, nil
}

// AddVerbatims inserts rows in a single transaction.
func (b *Builder) AddVerbatims(ctx context.Context, verbatims ...*core.Verbatim) ([]*core.Verbatim, error) {
	if b.done {
		return nil, storage.ErrSnapshotClosed
	}
	err := withTransaction(ctx, b.db, func(ctx context.Context) error {
		tx := ctx.Value(txKey{}).(*sql.Tx)
		for _, v := range verbatims {
			if err := insertVerbatim(ctx, tx, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return verbatims, nil
}

// Commit stamps the snapshot, closes the new database and renames it over
// the store path.
func (b *Builder) Commit(ctx context.Context, snapshot *core.Snapshot) error {
	if b.done {
		return storage.ErrSnapshotClosed
	}
	if snapshot == nil || snapshot.ID == "" {
		return fmt.Errorf("%w: snapshot id is required", storage.ErrInvalidArgument)
	}

	if err := writeMeta(ctx, b.db, snapshotToMeta(snapshot)); err != nil {
		return err
	}
	b.done = true
	if err := b.db.Close(); err != nil {
		removeDatabaseFiles(b.building)
		return fmt.Errorf("closing %s: %w", b.building, err)
	}

	// Leftover WAL files of the previous store would be replayed onto the new one.
	if err := removeSidecars(b.path); err != nil {
		removeDatabaseFiles(b.building)
		return err
	}
	if err := os.Rename(b.building, b.path); err != nil {
		removeDatabaseFiles(b.building)
		return fmt.Errorf("swapping %s into %s: %w", b.building, b.path, err)
	}

	b.logger.Debug("store committed", "path", b.path, "snapshot", snapshot.ID, "count", snapshot.Total())
	return nil
}

// Abort discards the building database.
func (b *Builder) Abort() error {
	if b.done {
		return nil
	}
	b.done = true
	closeErr := b.db.Close()
	removeErr := removeDatabaseFiles(b.building)
	b.logger.Debug("store build aborted", "path", b.building)
	return errors.Join(closeErr, removeErr)
}

func removeSidecars(path string) error {
	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", path+suffix, err)
		}
	}
	return nil
}

func removeDatabaseFiles(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return removeSidecars(path)
}
