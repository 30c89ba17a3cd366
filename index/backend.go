package index

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// manifestFile is present in every Badger directory once opened.
const manifestFile = "MANIFEST"

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
// Badger's own messages are routine, so info is demoted to debug.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func badgerOptions(dir string, logger *slog.Logger) badger.Options {
	opts := badger.DefaultOptions(dir).
		WithLogger(&badgerLoggerAdapter{logger: logger}).
		WithCompression(options.None).
		WithNumVersionsToKeep(1).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(32 << 20)
	return opts
}

// createDB opens a new, empty Badger database in dir.
func createDB(dir string, logger *slog.Logger) (*badger.DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating %s", dir)
	}
	db, err := badger.Open(badgerOptions(dir, logger))
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", dir)
	}
	return db, nil
}

// openDB opens an existing index directory read-only.
func openDB(dir string, logger *slog.Logger) (*badger.DB, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrIndexNotFound, "%s", dir)
		}
		return nil, errors.Wrapf(err, "opening %s", dir)
	}
	if !info.IsDir() {
		return nil, errors.Wrapf(ErrIndexNotFound, "%s is not a directory", dir)
	}
	if _, err := os.Stat(filepath.Join(dir, manifestFile)); err != nil {
		return nil, errors.Wrapf(ErrIndexNotFound, "%s holds no index", dir)
	}

	db, err := badger.Open(badgerOptions(dir, logger).WithReadOnly(true))
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", dir)
	}
	return db, nil
}
