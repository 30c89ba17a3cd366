package extract

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/cockroachdb/errors"
	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/poiesic/verbatim/core"
)

// Source streams raw CRM rows of one provenance at a time.
type Source interface {
	// Rows calls fn for every candidate row of provenance p.
	// Iteration stops at the first error returned by fn, which is returned
	// unchanged. Errors reaching the source are marked ErrSourceUnavailable.
	Rows(ctx context.Context, p core.Provenance, fn func(*core.RawRecord) error) error

	// Close releases the source connection.
	Close() error
}

// SQLSource reads CRM rows from a MySQL or SQLite database.
type SQLSource struct {
	db     *sql.DB
	tables TableConfig
	logger *slog.Logger
}

var _ Source = (*SQLSource)(nil)

// OpenSource connects to the CRM database described by cfg and checks that
// it is reachable.
func OpenSource(ctx context.Context, cfg *SourceConfig, logger *slog.Logger) (*SQLSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open(cfg.Driver, cfg.DataSourceName())
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "opening %s source", cfg.Driver), ErrSourceUnavailable)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Mark(errors.Wrapf(err, "connecting to %s source", cfg.Driver), ErrSourceUnavailable)
	}

	logger.Debug("source connected", "driver", cfg.Driver, "database", cfg.Database)
	return NewSQLSource(db, cfg.Tables, logger), nil
}

// NewSQLSource wraps an open database handle.
func NewSQLSource(db *sql.DB, tables TableConfig, logger *slog.Logger) *SQLSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLSource{db: db, tables: tables, logger: logger}
}

// Close closes the database handle.
func (s *SQLSource) Close() error {
	return s.db.Close()
}

func sourceQuery(table string, p core.Provenance) string {
	if p == core.ProvenanceNotes {
		return fmt.Sprintf(`SELECT id, name, description, parent_id, parent_type, filename FROM %s
			WHERE description IS NOT NULL AND description != ''
			AND parent_id IS NOT NULL AND parent_type IS NOT NULL
			AND filename IS NULL`, table)
	}
	return fmt.Sprintf(`SELECT id, name, description, parent_id, parent_type FROM %s
		WHERE description IS NOT NULL AND description != ''
		AND parent_id IS NOT NULL AND parent_type IS NOT NULL`, table)
}

// Rows streams the candidate rows of provenance p.
func (s *SQLSource) Rows(ctx context.Context, p core.Provenance, fn func(*core.RawRecord) error) error {
	table := s.tables.Table(p)
	if table == "" {
		return errors.Wrapf(core.ErrInvalidProvenance, "%q", p)
	}

	rows, err := s.db.QueryContext(ctx, sourceQuery(table, p))
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "querying %s", table), ErrSourceUnavailable)
	}
	defer rows.Close()

	for rows.Next() {
		var refID string
		var name, description, parentID, parentType, filename sql.NullString
		dest := []any{&refID, &name, &description, &parentID, &parentType}
		if p == core.ProvenanceNotes {
			dest = append(dest, &filename)
		}
		if err := rows.Scan(dest...); err != nil {
			return errors.Mark(errors.Wrapf(err, "reading %s", table), ErrSourceUnavailable)
		}

		raw := &core.RawRecord{
			Type:        p,
			RefID:       refID,
			Name:        nullable(name),
			Description: nullable(description),
			ParentID:    nullable(parentID),
			ParentType:  nullable(parentType),
			Filename:    nullable(filename),
		}
		if err := fn(raw); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Mark(errors.Wrapf(err, "reading %s", table), ErrSourceUnavailable)
	}
	return nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
