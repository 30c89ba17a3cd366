package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/poiesic/verbatim/core"
	"github.com/poiesic/verbatim/storage"
)

// VerbatimRepository implements storage.VerbatimRepository for SQLite.
type VerbatimRepository struct {
	backend *Backend
}

var _ storage.VerbatimRepository = (*VerbatimRepository)(nil)

// NewVerbatimRepository creates a new VerbatimRepository.
func NewVerbatimRepository(backend *Backend) *VerbatimRepository {
	return &VerbatimRepository{backend: backend}
}

// Open opens the store at path and returns its repository.
// Closing the repository closes the underlying backend.
func Open(path string, opts ...Option) (storage.VerbatimRepository, error) {
	backend, err := OpenBackend(path, opts...)
	if err != nil {
		return nil, err
	}
	return NewVerbatimRepository(backend), nil
}

// Close closes the backend.
func (r *VerbatimRepository) Close() error {
	return r.backend.Close()
}

// WithTransaction delegates to the backend.
func (r *VerbatimRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// Snapshot reads the snapshot stamp from the meta table.
func (r *VerbatimRepository) Snapshot(ctx context.Context) (*core.Snapshot, error) {
	meta, err := readMeta(ctx, r.backend.q(ctx))
	if err != nil {
		return nil, err
	}
	return snapshotFromMeta(meta)
}

// CountVerbatims returns the number of rows in the store.
func (r *VerbatimRepository) CountVerbatims(ctx context.Context) (int, error) {
	var n int
	if err := r.backend.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM verbatim`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting verbatims: %w", err)
	}
	return n, nil
}

// ListVerbatims returns a keyset page of rows ordered by ID.
func (r *VerbatimRepository) ListVerbatims(ctx context.Context, afterID int64, limit int) ([]*core.Verbatim, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", storage.ErrInvalidArgument, limit)
	}

	rows, err := r.backend.q(ctx).QueryContext(ctx,
		`SELECT `+verbatimColumns+` FROM verbatim WHERE id > ? ORDER BY id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing verbatims after %d: %w", afterID, err)
	}
	defer rows.Close()

	results := make([]*core.Verbatim, 0, limit)
	for rows.Next() {
		v, err := scanVerbatim(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, rows.Err()
}

// ForEachVerbatim streams every row in ID order.
func (r *VerbatimRepository) ForEachVerbatim(ctx context.Context, fn func(v *core.Verbatim) error) error {
	rows, err := r.backend.q(ctx).QueryContext(ctx, `SELECT `+verbatimColumns+` FROM verbatim ORDER BY id`)
	if err != nil {
		return fmt.Errorf("reading verbatims: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVerbatim(rows)
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ResetScores sets every score to NULL.
func (r *VerbatimRepository) ResetScores(ctx context.Context) error {
	if _, err := r.backend.q(ctx).ExecContext(ctx, `UPDATE verbatim SET score = NULL`); err != nil {
		return fmt.Errorf("resetting scores: %w", err)
	}
	return nil
}

// SetScore stores the score of the row identified by refID.
func (r *VerbatimRepository) SetScore(ctx context.Context, refID string, score float64) error {
	if err := core.ValidateScore(score); err != nil {
		return err
	}

	res, err := r.backend.q(ctx).ExecContext(ctx, `UPDATE verbatim SET score = ? WHERE refid = ?`, score, refID)
	if err != nil {
		return fmt.Errorf("scoring %s: %w", refID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("scoring %s: %w", refID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: refid %s", storage.ErrNotFound, refID)
	}
	return nil
}

// SaveScoringState writes the scoring state into the meta table.
func (r *VerbatimRepository) SaveScoringState(ctx context.Context, state *core.ScoringState) error {
	return r.WithTransaction(ctx, func(ctx context.Context) error {
		return writeMeta(ctx, r.backend.q(ctx), scoringStateToMeta(state))
	})
}

// ScoringState reads the scoring state from the meta table.
func (r *VerbatimRepository) ScoringState(ctx context.Context) (*core.ScoringState, error) {
	meta, err := readMeta(ctx, r.backend.q(ctx))
	if err != nil {
		return nil, err
	}
	return scoringStateFromMeta(meta)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVerbatim(s scanner) (*core.Verbatim, error) {
	var (
		v     core.Verbatim
		typ   string
		score sql.NullFloat64
	)
	if err := s.Scan(&v.ID, &v.RefID, &v.Title, &v.Content, &typ, &v.ParentRefID, &v.ParentType, &score); err != nil {
		return nil, fmt.Errorf("scanning verbatim: %w", err)
	}
	v.Type = core.Provenance(typ)
	if score.Valid {
		s := score.Float64
		v.Score = &s
	}
	return &v, nil
}

// insertVerbatim inserts v and sets its ID.
func insertVerbatim(ctx context.Context, q querier, v *core.Verbatim) error {
	if err := core.ValidateVerbatim(v); err != nil {
		return err
	}

	var score any
	if v.Score != nil {
		score = *v.Score
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO verbatim (refid, title, content, type, parent_refid, parent_type, score) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.RefID, v.Title, v.Content, string(v.Type), v.ParentRefID, v.ParentType, score)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: refid %s", storage.ErrDuplicateKey, v.RefID)
		}
		return fmt.Errorf("inserting %s: %w", v.RefID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("inserting %s: %w", v.RefID, err)
	}
	v.ID = id
	return nil
}
