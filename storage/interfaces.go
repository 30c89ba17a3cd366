package storage

import (
	"context"

	"github.com/poiesic/verbatim/core"
)

// Repository provides common storage operations shared across all repositories.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// Repository calls made with the context passed to fn join the transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// VerbatimRepository provides access to a committed verbatim snapshot.
type VerbatimRepository interface {
	Repository

	// Snapshot returns the metadata of the extraction that produced the store.
	// Returns ErrNotFound if the store was never stamped.
	Snapshot(ctx context.Context) (*core.Snapshot, error)

	// CountVerbatims returns the number of rows in the store.
	CountVerbatims(ctx context.Context) (int, error)

	// ListVerbatims returns up to limit rows with ID greater than afterID,
	// ordered by ID. Pass 0 to start from the beginning.
	ListVerbatims(ctx context.Context, afterID int64, limit int) ([]*core.Verbatim, error)

	// ForEachVerbatim calls fn for every row in ID order.
	// Iteration stops at the first error returned by fn.
	ForEachVerbatim(ctx context.Context, fn func(v *core.Verbatim) error) error

	// ResetScores sets every score to NULL.
	ResetScores(ctx context.Context) error

	// SetScore stores the score of the row identified by refID.
	// Returns ErrNotFound if no row has that refid.
	SetScore(ctx context.Context, refID string, score float64) error

	// SaveScoringState records which query the current scores belong to.
	SaveScoringState(ctx context.Context, state *core.ScoringState) error

	// ScoringState returns the query context of the current scores.
	// Returns nil, nil if the store was never scored.
	ScoringState(ctx context.Context) (*core.ScoringState, error)
}

// SnapshotBuilder fills a new snapshot that replaces the store on Commit.
type SnapshotBuilder interface {
	// AddVerbatims inserts rows and returns them with IDs assigned.
	// Returns ErrDuplicateKey if a refid is already present.
	AddVerbatims(ctx context.Context, verbatims ...*core.Verbatim) ([]*core.Verbatim, error)

	// Commit stamps the snapshot and makes it the visible store.
	Commit(ctx context.Context, snapshot *core.Snapshot) error

	// Abort discards the snapshot. It is a no-op after Commit.
	Abort() error
}
