package score

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/poiesic/verbatim/core"
	"github.com/poiesic/verbatim/index"
	"github.com/poiesic/verbatim/metrics"
	"github.com/poiesic/verbatim/storage"
)

// DefaultPageSize is the number of hits retrieved from the index at a time.
const DefaultPageSize = 20

// Summary describes a completed scoring pass.
type Summary struct {
	Query   string
	Matched int
	Pages   int
	Elapsed time.Duration
}

// Scorer persists query scores for every document of a store.
type Scorer struct {
	repo     storage.VerbatimRepository
	searcher *index.Searcher
	pageSize int
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer) error

// WithPageSize sets the number of hits retrieved per index page.
// Default is DefaultPageSize.
func WithPageSize(size int) Option {
	return func(s *Scorer) error {
		if size < 1 {
			return errors.Newf("page size must be positive, got %d", size)
		}
		s.pageSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMetrics records scoring counters in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scorer) error {
		s.metrics = m
		return nil
	}
}

// NewScorer creates a scorer writing scores for searcher's hits into repo.
func NewScorer(repo storage.VerbatimRepository, searcher *index.Searcher, opts ...Option) (*Scorer, error) {
	if repo == nil {
		return nil, index.ErrRepositoryRequired
	}
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}

	s := &Scorer{
		repo:     repo,
		searcher: searcher,
		pageSize: DefaultPageSize,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Score parses query, ranks every matching document and replaces the
// store's scores with the results. A malformed query or a stale index fails
// before any score is touched.
func (s *Scorer) Score(ctx context.Context, query string) (*Summary, error) {
	start := s.now()

	q, err := index.Parse(query)
	if err != nil {
		return nil, err
	}

	if err := s.checkSnapshot(ctx); err != nil {
		return nil, err
	}

	results, err := s.searcher.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Query:   query,
		Matched: results.Len(),
		Pages:   results.Pages(s.pageSize),
	}

	err = s.repo.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.ResetScores(ctx); err != nil {
			return errors.Wrap(err, "resetting scores")
		}
		for page := 1; page <= summary.Pages; page++ {
			if err := s.writePage(ctx, results, page); err != nil {
				return err
			}
		}
		return s.repo.SaveScoringState(ctx, &core.ScoringState{
			Query:    query,
			ScoredAt: start.UTC(),
			Matched:  summary.Matched,
		})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scoring %q", query)
	}

	summary.Elapsed = s.now().Sub(start)
	s.metrics.RecordScore(summary.Matched, summary.Pages)
	s.logger.Info("scoring complete",
		"query", query,
		"parsed", q.String(),
		"matched", summary.Matched,
		"pages", summary.Pages,
		"elapsed", summary.Elapsed)
	return summary, nil
}

func (s *Scorer) writePage(ctx context.Context, results *index.Results, page int) error {
	hits, err := results.Page(page, s.pageSize)
	if err != nil {
		return errors.Wrapf(err, "loading page %d", page)
	}
	for _, hit := range hits {
		if err := s.repo.SetScore(ctx, hit.RefID, hit.Score); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return errors.WithHint(
					errors.Wrapf(index.ErrStaleIndex, "indexed refid %s is not in the store", hit.RefID),
					"rebuild the index with the index command")
			}
			return errors.Wrapf(err, "scoring %s", hit.RefID)
		}
	}
	s.logger.Debug("scored page", "page", page, "hits", len(hits))
	return nil
}

// checkSnapshot fails with index.ErrStaleIndex when the index was built from
// a different extraction than the one in the store.
func (s *Scorer) checkSnapshot(ctx context.Context) error {
	snapshot, err := s.repo.Snapshot(ctx)
	if err != nil {
		return errors.Wrap(err, "reading store snapshot")
	}
	indexed := s.searcher.Metadata().SnapshotID
	if indexed != snapshot.ID {
		return errors.WithHint(
			errors.Wrapf(index.ErrStaleIndex, "index built from snapshot %s, store holds %s", indexed, snapshot.ID),
			"rebuild the index with the index command")
	}
	return nil
}
