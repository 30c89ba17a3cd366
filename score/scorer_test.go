package score

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/verbatim/core"
	"github.com/poiesic/verbatim/index"
	"github.com/poiesic/verbatim/metrics"
	"github.com/poiesic/verbatim/storage"
	"github.com/poiesic/verbatim/storage/sqlite"
)

type fixture struct {
	storePath string
	repo      storage.VerbatimRepository
	searcher  *index.Searcher
}

func note(refID, title, content string) *core.Verbatim {
	return &core.Verbatim{
		RefID:       refID,
		Title:       title,
		Content:     content,
		Type:        core.ProvenanceNotes,
		ParentRefID: "a1",
		ParentType:  "Accounts",
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	storePath := filepath.Join(dir, "verbatim.sqlite")

	_, err := sqlite.SeedStore(ctx, storePath,
		note("r1", "Pricing call", "customer asked about pricing and discount"),
		note("r2", "Renewal", "contract renewal discussed, pricing unchanged"),
		note("r3", "Lunch", "nothing relevant here"),
	)
	require.NoError(t, err)

	repo, err := sqlite.Open(storePath)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	indexDir := filepath.Join(dir, "verbatim_index")
	_, err = index.Rebuild(ctx, repo, indexDir, index.WithPoolSize(1))
	require.NoError(t, err)

	searcher, err := index.Open(indexDir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { searcher.Close() })

	return &fixture{storePath: storePath, repo: repo, searcher: searcher}
}

// scores returns refid -> score for every row; unscored rows map to nil.
func (f *fixture) scores(t *testing.T) map[string]*float64 {
	t.Helper()
	out := make(map[string]*float64)
	require.NoError(t, f.repo.ForEachVerbatim(context.Background(), func(v *core.Verbatim) error {
		out[v.RefID] = v.Score
		return nil
	}))
	return out
}

func TestScore(t *testing.T) {
	f := newFixture(t)
	m := metrics.New()

	scorer, err := NewScorer(f.repo, f.searcher, WithMetrics(m))
	require.NoError(t, err)

	summary, err := scorer.Score(context.Background(), "pricing")
	require.NoError(t, err)
	assert.Equal(t, "pricing", summary.Query)
	assert.Equal(t, 2, summary.Matched)
	assert.Equal(t, 1, summary.Pages)

	scores := f.scores(t)
	require.NotNil(t, scores["r1"])
	require.NotNil(t, scores["r2"])
	assert.Nil(t, scores["r3"])
	assert.Greater(t, *scores["r1"], *scores["r2"])

	state, err := f.repo.ScoringState(context.Background())
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "pricing", state.Query)
	assert.Equal(t, 2, state.Matched)
}

func TestScore_ResetsPreviousScores(t *testing.T) {
	f := newFixture(t)
	scorer, err := NewScorer(f.repo, f.searcher)
	require.NoError(t, err)

	_, err = scorer.Score(context.Background(), "pricing")
	require.NoError(t, err)
	_, err = scorer.Score(context.Background(), "lunch")
	require.NoError(t, err)

	scores := f.scores(t)
	assert.Nil(t, scores["r1"])
	assert.Nil(t, scores["r2"])
	assert.NotNil(t, scores["r3"])
}

func TestScore_SmallPages(t *testing.T) {
	f := newFixture(t)
	scorer, err := NewScorer(f.repo, f.searcher, WithPageSize(1))
	require.NoError(t, err)

	summary, err := scorer.Score(context.Background(), "pricing OR lunch")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Matched)
	assert.Equal(t, 3, summary.Pages)
	for refID, score := range f.scores(t) {
		assert.NotNil(t, score, refID)
	}
}

func TestScore_StopWordsMatchNothing(t *testing.T) {
	f := newFixture(t)
	scorer, err := NewScorer(f.repo, f.searcher)
	require.NoError(t, err)

	_, err = scorer.Score(context.Background(), "pricing")
	require.NoError(t, err)

	summary, err := scorer.Score(context.Background(), "the and of")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Matched)
	assert.Equal(t, 0, summary.Pages)
	for refID, score := range f.scores(t) {
		assert.Nil(t, score, refID)
	}
}

func TestScore_SyntaxErrorLeavesScores(t *testing.T) {
	f := newFixture(t)
	scorer, err := NewScorer(f.repo, f.searcher)
	require.NoError(t, err)

	_, err = scorer.Score(context.Background(), "pricing")
	require.NoError(t, err)
	before := f.scores(t)

	_, err = scorer.Score(context.Background(), `pricing AND (discount`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, index.ErrQuerySyntax))
	var qe *index.QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, 12, qe.Offset)

	assert.Equal(t, before, f.scores(t))
}

func TestScore_StaleIndex(t *testing.T) {
	f := newFixture(t)
	scorer, err := NewScorer(f.repo, f.searcher)
	require.NoError(t, err)
	_, err = scorer.Score(context.Background(), "pricing")
	require.NoError(t, err)

	// Re-extract behind the index's back.
	_, err = sqlite.SeedStore(context.Background(), f.storePath, note("r1", "Pricing call", "pricing"))
	require.NoError(t, err)
	repo, err := sqlite.Open(f.storePath)
	require.NoError(t, err)
	defer repo.Close()

	stale, err := NewScorer(repo, f.searcher)
	require.NoError(t, err)
	_, err = stale.Score(context.Background(), "pricing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, index.ErrStaleIndex))
	assert.NotEmpty(t, errors.GetAllHints(err))
}

// missingRowRepo reports one refid as absent from the store.
type missingRowRepo struct {
	storage.VerbatimRepository
	missing string
}

func (r *missingRowRepo) SetScore(ctx context.Context, refID string, score float64) error {
	if refID == r.missing {
		return storage.ErrNotFound
	}
	return r.VerbatimRepository.SetScore(ctx, refID, score)
}

func TestScore_UnknownRefIDRollsBack(t *testing.T) {
	f := newFixture(t)
	scorer, err := NewScorer(f.repo, f.searcher)
	require.NoError(t, err)
	_, err = scorer.Score(context.Background(), "lunch")
	require.NoError(t, err)
	before := f.scores(t)

	broken, err := NewScorer(&missingRowRepo{VerbatimRepository: f.repo, missing: "r2"}, f.searcher)
	require.NoError(t, err)
	_, err = broken.Score(context.Background(), "pricing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, index.ErrStaleIndex))

	assert.Equal(t, before, f.scores(t))
	state, err := f.repo.ScoringState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "lunch", state.Query)
}

func TestNewScorer_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := NewScorer(nil, f.searcher)
	assert.Error(t, err)
	_, err = NewScorer(f.repo, nil)
	assert.Error(t, err)
	_, err = NewScorer(f.repo, f.searcher, WithPageSize(0))
	assert.Error(t, err)
}
