package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/verbatim/core"
	"github.com/poiesic/verbatim/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededRepo(t *testing.T, verbatims ...*core.Verbatim) storage.VerbatimRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "verbatim.sqlite")
	_, err := SeedStore(context.Background(), path, verbatims...)
	require.NoError(t, err)

	repo, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestListVerbatims_Keyset(t *testing.T) {
	ctx := context.Background()
	var rows []*core.Verbatim
	for _, ref := range []string{"a", "b", "c", "d", "e"} {
		rows = append(rows, newVerbatim(ref, "p", core.ProvenanceNotes))
	}
	repo := seededRepo(t, rows...)

	var seen []string
	var after int64
	for {
		page, err := repo.ListVerbatims(ctx, after, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		assert.LessOrEqual(t, len(page), 2)
		for _, v := range page {
			assert.Greater(t, v.ID, after)
			seen = append(seen, v.RefID)
		}
		after = page[len(page)-1].ID
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, seen)
}

func TestListVerbatims_InvalidLimit(t *testing.T) {
	repo := seededRepo(t)
	_, err := repo.ListVerbatims(context.Background(), 0, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidArgument)
}

func TestScores_SetAndReset(t *testing.T) {
	ctx := context.Background()
	repo := seededRepo(t,
		newVerbatim("a", "p", core.ProvenanceMeetings),
		newVerbatim("b", "p", core.ProvenanceMeetings),
	)

	require.NoError(t, repo.SetScore(ctx, "a", 2.5))

	scores := map[string]*float64{}
	collect := func(v *core.Verbatim) error {
		scores[v.RefID] = v.Score
		return nil
	}
	require.NoError(t, repo.ForEachVerbatim(ctx, collect))
	require.NotNil(t, scores["a"])
	assert.InDelta(t, 2.5, *scores["a"], 1e-9)
	assert.Nil(t, scores["b"])

	require.NoError(t, repo.ResetScores(ctx))
	require.NoError(t, repo.ForEachVerbatim(ctx, collect))
	assert.Nil(t, scores["a"])
	assert.Nil(t, scores["b"])
}

func TestSetScore_UnknownRefID(t *testing.T) {
	repo := seededRepo(t, newVerbatim("a", "p", core.ProvenanceMeetings))
	err := repo.SetScore(context.Background(), "ghost", 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	repo := seededRepo(t, newVerbatim("a", "p", core.ProvenanceMeetings))
	require.NoError(t, repo.SetScore(ctx, "a", 1))

	boom := errors.New("boom")
	err := repo.WithTransaction(ctx, func(ctx context.Context) error {
		if err := repo.ResetScores(ctx); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	list, err := repo.ListVerbatims(ctx, 0, 10)
	require.NoError(t, err)
	require.NotNil(t, list[0].Score, "reset must be rolled back")
	assert.InDelta(t, 1.0, *list[0].Score, 1e-9)
}

func TestScoringState(t *testing.T) {
	ctx := context.Background()
	repo := seededRepo(t)

	state, err := repo.ScoringState(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveScoringState(ctx, &core.ScoringState{Query: "pricing", ScoredAt: now, Matched: 3}))
	require.NoError(t, repo.SaveScoringState(ctx, &core.ScoringState{Query: "renewal", ScoredAt: now, Matched: 1}))

	state, err = repo.ScoringState(ctx)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "renewal", state.Query)
	assert.Equal(t, 1, state.Matched)
	assert.True(t, now.Equal(state.ScoredAt))
}
