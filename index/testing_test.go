package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/poiesic/verbatim/core"
	"github.com/poiesic/verbatim/storage"
	"github.com/poiesic/verbatim/storage/sqlite"
)

func doc(refID, title, content string) *core.Verbatim {
	return &core.Verbatim{
		RefID:       refID,
		Title:       title,
		Content:     content,
		Type:        core.ProvenanceNotes,
		ParentRefID: "parent-" + refID,
		ParentType:  "Accounts",
	}
}

// seedStore creates a store holding docs and returns it opened.
func seedStore(t *testing.T, docs ...*core.Verbatim) (storage.VerbatimRepository, *core.Snapshot) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "verbatim.sqlite")
	snap, err := sqlite.SeedStore(context.Background(), path, docs...)
	require.NoError(t, err)

	repo, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo, snap
}

// buildIndex indexes docs and returns an open searcher.
func buildIndex(t *testing.T, docs ...*core.Verbatim) *Searcher {
	t.Helper()
	repo, _ := seedStore(t, docs...)
	dir := filepath.Join(t.TempDir(), "verbatim_index")

	_, err := Rebuild(context.Background(), repo, dir, WithPoolSize(2))
	require.NoError(t, err)

	s, err := Open(dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// search parses and runs query, returning every hit.
func search(t *testing.T, s *Searcher, query string) []Hit {
	t.Helper()
	q, err := Parse(query)
	require.NoError(t, err)
	results, err := s.Search(context.Background(), q)
	require.NoError(t, err)
	if results.Len() == 0 {
		return nil
	}
	hits, err := results.Page(1, results.Len())
	require.NoError(t, err)
	return hits
}

func refIDs(hits []Hit) []string {
	var ids []string
	for _, h := range hits {
		ids = append(ids, h.RefID)
	}
	return ids
}
