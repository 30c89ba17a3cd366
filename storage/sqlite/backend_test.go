package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/verbatim/core"
	"github.com/poiesic/verbatim/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVerbatim(refID, parent string, typ core.Provenance) *core.Verbatim {
	return &core.Verbatim{
		RefID:       refID,
		Title:       "title " + refID,
		Content:     "content " + refID,
		Type:        typ,
		ParentRefID: parent,
		ParentType:  "Accounts",
	}
}

func TestOpenBackend_Missing(t *testing.T) {
	_, err := OpenBackend(filepath.Join(t.TempDir(), "missing.sqlite"))
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrStoreNotFound)
}

func TestOpenBackend_Directory(t *testing.T) {
	_, err := OpenBackend(t.TempDir())
	assert.ErrorIs(t, err, storage.ErrStoreNotFound)
}

func TestOpenBackend_NotAStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.sqlite")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := OpenBackend(path)
	assert.ErrorIs(t, err, storage.ErrStoreNotFound)
}

func TestRebuild_CommitAndOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "verbatim.sqlite")

	snap, err := SeedStore(ctx, path,
		newVerbatim("m-1", "acc-1", core.ProvenanceMeetings),
		newVerbatim("c-1", "acc-1", core.ProvenanceCalls),
		newVerbatim("n-1", "acc-2", core.ProvenanceNotes),
	)
	require.NoError(t, err)

	_, err = os.Stat(path + buildingSuffix)
	assert.True(t, os.IsNotExist(err), "building file should be gone after commit")

	repo, err := Open(path)
	require.NoError(t, err)
	defer repo.Close()

	n, err := repo.CountVerbatims(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, 1, got.Counts[core.ProvenanceMeetings])
	assert.Equal(t, 1, got.Counts[core.ProvenanceCalls])
	assert.Equal(t, 1, got.Counts[core.ProvenanceNotes])
	assert.True(t, snap.ExtractedAt.Equal(got.ExtractedAt))
}

func TestRebuild_ReplacesPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "verbatim.sqlite")

	_, err := SeedStore(ctx, path, newVerbatim("old", "acc-1", core.ProvenanceMeetings))
	require.NoError(t, err)
	_, err = SeedStore(ctx, path, newVerbatim("new", "acc-1", core.ProvenanceCalls))
	require.NoError(t, err)

	repo, err := Open(path)
	require.NoError(t, err)
	defer repo.Close()

	var refs []string
	require.NoError(t, repo.ForEachVerbatim(ctx, func(v *core.Verbatim) error {
		refs = append(refs, v.RefID)
		return nil
	}))
	assert.Equal(t, []string{"new"}, refs)
}

func TestRebuild_DuplicateRefIDLeavesOldStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "verbatim.sqlite")

	_, err := SeedStore(ctx, path, newVerbatim("keep", "acc-1", core.ProvenanceMeetings))
	require.NoError(t, err)

	_, err = SeedStore(ctx, path,
		newVerbatim("dup", "acc-1", core.ProvenanceMeetings),
		newVerbatim("dup", "acc-2", core.ProvenanceNotes),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, statErr := os.Stat(path + buildingSuffix)
	assert.True(t, os.IsNotExist(statErr), "building file should be removed on abort")

	repo, err := Open(path)
	require.NoError(t, err)
	defer repo.Close()

	list, err := repo.ListVerbatims(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "keep", list[0].RefID)
}

func TestRebuild_AbortWithoutPreviousStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verbatim.sqlite")

	builder, err := Rebuild(path)
	require.NoError(t, err)
	_, err = builder.AddVerbatims(context.Background(), newVerbatim("a", "p", core.ProvenanceCalls))
	require.NoError(t, err)
	require.NoError(t, builder.Abort())
	require.NoError(t, builder.Abort())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = Open(path)
	assert.ErrorIs(t, err, storage.ErrStoreNotFound)
}

func TestRebuild_RejectsInvalidVerbatim(t *testing.T) {
	builder, err := Rebuild(filepath.Join(t.TempDir(), "verbatim.sqlite"))
	require.NoError(t, err)
	defer builder.Abort()

	bad := newVerbatim("x", "", core.ProvenanceCalls)
	_, err = builder.AddVerbatims(context.Background(), bad)
	assert.ErrorIs(t, err, core.ErrMissingParent)
}

func TestRebuild_CommitRequiresSnapshot(t *testing.T) {
	builder, err := Rebuild(filepath.Join(t.TempDir(), "verbatim.sqlite"))
	require.NoError(t, err)
	defer builder.Abort()

	err = builder.Commit(context.Background(), nil)
	assert.ErrorIs(t, err, storage.ErrInvalidArgument)
}
