package extract

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/verbatim/core"
	"github.com/poiesic/verbatim/metrics"
	"github.com/poiesic/verbatim/storage"
	"github.com/poiesic/verbatim/storage/sqlite"
)

func ptr(s string) *string { return &s }

func testFixture() *Fixture {
	return &Fixture{
		Meetings: []FixtureRow{
			{ID: "m1", Name: ptr("Kickoff"), Description: ptr(`  Discussed "pricing"   and 'terms' `), ParentID: ptr("a1"), ParentType: ptr("Accounts")},
			{ID: "m2", Name: ptr("Empty"), Description: ptr(""), ParentID: ptr("a1"), ParentType: ptr("Accounts")},
			{ID: "m3", Name: ptr("Orphan"), Description: ptr("no parent"), ParentType: ptr("Accounts")},
		},
		Calls: []FixtureRow{
			{ID: "c1", Description: ptr("Call about renewal"), ParentID: ptr("a1"), ParentType: ptr("Accounts")},
			{ID: "c2", Name: ptr("Blank"), Description: ptr("   "), ParentID: ptr("a2"), ParentType: ptr("Accounts")},
		},
		Notes: []FixtureRow{
			{ID: "n1", Name: ptr("Note"), Description: ptr("Note text"), ParentID: ptr("l1"), ParentType: ptr("Leads")},
			{ID: "n2", Name: ptr("Attachment"), Description: ptr("see file"), ParentID: ptr("l1"), ParentType: ptr("Leads"), Filename: ptr("x.pdf")},
		},
	}
}

// fakeCRM writes f to a SQLite database and returns a source reading it.
func fakeCRM(t *testing.T, f *Fixture) *SQLSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crm.sqlite")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	require.NoError(t, SeedFixture(context.Background(), db, f))
	require.NoError(t, db.Close())

	cfg := &Config{Source: SourceConfig{Driver: DriverSQLite, DSN: path}}
	cfg.ApplyDefaults()
	src, err := OpenSource(context.Background(), &cfg.Source, nil)
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	return src
}

func readStore(t *testing.T, path string) []*core.Verbatim {
	t.Helper()
	repo, err := sqlite.Open(path)
	require.NoError(t, err)
	defer repo.Close()

	var rows []*core.Verbatim
	require.NoError(t, repo.ForEachVerbatim(context.Background(), func(v *core.Verbatim) error {
		rows = append(rows, v)
		return nil
	}))
	return rows
}

func storeSnapshot(t *testing.T, path string) *core.Snapshot {
	t.Helper()
	repo, err := sqlite.Open(path)
	require.NoError(t, err)
	defer repo.Close()
	snap, err := repo.Snapshot(context.Background())
	require.NoError(t, err)
	return snap
}

func TestExtract(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "verbatim.sqlite")
	m := metrics.New()
	var progressOut bytes.Buffer

	e, err := NewExtractor(fakeCRM(t, testFixture()), WithMetrics(m), WithProgress(&progressOut), WithBatchSize(1))
	require.NoError(t, err)

	summary, err := e.Extract(context.Background(), storePath)
	require.NoError(t, err)
	assert.Equal(t, map[core.Provenance]int{
		core.ProvenanceMeetings: 1,
		core.ProvenanceCalls:    1,
		core.ProvenanceNotes:    1,
	}, summary.Counts)
	assert.Equal(t, 3, summary.Total())
	assert.Equal(t, 1, summary.Skipped)
	assert.Contains(t, progressOut.String(), "Extracting meetings:")

	rows := readStore(t, storePath)
	require.Len(t, rows, 3)

	assert.Equal(t, "m1", rows[0].RefID)
	assert.Equal(t, "Kickoff", rows[0].Title)
	assert.Equal(t, "Discussed pricing and terms", rows[0].Content)
	assert.Equal(t, core.ProvenanceMeetings, rows[0].Type)
	assert.Equal(t, "a1", rows[0].ParentRefID)
	assert.Equal(t, "Accounts", rows[0].ParentType)
	assert.Nil(t, rows[0].Score)

	assert.Equal(t, "c1", rows[1].RefID)
	assert.Equal(t, "Call about renewal", rows[1].Title, "title falls back to content")
	assert.Equal(t, core.ProvenanceCalls, rows[1].Type)

	assert.Equal(t, "n1", rows[2].RefID)
	assert.Equal(t, "Leads", rows[2].ParentType)

	snap := storeSnapshot(t, storePath)
	assert.Equal(t, summary.SnapshotID, snap.ID)
	assert.Equal(t, 3, snap.Total())
}

func TestExtract_Idempotent(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "verbatim.sqlite")
	src := fakeCRM(t, testFixture())

	e, err := NewExtractor(src)
	require.NoError(t, err)

	first, err := e.Extract(context.Background(), storePath)
	require.NoError(t, err)
	before := readStore(t, storePath)

	second, err := e.Extract(context.Background(), storePath)
	require.NoError(t, err)
	after := readStore(t, storePath)

	assert.Equal(t, before, after)
	assert.NotEqual(t, first.SnapshotID, second.SnapshotID)
}

func TestExtract_StripHTML(t *testing.T) {
	f := &Fixture{Notes: []FixtureRow{
		{ID: "n1", Name: ptr("<b>Bold</b> title"), Description: ptr("<p>Fish &amp; chips</p><p>again</p>"), ParentID: ptr("a1"), ParentType: ptr("Accounts")},
	}}
	storePath := filepath.Join(t.TempDir(), "verbatim.sqlite")

	e, err := NewExtractor(fakeCRM(t, f), WithStripHTML(true))
	require.NoError(t, err)
	_, err = e.Extract(context.Background(), storePath)
	require.NoError(t, err)

	rows := readStore(t, storePath)
	require.Len(t, rows, 1)
	assert.Equal(t, "Bold title", rows[0].Title)
	assert.Equal(t, "Fish & chips again", rows[0].Content)
}

// stubSource serves canned rows and can fail on one provenance.
type stubSource struct {
	rows   map[core.Provenance][]*core.RawRecord
	failOn core.Provenance
	err    error
}

func (s *stubSource) Rows(ctx context.Context, p core.Provenance, fn func(*core.RawRecord) error) error {
	if p == s.failOn {
		return s.err
	}
	for _, raw := range s.rows[p] {
		if err := fn(raw); err != nil {
			return err
		}
	}
	return nil
}

func (s *stubSource) Close() error { return nil }

func rawNote(refID, description string) *core.RawRecord {
	return &core.RawRecord{
		Type:        core.ProvenanceNotes,
		RefID:       refID,
		Description: ptr(description),
		ParentID:    ptr("a1"),
		ParentType:  ptr("Accounts"),
	}
}

func TestExtract_FailureKeepsPreviousStore(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "verbatim.sqlite")

	good, err := NewExtractor(fakeCRM(t, testFixture()))
	require.NoError(t, err)
	summary, err := good.Extract(context.Background(), storePath)
	require.NoError(t, err)

	boom := errors.New("connection reset")
	bad, err := NewExtractor(&stubSource{failOn: core.ProvenanceCalls, err: boom})
	require.NoError(t, err)
	_, err = bad.Extract(context.Background(), storePath)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, summary.SnapshotID, storeSnapshot(t, storePath).ID)
	assert.Len(t, readStore(t, storePath), 3)
	_, err = os.Stat(storePath + ".building")
	assert.True(t, os.IsNotExist(err))
}

func TestExtract_DuplicateRefID(t *testing.T) {
	src := &stubSource{rows: map[core.Provenance][]*core.RawRecord{
		core.ProvenanceNotes: {rawNote("dup", "first"), rawNote("dup", "second")},
	}}
	storePath := filepath.Join(t.TempDir(), "verbatim.sqlite")

	e, err := NewExtractor(src)
	require.NoError(t, err)
	_, err = e.Extract(context.Background(), storePath)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = os.Stat(storePath)
	assert.True(t, os.IsNotExist(err))
}

func TestExtract_EmptySource(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "verbatim.sqlite")

	e, err := NewExtractor(&stubSource{})
	require.NoError(t, err)
	summary, err := e.Extract(context.Background(), storePath)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total())
	assert.Empty(t, readStore(t, storePath))
}

func TestExtract_MissingTables(t *testing.T) {
	crmPath := filepath.Join(t.TempDir(), "empty.sqlite")
	db, err := sql.Open("sqlite", crmPath)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE unrelated (id INTEGER)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	cfg := &Config{Source: SourceConfig{Driver: DriverSQLite, DSN: crmPath}}
	cfg.ApplyDefaults()
	src, err := OpenSource(context.Background(), &cfg.Source, nil)
	require.NoError(t, err)
	defer src.Close()

	e, err := NewExtractor(src)
	require.NoError(t, err)
	_, err = e.Extract(context.Background(), filepath.Join(t.TempDir(), "verbatim.sqlite"))
	assert.True(t, errors.Is(err, ErrSourceUnavailable), "got %v", err)
}

func TestOpenSource_Unreachable(t *testing.T) {
	cfg := &Config{Source: SourceConfig{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "missing-dir", "crm.sqlite"),
	}}
	cfg.ApplyDefaults()

	_, err := OpenSource(context.Background(), &cfg.Source, nil)
	assert.True(t, errors.Is(err, ErrSourceUnavailable), "got %v", err)
}

func TestNewExtractor_Options(t *testing.T) {
	_, err := NewExtractor(nil)
	assert.Error(t, err)

	_, err = NewExtractor(&stubSource{}, WithBatchSize(0))
	assert.Error(t, err)
}
