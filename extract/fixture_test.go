package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/verbatim/core"
)

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"meetings": [{"id": "m1", "name": null, "description": "text", "parent_id": "a1", "parent_type": "Accounts"}],
		"notes": [{"id": "n1", "description": "file", "parent_id": "a1", "parent_type": "Accounts", "filename": "x.pdf"}]
	}`), 0o600))

	f, err := LoadFixture(path)
	require.NoError(t, err)
	require.Len(t, f.Rows(core.ProvenanceMeetings), 1)
	assert.Nil(t, f.Meetings[0].Name)
	assert.Equal(t, "text", *f.Meetings[0].Description)
	assert.Empty(t, f.Rows(core.ProvenanceCalls))
	require.NotNil(t, f.Notes[0].Filename)
	assert.Equal(t, "x.pdf", *f.Notes[0].Filename)

	_, err = LoadFixture(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
