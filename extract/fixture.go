package extract

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/poiesic/verbatim/core"
)

// FixtureRow is one CRM row of a fixture file. Nil fields are stored as NULL.
type FixtureRow struct {
	ID          string  `json:"id"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ParentID    *string `json:"parent_id"`
	ParentType  *string `json:"parent_type"`
	Filename    *string `json:"filename,omitempty"`
}

// Fixture holds CRM rows per table, used to run the pipeline without MySQL.
type Fixture struct {
	Meetings []FixtureRow `json:"meetings"`
	Calls    []FixtureRow `json:"calls"`
	Notes    []FixtureRow `json:"notes"`
}

// Rows returns the fixture rows of provenance p.
func (f *Fixture) Rows(p core.Provenance) []FixtureRow {
	switch p {
	case core.ProvenanceMeetings:
		return f.Meetings
	case core.ProvenanceCalls:
		return f.Calls
	case core.ProvenanceNotes:
		return f.Notes
	}
	return nil
}

// LoadFixture reads a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading fixture %s", path)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parsing fixture %s", path)
	}
	return &f, nil
}

const crmSchema = `
CREATE TABLE IF NOT EXISTS meetings (
	id TEXT PRIMARY KEY,
	name TEXT,
	description TEXT,
	parent_id TEXT,
	parent_type TEXT
);
CREATE TABLE IF NOT EXISTS calls (
	id TEXT PRIMARY KEY,
	name TEXT,
	description TEXT,
	parent_id TEXT,
	parent_type TEXT
);
CREATE TABLE IF NOT EXISTS notes (
	id TEXT PRIMARY KEY,
	name TEXT,
	description TEXT,
	parent_id TEXT,
	parent_type TEXT,
	filename TEXT
);
`

// SeedFixture creates the CRM tables in db and inserts every fixture row.
func SeedFixture(ctx context.Context, db *sql.DB, f *Fixture) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning fixture transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, crmSchema); err != nil {
		return errors.Wrap(err, "creating CRM tables")
	}

	for _, p := range core.Provenances {
		for _, row := range f.Rows(p) {
			var err error
			if p == core.ProvenanceNotes {
				_, err = tx.ExecContext(ctx,
					`INSERT INTO notes (id, name, description, parent_id, parent_type, filename) VALUES (?, ?, ?, ?, ?, ?)`,
					row.ID, row.Name, row.Description, row.ParentID, row.ParentType, row.Filename)
			} else {
				_, err = tx.ExecContext(ctx,
					`INSERT INTO `+string(p)+` (id, name, description, parent_id, parent_type) VALUES (?, ?, ?, ?, ?)`,
					row.ID, row.Name, row.Description, row.ParentID, row.ParentType)
			}
			if err != nil {
				return errors.Wrapf(err, "inserting %s row %s", p, row.ID)
			}
		}
	}
	return tx.Commit()
}
