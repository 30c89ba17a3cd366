package sqlite

const schema = `
CREATE TABLE verbatim(
    id INTEGER PRIMARY KEY,
    refid TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    type TEXT NOT NULL,
    parent_refid TEXT NOT NULL,
    parent_type TEXT NOT NULL,
    score REAL
);
CREATE INDEX index_parent_refid ON verbatim(parent_refid);
CREATE TABLE meta(
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Meta keys
const (
	metaSnapshotID     = "snapshot.id"
	metaExtractedAt    = "snapshot.extracted_at"
	metaCountPrefix    = "snapshot.count."
	metaScoringQuery   = "scoring.query"
	metaScoredAt       = "scoring.scored_at"
	metaScoringMatched = "scoring.matched"
)

const verbatimColumns = `id, refid, title, content, type, parent_refid, parent_type, score`
