package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/segmentio/ksuid"
)

// ID fingerprints indexed text. Identical text yields identical IDs.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Provenance identifies the CRM table a verbatim was extracted from.
type Provenance string

const (
	// ProvenanceMeetings tags rows extracted from the meetings table.
	ProvenanceMeetings Provenance = "meetings"
	// ProvenanceCalls tags rows extracted from the calls table.
	ProvenanceCalls Provenance = "calls"
	// ProvenanceNotes tags rows extracted from the notes table.
	ProvenanceNotes Provenance = "notes"
)

// Provenances lists every provenance in extraction order.
var Provenances = []Provenance{ProvenanceMeetings, ProvenanceCalls, ProvenanceNotes}

// RawRecord is a single row as returned by the CRM source, before eligibility
// filtering and normalization. Nullable source columns are pointers.
type RawRecord struct {
	Type        Provenance
	RefID       string
	Name        *string
	Description *string
	ParentID    *string
	ParentType  *string
	Filename    *string // only populated for notes
}

// Verbatim is a normalized free-text record as stored in the relational store.
type Verbatim struct {
	ID          int64 // surrogate key, assigned on insertion
	RefID       string
	Title       string
	Content     string
	Type        Provenance
	ParentRefID string
	ParentType  string
	Score       *float64 // nil until scored against the current query
}

// ScoredVerbatim is a verbatim as seen by the reporter: the score is never null.
type ScoredVerbatim struct {
	ParentRefID string     `json:"parent_refid"`
	ParentType  string     `json:"parent_type"`
	RefID       string     `json:"refid"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Type        Provenance `json:"type"`
	Score       float64    `json:"score"`
}

// ReportGroup aggregates the verbatims sharing a parent entity.
// Verbatims is nil when the report format drops member lists.
type ReportGroup struct {
	RefID     string           `json:"refid"`
	Type      string           `json:"type"`
	Score     float64          `json:"score"`
	Verbatims []ScoredVerbatim `json:"verbatim"`
}

// Snapshot describes one extraction run of the relational store.
type Snapshot struct {
	ID          string
	ExtractedAt time.Time
	Counts      map[Provenance]int
}

// NewSnapshot returns an empty snapshot with a fresh KSUID.
func NewSnapshot(now time.Time) *Snapshot {
	return &Snapshot{
		ID:          ksuid.New().String(),
		ExtractedAt: now.UTC(),
		Counts:      make(map[Provenance]int, len(Provenances)),
	}
}

// Total returns the number of verbatims in the snapshot.
func (s *Snapshot) Total() int {
	total := 0
	for _, n := range s.Counts {
		total += n
	}
	return total
}

// ScoringState records which query the current scores belong to.
type ScoringState struct {
	Query    string
	ScoredAt time.Time
	Matched  int
}
