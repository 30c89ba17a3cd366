package sqlite

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/verbatim/core"
	"github.com/poiesic/verbatim/storage"
)

func readMeta(ctx context.Context, q querier) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("reading meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("reading meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func writeMeta(ctx context.Context, q querier, meta map[string]string) error {
	for k, v := range meta {
		_, err := q.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v)
		if err != nil {
			return fmt.Errorf("writing meta %s: %w", k, err)
		}
	}
	return nil
}

func snapshotToMeta(s *core.Snapshot) map[string]string {
	meta := map[string]string{
		metaSnapshotID:  s.ID,
		metaExtractedAt: s.ExtractedAt.UTC().Format(time.RFC3339Nano),
	}
	for p, n := range s.Counts {
		meta[metaCountPrefix+string(p)] = strconv.Itoa(n)
	}
	return meta
}

func snapshotFromMeta(meta map[string]string) (*core.Snapshot, error) {
	id, ok := meta[metaSnapshotID]
	if !ok {
		return nil, fmt.Errorf("%w: snapshot stamp", storage.ErrNotFound)
	}
	extractedAt, err := time.Parse(time.RFC3339Nano, meta[metaExtractedAt])
	if err != nil {
		return nil, fmt.Errorf("%w: extracted_at: %w", storage.ErrCorruptMetadata, err)
	}

	s := &core.Snapshot{
		ID:          id,
		ExtractedAt: extractedAt,
		Counts:      make(map[core.Provenance]int),
	}
	for k, v := range meta {
		p, ok := strings.CutPrefix(k, metaCountPrefix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", storage.ErrCorruptMetadata, k, err)
		}
		s.Counts[core.Provenance(p)] = n
	}
	return s, nil
}

func scoringStateToMeta(s *core.ScoringState) map[string]string {
	return map[string]string{
		metaScoringQuery:   s.Query,
		metaScoredAt:       s.ScoredAt.UTC().Format(time.RFC3339Nano),
		metaScoringMatched: strconv.Itoa(s.Matched),
	}
}

func scoringStateFromMeta(meta map[string]string) (*core.ScoringState, error) {
	query, ok := meta[metaScoringQuery]
	if !ok {
		return nil, nil
	}
	scoredAt, err := time.Parse(time.RFC3339Nano, meta[metaScoredAt])
	if err != nil {
		return nil, fmt.Errorf("%w: scored_at: %w", storage.ErrCorruptMetadata, err)
	}
	matched, err := strconv.Atoi(meta[metaScoringMatched])
	if err != nil {
		return nil, fmt.Errorf("%w: matched: %w", storage.ErrCorruptMetadata, err)
	}
	return &core.ScoringState{Query: query, ScoredAt: scoredAt, Matched: matched}, nil
}
