// Package report groups scored verbatims by their parent CRM entity and
// renders the ranked groups as JSON.
package report

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/poiesic/verbatim/core"
	"github.com/poiesic/verbatim/metrics"
	"github.com/poiesic/verbatim/storage"
)

// Reporter builds reports from a scored store.
type Reporter struct {
	repo    storage.VerbatimRepository
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reporter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records report sizes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reporter) {
		r.metrics = m
	}
}

// New creates a reporter reading from repo.
func New(repo storage.VerbatimRepository, opts ...Option) *Reporter {
	r := &Reporter{repo: repo, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Build reads every row of the store and returns at most limit groups,
// filtered by format.
func (r *Reporter) Build(ctx context.Context, format core.ReportFormat, limit int) ([]core.ReportGroup, error) {
	if _, err := core.ParseReportFormat(string(format)); err != nil {
		return nil, err
	}
	if err := core.ValidateLimit(limit); err != nil {
		return nil, err
	}

	var rows []core.ScoredVerbatim
	err := r.repo.ForEachVerbatim(ctx, func(v *core.Verbatim) error {
		rows = append(rows, toScored(v))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading scored verbatims")
	}

	groups := Group(rows, r.logger)
	groups = Format(groups, format)
	if len(groups) > limit {
		groups = groups[:limit]
	}

	r.metrics.RecordReport(len(groups))
	r.logger.Debug("report built", "rows", len(rows), "groups", len(groups), "format", format, "limit", limit)
	return groups, nil
}

func toScored(v *core.Verbatim) core.ScoredVerbatim {
	var score float64
	if v.Score != nil {
		score = *v.Score
	}
	return core.ScoredVerbatim{
		ParentRefID: v.ParentRefID,
		ParentType:  v.ParentType,
		RefID:       v.RefID,
		Title:       v.Title,
		Content:     v.Content,
		Type:        v.Type,
		Score:       score,
	}
}

// Group aggregates rows by parent refid. The group type is the parent type of
// the first row seen; rows disagreeing with it are logged. Members are sorted
// by score descending then refid, and groups by aggregate score descending
// then parent refid.
func Group(rows []core.ScoredVerbatim, logger *slog.Logger) []core.ReportGroup {
	if logger == nil {
		logger = slog.Default()
	}

	index := make(map[string]int)
	var groups []core.ReportGroup
	for _, row := range rows {
		i, ok := index[row.ParentRefID]
		if !ok {
			i = len(groups)
			index[row.ParentRefID] = i
			groups = append(groups, core.ReportGroup{RefID: row.ParentRefID, Type: row.ParentType})
		} else if groups[i].Type != row.ParentType {
			logger.Warn("mixed parent types in group",
				"parent_refid", row.ParentRefID,
				"type", groups[i].Type,
				"conflicting_type", row.ParentType,
				"refid", row.RefID)
		}
		groups[i].Verbatims = append(groups[i].Verbatims, row)
	}

	for i := range groups {
		g := &groups[i]
		slices.SortFunc(g.Verbatims, func(a, b core.ScoredVerbatim) int {
			if c := cmp.Compare(b.Score, a.Score); c != 0 {
				return c
			}
			return cmp.Compare(a.RefID, b.RefID)
		})
		for _, v := range g.Verbatims {
			g.Score += v.Score
		}
	}

	slices.SortFunc(groups, func(a, b core.ReportGroup) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.RefID, b.RefID)
	})
	return groups
}

// Format filters group members: minimal drops them, extended drops
// zero-score members and full keeps everything.
func Format(groups []core.ReportGroup, format core.ReportFormat) []core.ReportGroup {
	out := make([]core.ReportGroup, len(groups))
	for i, g := range groups {
		switch format {
		case core.FormatMinimal:
			g.Verbatims = nil
		case core.FormatExtended:
			kept := make([]core.ScoredVerbatim, 0, len(g.Verbatims))
			for _, v := range g.Verbatims {
				if v.Score != 0 {
					kept = append(kept, v)
				}
			}
			g.Verbatims = kept
		}
		out[i] = g
	}
	return out
}
