package extract

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/poiesic/verbatim/core"
	"github.com/poiesic/verbatim/metrics"
	"github.com/poiesic/verbatim/progress"
	"github.com/poiesic/verbatim/storage/sqlite"
)

// DefaultBatchSize is the number of rows inserted per store transaction.
const DefaultBatchSize = 500

// Summary describes a completed extraction.
type Summary struct {
	SnapshotID string
	Counts     map[core.Provenance]int
	Skipped    int
	Elapsed    time.Duration
}

// Total returns the number of extracted verbatims.
func (s *Summary) Total() int {
	total := 0
	for _, n := range s.Counts {
		total += n
	}
	return total
}

// Extractor copies eligible CRM rows into a fresh verbatim store.
type Extractor struct {
	source    Source
	logger    *slog.Logger
	progress  io.Writer
	metrics   *metrics.Metrics
	stripper  *core.HTMLStripper
	batchSize int
	now       func() time.Time
}

// Option configures an Extractor.
type Option func(*Extractor) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithProgress sets where progress lines are written. Default is none.
func WithProgress(w io.Writer) Option {
	return func(e *Extractor) error {
		e.progress = w
		return nil
	}
}

// WithMetrics records extraction counters in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extractor) error {
		e.metrics = m
		return nil
	}
}

// WithStripHTML removes HTML markup from descriptions and names before
// normalization.
func WithStripHTML(strip bool) Option {
	return func(e *Extractor) error {
		if strip {
			e.stripper = core.NewHTMLStripper()
		} else {
			e.stripper = nil
		}
		return nil
	}
}

// WithBatchSize sets the number of rows inserted per store transaction.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(e *Extractor) error {
		if size < 1 {
			return errors.Newf("batch size must be positive, got %d", size)
		}
		e.batchSize = size
		return nil
	}
}

// NewExtractor creates an extractor reading from source.
func NewExtractor(source Source, opts ...Option) (*Extractor, error) {
	if source == nil {
		return nil, errors.New("source is required")
	}
	e := &Extractor{
		source:    source,
		logger:    slog.Default(),
		batchSize: DefaultBatchSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Extract replaces the store at storePath with every eligible source row,
// meetings first, then calls, then notes. On any failure the previous store
// is left untouched.
func (e *Extractor) Extract(ctx context.Context, storePath string) (*Summary, error) {
	start := e.now()

	builder, err := sqlite.Rebuild(storePath, sqlite.WithLogger(e.logger))
	if err != nil {
		return nil, errors.Wrap(err, "starting store snapshot")
	}
	defer builder.Abort()

	snapshot := core.NewSnapshot(start)
	summary := &Summary{
		SnapshotID: snapshot.ID,
		Counts:     make(map[core.Provenance]int, len(core.Provenances)),
	}

	for _, p := range core.Provenances {
		n, skipped, err := e.extractType(ctx, builder, p)
		if err != nil {
			return nil, errors.Wrapf(err, "extracting %s", p)
		}
		snapshot.Counts[p] = n
		summary.Counts[p] = n
		summary.Skipped += skipped
		e.metrics.RecordExtracted(p, n)
		e.metrics.RecordSkipped(skipped)
		e.logger.Info("extracted verbatims", "type", p, "count", n, "skipped", skipped)
	}

	if err := builder.Commit(ctx, snapshot); err != nil {
		return nil, errors.Wrap(err, "committing store snapshot")
	}

	summary.Elapsed = e.now().Sub(start)
	e.logger.Info("extraction complete",
		"path", storePath,
		"snapshot", summary.SnapshotID,
		"total", summary.Total(),
		"skipped", summary.Skipped,
		"elapsed", summary.Elapsed)
	return summary, nil
}

func (e *Extractor) extractType(ctx context.Context, builder *sqlite.Builder, p core.Provenance) (int, int, error) {
	tracker := progress.NewTracker(e.progress, "Extracting "+string(p), 0, e.batchSize).WithUnit("rows")
	tracker.Start()
	defer tracker.Finish()

	var count, skipped int
	batch := make([]*core.Verbatim, 0, e.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := builder.AddVerbatims(ctx, batch...); err != nil {
			return err
		}
		count += len(batch)
		batch = batch[:0]
		return nil
	}

	err := e.source.Rows(ctx, p, func(raw *core.RawRecord) error {
		tracker.Increment(1)
		v, ok := e.toVerbatim(raw)
		if !ok {
			skipped++
			e.logger.Debug("skipping ineligible row", "type", p, "refid", raw.RefID)
			return nil
		}
		batch = append(batch, v)
		if len(batch) >= e.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	if err := flush(); err != nil {
		return 0, 0, err
	}
	return count, skipped, nil
}

// toVerbatim applies eligibility and normalization to a raw row. A blank name
// falls back to the content as title.
func (e *Extractor) toVerbatim(raw *core.RawRecord) (*core.Verbatim, bool) {
	if !core.Eligible(raw) {
		return nil, false
	}

	content := e.normalize(*raw.Description)
	if content == "" {
		return nil, false
	}
	title := ""
	if raw.Name != nil {
		title = e.normalize(*raw.Name)
	}
	if title == "" {
		title = content
	}

	return &core.Verbatim{
		RefID:       raw.RefID,
		Title:       title,
		Content:     content,
		Type:        raw.Type,
		ParentRefID: strings.TrimSpace(*raw.ParentID),
		ParentType:  strings.TrimSpace(*raw.ParentType),
	}, true
}

func (e *Extractor) normalize(s string) string {
	if e.stripper != nil {
		s = e.stripper.Strip(s)
	}
	return core.NormalizeText(s)
}
