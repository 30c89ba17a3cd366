package verbatim

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/poiesic/verbatim/core"
	"github.com/poiesic/verbatim/extract"
	"github.com/poiesic/verbatim/index"
	"github.com/poiesic/verbatim/metrics"
	"github.com/poiesic/verbatim/report"
	"github.com/poiesic/verbatim/score"
	"github.com/poiesic/verbatim/storage"
	"github.com/poiesic/verbatim/storage/sqlite"
)

// Default artifact locations, relative to the working directory.
const (
	DefaultStorePath = "data/query/verbatim.sqlite"
	DefaultIndexPath = "data/query/verbatim_index"
)

// Errors callers can test for with errors.Is.
var (
	ErrStoreNotFound     = storage.ErrStoreNotFound
	ErrIndexNotFound     = index.ErrIndexNotFound
	ErrStaleIndex        = index.ErrStaleIndex
	ErrQuerySyntax       = index.ErrQuerySyntax
	ErrConfig            = extract.ErrConfig
	ErrSourceUnavailable = extract.ErrSourceUnavailable
)

// Stage names used for spans and metrics.
const (
	StageExtract = "extract"
	StageIndex   = "index"
	StageScore   = "score"
	StageRead    = "read"
)

// Pipeline runs the extract, index, score and read stages against one store
// and one index. Each stage opens and closes its own handles.
type Pipeline struct {
	storePath string
	indexPath string
	pageSize  int
	batchSize int
	poolSize  int
	logger    *slog.Logger
	progress  io.Writer
	metrics   *metrics.Metrics
	secrets   extract.SecretsManagerClient
	tracer    trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStorePath sets the verbatim store file. Default is DefaultStorePath.
func WithStorePath(path string) Option {
	return func(p *Pipeline) { p.storePath = path }
}

// WithIndexPath sets the index directory. Default is DefaultIndexPath.
func WithIndexPath(path string) Option {
	return func(p *Pipeline) { p.indexPath = path }
}

// WithPageSize sets the number of hits scored per index page.
func WithPageSize(size int) Option {
	return func(p *Pipeline) { p.pageSize = size }
}

// WithBatchSize sets the number of rows per store batch during extraction
// and indexing.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) { p.batchSize = size }
}

// WithPoolSize sets the number of workers analyzing documents during indexing.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) { p.poolSize = size }
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithProgress sets where extraction and indexing progress lines are written.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) { p.progress = w }
}

// WithMetrics records stage counters and durations in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithSecretsClient sets the client used to resolve password_secret_arn.
// Default is a client built from the default AWS configuration, created only
// when a secret is configured.
func WithSecretsClient(client extract.SecretsManagerClient) Option {
	return func(p *Pipeline) { p.secrets = client }
}

// New creates a pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		storePath: DefaultStorePath,
		indexPath: DefaultIndexPath,
		pageSize:  score.DefaultPageSize,
		batchSize: index.DefaultBatchSize,
		logger:    slog.Default(),
		tracer:    otel.Tracer("github.com/poiesic/verbatim"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// StorePath returns the verbatim store file.
func (p *Pipeline) StorePath() string { return p.storePath }

// IndexPath returns the index directory.
func (p *Pipeline) IndexPath() string { return p.indexPath }

// stage runs fn inside a span and records its duration.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(ctx context.Context, span trace.Span) error) error {
	ctx, span := p.tracer.Start(ctx, "verbatim."+name,
		trace.WithAttributes(
			attribute.String("verbatim.store", p.storePath),
			attribute.String("verbatim.index", p.indexPath),
		),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx, span)
	p.metrics.ObserveStage(name, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name+" failed")
		return err
	}
	span.SetStatus(codes.Ok, name+" complete")
	return nil
}

// Extract replaces the store with the eligible rows of the configured source.
func (p *Pipeline) Extract(ctx context.Context, cfg *extract.Config) (*extract.Summary, error) {
	var summary *extract.Summary
	err := p.stage(ctx, StageExtract, func(ctx context.Context, span trace.Span) error {
		if cfg == nil {
			return errors.Mark(errors.New("source configuration is required"), ErrConfig)
		}
		src := cfg.Source
		if src.PasswordSecretARN != "" {
			client := p.secrets
			if client == nil {
				var err error
				if client, err = extract.NewSecretsManagerClient(ctx); err != nil {
					return err
				}
			}
			if err := src.ResolvePassword(ctx, client); err != nil {
				return err
			}
		}

		source, err := extract.OpenSource(ctx, &src, p.logger)
		if err != nil {
			return err
		}
		defer source.Close()

		extractor, err := extract.NewExtractor(source,
			extract.WithLogger(p.logger),
			extract.WithProgress(p.progress),
			extract.WithMetrics(p.metrics),
			extract.WithStripHTML(src.StripHTML),
			extract.WithBatchSize(p.batchSize),
		)
		if err != nil {
			return err
		}

		summary, err = extractor.Extract(ctx, p.storePath)
		if err != nil {
			return err
		}
		span.SetAttributes(
			attribute.String("verbatim.snapshot", summary.SnapshotID),
			attribute.Int("verbatim.extracted", summary.Total()),
		)
		return nil
	})
	return summary, err
}

// Index rebuilds the index from the store.
func (p *Pipeline) Index(ctx context.Context) (*index.BuildStats, error) {
	var stats *index.BuildStats
	err := p.stage(ctx, StageIndex, func(ctx context.Context, span trace.Span) error {
		repo, err := p.openStore()
		if err != nil {
			return err
		}
		defer repo.Close()

		opts := []index.Option{
			index.WithBatchSize(p.batchSize),
			index.WithLogger(p.logger),
			index.WithProgress(p.progress),
		}
		if p.poolSize > 0 {
			opts = append(opts, index.WithPoolSize(p.poolSize))
		}
		stats, err = index.Rebuild(ctx, repo, p.indexPath, opts...)
		if err != nil {
			return err
		}
		p.metrics.RecordIndex(stats.Documents, stats.Terms)
		span.SetAttributes(attribute.Int("verbatim.documents", stats.Documents))
		return nil
	})
	return stats, err
}

// Score runs query against the index and replaces the store's scores.
// A malformed query fails before the store or index is opened.
func (p *Pipeline) Score(ctx context.Context, query string) (*score.Summary, error) {
	var summary *score.Summary
	err := p.stage(ctx, StageScore, func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(attribute.String("verbatim.query", query))
		if _, err := index.Parse(query); err != nil {
			return err
		}

		repo, err := p.openStore()
		if err != nil {
			return err
		}
		defer repo.Close()

		searcher, err := p.openIndex()
		if err != nil {
			return err
		}
		defer searcher.Close()

		scorer, err := score.NewScorer(repo, searcher,
			score.WithPageSize(p.pageSize),
			score.WithLogger(p.logger),
			score.WithMetrics(p.metrics),
		)
		if err != nil {
			return err
		}
		summary, err = scorer.Score(ctx, query)
		if err != nil {
			return err
		}
		span.SetAttributes(attribute.Int("verbatim.matched", summary.Matched))
		return nil
	})
	return summary, err
}

// Read builds the report of the scored store.
func (p *Pipeline) Read(ctx context.Context, format core.ReportFormat, limit int) ([]core.ReportGroup, error) {
	var groups []core.ReportGroup
	err := p.stage(ctx, StageRead, func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(
			attribute.String("verbatim.format", string(format)),
			attribute.Int("verbatim.limit", limit),
		)
		if _, err := core.ParseReportFormat(string(format)); err != nil {
			return err
		}
		if err := core.ValidateLimit(limit); err != nil {
			return err
		}

		repo, err := p.openStore()
		if err != nil {
			return err
		}
		defer repo.Close()

		groups, err = report.New(repo,
			report.WithLogger(p.logger),
			report.WithMetrics(p.metrics),
		).Build(ctx, format, limit)
		return err
	})
	return groups, err
}

// Query runs every stage in order: extract from cfg, index, score query and
// read the report.
func (p *Pipeline) Query(ctx context.Context, cfg *extract.Config, query string, format core.ReportFormat, limit int) ([]core.ReportGroup, error) {
	if _, err := index.Parse(query); err != nil {
		return nil, err
	}
	if _, err := core.ParseReportFormat(string(format)); err != nil {
		return nil, err
	}
	if err := core.ValidateLimit(limit); err != nil {
		return nil, err
	}

	if _, err := p.Extract(ctx, cfg); err != nil {
		return nil, err
	}
	if _, err := p.Index(ctx); err != nil {
		return nil, err
	}
	if _, err := p.Score(ctx, query); err != nil {
		return nil, err
	}
	return p.Read(ctx, format, limit)
}

func (p *Pipeline) openStore() (storage.VerbatimRepository, error) {
	repo, err := sqlite.Open(p.storePath, sqlite.WithLogger(p.logger))
	if err != nil {
		if errors.Is(err, ErrStoreNotFound) {
			return nil, errors.WithHint(err, "run the extract command to create the store")
		}
		return nil, err
	}
	return repo, nil
}

func (p *Pipeline) openIndex() (*index.Searcher, error) {
	searcher, err := index.Open(p.indexPath, p.logger)
	if err != nil {
		if errors.Is(err, ErrIndexNotFound) {
			return nil, errors.WithHint(err, "run the index command to build the index")
		}
		return nil, err
	}
	return searcher, nil
}
