package index

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/badger/v4"
	"github.com/panjf2000/ants/v2"
	"github.com/segmentio/ksuid"

	"github.com/poiesic/verbatim/core"
	"github.com/poiesic/verbatim/progress"
	"github.com/poiesic/verbatim/storage"
)

// DefaultBatchSize is the number of store rows read and analyzed at a time.
const DefaultBatchSize = 500

// BuildStats summarizes an index build.
type BuildStats struct {
	Documents  int
	Distinct   int // documents with distinct title and content
	Terms      int
	SnapshotID string
	Elapsed    time.Duration
}

// Builder builds an index from a verbatim store.
type Builder struct {
	repo      storage.VerbatimRepository
	pool      *ants.Pool
	batchSize int
	logger    *slog.Logger
	progress  io.Writer
}

// Option configures a Builder.
type Option func(*Builder) error

// WithBatchSize sets the number of rows read from the store per batch.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(b *Builder) error {
		if size < 1 {
			return errors.Newf("batch size must be positive, got %d", size)
		}
		b.batchSize = size
		return nil
	}
}

// WithPoolSize sets the number of workers analyzing documents.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(b *Builder) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return errors.Wrap(err, "creating analysis pool")
		}
		if b.pool != nil {
			b.pool.Release()
		}
		b.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// WithProgress sets where progress lines are written. Default is none.
func WithProgress(w io.Writer) Option {
	return func(b *Builder) error {
		b.progress = w
		return nil
	}
}

// NewBuilder creates a builder reading from repo.
// Call Release when done.
func NewBuilder(repo storage.VerbatimRepository, opts ...Option) (*Builder, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}

	b := &Builder{
		repo:      repo,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			b.Release()
			return nil, err
		}
	}

	if b.pool == nil {
		if err := WithPoolSize(runtime.NumCPU() / 2)(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Release releases the worker pool.
func (b *Builder) Release() {
	if b.pool != nil {
		b.pool.Release()
		b.pool = nil
	}
}

// Rebuild builds a fresh index of repo at dir, replacing any previous index.
func Rebuild(ctx context.Context, repo storage.VerbatimRepository, dir string, opts ...Option) (*BuildStats, error) {
	b, err := NewBuilder(repo, opts...)
	if err != nil {
		return nil, err
	}
	defer b.Release()
	return b.Build(ctx, dir)
}

// analysis holds the tokens of one distinct title and content pair. Rows
// with identical text share a single analysis.
type analysis struct {
	id            core.ID
	text          string
	titleTokens   []Token
	contentTokens []Token
}

type analyzedDoc struct {
	refID string
	title string
	*analysis
}

// contentID fingerprints the indexed text of v.
func contentID(v *core.Verbatim) (core.ID, string) {
	text := v.Title + "\x1f" + v.Content
	return core.IDFromContent(text), text
}

// Build reads every store row, builds the index in a sibling directory and
// swaps it into dir. On failure the previous index at dir is left untouched.
func (b *Builder) Build(ctx context.Context, dir string) (*BuildStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	dir = filepath.Clean(dir)

	snapshot, err := b.repo.Snapshot(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading store snapshot")
	}

	docs, distinct, err := b.readDocuments(ctx)
	if err != nil {
		return nil, err
	}

	building := dir + ".building-" + ksuid.New().String()
	stats, err := b.write(building, snapshot.ID, docs)
	if err != nil {
		if rmErr := os.RemoveAll(building); rmErr != nil {
			b.logger.Warn("failed to remove partial index", "path", building, "err", rmErr)
		}
		return nil, err
	}

	if err := b.swap(building, dir); err != nil {
		if rmErr := os.RemoveAll(building); rmErr != nil {
			b.logger.Warn("failed to remove partial index", "path", building, "err", rmErr)
		}
		return nil, err
	}

	stats.Distinct = distinct
	stats.Elapsed = time.Since(start)
	b.logger.Info("index built",
		"path", dir,
		"documents", stats.Documents,
		"distinct", stats.Distinct,
		"terms", stats.Terms,
		"snapshot", stats.SnapshotID,
		"elapsed", stats.Elapsed)
	return stats, nil
}

// readDocuments pages through the store and analyzes each batch on the pool.
// Documents come back in store order regardless of worker scheduling.
func (b *Builder) readDocuments(ctx context.Context) ([]*analyzedDoc, int, error) {
	total, err := b.repo.CountVerbatims(ctx)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting store rows")
	}

	tracker := progress.NewTracker(b.progress, "Indexing", total, b.batchSize).WithUnit("documents")
	tracker.Start()
	defer tracker.Finish()

	docs := make([]*analyzedDoc, 0, total)
	seen := make(map[string]struct{}, total)
	cache := make(map[core.ID]*analysis, total)
	distinct := 0
	var after int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		batch, err := b.repo.ListVerbatims(ctx, after, b.batchSize)
		if err != nil {
			return nil, 0, errors.Wrap(err, "reading store rows")
		}
		if len(batch) == 0 {
			break
		}

		analyzed, n, err := b.analyzeBatch(batch, cache)
		if err != nil {
			return nil, 0, err
		}
		distinct += n
		for _, doc := range analyzed {
			if _, ok := seen[doc.refID]; ok {
				return nil, 0, errors.Wrapf(ErrDuplicateDocument, "refid %q", doc.refID)
			}
			seen[doc.refID] = struct{}{}
			docs = append(docs, doc)
		}

		tracker.Increment(len(batch))
		after = batch[len(batch)-1].ID
	}
	return docs, distinct, nil
}

// analyzeBatch tokenizes the rows of batch whose text is not already in
// cache and returns the number of new analyses. A fingerprint shared by
// different text is analyzed separately and left out of the cache.
func (b *Builder) analyzeBatch(batch []*core.Verbatim, cache map[core.ID]*analysis) ([]*analyzedDoc, int, error) {
	results := make([]*analyzedDoc, len(batch))
	var pending []*analysis
	var sources []*core.Verbatim
	for i, v := range batch {
		id, text := contentID(v)
		a, ok := cache[id]
		if !ok || a.text != text {
			a = &analysis{id: id, text: text}
			if !ok {
				cache[id] = a
			}
			pending = append(pending, a)
			sources = append(sources, v)
		}
		results[i] = &analyzedDoc{refID: v.RefID, title: v.Title, analysis: a}
	}

	var wg sync.WaitGroup
	for i, a := range pending {
		v := sources[i]
		wg.Add(1)
		err := b.pool.Submit(func() {
			defer wg.Done()
			a.titleTokens = Analyze(v.Title)
			a.contentTokens = Analyze(v.Content)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, 0, errors.Wrap(err, "submitting analysis task")
		}
	}
	wg.Wait()
	return results, len(pending), nil
}

type fieldPostings map[string][]posting

// write builds postings in memory and commits them to a new Badger database
// at path with a single WriteBatch flush.
func (b *Builder) write(path, snapshotID string, docs []*analyzedDoc) (*BuildStats, error) {
	// Ordinals follow refid order so ties in score sort by refid.
	slices.SortFunc(docs, func(x, y *analyzedDoc) int {
		return strings.Compare(x.refID, y.refID)
	})

	postings := map[string]fieldPostings{
		FieldTitle:   {},
		FieldContent: {},
	}
	lengths := map[string][]uint32{
		FieldTitle:   make([]uint32, len(docs)),
		FieldContent: make([]uint32, len(docs)),
	}
	meta := &Metadata{Documents: len(docs), SnapshotID: snapshotID}

	for i, doc := range docs {
		ord := uint32(i)
		addPostings(postings[FieldTitle], ord, doc.titleTokens)
		addPostings(postings[FieldContent], ord, doc.contentTokens)
		lengths[FieldTitle][i] = uint32(len(doc.titleTokens))
		lengths[FieldContent][i] = uint32(len(doc.contentTokens))
		meta.TitleTokens += len(doc.titleTokens)
		meta.ContentTokens += len(doc.contentTokens)
	}
	meta.Terms = len(postings[FieldTitle]) + len(postings[FieldContent])

	db, err := createDB(path, b.logger)
	if err != nil {
		return nil, err
	}

	wb := db.NewWriteBatch()
	err = writeEntries(wb, docs, postings, lengths, meta)
	if err == nil {
		err = wb.Flush()
	} else {
		wb.Cancel()
	}
	if closeErr := db.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return nil, errors.Wrapf(err, "writing index %s", path)
	}

	return &BuildStats{
		Documents:  meta.Documents,
		Terms:      meta.Terms,
		SnapshotID: snapshotID,
	}, nil
}

func addPostings(fp fieldPostings, ord uint32, tokens []Token) {
	byTerm := make(map[string][]uint32)
	var order []string
	for _, tk := range tokens {
		if _, ok := byTerm[tk.Text]; !ok {
			order = append(order, tk.Text)
		}
		byTerm[tk.Text] = append(byTerm[tk.Text], uint32(tk.Pos))
	}
	for _, term := range order {
		fp[term] = append(fp[term], posting{Ord: ord, Positions: byTerm[term]})
	}
}

func writeEntries(wb *badger.WriteBatch, docs []*analyzedDoc, postings map[string]fieldPostings, lengths map[string][]uint32, meta *Metadata) error {
	for i, doc := range docs {
		stored := &storedDoc{ContentID: doc.id, RefID: doc.refID, Title: doc.title}
		if err := wb.Set(makeDocKey(uint32(i)), marshalStoredDoc(stored)); err != nil {
			return err
		}
	}
	for _, field := range Fields {
		if err := wb.Set(makeLengthsKey(field), marshalLengths(lengths[field])); err != nil {
			return err
		}
		for term, list := range postings[field] {
			if err := wb.Set(makePostingKey(field, term), marshalPostings(list)); err != nil {
				return err
			}
		}
	}
	return wb.Set([]byte(metaKey), marshalMetadata(meta))
}

// swap moves the finished index at building into dir, removing the previous index.
func (b *Builder) swap(building, dir string) error {
	var old string
	if _, err := os.Stat(dir); err == nil {
		old = dir + ".old-" + ksuid.New().String()
		if err := os.Rename(dir, old); err != nil {
			return errors.Wrapf(err, "moving previous index %s aside", dir)
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "inspecting %s", dir)
	}

	if err := os.Rename(building, dir); err != nil {
		if old != "" {
			if restoreErr := os.Rename(old, dir); restoreErr != nil {
				err = errors.WithSecondaryError(err, restoreErr)
			}
		}
		return errors.Wrapf(err, "swapping %s into %s", building, dir)
	}

	if old != "" {
		if err := os.RemoveAll(old); err != nil {
			b.logger.Warn("failed to remove previous index", "path", old, "err", err)
		}
	}
	return nil
}
