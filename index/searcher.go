package index

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/verbatim/core"
)

// Hit is a scored document with its stored fields. ContentID is shared by
// documents with identical title and content.
type Hit struct {
	ContentID core.ID
	RefID     string
	Title     string
	Score     float64
}

// Searcher runs queries against an index opened read-only.
type Searcher struct {
	db      *badger.DB
	meta    *Metadata
	lengths map[string][]uint32
	avgLen  map[string]float64
	logger  *slog.Logger
}

// Open opens the index in dir for searching.
// Returns ErrIndexNotFound if dir holds no index.
func Open(dir string, logger *slog.Logger) (*Searcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := openDB(dir, logger)
	if err != nil {
		return nil, err
	}

	s := &Searcher{
		db:      db,
		lengths: make(map[string][]uint32, len(Fields)),
		avgLen:  make(map[string]float64, len(Fields)),
		logger:  logger,
	}
	if err := db.View(s.load); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "loading index %s", dir)
	}
	return s, nil
}

func (s *Searcher) load(txn *badger.Txn) error {
	item, err := txn.Get([]byte(metaKey))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errors.Wrap(ErrIndexNotFound, "no index metadata")
		}
		return err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	if s.meta, err = unmarshalMetadata(data); err != nil {
		return err
	}

	totals := map[string]int{
		FieldTitle:   s.meta.TitleTokens,
		FieldContent: s.meta.ContentTokens,
	}
	for _, field := range Fields {
		item, err := txn.Get(makeLengthsKey(field))
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "%s lengths", field), ErrCorruptIndex)
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		lengths, err := unmarshalLengths(data)
		if err != nil {
			return err
		}
		if len(lengths) != s.meta.Documents {
			return errors.Mark(errors.Newf("%s lengths cover %d of %d documents", field, len(lengths), s.meta.Documents), ErrCorruptIndex)
		}
		s.lengths[field] = lengths
		if s.meta.Documents > 0 {
			s.avgLen[field] = float64(totals[field]) / float64(s.meta.Documents)
		}
	}
	return nil
}

// Close closes the index.
func (s *Searcher) Close() error {
	return s.db.Close()
}

// Metadata returns the index metadata.
func (s *Searcher) Metadata() *Metadata {
	return s.meta
}

type scoredOrd struct {
	ord   uint32
	score float64
}

// Results holds every match of a query, ranked. Stored fields are loaded
// page by page.
type Results struct {
	searcher *Searcher
	ranked   []scoredOrd
}

// Search evaluates q and ranks every matching document by score descending,
// refid ascending.
func (s *Searcher) Search(ctx context.Context, q *Query) (*Results, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var matches matchSet
	err := s.db.View(func(txn *badger.Txn) error {
		e := &evaluator{searcher: s, txn: txn, cache: make(map[string][]posting)}
		var err error
		matches, _, err = e.eval(q.root)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "searching %q", q.text)
	}

	ranked := make([]scoredOrd, 0, len(matches))
	for ord, score := range matches {
		ranked = append(ranked, scoredOrd{ord: ord, score: score})
	}
	// Ordinals follow refid order.
	slices.SortFunc(ranked, func(a, b scoredOrd) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.ord, b.ord)
	})

	s.logger.Debug("query evaluated", "query", q.String(), "matches", len(ranked))
	return &Results{searcher: s, ranked: ranked}, nil
}

// Len returns the number of matching documents.
func (r *Results) Len() int {
	return len(r.ranked)
}

// Pages returns the number of pages of the given size.
func (r *Results) Pages(size int) int {
	if size < 1 {
		return 0
	}
	return (len(r.ranked) + size - 1) / size
}

// Page returns the hits of a 1-based page. Pages past the end are empty.
func (r *Results) Page(page, size int) ([]Hit, error) {
	if page < 1 || size < 1 {
		return nil, errors.Newf("invalid page %d of size %d", page, size)
	}
	start := (page - 1) * size
	if start >= len(r.ranked) {
		return []Hit{}, nil
	}
	end := min(start+size, len(r.ranked))

	hits := make([]Hit, 0, end-start)
	err := r.searcher.db.View(func(txn *badger.Txn) error {
		for _, so := range r.ranked[start:end] {
			item, err := txn.Get(makeDocKey(so.ord))
			if err != nil {
				return errors.Mark(errors.Wrapf(err, "document %d", so.ord), ErrCorruptIndex)
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			doc, err := unmarshalStoredDoc(data)
			if err != nil {
				return err
			}
			hits = append(hits, Hit{ContentID: doc.ContentID, RefID: doc.RefID, Title: doc.Title, Score: so.score})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}

// matchSet maps document ordinals to accumulated scores.
type matchSet map[uint32]float64

type evaluator struct {
	searcher *Searcher
	txn      *badger.Txn
	cache    map[string][]posting
}

// eval returns the matches of n. null is true when n holds no searchable
// term, e.g. only stop words; such clauses are ignored by their group.
func (e *evaluator) eval(n node) (matches matchSet, null bool, err error) {
	switch n := n.(type) {
	case *termNode:
		return e.evalTerm(n)
	case *phraseNode:
		return e.evalPhrase(n)
	case *andNode:
		return e.evalGroup(n.children, true)
	case *orNode:
		return e.evalGroup(n.children, false)
	case *notNode:
		// Only reachable through a group, which handles exclusion.
		return e.eval(n.child)
	}
	return nil, true, errors.AssertionFailedf("unknown query node %T", n)
}

func (e *evaluator) evalGroup(children []node, conjunction bool) (matchSet, bool, error) {
	var result matchSet
	var excluded []matchSet
	null := true

	for _, child := range children {
		if not, ok := child.(*notNode); ok {
			m, isNull, err := e.eval(not.child)
			if err != nil {
				return nil, false, err
			}
			if !isNull {
				excluded = append(excluded, m)
			}
			continue
		}

		m, isNull, err := e.eval(child)
		if err != nil {
			return nil, false, err
		}
		if isNull {
			continue
		}
		switch {
		case null:
			result = m
			null = false
		case conjunction:
			result = intersect(result, m)
		default:
			result = union(result, m)
		}
	}

	if null {
		return nil, true, nil
	}
	for _, m := range excluded {
		for ord := range m {
			delete(result, ord)
		}
	}
	return result, false, nil
}

func intersect(a, b matchSet) matchSet {
	out := make(matchSet)
	for ord, score := range a {
		if other, ok := b[ord]; ok {
			out[ord] = score + other
		}
	}
	return out
}

func union(a, b matchSet) matchSet {
	for ord, score := range b {
		a[ord] += score
	}
	return a
}

func fieldsFor(field string) []string {
	if field == "" {
		return Fields
	}
	return []string{field}
}

// evalTerm matches any analyzed token of the term in any of its fields.
func (e *evaluator) evalTerm(n *termNode) (matchSet, bool, error) {
	terms := slices.Compact(slices.Sorted(slices.Values(Terms(n.text))))
	if len(terms) == 0 {
		return nil, true, nil
	}

	result := make(matchSet)
	for _, field := range fieldsFor(n.field) {
		for _, term := range terms {
			postings, err := e.postings(field, term)
			if err != nil {
				return nil, false, err
			}
			w := idf(e.searcher.meta.Documents, len(postings))
			for _, p := range postings {
				result[p.Ord] += e.score(field, w, p)
			}
		}
	}
	return result, false, nil
}

// evalPhrase matches documents holding the phrase tokens at the same
// relative positions within one field.
func (e *evaluator) evalPhrase(n *phraseNode) (matchSet, bool, error) {
	tokens := Analyze(n.text)
	if len(tokens) == 0 {
		return nil, true, nil
	}

	result := make(matchSet)
	for _, field := range fieldsFor(n.field) {
		lists := make([]map[uint32]posting, len(tokens))
		weights := make([]float64, len(tokens))
		for i, tk := range tokens {
			postings, err := e.postings(field, tk.Text)
			if err != nil {
				return nil, false, err
			}
			weights[i] = idf(e.searcher.meta.Documents, len(postings))
			lists[i] = make(map[uint32]posting, len(postings))
			for _, p := range postings {
				lists[i][p.Ord] = p
			}
		}

		for ord, first := range lists[0] {
			if !phraseAt(first, lists, tokens, ord) {
				continue
			}
			for i := range tokens {
				result[ord] += e.score(field, weights[i], lists[i][ord])
			}
		}
	}
	return result, false, nil
}

func phraseAt(first posting, lists []map[uint32]posting, tokens []Token, ord uint32) bool {
	for _, start := range first.Positions {
		matched := true
		for i := 1; i < len(tokens) && matched; i++ {
			p, ok := lists[i][ord]
			if !ok {
				return false
			}
			want := start + uint32(tokens[i].Pos-tokens[0].Pos)
			_, matched = slices.BinarySearch(p.Positions, want)
		}
		if matched {
			return true
		}
	}
	return false
}

func (e *evaluator) score(field string, weight float64, p posting) float64 {
	return bm25(weight, uint32(len(p.Positions)), e.searcher.lengths[field][p.Ord], e.searcher.avgLen[field])
}

func (e *evaluator) postings(field, term string) ([]posting, error) {
	key := makePostingKey(field, term)
	if cached, ok := e.cache[string(key)]; ok {
		return cached, nil
	}

	var postings []posting
	item, err := e.txn.Get(key)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return nil, err
	default:
		data, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		if postings, err = unmarshalPostings(data); err != nil {
			return nil, err
		}
	}
	e.cache[string(key)] = postings
	return postings, nil
}
