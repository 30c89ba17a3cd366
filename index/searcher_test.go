package index

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/verbatim/core"
)

func corpus() []*core.Verbatim {
	return []*core.Verbatim{
		doc("r1", "Pricing call", "customer asked about pricing and discount"),
		doc("r2", "Renewal", "contract renewal discussed, pricing unchanged"),
		doc("r3", "Lunch", "nothing relevant here"),
	}
}

func TestSearch_BM25Score(t *testing.T) {
	s := buildIndex(t, corpus()...)

	hits := search(t, s, "lunch")
	require.Len(t, hits, 1)
	assert.Equal(t, "r3", hits[0].RefID)
	assert.Equal(t, "Lunch", hits[0].Title)
	id, _ := contentID(doc("r3", "Lunch", "nothing relevant here"))
	assert.Equal(t, id, hits[0].ContentID)

	// One title match: N=3, df=1, tf=1, title length 1, average title length 4/3.
	idf := math.Log(3.0/2.0) + 1
	want := idf * 2.2 / (1 + 1.2*(0.25+0.75*1/(4.0/3.0)))
	assert.InDelta(t, want, hits[0].Score, 1e-9)
}

func TestSearch_Ranking(t *testing.T) {
	s := buildIndex(t, corpus()...)

	hits := search(t, s, "pricing")
	assert.Equal(t, []string{"r1", "r2"}, refIDs(hits))
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearch_Queries(t *testing.T) {
	s := buildIndex(t, corpus()...)

	tests := []struct {
		query string
		want  []string
	}{
		{`"contract renewal"`, []string{"r2"}},
		{`"renewal contract"`, nil},
		{`"pricing and discount"`, []string{"r1"}},
		{`"asked about pricing"`, []string{"r1"}},
		{`title:"pricing call"`, []string{"r1"}},
		{`content:"pricing call"`, nil},
		{"pricing AND contract", []string{"r2"}},
		{"pricing AND NOT discount", []string{"r2"}},
		{"pricing ANDNOT discount", []string{"r2"}},
		{"title:pricing", []string{"r1"}},
		{"content:lunch", nil},
		{"(lunch OR discount) AND NOT customer", []string{"r3"}},
		{"lunch,contract", []string{"r3", "r2"}},
		{"PRICING", []string{"r1", "r2"}},
		{"the", nil},
		{"the OR lunch", []string{"r3"}},
		{"unknownword", nil},
		{"re: contract", []string{"r2"}},
		{"Note: pricing", []string{"r1", "r2"}},
		{"memo:lunch", []string{"r3"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, refIDs(search(t, s, tt.query)))
		})
	}
}

func TestSearch_UnprefixedTermSumsFields(t *testing.T) {
	s := buildIndex(t, corpus()...)

	all := search(t, s, "renewal")
	title := search(t, s, "title:renewal")
	content := search(t, s, "content:renewal")
	require.Len(t, all, 1)
	require.Len(t, title, 1)
	require.Len(t, content, 1)
	assert.InDelta(t, title[0].Score+content[0].Score, all[0].Score, 1e-9)
}

func TestSearch_TiesOrderByRefID(t *testing.T) {
	s := buildIndex(t,
		doc("zeta", "Same", "identical words"),
		doc("alpha", "Same", "identical words"),
		doc("mid", "Same", "identical words"),
	)

	hits := search(t, s, "identical")
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, refIDs(hits))
	assert.Equal(t, hits[0].Score, hits[2].Score)
}

func TestResults_Paging(t *testing.T) {
	var docs []*core.Verbatim
	for i := range 45 {
		docs = append(docs, doc(fmt.Sprintf("doc-%02d", i), "Widget", fmt.Sprintf("widget number %d", i)))
	}
	s := buildIndex(t, docs...)

	q, err := Parse("widget")
	require.NoError(t, err)
	results, err := s.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 45, results.Len())
	assert.Equal(t, 3, results.Pages(20))

	seen := make(map[string]bool)
	for page := 1; page <= 3; page++ {
		hits, err := results.Page(page, 20)
		require.NoError(t, err)
		for _, h := range hits {
			assert.False(t, seen[h.RefID], "refid %s returned twice", h.RefID)
			seen[h.RefID] = true
		}
	}
	assert.Len(t, seen, 45)

	hits, err := results.Page(4, 20)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = results.Page(0, 20)
	assert.Error(t, err)
}

func TestSearch_CancelledContext(t *testing.T) {
	s := buildIndex(t, corpus()...)
	q, err := Parse("pricing")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Search(ctx, q)
	assert.ErrorIs(t, err, context.Canceled)
}
