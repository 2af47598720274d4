package ranker

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/pagerank"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fieldsTokenizer struct{}

func (fieldsTokenizer) TokenizeQuery(q string) []string { return strings.Fields(q) }

// sliceScorer serves a fixed result list.
type sliceScorer struct {
	results []scoring.Result
	err     error
}

func (s sliceScorer) Score([]string) (scoring.Results, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &sliceResults{results: s.results}, nil
}

type sliceResults struct {
	results []scoring.Result
	pos     int
}

func (s *sliceResults) Next() (scoring.Result, error) {
	if s.pos >= len(s.results) {
		return scoring.Result{}, io.EOF
	}
	r := s.results[s.pos]
	s.pos++
	return r, nil
}

// countingScorer serves an unbounded stream of ids from, from+1, ...
type countingScorer struct{ from posting.DocID }

func (c countingScorer) Score([]string) (scoring.Results, error) {
	return &countingResults{next: c.from}, nil
}

type countingResults struct{ next posting.DocID }

func (c *countingResults) Next() (scoring.Result, error) {
	id := c.next
	c.next++
	return scoring.Result{DocID: id, Score: 1}, nil
}

type failingResults struct{}

func (failingResults) Next() (scoring.Result, error) { return scoring.Result{}, errors.New("disk gone") }

type failingScorer struct{}

func (failingScorer) Score([]string) (scoring.Results, error) { return failingResults{}, nil }

type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newRanker(sources []Source, ranks *pagerank.Table, opts Options, step time.Duration) *Ranker {
	r := New(sources, ranks, opts)
	clock := &stepClock{t: time.Unix(0, 0), step: step}
	r.now = clock.now
	return r
}

func src(name string, weight float64, s Scorer) Source {
	return Source{Name: name, Weight: weight, Tokenizer: fieldsTokenizer{}, Scorer: s}
}

func TestSearchCombinesWeightedStreams(t *testing.T) {
	a := sliceScorer{results: []scoring.Result{{DocID: 1, Score: 0.5}, {DocID: 2, Score: 1.0}}}
	b := sliceScorer{results: []scoring.Result{{DocID: 2, Score: 0.5}, {DocID: 3, Score: 2.0}}}
	ranks := pagerank.NewTable(map[posting.DocID]float64{1: 1.0, 9: 5.0})

	opts := DefaultOptions()
	opts.MinResults = 0
	r := newRanker([]Source{src("words", 2, a), src("bigrams", 1, b)}, ranks, opts, 0)

	resp, err := r.Search(context.Background(), "q", 10)
	require.NoError(t, err)
	assert.Equal(t, StopExhausted, resp.Stop)
	assert.Equal(t, 3, resp.Candidates)
	assert.Equal(t, 1, resp.FullyScored)
	assert.False(t, resp.Fallback)
	// 1: 2*0.5 + rank 1.0; 2: 2*1.0 + 1*0.5; 3: 1*2.0. Doc 9 was never pulled.
	assert.Equal(t, []scoring.Result{
		{DocID: 2, Score: 2.5},
		{DocID: 1, Score: 2.0},
		{DocID: 3, Score: 2.0},
	}, resp.Results)
}

func TestSearchAppliesLimit(t *testing.T) {
	opts := DefaultOptions()
	opts.DefaultLimit = 4
	opts.MaxDocuments = 50
	r := newRanker([]Source{src("words", 1, countingScorer{from: 1})}, nil, opts, 0)

	resp, err := r.Search(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Len(t, resp.Results, 4)

	resp, err = r.Search(context.Background(), "q", 7)
	require.NoError(t, err)
	assert.Len(t, resp.Results, 7)
}

func TestSearchStopsAtDocumentCap(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxDocuments = 5
	opts.MinResults = 0
	r := newRanker([]Source{src("words", 1, countingScorer{from: 1})}, nil, opts, 0)

	resp, err := r.Search(context.Background(), "q", 20)
	require.NoError(t, err)
	assert.Equal(t, StopMaxDocuments, resp.Stop)
	assert.Equal(t, 5, resp.Candidates)
}

func TestSearchStopsWhenEnoughDocumentsFullyScored(t *testing.T) {
	opts := DefaultOptions()
	opts.FullyScored = 3
	opts.MinResults = 0
	r := newRanker([]Source{
		src("words", 1, countingScorer{from: 1}),
		src("bigrams", 1, countingScorer{from: 1}),
	}, nil, opts, 0)

	resp, err := r.Search(context.Background(), "q", 20)
	require.NoError(t, err)
	assert.Equal(t, StopFullyScored, resp.Stop)
	assert.Equal(t, 3, resp.FullyScored)
	assert.Equal(t, 3, resp.Candidates)
}

func TestSearchStopsAtBudget(t *testing.T) {
	opts := DefaultOptions()
	opts.MinResults = 0
	r := newRanker([]Source{
		src("words", 1, countingScorer{from: 1}),
		src("bigrams", 1, countingScorer{from: 1000}),
	}, nil, opts, 10*time.Millisecond)

	resp, err := r.Search(context.Background(), "q", 100)
	require.NoError(t, err)
	assert.Equal(t, StopBudget, resp.Stop)
	// Checks at 10ms..190ms pull; the check at 200ms stops.
	assert.Equal(t, 19, resp.Candidates)
}

func TestSearchFallsBackToHeaviestSource(t *testing.T) {
	opts := DefaultOptions()
	opts.Budget = 30 * time.Millisecond
	opts.FallbackBudget = 100 * time.Millisecond
	r := newRanker([]Source{src("words", 1, countingScorer{from: 1})}, nil, opts, 10*time.Millisecond)

	resp, err := r.Search(context.Background(), "q", 100)
	require.NoError(t, err)
	assert.Equal(t, StopBudget, resp.Stop)
	assert.True(t, resp.Fallback)
	// Two pulls in the budget, six more before the fallback deadline.
	assert.Equal(t, 8, resp.Candidates)
}

func TestSearchSkipsFallbackWhenHeaviestSourceIsExhausted(t *testing.T) {
	short := sliceScorer{results: []scoring.Result{{DocID: 4, Score: 1}}}
	r := newRanker([]Source{src("words", 3, short)}, nil, DefaultOptions(), 0)

	resp, err := r.Search(context.Background(), "q", 10)
	require.NoError(t, err)
	assert.Equal(t, StopExhausted, resp.Stop)
	assert.False(t, resp.Fallback)
	assert.Equal(t, []scoring.Result{{DocID: 4, Score: 3}}, resp.Results)
}

func TestSearchHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newRanker([]Source{src("words", 1, countingScorer{from: 1})}, nil, DefaultOptions(), 0)

	resp, err := r.Search(ctx, "q", 10)
	require.NoError(t, err)
	assert.Equal(t, StopCancelled, resp.Stop)
	assert.False(t, resp.Fallback)
	assert.Empty(t, resp.Results)
}

func TestSearchWithoutTermsIsEmpty(t *testing.T) {
	r := newRanker([]Source{src("words", 1, countingScorer{from: 1})}, nil, DefaultOptions(), 0)

	resp, err := r.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Equal(t, StopExhausted, resp.Stop)
	assert.Empty(t, resp.Results)
}

func TestSearchPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	r := newRanker([]Source{src("words", 1, sliceScorer{err: boom})}, nil, DefaultOptions(), 0)
	_, err := r.Search(context.Background(), "q", 10)
	assert.ErrorIs(t, err, boom)

	r = newRanker([]Source{src("words", 1, failingScorer{})}, nil, DefaultOptions(), 0)
	_, err = r.Search(context.Background(), "q", 10)
	assert.ErrorContains(t, err, "disk gone")
}
