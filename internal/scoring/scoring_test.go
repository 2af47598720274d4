package scoring

import (
	"math"
	"path/filepath"
	"sort"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSchemed indexes docs (doc id -> term counts) and returns the
// finalized TF-IDF store.
func buildSchemed(t *testing.T, docs map[posting.DocID]map[string]int, corpus Corpus) *store.Reader {
	t.Helper()
	dir := t.TempDir()
	builder := NewTFIDF(corpus, nil)

	byTerm := make(map[string][]posting.Posting)
	ids := make([]posting.DocID, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		res := tokenizer.Result{Counts: docs[id]}
		for _, c := range docs[id] {
			res.Total += c
		}
		for _, tp := range builder.CreatePostings(id, res) {
			byTerm[tp.Term] = append(byTerm[tp.Term], tp.Posting)
		}
	}
	terms := make([]string, 0, len(byTerm))
	for term := range byTerm {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	raw := filepath.Join(dir, "finalized")
	w, err := store.Create(raw, TFIDFSchema)
	require.NoError(t, err)
	for _, term := range terms {
		require.NoError(t, w.WriteKey(term))
		require.NoError(t, w.Write(byTerm[term]...))
	}
	require.NoError(t, w.Close())

	src, err := store.Open(raw, TFIDFSchema)
	require.NoError(t, err)
	defer src.Close()

	schemed := filepath.Join(dir, "schemed")
	w, err = store.Create(schemed, TFIDFSchema)
	require.NoError(t, err)
	require.NoError(t, FinalizeStore(w, src, builder, corpus))
	require.NoError(t, w.Close())

	r, err := store.Open(schemed, TFIDFSchema)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestCreatePostings(t *testing.T) {
	s := NewTFIDF(CorpusSize(1), nil)
	tps := s.CreatePostings(7, tokenizer.Result{Counts: map[string]int{"b": 3, "a": 1}, Total: 4})
	require.Len(t, tps, 2)

	assert.Equal(t, "a", tps[0].Term)
	assert.Equal(t, posting.DocID(7), tps[0].Posting.DocID)
	assert.Equal(t, int64(1), tps[0].Posting.Int(PropCount))
	assert.InDelta(t, 0.25, tps[0].Posting.Get(PropTF), 1e-12)
	assert.Equal(t, 0.0, tps[0].Posting.Get(PropTFIDF))

	assert.Equal(t, "b", tps[1].Term)
	assert.InDelta(t, 0.75, tps[1].Posting.Get(PropTF), 1e-12)

	assert.Empty(t, s.CreatePostings(1, tokenizer.Result{}))
}

func TestFinalizePostings(t *testing.T) {
	s := NewTFIDF(nil, nil)
	ps := []posting.Posting{TFIDFSchema.New(1), TFIDFSchema.New(2)}
	ps[0].Set(PropTF, 0.5)
	ps[1].Set(PropTF, 0.1)

	s.FinalizePostings(CorpusSize(10), ps)

	idf := math.Log10(10.0 / 2.0)
	assert.InDelta(t, idf*math.Log10(1.5), ps[0].Get(PropTFIDF), 1e-12)
	assert.InDelta(t, idf*math.Log10(1.1), ps[1].Get(PropTFIDF), 1e-12)
}

func TestTFIDFIsMonotonicInCount(t *testing.T) {
	s := NewTFIDF(nil, nil)
	const others = 10
	prev := math.Inf(-1)
	for count := 1; count <= 50; count++ {
		tps := s.CreatePostings(1, tokenizer.Result{
			Counts: map[string]int{"term": count, "other": others},
			Total:  count + others,
		})
		var p posting.Posting
		for _, tp := range tps {
			if tp.Term == "term" {
				p = tp.Posting
			}
		}
		s.FinalizePostings(CorpusSize(100), []posting.Posting{p})
		got := p.Get(PropTFIDF)
		assert.GreaterOrEqual(t, got, prev, "count %d", count)
		prev = got
	}
}

func TestIDF(t *testing.T) {
	assert.InDelta(t, 1.0, IDF(100, 10), 1e-12)
	assert.Equal(t, 0.0, IDF(10, 0))
	assert.Equal(t, 0.0, IDF(0, 3))
}

func TestScoreCosine(t *testing.T) {
	docs := map[posting.DocID]map[string]int{
		1: {"apple": 2, "banana": 1},
		2: {"apple": 1},
		3: {"apple": 1, "banana": 3, "cherry": 1},
		4: {"date": 1},
	}
	corpus := CorpusSize(len(docs))
	r := buildSchemed(t, docs, corpus)
	s := NewTFIDF(corpus, r)

	rs, err := s.Score([]string{"banana", "apple"})
	require.NoError(t, err)
	got, err := Collect(rs)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, posting.DocID(1), got[0].DocID)
	assert.Equal(t, posting.DocID(3), got[1].DocID)

	idfApple := math.Log10(4.0 / 3.0)
	idfBanana := math.Log10(4.0 / 2.0)
	query := []float64{math.Log10(1.5) * idfApple, math.Log10(1.5) * idfBanana}
	doc1 := []float64{idfApple * math.Log10(1+2.0/3.0), idfBanana * math.Log10(1+1.0/3.0)}
	doc3 := []float64{idfApple * math.Log10(1+1.0/5.0), idfBanana * math.Log10(1+3.0/5.0)}
	assert.InDelta(t, Cosine(query, doc1), got[0].Score, 1e-9)
	assert.InDelta(t, Cosine(query, doc3), got[1].Score, 1e-9)
	for _, res := range got {
		assert.True(t, res.Score > 0 && res.Score <= 1+1e-9)
	}
}

func TestScoreDegenerateQueries(t *testing.T) {
	docs := map[posting.DocID]map[string]int{
		1: {"apple": 1},
		2: {"banana": 1},
	}
	corpus := CorpusSize(2)
	s := NewTFIDF(corpus, buildSchemed(t, docs, corpus))

	for _, query := range [][]string{nil, {"missing"}, {"apple", "missing"}, {"apple", "banana"}} {
		rs, err := s.Score(query)
		require.NoError(t, err)
		got, err := Collect(rs)
		require.NoError(t, err)
		assert.Empty(t, got, "%v", query)
	}
}

func TestScoreWithoutStore(t *testing.T) {
	_, err := NewTFIDF(CorpusSize(1), nil).Score([]string{"x"})
	assert.ErrorIs(t, err, apperrors.ErrPrecondition)
}

func TestTrimFrequent(t *testing.T) {
	assert.Equal(t, []bool{true, true}, trimFrequent([]int{1, 1000}))
	assert.Equal(t, []bool{true, true, true}, trimFrequent([]int{5, 5, 5}))
	assert.Equal(t,
		[]bool{true, true, true, true, true, false},
		trimFrequent([]int{1, 1, 1, 1, 1, 100}))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float64{1, 2}, []float64{2, 4}), 1e-12)
	assert.InDelta(t, 0.0, Cosine([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.Equal(t, 0.0, Cosine([]float64{0, 0}, []float64{1, 1}))
	assert.InDelta(t, 1.0, Cosine([]float64{3, math.NaN()}, []float64{5, math.NaN()}), 1e-12)
}

func TestChampions(t *testing.T) {
	docs := map[posting.DocID]map[string]int{
		1: {"apple": 1, "x": 9},
		2: {"apple": 5},
		3: {"apple": 2, "x": 1},
		4: {"pear": 1},
	}
	corpus := CorpusSize(len(docs))
	schemed := buildSchemed(t, docs, corpus)

	base := filepath.Join(t.TempDir(), "champion")
	w, err := store.Create(base, TFIDFSchema)
	require.NoError(t, err)
	require.NoError(t, BuildChampions(w, schemed, PropTFIDF))
	require.NoError(t, w.Close())

	r, err := store.Open(base, TFIDFSchema)
	require.NoError(t, err)
	defer r.Close()
	c := NewChampions(r)

	top, err := c.Top("apple", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, posting.DocID(2), top[0].DocID)
	assert.Equal(t, posting.DocID(3), top[1].DocID)
	assert.GreaterOrEqual(t, top[0].Get(PropTFIDF), top[1].Get(PropTFIDF))

	all, err := c.Top("apple", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := c.Top("missing", 3)
	require.NoError(t, err)
	assert.Empty(t, none)

	w2, err := store.Create(filepath.Join(t.TempDir(), "bad"), TFIDFSchema)
	require.NoError(t, err)
	defer w2.Close()
	assert.Error(t, BuildChampions(w2, schemed, "bm25"))
}

func TestNewScheme(t *testing.T) {
	s, err := NewScheme("tf_idf", CorpusSize(3), nil)
	require.NoError(t, err)
	assert.Equal(t, "tf_idf", s.Name())
	w, ok := s.(Weighted)
	require.True(t, ok)
	assert.Equal(t, PropTFIDF, w.WeightProperty())

	_, err = NewScheme("bm25", CorpusSize(3), nil)
	assert.Error(t, err)
}
