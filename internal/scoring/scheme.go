// Package scoring turns raw term counts into weighted postings and answers
// queries against a weighted store. Each weighting is a Scheme; the TF-IDF
// scheme with cosine similarity is the default.
package scoring

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/store"
)

// Corpus reports the number of documents in the indexed collection.
type Corpus interface {
	Count() int
}

// CorpusSize is a fixed Corpus.
type CorpusSize int

func (c CorpusSize) Count() int { return int(c) }

// TermPosting pairs a term with the posting a document contributes to it.
type TermPosting struct {
	Term    string
	Posting posting.Posting
}

// Result is one scored document.
type Result struct {
	DocID posting.DocID
	Score float64
}

// Results is a lazily evaluated result stream. Next returns io.EOF when the
// stream is exhausted.
type Results interface {
	Next() (Result, error)
}

// Scheme is one weighting of an index: it creates raw postings at build
// time, finalizes them once document frequencies are known, and scores
// queries against the finalized store.
type Scheme interface {
	Name() string
	Schema() *posting.Schema
	CreatePostings(id posting.DocID, tokens tokenizer.Result) []TermPosting
	// FinalizePostings rewrites, in place, the complete merged postings of
	// one term.
	FinalizePostings(corpus Corpus, postings []posting.Posting)
	Score(query []string) (Results, error)
}

// Weighted is implemented by schemes whose postings carry a single weight
// property suitable for ordering champion lists.
type Weighted interface {
	WeightProperty() string
}

// NewScheme returns the scheme registered under name. r is the finalized
// store queries run against and may be nil at build time.
func NewScheme(name string, corpus Corpus, r *store.Reader) (Scheme, error) {
	switch name {
	case "tf_idf", "":
		return NewTFIDF(corpus, r), nil
	default:
		return nil, fmt.Errorf("unknown scoring scheme %q", name)
	}
}

// FinalizeStore runs scheme finalization over every term of src and writes
// the result to dst. src must be the merged store, never a single shard.
func FinalizeStore(dst *store.Writer, src *store.Reader, scheme Scheme, corpus Corpus) error {
	for _, term := range src.Terms() {
		ps, err := src.Postings(term)
		if err != nil {
			return fmt.Errorf("reading %q: %w", term, err)
		}
		scheme.FinalizePostings(corpus, ps)
		if err := dst.WriteKey(term); err != nil {
			return err
		}
		if err := dst.Write(ps...); err != nil {
			return fmt.Errorf("writing %q: %w", term, err)
		}
	}
	return nil
}

// Collect drains a result stream.
func Collect(rs Results) ([]Result, error) {
	var out []Result
	for {
		r, err := rs.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
}

type emptyResults struct{}

func (emptyResults) Next() (Result, error) { return Result{}, io.EOF }

// Empty is a result stream with no results.
var Empty Results = emptyResults{}

// Cosine returns the cosine similarity of a and b. NaN components are
// skipped when normalising and multiplying. A zero vector yields 0.
func Cosine(a, b []float64) float64 {
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := 0; i < len(a) && i < len(b); i++ {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		dot += (a[i] / na) * (b[i] / nb)
	}
	return dot
}

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		if math.IsNaN(x) {
			continue
		}
		sum += x * x
	}
	return math.Sqrt(sum)
}
