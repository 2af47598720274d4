package scoring

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/merge"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

const (
	PropCount = "count"
	PropTF    = "tf"
	PropTFIDF = "tf_idf"

	// spamDeviations is how many standard deviations above the mean query
	// term document frequency a term may sit before it is dropped.
	spamDeviations = 2
	// spamMinTerms is the distinct term count above which trimming applies.
	spamMinTerms = 2
)

// TFIDFSchema is the posting layout of every TF-IDF store.
var TFIDFSchema = posting.NewSchema("tf_idf").
	Int(PropCount).
	Float(PropTF).
	Float(PropTFIDF).
	MustBuild()

// TFIDF weights postings by sublinear term frequency times inverse document
// frequency and scores queries by cosine similarity.
type TFIDF struct {
	corpus Corpus
	store  *store.Reader
	logger *slog.Logger
}

// NewTFIDF returns a TF-IDF scheme. r is the finalized store queries run
// against; it may be nil for a scheme used only to build.
func NewTFIDF(corpus Corpus, r *store.Reader) *TFIDF {
	return &TFIDF{
		corpus: corpus,
		store:  r,
		logger: slog.Default().With("component", "tfidf"),
	}
}

func (s *TFIDF) Name() string { return "tf_idf" }

func (s *TFIDF) Schema() *posting.Schema { return TFIDFSchema }

func (s *TFIDF) WeightProperty() string { return PropTFIDF }

// CreatePostings emits one posting per observed term with its raw count and
// count / total. tf_idf stays zero until FinalizePostings.
func (s *TFIDF) CreatePostings(id posting.DocID, tokens tokenizer.Result) []TermPosting {
	if tokens.Total == 0 {
		return nil
	}
	out := make([]TermPosting, 0, len(tokens.Counts))
	for term, count := range tokens.Counts {
		p := TFIDFSchema.New(id)
		p.Set(PropCount, float64(count))
		p.Set(PropTF, float64(count)/float64(tokens.Total))
		out = append(out, TermPosting{Term: term, Posting: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Term < out[j].Term })
	return out
}

// FinalizePostings sets tf_idf = idf * log10(1 + tf) on every posting, with
// idf = log10(N / df) and df the number of postings of the term.
func (s *TFIDF) FinalizePostings(corpus Corpus, postings []posting.Posting) {
	idf := IDF(corpus.Count(), len(postings))
	for _, p := range postings {
		p.Set(PropTFIDF, idf*math.Log10(1+p.Get(PropTF)))
	}
}

// IDF returns log10(documents / df), or 0 when df is zero.
func IDF(documents, df int) float64 {
	if df <= 0 || documents <= 0 {
		return 0
	}
	return math.Log10(float64(documents) / float64(df))
}

// Score returns the documents containing every retained query term, with
// their cosine similarity to the query. A query that loses all its terms to
// the frequency trim, or names a term absent from the store, yields no
// results.
func (s *TFIDF) Score(query []string) (Results, error) {
	if s.store == nil {
		return nil, apperrors.Preconditionf("tf_idf scheme has no store to score against")
	}
	terms, counts := distinct(query)
	if len(terms) == 0 {
		return Empty, nil
	}
	dfs := make([]int, len(terms))
	for i, term := range terms {
		dfs[i] = s.store.Count(term)
		if dfs[i] == 0 {
			s.logger.Debug("query term not indexed", "term", term, "reason", apperrors.ErrDegenerateQuery)
			return Empty, nil
		}
	}

	keep := trimFrequent(dfs)
	documents := s.corpus.Count()
	weights := make([]float64, 0, len(terms))
	its := make([]posting.Iterator, 0, len(terms))
	for i, term := range terms {
		if !keep[i] {
			continue
		}
		it, err := s.store.Iterator(term)
		if err != nil {
			return nil, fmt.Errorf("scoring %q: %w", term, err)
		}
		tf := float64(counts[term]) / float64(len(query))
		weights = append(weights, math.Log10(1+tf)*IDF(documents, dfs[i]))
		its = append(its, it)
	}
	if len(its) == 0 {
		s.logger.Debug("all query terms trimmed", "terms", terms, "reason", apperrors.ErrDegenerateQuery)
		return Empty, nil
	}
	return &cosineResults{query: weights, x: merge.Intersect(its...)}, nil
}

// trimFrequent keeps every term when there are at most spamMinTerms of
// them, and otherwise drops terms whose document frequency exceeds the mean
// by more than spamDeviations population standard deviations.
func trimFrequent(dfs []int) []bool {
	keep := make([]bool, len(dfs))
	for i := range keep {
		keep[i] = true
	}
	if len(dfs) <= spamMinTerms {
		return keep
	}
	var mean float64
	for _, df := range dfs {
		mean += float64(df)
	}
	mean /= float64(len(dfs))
	var variance float64
	for _, df := range dfs {
		d := float64(df) - mean
		variance += d * d
	}
	limit := mean + spamDeviations*math.Sqrt(variance/float64(len(dfs)))
	for i, df := range dfs {
		keep[i] = float64(df) <= limit
	}
	return keep
}

func distinct(query []string) ([]string, map[string]int) {
	counts := make(map[string]int, len(query))
	var terms []string
	for _, term := range query {
		if counts[term] == 0 {
			terms = append(terms, term)
		}
		counts[term]++
	}
	sort.Strings(terms)
	return terms, counts
}

type cosineResults struct {
	query []float64
	x     *merge.Intersector
	doc   []float64
}

func (c *cosineResults) Next() (Result, error) {
	ip, err := c.x.Next()
	if err != nil {
		return Result{}, err
	}
	c.doc = c.doc[:0]
	for _, p := range ip.Postings {
		c.doc = append(c.doc, p.Get(PropTFIDF))
	}
	return Result{DocID: ip.DocID, Score: Cosine(c.query, c.doc)}, nil
}
