// Package ranker fuses the result streams of several scored indexes into a
// single ranking under a wall-clock budget, then applies the static
// PageRank boost.
package ranker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/pagerank"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/scoring"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/merger"
	"github.com/RoaringBitmap/roaring/v2"
)

// StopReason records why the ranker stopped pulling results.
type StopReason string

const (
	StopBudget       StopReason = "budget"
	StopMaxDocuments StopReason = "max_documents"
	StopFullyScored  StopReason = "fully_scored"
	StopExhausted    StopReason = "exhausted"
	StopCancelled    StopReason = "cancelled"
)

// QueryTokenizer turns a raw query into the terms one index understands.
type QueryTokenizer interface {
	TokenizeQuery(query string) []string
}

// Scorer answers a tokenized query with a lazily evaluated result stream.
type Scorer interface {
	Score(query []string) (scoring.Results, error)
}

// Source is one index taking part in fusion.
type Source struct {
	Name      string
	Weight    float64
	Tokenizer QueryTokenizer
	Scorer    Scorer
}

type Options struct {
	Budget         time.Duration
	FallbackBudget time.Duration
	MaxDocuments   int
	FullyScored    int
	MinResults     int
	PageRankWeight float64
	DefaultLimit   int
}

// DefaultOptions returns the stock fusion limits.
func DefaultOptions() Options {
	return Options{
		Budget:         200 * time.Millisecond,
		FallbackBudget: 260 * time.Millisecond,
		MaxDocuments:   200,
		FullyScored:    40,
		MinResults:     10,
		PageRankWeight: 1,
		DefaultLimit:   20,
	}
}

// Response is the outcome of one fused query.
type Response struct {
	Results     []scoring.Result
	Stop        StopReason
	Fallback    bool
	Candidates  int
	FullyScored int
	Elapsed     time.Duration
}

type Ranker struct {
	sources []Source
	ranks   *pagerank.Table
	opts    Options
	now     func() time.Time
	logger  *slog.Logger
}

// New returns a ranker over sources. ranks may be nil, in which case no
// static boost is applied.
func New(sources []Source, ranks *pagerank.Table, opts Options) *Ranker {
	return &Ranker{
		sources: sources,
		ranks:   ranks,
		opts:    opts,
		now:     time.Now,
		logger:  slog.Default().With("component", "fusion-ranker"),
	}
}

func (r *Ranker) Sources() []Source { return r.sources }

type stream struct {
	source  *Source
	results scoring.Results
}

type accumulator struct {
	totals  map[posting.DocID]float64
	hits    map[posting.DocID]int
	full    *roaring.Bitmap
	streams int
}

func (a *accumulator) add(s *stream, res scoring.Result) {
	a.totals[res.DocID] += s.source.Weight * res.Score
	a.hits[res.DocID]++
	if a.hits[res.DocID] == a.streams {
		a.full.Add(uint32(res.DocID))
	}
}

// Search tokenizes query once per source, pulls round-robin from every
// source's stream until a stop condition holds, tops up from the heaviest
// source when too few documents were found, adds the PageRank boost and
// returns the limit best documents.
func (r *Ranker) Search(ctx context.Context, query string, limit int) (*Response, error) {
	start := r.now()
	if limit <= 0 {
		limit = r.opts.DefaultLimit
	}

	streams := make([]*stream, 0, len(r.sources))
	for i := range r.sources {
		src := &r.sources[i]
		terms := src.Tokenizer.TokenizeQuery(query)
		if len(terms) == 0 {
			continue
		}
		rs, err := src.Scorer.Score(terms)
		if err != nil {
			return nil, fmt.Errorf("scoring %s: %w", src.Name, err)
		}
		streams = append(streams, &stream{source: src, results: rs})
	}

	acc := &accumulator{
		totals:  make(map[posting.DocID]float64),
		hits:    make(map[posting.DocID]int),
		full:    roaring.New(),
		streams: len(streams),
	}
	stop, active, err := r.pull(ctx, start.Add(r.opts.Budget), streams, acc)
	if err != nil {
		return nil, err
	}

	fallback := false
	if len(acc.totals) < r.opts.MinResults && stop != StopCancelled {
		if best := heaviest(streams); best != nil && active[best] {
			fallback = true
			if err := r.topUp(ctx, start.Add(r.opts.FallbackBudget), best, acc); err != nil {
				return nil, err
			}
		}
	}

	if r.ranks.Len() > 0 && r.opts.PageRankWeight != 0 {
		for id := range acc.totals {
			if boost, ok := r.ranks.Get(id); ok {
				acc.totals[id] += r.opts.PageRankWeight * boost
			}
		}
	}

	resp := &Response{
		Results:     merger.TopK(acc.totals, limit),
		Stop:        stop,
		Fallback:    fallback,
		Candidates:  len(acc.totals),
		FullyScored: int(acc.full.GetCardinality()),
		Elapsed:     r.now().Sub(start),
	}
	r.logger.Debug("query fused",
		"query", query,
		"streams", len(streams),
		"candidates", resp.Candidates,
		"fully_scored", resp.FullyScored,
		"stop", resp.Stop,
		"fallback", resp.Fallback,
		"elapsed", resp.Elapsed,
	)
	return resp, nil
}

// pull runs the round-robin phase. It returns the stop reason and the set
// of streams that were still live when it stopped.
func (r *Ranker) pull(ctx context.Context, deadline time.Time, streams []*stream, acc *accumulator) (StopReason, map[*stream]bool, error) {
	active := make(map[*stream]bool, len(streams))
	order := make([]*stream, 0, len(streams))
	for _, s := range streams {
		active[s] = true
		order = append(order, s)
	}

	for len(order) > 0 {
		for i := 0; i < len(order); {
			if ctx.Err() != nil {
				return StopCancelled, active, nil
			}
			if !r.now().Before(deadline) {
				return StopBudget, active, nil
			}
			s := order[i]
			res, err := s.results.Next()
			if errors.Is(err, io.EOF) {
				delete(active, s)
				order = append(order[:i], order[i+1:]...)
				continue
			}
			if err != nil {
				return "", nil, fmt.Errorf("reading %s results: %w", s.source.Name, err)
			}
			acc.add(s, res)
			if r.opts.MaxDocuments > 0 && len(acc.totals) >= r.opts.MaxDocuments {
				return StopMaxDocuments, active, nil
			}
			if r.opts.FullyScored > 0 && int(acc.full.GetCardinality()) >= r.opts.FullyScored {
				return StopFullyScored, active, nil
			}
			i++
		}
	}
	return StopExhausted, active, nil
}

// topUp pulls from a single stream until the fallback deadline passes, the
// stream ends or the document cap is reached.
func (r *Ranker) topUp(ctx context.Context, deadline time.Time, s *stream, acc *accumulator) error {
	for ctx.Err() == nil && r.now().Before(deadline) {
		if r.opts.MaxDocuments > 0 && len(acc.totals) >= r.opts.MaxDocuments {
			return nil
		}
		res, err := s.results.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading %s results: %w", s.source.Name, err)
		}
		acc.add(s, res)
	}
	return nil
}

func heaviest(streams []*stream) *stream {
	var best *stream
	for _, s := range streams {
		if best == nil || s.source.Weight > best.source.Weight {
			best = s
		}
	}
	return best
}
