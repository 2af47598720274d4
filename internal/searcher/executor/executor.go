// Package executor serves fused queries against the generation the data
// directory currently points at, and swaps generations without dropping
// in-flight searches.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/tracing"
)

// ErrNoGeneration is returned while no generation has been loaded.
var ErrNoGeneration = apperrors.New(apperrors.ErrPrecondition, http.StatusServiceUnavailable, "no index generation loaded")

// Hit is one ranked document.
type Hit struct {
	DocID posting.DocID `json:"doc_id"`
	URL   string        `json:"url"`
	Score float64       `json:"score"`
}

// SearchResult is the answer to one query.
type SearchResult struct {
	Query       string  `json:"query"`
	Generation  string  `json:"generation"`
	Results     []Hit   `json:"results"`
	Candidates  int     `json:"candidates"`
	FullyScored int     `json:"fully_scored"`
	Stop        string  `json:"stop"`
	Fallback    bool    `json:"fallback"`
	ElapsedMs   float64 `json:"elapsed_ms"`
}

type Executor struct {
	dataDir  string
	pagerank config.PageRankConfig
	opts     ranker.Options
	metrics  *metrics.Metrics
	logger   *slog.Logger

	reloadMu sync.Mutex
	mu       sync.RWMutex
	current  *Generation
}

func New(dataDir string, pr config.PageRankConfig, opts ranker.Options, m *metrics.Metrics) *Executor {
	return &Executor{
		dataDir:  dataDir,
		pagerank: pr,
		opts:     opts,
		metrics:  m,
		logger:   slog.Default().With("component", "query-executor"),
	}
}

// RankingOptions maps the ranking config onto fusion options.
func RankingOptions(cfg config.RankingConfig) ranker.Options {
	return ranker.Options{
		Budget:         cfg.Budget,
		FallbackBudget: cfg.FallbackBudget,
		MaxDocuments:   cfg.MaxDocuments,
		FullyScored:    cfg.FullyScored,
		MinResults:     cfg.MinResults,
		PageRankWeight: cfg.PageRankWeight,
		DefaultLimit:   cfg.DefaultLimit,
	}
}

// Reload opens the generation named by CURRENT and makes it the one served.
// It reports false without error when that generation is already served.
// The replaced generation is closed once its in-flight searches finish.
func (e *Executor) Reload() (bool, error) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()
	id, err := indexer.ReadCurrent(e.dataDir)
	if err != nil {
		return false, err
	}
	if id == e.Generation() {
		return false, nil
	}
	start := time.Now()
	g, err := OpenGeneration(e.dataDir, id, e.pagerank, e.opts)
	if err != nil {
		return false, fmt.Errorf("loading generation %s: %w", id, err)
	}

	e.mu.Lock()
	old := e.current
	e.current = g
	e.mu.Unlock()

	e.logger.Info("generation loaded",
		"generation", id,
		"documents", g.Directory.Count(),
		"indexes", len(g.Manifest.Indexes),
		"pagerank", g.Ranks.Len() > 0,
		"elapsed", time.Since(start),
	)
	if old != nil {
		old.retire(func(err error) {
			if err != nil {
				e.logger.Warn("closing retired generation", "generation", old.ID, "error", err)
				return
			}
			e.logger.Info("generation retired", "generation", old.ID)
		})
	}
	return true, nil
}

// Generation returns the id of the served generation, or "" before the
// first successful Reload.
func (e *Executor) Generation() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		return ""
	}
	return e.current.ID
}

// Manifest returns the manifest of the served generation.
func (e *Executor) Manifest() (*indexer.Manifest, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		return nil, false
	}
	return e.current.Manifest, true
}

func (e *Executor) acquire() *Generation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current != nil {
		e.current.acquire()
	}
	return e.current
}

// Execute fuses every index of the served generation for query and maps
// the best limit documents to their URLs.
func (e *Executor) Execute(ctx context.Context, query string, limit int) (*SearchResult, error) {
	g := e.acquire()
	if g == nil {
		return nil, ErrNoGeneration
	}
	defer g.release()

	ctx, span := tracing.Start(ctx, "execute", "")
	defer span.End()

	fctx, fspan := tracing.Start(ctx, "fusion", "")
	resp, err := g.Ranker().Search(fctx, query, limit)
	fspan.End()
	if err != nil {
		e.countQuery("error")
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}
	fspan.Set("stop", string(resp.Stop))
	fspan.Set("candidates", resp.Candidates)

	_, rspan := tracing.Start(ctx, "resolve", "")
	hits := make([]Hit, 0, len(resp.Results))
	for _, res := range resp.Results {
		u, ok := g.Directory.FindURLByID(res.DocID)
		if !ok {
			e.logger.Warn("ranked document missing from directory", "doc_id", res.DocID, "generation", g.ID)
			continue
		}
		hits = append(hits, Hit{DocID: res.DocID, URL: u, Score: res.Score})
	}
	rspan.Set("hits", len(hits))
	rspan.End()

	if m := e.metrics; m != nil {
		m.FusionStopsTotal.WithLabelValues(string(resp.Stop), strconv.FormatBool(resp.Fallback)).Inc()
		m.SearchResultsCount.Observe(float64(len(hits)))
	}
	if len(hits) == 0 {
		e.countQuery("zero_results")
	} else {
		e.countQuery("success")
	}
	return &SearchResult{
		Query:       query,
		Generation:  g.ID,
		Results:     hits,
		Candidates:  resp.Candidates,
		FullyScored: resp.FullyScored,
		Stop:        string(resp.Stop),
		Fallback:    resp.Fallback,
		ElapsedMs:   float64(resp.Elapsed.Microseconds()) / 1000,
	}, nil
}

func (e *Executor) countQuery(resultType string) {
	if e.metrics != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}
}

// Close closes the served generation. In-flight searches finish first.
func (e *Executor) Close() error {
	e.mu.Lock()
	g := e.current
	e.current = nil
	e.mu.Unlock()
	if g == nil {
		return nil
	}
	done := make(chan error, 1)
	g.retire(func(err error) { done <- err })
	return <-done
}
