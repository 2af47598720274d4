// Package handler exposes the searcher over HTTP: fused search, generation
// stats and cache administration.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/tracing"
)

// maxQueryLen bounds the raw query string.
const maxQueryLen = 512

type SearchExecutor interface {
	Execute(ctx context.Context, query string, limit int) (*executor.SearchResult, error)
	Generation() string
	Manifest() (*indexer.Manifest, bool)
}

type Options struct {
	DefaultLimit int
	MaxResults   int
}

type Handler struct {
	executor SearchExecutor
	cache    *cache.QueryCache
	queryLog *events.QueryLog
	metrics  *metrics.Metrics
	opts     Options
	logger   *slog.Logger
}

// New returns a handler. queryCache, queryLog and m may each be nil.
func New(exec SearchExecutor, queryCache *cache.QueryCache, queryLog *events.QueryLog, m *metrics.Metrics, opts Options) *Handler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 20
	}
	if opts.MaxResults < opts.DefaultLimit {
		opts.MaxResults = opts.DefaultLimit
	}
	return &Handler{
		executor: exec,
		cache:    queryCache,
		queryLog: queryLog,
		metrics:  m,
		opts:     opts,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /search", h.Search)
	mux.HandleFunc("GET /stats", h.Stats)
	mux.HandleFunc("GET /cache/stats", h.CacheStats)
	mux.HandleFunc("POST /cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	if len(query) > maxQueryLen {
		h.writeError(w, http.StatusBadRequest, "query is too long")
		return
	}
	limit := h.opts.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, h.opts.MaxResults)
	}

	result, err := h.search(ctx, query, limit)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			status = http.StatusServiceUnavailable
		}
		log.Error("search failed", "query", query, "status", status, "error", err)
		h.writeError(w, status, http.StatusText(status))
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// search answers query through the cache when one is configured, then
// records latency and the query log entry.
func (h *Handler) search(ctx context.Context, query string, limit int) (*executor.SearchResult, error) {
	start := time.Now()
	log := logger.FromContext(ctx)
	ctx, span := tracing.Start(ctx, "search", middleware.GetRequestID(ctx))
	generation := h.executor.Generation()
	var (
		result   *executor.SearchResult
		err      error
		cacheHit bool
	)
	if h.cache != nil && generation != "" {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, generation, query, limit, func() (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, query, limit)
		})
	} else {
		result, err = h.executor.Execute(ctx, query, limit)
	}
	span.Set("cache_hit", cacheHit)
	span.End()
	span.Log(ctx, log)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	if h.metrics != nil {
		status := "miss"
		if cacheHit {
			status = "hit"
		}
		h.metrics.SearchLatency.WithLabelValues(status).Observe(elapsed.Seconds())
	}
	log.Info("search completed",
		"query", query,
		"generation", result.Generation,
		"returned", len(result.Results),
		"candidates", result.Candidates,
		"stop", result.Stop,
		"cache_hit", cacheHit,
		"latency_ms", elapsed.Milliseconds(),
	)
	if h.queryLog != nil {
		h.queryLog.Track(events.Query{
			Query:      query,
			Generation: result.Generation,
			Results:    len(result.Results),
			Candidates: result.Candidates,
			Stop:       result.Stop,
			Fallback:   result.Fallback,
			CacheHit:   cacheHit,
			LatencyMs:  elapsed.Milliseconds(),
			RequestID:  middleware.GetRequestID(ctx),
			Timestamp:  time.Now().UTC(),
		})
	}
	return result, nil
}

// Stats reports the manifest of the served generation.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	m, ok := h.executor.Manifest()
	if !ok {
		h.writeError(w, http.StatusServiceUnavailable, "no index generation loaded")
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"hit_rate": hitRate,
		"breaker":  h.cache.BreakerState().String(),
	})
}

// CacheInvalidate drops cached results, of one generation when the
// generation parameter is given and of all otherwise.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	var (
		deleted int64
		err     error
	)
	if gen := r.URL.Query().Get("generation"); gen != "" {
		deleted, err = h.cache.InvalidateGeneration(r.Context(), gen)
	} else {
		deleted, err = h.cache.Invalidate(r.Context())
	}
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
