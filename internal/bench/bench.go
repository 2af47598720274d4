// Package bench drives a search endpoint with concurrent queries and
// summarises latency, status codes and how fusion stopped.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

type Config struct {
	Concurrency int
	Duration    time.Duration
	// Rate caps requests per second across workers; 0 is unlimited.
	Rate    float64
	Queries []string
}

// Outcome is one answered request.
type Outcome struct {
	Status int
	Stop   string
}

// QueryFunc issues one query.
type QueryFunc func(ctx context.Context, query string) (Outcome, error)

type Stats struct {
	total     atomic.Int64
	errors    atomic.Int64
	mu        sync.Mutex
	latencies []time.Duration
	statuses  map[int]int64
	stops     map[string]int64
}

func newStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 4096),
		statuses:  make(map[int]int64),
		stops:     make(map[string]int64),
	}
}

func (s *Stats) record(d time.Duration, out Outcome, err error) {
	s.total.Add(1)
	if err != nil {
		s.errors.Add(1)
		return
	}
	if out.Status < 200 || out.Status >= 300 {
		s.errors.Add(1)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies = append(s.latencies, d)
	s.statuses[out.Status]++
	if out.Stop != "" {
		s.stops[out.Stop]++
	}
}

// Report is the summary of a run.
type Report struct {
	Total    int64
	Errors   int64
	Elapsed  time.Duration
	Min      time.Duration
	Mean     time.Duration
	P50      time.Duration
	P90      time.Duration
	P99      time.Duration
	Max      time.Duration
	StdDev   time.Duration
	Statuses map[int]int64
	Stops    map[string]int64
}

func (r Report) RequestsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Total) / r.Elapsed.Seconds()
}

// Run issues queries round-robin from cfg.Concurrency workers until
// cfg.Duration passes or ctx is cancelled.
func Run(ctx context.Context, cfg Config, query QueryFunc) Report {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if len(cfg.Queries) == 0 {
		return Report{}
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Concurrency)
	}
	stats := newStats()
	start := time.Now()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(next int) {
			defer wg.Done()
			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				q := cfg.Queries[next%len(cfg.Queries)]
				next++
				t := time.Now()
				out, err := query(ctx, q)
				if ctx.Err() != nil {
					return
				}
				stats.record(time.Since(t), out, err)
			}
		}(w)
	}
	wg.Wait()
	return stats.report(time.Since(start))
}

func (s *Stats) report(elapsed time.Duration) Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := Report{
		Total:    s.total.Load(),
		Errors:   s.errors.Load(),
		Elapsed:  elapsed,
		Statuses: s.statuses,
		Stops:    s.stops,
	}
	if len(s.latencies) == 0 {
		return r
	}
	lat := slices.Clone(s.latencies)
	slices.Sort(lat)
	var sum time.Duration
	for _, l := range lat {
		sum += l
	}
	r.Mean = sum / time.Duration(len(lat))
	var sq float64
	for _, l := range lat {
		diff := float64(l - r.Mean)
		sq += diff * diff
	}
	r.StdDev = time.Duration(math.Sqrt(sq / float64(len(lat))))
	r.Min, r.Max = lat[0], lat[len(lat)-1]
	r.P50 = Percentile(lat, 50)
	r.P90 = Percentile(lat, 90)
	r.P99 = Percentile(lat, 99)
	return r
}

// Percentile returns the nearest-rank percentile p of sorted.
func Percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

// HTTPQuery returns a QueryFunc calling GET /search on baseURL.
func HTTPQuery(client *http.Client, baseURL string, limit int) QueryFunc {
	return func(ctx context.Context, query string) (Outcome, error) {
		target := fmt.Sprintf("%s/search?q=%s&limit=%d", baseURL, url.QueryEscape(query), limit)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return Outcome{}, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return Outcome{}, err
		}
		defer resp.Body.Close()
		out := Outcome{Status: resp.StatusCode}
		var body struct {
			Stop string `json:"stop"`
		}
		if resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&body) == nil {
			out.Stop = body.Stop
		}
		io.Copy(io.Discard, resp.Body)
		return out, nil
	}
}
