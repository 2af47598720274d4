package main

import (
	"net/http"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/bench"
	"github.com/spf13/cobra"
)

var defaultBenchQueries = []string{
	"inverted index",
	"search engine",
	"pagerank",
	"champion list",
	"cosine similarity",
	"posting list merge",
	"tf idf weighting",
	"query budget",
	"link analysis",
	"document frequency",
}

var (
	benchURL         string
	benchConcurrency int
	benchDuration    time.Duration
	benchRate        float64
	benchLimit       int
	benchQueries     []string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Load test a running searcher over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		queries := benchQueries
		if len(queries) == 0 {
			queries = defaultBenchQueries
		}
		client := &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        benchConcurrency * 2,
				MaxIdleConnsPerHost: benchConcurrency * 2,
				IdleConnTimeout:     90 * time.Second,
			},
		}
		cmd.Printf("target %s, %d workers, %s, %d queries\n", benchURL, benchConcurrency, benchDuration, len(queries))
		r := bench.Run(cmd.Context(), bench.Config{
			Concurrency: benchConcurrency,
			Duration:    benchDuration,
			Rate:        benchRate,
			Queries:     queries,
		}, bench.HTTPQuery(client, benchURL, benchLimit))

		cmd.Printf("requests %d, errors %d, %.1f req/s\n", r.Total, r.Errors, r.RequestsPerSecond())
		if r.Total == r.Errors {
			cmd.Println("no successful requests; is the searcher running?")
			return nil
		}
		cmd.Printf("latency min %s  mean %s  p50 %s  p90 %s  p99 %s  max %s  stddev %s\n",
			r.Min, r.Mean, r.P50, r.P90, r.P99, r.Max, r.StdDev)

		codes := make([]int, 0, len(r.Statuses))
		for code := range r.Statuses {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			cmd.Printf("  status %d: %d\n", code, r.Statuses[code])
		}
		stops := make([]string, 0, len(r.Stops))
		for stop := range r.Stops {
			stops = append(stops, stop)
		}
		sort.Strings(stops)
		for _, stop := range stops {
			cmd.Printf("  stop %-14s %d\n", stop, r.Stops[stop])
		}
		return nil
	},
}

func init() {
	benchCmd.Flags().StringVar(&benchURL, "url", "http://localhost:8080", "base URL of the searcher")
	benchCmd.Flags().IntVar(&benchConcurrency, "concurrency", 10, "number of concurrent workers")
	benchCmd.Flags().DurationVar(&benchDuration, "duration", 30*time.Second, "test duration")
	benchCmd.Flags().Float64Var(&benchRate, "rate", 0, "request rate cap per second (0 for none)")
	benchCmd.Flags().IntVar(&benchLimit, "limit", 10, "results per query")
	benchCmd.Flags().StringSliceVarP(&benchQueries, "query", "q", nil, "query to send (repeatable)")
	rootCmd.AddCommand(benchCmd)
}
