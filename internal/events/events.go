// Package events defines the messages the indexer and searcher exchange
// over Kafka and the batching query log the searcher publishes.
package events

import "time"

// GenerationComplete announces a finished generation. Searchers receiving
// it reload their stores and drop cached results of older generations.
type GenerationComplete struct {
	Generation string    `json:"generation"`
	DataDir    string    `json:"data_dir"`
	Documents  int       `json:"documents"`
	Indexes    []string  `json:"indexes"`
	Archive    string    `json:"archive,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Query records one answered search.
type Query struct {
	Query      string    `json:"query"`
	Generation string    `json:"generation"`
	Results    int       `json:"results"`
	Candidates int       `json:"candidates"`
	Stop       string    `json:"stop"`
	Fallback   bool      `json:"fallback"`
	CacheHit   bool      `json:"cache_hit"`
	LatencyMs  int64     `json:"latency_ms"`
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
