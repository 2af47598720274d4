// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Indexer, Ranking, PageRank, Redis, Kafka, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Postgres PostgresConfig `yaml:"postgres"`
	Blob     BlobConfig     `yaml:"blob"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Ranking  RankingConfig  `yaml:"ranking"`
	PageRank PageRankConfig `yaml:"pagerank"`
}

// ServerConfig holds HTTP server settings. RPCPort 0 disables the RPC
// listener.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	RPCPort         int           `yaml:"rpcPort"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters. An empty Host
// disables the directory mirror.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. No brokers disables
// generation events.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete string `yaml:"indexComplete"`
	QueryLog      string `yaml:"queryLog"`
}

// RedisConfig holds Redis connection and caching parameters. An empty Addr
// disables the result cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// BlobConfig points at the S3-compatible bucket finished generations are
// published to. An empty Endpoint disables publishing.
type BlobConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	UseSSL    bool   `yaml:"useSSL"`
	Prefix    string `yaml:"prefix"`
}

// IndexSpec names one index, the tokenizer that feeds it, its scoring
// scheme and its weight in fusion.
type IndexSpec struct {
	Name      string  `yaml:"name"`
	Tokenizer string  `yaml:"tokenizer"`
	Scheme    string  `yaml:"scheme"`
	Weight    float64 `yaml:"weight"`
}

// IndexerConfig controls where the corpus is read from, where stores are
// written and when in-memory postings are flushed.
type IndexerConfig struct {
	CorpusDir      string      `yaml:"corpusDir"`
	DataDir        string      `yaml:"dataDir"`
	FlushThreshold int         `yaml:"flushThreshold"`
	Workers        int         `yaml:"workers"`
	Champions      bool        `yaml:"champions"`
	KeepPartials   bool        `yaml:"keepPartials"`
	Indexes        []IndexSpec `yaml:"indexes"`
}

// RankingConfig controls fusion limits and query surface limits.
type RankingConfig struct {
	Budget         time.Duration `yaml:"budget"`
	FallbackBudget time.Duration `yaml:"fallbackBudget"`
	MaxDocuments   int           `yaml:"maxDocuments"`
	FullyScored    int           `yaml:"fullyScored"`
	MinResults     int           `yaml:"minResults"`
	DefaultLimit   int           `yaml:"defaultLimit"`
	MaxResults     int           `yaml:"maxResults"`
	PageRankWeight float64       `yaml:"pageRankWeight"`
	RateLimit      float64       `yaml:"rateLimit"`
	RateBurst      int           `yaml:"rateBurst"`
}

// PageRankConfig controls the link analysis job. GraphCache and TablePath
// are relative to the generation directory unless absolute.
type PageRankConfig struct {
	Iterations int     `yaml:"iterations"`
	Damping    float64 `yaml:"damping"`
	GraphCache string  `yaml:"graphCache"`
	TablePath  string  `yaml:"tablePath"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// Validate rejects configurations the indexer or searcher cannot run with.
func (c *Config) Validate() error {
	if len(c.Indexer.Indexes) == 0 {
		return fmt.Errorf("config: at least one index must be configured")
	}
	seen := make(map[string]bool, len(c.Indexer.Indexes))
	for _, ix := range c.Indexer.Indexes {
		if ix.Name == "" {
			return fmt.Errorf("config: index with empty name")
		}
		if seen[ix.Name] {
			return fmt.Errorf("config: duplicate index %q", ix.Name)
		}
		seen[ix.Name] = true
		if ix.Weight < 0 {
			return fmt.Errorf("config: index %q has negative weight", ix.Name)
		}
	}
	if c.Indexer.FlushThreshold <= 0 {
		return fmt.Errorf("config: indexer.flushThreshold must be positive")
	}
	if c.Ranking.FallbackBudget < c.Ranking.Budget {
		return fmt.Errorf("config: ranking.fallbackBudget must not be shorter than ranking.budget")
	}
	if c.PageRank.Damping <= 0 || c.PageRank.Damping >= 1 {
		return fmt.Errorf("config: pagerank.damping must be in (0, 1)")
	}
	return nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			RPCPort:         9000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Redis: RedisConfig{
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "corpus-search",
			Topics: KafkaTopics{
				IndexComplete: "index.complete",
				QueryLog:      "search.queries",
			},
		},
		Postgres: PostgresConfig{
			Port:            5432,
			Database:        "corpussearch",
			User:            "corpussearch",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Blob: BlobConfig{
			Bucket: "corpus-search",
			Prefix: "generations",
		},
		Indexer: IndexerConfig{
			CorpusDir:      "corpus",
			DataDir:        "data",
			FlushThreshold: 200000,
			Champions:      true,
			Indexes: []IndexSpec{
				{Name: "words", Tokenizer: "word", Weight: 1.0},
				{Name: "bigrams", Tokenizer: "bigram", Weight: 0.5},
				{Name: "trigrams", Tokenizer: "trigram", Weight: 0.25},
				{Name: "bold", Tokenizer: "bold", Weight: 0.5},
			},
		},
		Ranking: RankingConfig{
			Budget:         200 * time.Millisecond,
			FallbackBudget: 260 * time.Millisecond,
			MaxDocuments:   200,
			FullyScored:    40,
			MinResults:     10,
			DefaultLimit:   20,
			MaxResults:     100,
			PageRankWeight: 1.0,
			RateLimit:      50,
			RateBurst:      100,
		},
		PageRank: PageRankConfig{
			Iterations: 20,
			Damping:    0.85,
			GraphCache: "links.json.zst",
			TablePath:  "pagerank.csv",
		},
	}
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_SERVER_RPC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.RPCPort = port
		}
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SP_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_BLOB_ENDPOINT"); v != "" {
		cfg.Blob.Endpoint = v
	}
	if v := os.Getenv("SP_BLOB_ACCESS_KEY"); v != "" {
		cfg.Blob.AccessKey = v
	}
	if v := os.Getenv("SP_BLOB_SECRET_KEY"); v != "" {
		cfg.Blob.SecretKey = v
	}
	if v := os.Getenv("SP_INDEXER_CORPUS_DIR"); v != "" {
		cfg.Indexer.CorpusDir = v
	}
	if v := os.Getenv("SP_INDEXER_DATA_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("SP_INDEXER_FLUSH_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.FlushThreshold = n
		}
	}
	if v := os.Getenv("SP_RANKING_BUDGET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Ranking.Budget = d
		}
	}
	if v := os.Getenv("SP_RANKING_FALLBACK_BUDGET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Ranking.FallbackBudget = d
		}
	}
}
