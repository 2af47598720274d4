package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/publish"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/rpc"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "data_dir", cfg.Indexer.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}

	if err := os.MkdirAll(cfg.Indexer.DataDir, 0755); err != nil {
		slog.Error("failed to create data dir", "error", err)
		os.Exit(1)
	}
	exec := executor.New(cfg.Indexer.DataDir, cfg.PageRank, executor.RankingOptions(cfg.Ranking), m)
	defer exec.Close()

	var (
		queryCache  *cache.QueryCache
		redisClient *pkgredis.Client
	)
	if cfg.Redis.Addr != "" {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var invalidator reload.Invalidator
	if queryCache != nil {
		invalidator = queryCache
	}
	reloader := reload.New(exec, invalidator)
	if _, err := reloader.Reload(ctx); err != nil {
		slog.Warn("no generation loaded yet", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return reloader.Watch(gctx, cfg.Indexer.DataDir, 250*time.Millisecond)
	})

	var queryLog *events.QueryLog
	if len(cfg.Kafka.Brokers) > 0 {
		if cfg.Blob.Endpoint != "" {
			store, err := publish.NewMinioStore(ctx, cfg.Blob)
			if err != nil {
				slog.Warn("blob store unavailable, announced archives will not be fetched", "error", err)
			} else {
				reloader.FetchInto(publish.NewPublisher(store, cfg.Blob.Prefix), cfg.Indexer.DataDir)
			}
		}
		// Every searcher must see every announcement, so each joins a
		// consumer group of its own.
		host, _ := os.Hostname()
		group := fmt.Sprintf("%s-searcher-%s", cfg.Kafka.ConsumerGroup, host)
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, group, reloader.HandleMessage)
		g.Go(func() error { return consumer.Start(gctx) })

		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryLog)
		defer producer.Close()
		queryLog = events.NewQueryLog(producer, 100, 5*time.Second)
		queryLog.Start(gctx)
		defer queryLog.Close()
		slog.Info("kafka enabled", "announcements", cfg.Kafka.Topics.IndexComplete, "query_log", cfg.Kafka.Topics.QueryLog)
	}

	checker := health.NewChecker()
	checker.Register("generation", func(ctx context.Context) health.ComponentHealth {
		if gen := exec.Generation(); gen != "" {
			return health.ComponentHealth{Status: health.StatusUp, Message: gen}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "no generation loaded"}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: "breaker " + queryCache.BreakerState().String()}
	})
	slog.Info("health checks registered", "checks", checker.Names())

	h := handler.New(exec, queryCache, queryLog, m, handler.Options{
		DefaultLimit: cfg.Ranking.DefaultLimit,
		MaxResults:   cfg.Ranking.MaxResults,
	})

	if cfg.Server.RPCPort > 0 {
		rpcServer := rpc.NewServer()
		h.RegisterRPC(rpcServer)
		g.Go(func() error {
			return rpcServer.ListenAndServe(gctx, fmt.Sprintf(":%d", cfg.Server.RPCPort))
		})
	}

	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	chain = middleware.RateLimit(cfg.Ranking.RateLimit, cfg.Ranking.RateBurst)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		slog.Info("search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("search service error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}
