package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/directory"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/pagerank"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/publish"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	withPageRank := flag.Bool("pagerank", true, "compute PageRank before switching CURRENT")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer",
		"corpus_dir", cfg.Indexer.CorpusDir,
		"data_dir", cfg.Indexer.DataDir,
		"indexes", len(cfg.Indexer.Indexes),
	)

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

	if err := run(ctx, cfg, m, *withPageRank); err != nil {
		slog.Error("indexing failed", "error", err)
		os.Exit(1)
	}
	slog.Info("indexer finished")
}

func run(ctx context.Context, cfg *config.Config, m *metrics.Metrics, withPageRank bool) error {
	pipeline := indexer.NewPipeline(cfg.Indexer, nil, m)
	if withPageRank {
		pipeline.BeforeCurrent(func(ctx context.Context, gen *indexer.Generation) error {
			table, err := pagerank.Compute(ctx, gen.Dir, gen.Directory, cfg.PageRank)
			if err != nil {
				return fmt.Errorf("computing pagerank: %w", err)
			}
			slog.Info("pagerank computed", "generation", gen.ID, "documents", table.Len())
			return nil
		})
	}

	gen, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	if postgres.Enabled(cfg.Postgres) {
		if err := mirrorDirectory(ctx, cfg.Postgres, gen); err != nil {
			slog.Warn("directory mirror failed", "generation", gen.ID, "error", err)
		}
	}

	var archive string
	if cfg.Blob.Endpoint != "" {
		store, err := publish.NewMinioStore(ctx, cfg.Blob)
		if err != nil {
			return fmt.Errorf("connecting to blob store: %w", err)
		}
		archive, err = publish.NewPublisher(store, cfg.Blob.Prefix).Publish(ctx, cfg.Indexer.DataDir, gen.ID)
		if err != nil {
			return err
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		if err := announce(ctx, cfg, gen, archive); err != nil {
			return err
		}
	}
	return nil
}

func mirrorDirectory(ctx context.Context, cfg config.PostgresConfig, gen *indexer.Generation) error {
	pg, err := postgres.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer pg.Close()
	n, err := directory.SyncPostgres(ctx, pg, gen.ID, directory.MirrorIndex, gen.Directory)
	if err != nil {
		return err
	}
	slog.Info("directory mirrored to postgres", "generation", gen.ID, "rows", n)
	return nil
}

func announce(ctx context.Context, cfg *config.Config, gen *indexer.Generation, archive string) error {
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
	defer producer.Close()

	names := make([]string, 0, len(gen.Manifest.Indexes))
	for _, ix := range gen.Manifest.Indexes {
		names = append(names, ix.Name)
	}
	evt := events.GenerationComplete{
		Generation: gen.ID,
		DataDir:    cfg.Indexer.DataDir,
		Documents:  gen.Manifest.Documents,
		Indexes:    names,
		Archive:    archive,
		CreatedAt:  gen.Manifest.CreatedAt,
	}
	if err := producer.Publish(ctx, kafka.Event{Key: gen.ID, Value: evt}); err != nil {
		return fmt.Errorf("announcing generation %s: %w", gen.ID, err)
	}
	slog.Info("generation announced", "generation", gen.ID, "topic", cfg.Kafka.Topics.IndexComplete)
	return nil
}
