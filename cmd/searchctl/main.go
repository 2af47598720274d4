// Command searchctl queries and maintains corpus-search generations from
// the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/scoring"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	generation string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "searchctl",
	Short:         "Query and maintain corpus-search index generations",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.SetupWriter(os.Stderr, logLevel, "text")
		if configPath == "" {
			cfg = config.Default()
			return nil
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (built-in defaults when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
	rootCmd.PersistentFlags().StringVarP(&generation, "generation", "g", "", "generation id (CURRENT when empty)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCmd.SetOut(os.Stdout)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// selectedGeneration returns the id and directory of the generation the
// command works on.
func selectedGeneration() (string, string, error) {
	id := generation
	if id == "" {
		var err error
		if id, err = indexer.ReadCurrent(cfg.Indexer.DataDir); err != nil {
			return "", "", err
		}
	} else if !indexer.ValidGenerationID(id) {
		return "", "", fmt.Errorf("invalid generation id %q", id)
	}
	return id, indexer.GenerationDir(cfg.Indexer.DataDir, id), nil
}

// openStage opens one stage store of an index in the selected generation.
func openStage(index, stage string) (*store.Reader, *indexer.Manifest, error) {
	_, genDir, err := selectedGeneration()
	if err != nil {
		return nil, nil, err
	}
	m, err := indexer.ReadManifest(genDir)
	if err != nil {
		return nil, nil, err
	}
	ix, ok := m.Index(index)
	if !ok {
		return nil, nil, fmt.Errorf("generation %s has no index %q", m.Generation, index)
	}
	schema, err := schemaOf(ix.Scheme, m.Documents)
	if err != nil {
		return nil, nil, err
	}
	r, err := store.Open(indexer.StageBase(genDir, index, stage), schema)
	if err != nil {
		return nil, nil, err
	}
	return r, m, nil
}

func schemaOf(scheme string, documents int) (*posting.Schema, error) {
	s, err := scoring.NewScheme(scheme, scoring.CorpusSize(documents), nil)
	if err != nil {
		return nil, err
	}
	return s.Schema(), nil
}

// storeBase accepts a store path with or without its data extension.
func storeBase(path string) string {
	ext := filepath.Ext(path)
	if ext == store.DataExt || ext == store.PositionsExt {
		return path[:len(path)-len(ext)]
	}
	return path
}
