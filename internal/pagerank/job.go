package pagerank

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/directory"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
)

// Path resolves a generation-relative path from the PageRank config.
func Path(genDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(genDir, p)
}

// Compute ranks the documents of one generation and writes the table next
// to it. The link graph is cached in the generation and reused by later
// runs with different options.
func Compute(ctx context.Context, genDir string, dir *directory.Directory, cfg config.PageRankConfig) (*Table, error) {
	start := time.Now()
	g, err := LoadOrBuildGraph(ctx, Path(genDir, cfg.GraphCache), dir, PageLinks)
	if err != nil {
		return nil, fmt.Errorf("link graph: %w", err)
	}
	t := NewTable(Rank(g, Options{Iterations: cfg.Iterations, Damping: cfg.Damping}))
	if err := t.Save(Path(genDir, cfg.TablePath)); err != nil {
		return nil, fmt.Errorf("saving pagerank table: %w", err)
	}
	slog.Default().With("component", "pagerank").Info("pagerank computed",
		"documents", t.Len(),
		"elapsed", time.Since(start),
	)
	return t, nil
}
