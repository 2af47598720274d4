// Package reload swaps the searcher onto new index generations. A reload is
// triggered by a GenerationComplete event from Kafka or by the CURRENT file
// changing under the data directory; either way the executor reopens the
// stores and results cached for the replaced generation are dropped.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
)

// Target is the executor being reloaded.
type Target interface {
	Reload() (bool, error)
	Generation() string
}

// Invalidator drops cached results of a generation.
type Invalidator interface {
	InvalidateGeneration(ctx context.Context, generation string) (int64, error)
}

// Fetcher downloads a published generation into a data directory.
// *publish.Publisher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, dataDir, generation string) error
}

type Reloader struct {
	target  Target
	cache   Invalidator
	fetcher Fetcher
	dataDir string
	mu      sync.Mutex
	logger  *slog.Logger
}

// New returns a reloader. cache may be nil.
func New(target Target, cache Invalidator) *Reloader {
	return &Reloader{
		target: target,
		cache:  cache,
		logger: slog.Default().With("component", "generation-reloader"),
	}
}

// FetchInto makes HandleMessage download announced generations that carry
// an archive into dataDir and point CURRENT at them before reloading.
func (r *Reloader) FetchInto(f Fetcher, dataDir string) {
	r.fetcher = f
	r.dataDir = dataDir
}

// Reload reopens the generation CURRENT names and reports whether it
// changed. Cached results of the replaced generation are invalidated; a
// failed invalidation is logged since those keys can no longer be reached.
func (r *Reloader) Reload(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.target.Generation()
	changed, err := r.target.Reload()
	if err != nil {
		return false, fmt.Errorf("reloading generation: %w", err)
	}
	if !changed {
		return false, nil
	}
	r.logger.Info("generation swapped", "from", previous, "to", r.target.Generation())
	if previous != "" && r.cache != nil {
		if _, err := r.cache.InvalidateGeneration(ctx, previous); err != nil {
			r.logger.Warn("invalidating replaced generation failed", "generation", previous, "error", err)
		}
	}
	return true, nil
}

// HandleMessage is a kafka.MessageHandler for GenerationComplete events.
func (r *Reloader) HandleMessage(ctx context.Context, key, value []byte) error {
	evt, err := kafka.DecodeJSON[events.GenerationComplete](value)
	if err != nil {
		r.logger.Error("dropping undecodable event", "key", string(key), "error", err)
		return nil
	}
	if evt.Generation == r.target.Generation() {
		r.logger.Debug("generation already served", "generation", evt.Generation)
		return nil
	}
	r.logger.Info("generation announced", "generation", evt.Generation, "documents", evt.Documents)
	if r.fetcher != nil && evt.Archive != "" {
		if err := r.fetcher.Fetch(ctx, r.dataDir, evt.Generation); err != nil {
			return fmt.Errorf("fetching generation %s: %w", evt.Generation, err)
		}
		if err := indexer.WriteCurrent(r.dataDir, evt.Generation); err != nil {
			return err
		}
	}
	_, err = r.Reload(ctx)
	return err
}
