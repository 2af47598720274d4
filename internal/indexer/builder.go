// Package indexer builds the stores of every configured index from a corpus.
// Each index is built by its own Builder in four stages: documents are
// tokenized into an in-memory dictionary flushed to numbered partial stores,
// the partials are merged into the finalized store, the scoring scheme
// rewrites the finalized store into the schemed store, and the champion
// store orders each term's postings by weight.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/directory"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/merge"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/scoring"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
)

// DefaultFlushThreshold is the dictionary size, in postings, that triggers
// a partial flush.
const DefaultFlushThreshold = 200000

// BuilderConfig configures one index build.
type BuilderConfig struct {
	Name string
	// GenerationDir is the generation the index is written into.
	GenerationDir  string
	Tokenizer      tokenizer.Tokenizer
	Scheme         scoring.Scheme
	Source         DocumentSource
	FlushThreshold int
	Champions      bool
	KeepPartials   bool
	Metrics        *metrics.Metrics
}

// Stats summarises one index build.
type Stats struct {
	Index     string
	Documents int
	Skipped   int
	Partials  int
	Terms     int
	Postings  int64
	Champions bool
	Elapsed   time.Duration
	// Lengths holds the number of terms extracted from each indexed
	// document.
	Lengths map[posting.DocID]int
}

// Builder builds one index. It owns its dictionary and stores and shares
// nothing mutable with other builders.
type Builder struct {
	cfg    BuilderConfig
	dict   *index.Dictionary
	logger *slog.Logger
}

func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.FlushThreshold <= 0 {
		cfg.FlushThreshold = DefaultFlushThreshold
	}
	return &Builder{
		cfg:    cfg,
		dict:   index.NewDictionary(),
		logger: slog.Default().With("component", "indexer", "index", cfg.Name),
	}
}

func (b *Builder) partialsDir() string {
	return filepath.Join(IndexDir(b.cfg.GenerationDir, b.cfg.Name), PartialsDir)
}

func (b *Builder) base(stage string) string {
	return StageBase(b.cfg.GenerationDir, b.cfg.Name, stage)
}

// Build runs every stage over the documents of docs, in id order.
func (b *Builder) Build(ctx context.Context, docs *directory.Directory) (Stats, error) {
	start := time.Now()
	stats := Stats{Index: b.cfg.Name, Lengths: make(map[posting.DocID]int)}

	if err := b.timed("partials", func() error { return b.index(ctx, docs, &stats) }); err != nil {
		return stats, err
	}
	if err := b.timed(StageFinalized, func() error { return b.finalize(&stats) }); err != nil {
		return stats, err
	}
	corpus := scoring.CorpusSize(docs.Count())
	if err := b.timed(StageSchemed, func() error { return b.applyScheme(corpus) }); err != nil {
		return stats, err
	}
	if weighted, ok := b.cfg.Scheme.(scoring.Weighted); b.cfg.Champions && ok {
		err := b.timed(StageChampion, func() error { return b.champions(weighted.WeightProperty()) })
		if err != nil {
			return stats, err
		}
		stats.Champions = true
	} else if b.cfg.Champions {
		b.logger.Info("scheme has no weight property, champion list skipped", "scheme", b.cfg.Scheme.Name())
	}
	if !b.cfg.KeepPartials {
		if err := segment.RemoveAll(b.partialsDir()); err != nil {
			b.logger.Warn("partials not removed", "error", err)
		}
	}

	stats.Elapsed = time.Since(start)
	b.logger.Info("index built",
		"documents", stats.Documents,
		"skipped", stats.Skipped,
		"partials", stats.Partials,
		"terms", stats.Terms,
		"postings", stats.Postings,
		"elapsed", stats.Elapsed,
	)
	return stats, nil
}

func (b *Builder) timed(stage string, fn func() error) error {
	start := time.Now()
	if err := fn(); err != nil {
		return fmt.Errorf("index %s stage %s: %w", b.cfg.Name, stage, err)
	}
	if m := b.cfg.Metrics; m != nil {
		m.StageDuration.WithLabelValues(b.cfg.Name, stage).Observe(time.Since(start).Seconds())
	}
	b.logger.Debug("stage complete", "stage", stage, "elapsed", time.Since(start))
	return nil
}

// index tokenizes every document into the dictionary, flushing a partial
// store whenever the dictionary reaches the threshold.
func (b *Builder) index(ctx context.Context, docs *directory.Directory, stats *Stats) error {
	seg := segment.NewWriter(b.partialsDir(), b.cfg.Scheme.Schema())
	b.dict.Reset()
	for _, id := range docs.IDs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, _ := docs.Record(id)
		page, err := b.load(rec)
		if err != nil {
			b.logger.Warn("skipping document", "doc_id", id, "file", rec.File, "error", err)
			b.skipped(stats, SkipUnreadable)
			continue
		}
		tokens := b.cfg.Tokenizer.Tokenize(rec.URL, page)
		postings := b.cfg.Scheme.CreatePostings(id, tokens)
		if len(postings) == 0 {
			b.skipped(stats, "no_terms")
			continue
		}
		for _, tp := range postings {
			b.dict.Add(tp.Term, tp.Posting)
		}
		stats.Documents++
		stats.Lengths[id] = tokens.Total
		if m := b.cfg.Metrics; m != nil {
			m.DocsIndexedTotal.WithLabelValues(b.cfg.Name).Inc()
		}
		if b.dict.Postings() >= b.cfg.FlushThreshold {
			if err := b.flush(seg, stats); err != nil {
				return err
			}
		}
	}
	if b.dict.Postings() > 0 {
		return b.flush(seg, stats)
	}
	return nil
}

func (b *Builder) load(rec directory.Record) (*tokenizer.Page, error) {
	doc, err := b.cfg.Source.Load(rec.File)
	if err != nil {
		return nil, err
	}
	return tokenizer.ParsePage(doc.Content)
}

func (b *Builder) skipped(stats *Stats, reason string) {
	stats.Skipped++
	if m := b.cfg.Metrics; m != nil {
		m.DocsSkippedTotal.WithLabelValues(b.cfg.Name, reason).Inc()
	}
}

func (b *Builder) flush(seg *segment.Writer, stats *Stats) error {
	postings, terms, documents := b.dict.Postings(), b.dict.Terms(), b.dict.Documents()
	base, err := seg.Write(b.dict.Snapshot())
	if err != nil {
		return fmt.Errorf("flushing dictionary: %w", err)
	}
	b.dict.Reset()
	stats.Partials++
	if m := b.cfg.Metrics; m != nil {
		m.PartialFlushesTotal.WithLabelValues(b.cfg.Name).Inc()
		m.PostingsWrittenTotal.WithLabelValues(b.cfg.Name, "partial").Add(float64(postings))
	}
	b.logger.Info("partial flushed",
		"partial", filepath.Base(base),
		"postings", postings,
		"terms", terms,
		"documents", documents,
	)
	return nil
}

// finalize merges every partial into the finalized store.
func (b *Builder) finalize(stats *Stats) error {
	schema := b.cfg.Scheme.Schema()
	readers, err := segment.OpenAll(b.partialsDir(), schema)
	if err != nil {
		return err
	}
	defer segment.CloseAll(readers)

	start := time.Now()
	w, err := store.Create(b.base(StageFinalized), schema)
	if err != nil {
		return err
	}
	ms, err := merge.Merge(w, readers...)
	if err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	stats.Terms = ms.Terms
	stats.Postings = ms.Postings
	if m := b.cfg.Metrics; m != nil {
		m.MergeDuration.WithLabelValues(b.cfg.Name).Observe(time.Since(start).Seconds())
		m.PostingsWrittenTotal.WithLabelValues(b.cfg.Name, StageFinalized).Add(float64(ms.Postings))
	}
	b.logger.Info("partials merged",
		"partials", len(readers),
		"terms", ms.Terms,
		"postings", ms.Postings,
		"elapsed", time.Since(start),
	)
	return nil
}

// applyScheme rewrites the finalized store with scheme weights. It runs once
// over the merged store so document frequencies are global.
func (b *Builder) applyScheme(corpus scoring.Corpus) error {
	schema := b.cfg.Scheme.Schema()
	r, err := store.Open(b.base(StageFinalized), schema)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := store.Create(b.base(StageSchemed), schema)
	if err != nil {
		return err
	}
	if err := scoring.FinalizeStore(w, r, b.cfg.Scheme, corpus); err != nil {
		w.Close()
		return err
	}
	if m := b.cfg.Metrics; m != nil {
		m.PostingsWrittenTotal.WithLabelValues(b.cfg.Name, StageSchemed).Add(float64(w.Postings()))
	}
	return w.Close()
}

// champions writes each term's postings ordered by descending weight.
func (b *Builder) champions(weight string) error {
	schema := b.cfg.Scheme.Schema()
	r, err := store.Open(b.base(StageSchemed), schema)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := store.Create(b.base(StageChampion), schema)
	if err != nil {
		return err
	}
	if err := scoring.BuildChampions(w, r, weight); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
