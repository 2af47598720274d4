package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/directory"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/scoring"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Generation is the outcome of one pipeline run.
type Generation struct {
	ID        string
	Dir       string
	Directory *directory.Directory
	Manifest  *Manifest
	Scan      ScanStats
	Indexes   []Stats
}

// Hook runs on a built generation before it becomes current. An error
// fails the run.
type Hook func(ctx context.Context, gen *Generation) error

// Pipeline scans the corpus once and builds every configured index in
// parallel into a fresh generation directory.
type Pipeline struct {
	cfg     config.IndexerConfig
	source  DocumentSource
	metrics *metrics.Metrics
	hooks   []Hook
	logger  *slog.Logger
}

// NewPipeline returns a pipeline reading from src. A nil src reads
// cfg.CorpusDir from disk.
func NewPipeline(cfg config.IndexerConfig, src DocumentSource, m *metrics.Metrics) *Pipeline {
	if src == nil {
		src = CorpusSource{Dir: cfg.CorpusDir}
	}
	return &Pipeline{
		cfg:     cfg,
		source:  src,
		metrics: m,
		logger:  slog.Default().With("component", "index-pipeline"),
	}
}

// BeforeCurrent registers a hook run after the generation is written and
// before CURRENT points at it.
func (p *Pipeline) BeforeCurrent(h Hook) {
	p.hooks = append(p.hooks, h)
}

// Run builds a new generation and, once every index is complete, points the
// data directory's CURRENT file at it. A failed run leaves CURRENT
// untouched.
func (p *Pipeline) Run(ctx context.Context) (*Generation, error) {
	start := time.Now()
	id := uuid.NewString()
	gen := &Generation{ID: id, Dir: GenerationDir(p.cfg.DataDir, id)}
	p.logger.Info("building generation", "generation", id, "indexes", len(p.cfg.Indexes))

	docs, scan, err := BuildDirectory(ctx, p.source, p.metrics)
	if err != nil {
		return nil, fmt.Errorf("scanning corpus: %w", err)
	}
	gen.Directory, gen.Scan = docs, scan

	builders := make([]*Builder, len(p.cfg.Indexes))
	for i, spec := range p.cfg.Indexes {
		b, err := p.builder(gen.Dir, spec, docs.Count())
		if err != nil {
			return nil, err
		}
		builders[i] = b
	}

	stats := make([]Stats, len(builders))
	g, gctx := errgroup.WithContext(ctx)
	if p.cfg.Workers > 0 {
		g.SetLimit(p.cfg.Workers)
	}
	for i, b := range builders {
		g.Go(func() error {
			s, err := b.Build(gctx, docs)
			if err != nil {
				return err
			}
			stats[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("building generation %s: %w", id, err)
	}
	gen.Indexes = stats

	for _, s := range stats {
		for doc, n := range s.Lengths {
			if err := docs.SetProperty(doc, s.Index+"_terms", float64(n)); err != nil {
				return nil, fmt.Errorf("recording document length: %w", err)
			}
		}
	}
	if err := docs.Save(filepath.Join(gen.Dir, DirectoryFile)); err != nil {
		return nil, fmt.Errorf("saving directory: %w", err)
	}

	gen.Manifest = p.manifest(id, docs.Count(), stats)
	if err := WriteManifest(gen.Dir, gen.Manifest); err != nil {
		return nil, err
	}
	for _, h := range p.hooks {
		if err := h(ctx, gen); err != nil {
			return nil, fmt.Errorf("generation %s: %w", id, err)
		}
	}
	if err := WriteCurrent(p.cfg.DataDir, id); err != nil {
		return nil, err
	}
	p.logger.Info("generation complete",
		"generation", id,
		"documents", docs.Count(),
		"elapsed", time.Since(start),
	)
	return gen, nil
}

func (p *Pipeline) builder(genDir string, spec config.IndexSpec, documents int) (*Builder, error) {
	tok, err := tokenizer.New(spec.Tokenizer)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", spec.Name, err)
	}
	scheme, err := scoring.NewScheme(spec.Scheme, scoring.CorpusSize(documents), nil)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", spec.Name, err)
	}
	return NewBuilder(BuilderConfig{
		Name:           spec.Name,
		GenerationDir:  genDir,
		Tokenizer:      tok,
		Scheme:         scheme,
		Source:         p.source,
		FlushThreshold: p.cfg.FlushThreshold,
		Champions:      p.cfg.Champions,
		KeepPartials:   p.cfg.KeepPartials,
		Metrics:        p.metrics,
	}), nil
}

func (p *Pipeline) manifest(id string, documents int, stats []Stats) *Manifest {
	m := &Manifest{
		Generation: id,
		CreatedAt:  time.Now().UTC(),
		Documents:  documents,
	}
	for i, spec := range p.cfg.Indexes {
		scheme := spec.Scheme
		if scheme == "" {
			scheme = "tf_idf"
		}
		m.Indexes = append(m.Indexes, IndexManifest{
			Name:      spec.Name,
			Tokenizer: spec.Tokenizer,
			Scheme:    scheme,
			Weight:    spec.Weight,
			Documents: stats[i].Documents,
			Terms:     stats[i].Terms,
			Postings:  stats[i].Postings,
			Champions: stats[i].Champions,
		})
	}
	return m
}
