package executor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/directory"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/pagerank"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/scoring"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
)

// Generation is one opened, queryable generation. Searches hold a
// reference while they run; a retired generation closes its stores once
// the last reference is released.
type Generation struct {
	ID        string
	Dir       string
	Manifest  *indexer.Manifest
	Directory *directory.Directory
	Ranks     *pagerank.Table

	ranker  *ranker.Ranker
	readers []*store.Reader
	refs    sync.WaitGroup
}

// OpenGeneration opens the schemed store of every index named in the
// manifest of generation id. A missing PageRank table disables the static
// boost.
func OpenGeneration(dataDir, id string, pr config.PageRankConfig, opts ranker.Options) (*Generation, error) {
	dir := indexer.GenerationDir(dataDir, id)
	m, err := indexer.ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	docs, err := directory.Load(filepath.Join(dir, indexer.DirectoryFile))
	if err != nil {
		return nil, fmt.Errorf("generation %s: %w", id, err)
	}
	g := &Generation{ID: id, Dir: dir, Manifest: m, Directory: docs}

	g.Ranks, err = pagerank.LoadTable(pagerank.Path(dir, pr.TablePath))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("generation %s: %w", id, err)
	}

	corpus := scoring.CorpusSize(docs.Count())
	sources := make([]ranker.Source, 0, len(m.Indexes))
	for _, ix := range m.Indexes {
		src, err := g.openIndex(ix, corpus)
		if err != nil {
			g.close()
			return nil, fmt.Errorf("generation %s index %s: %w", id, ix.Name, err)
		}
		sources = append(sources, src)
	}
	g.ranker = ranker.New(sources, g.Ranks, opts)
	return g, nil
}

func (g *Generation) openIndex(ix indexer.IndexManifest, corpus scoring.Corpus) (ranker.Source, error) {
	tok, err := tokenizer.New(ix.Tokenizer)
	if err != nil {
		return ranker.Source{}, err
	}
	probe, err := scoring.NewScheme(ix.Scheme, corpus, nil)
	if err != nil {
		return ranker.Source{}, err
	}
	r, err := store.Open(indexer.StageBase(g.Dir, ix.Name, indexer.StageSchemed), probe.Schema())
	if err != nil {
		return ranker.Source{}, err
	}
	g.readers = append(g.readers, r)
	scheme, err := scoring.NewScheme(ix.Scheme, corpus, r)
	if err != nil {
		return ranker.Source{}, err
	}
	return ranker.Source{Name: ix.Name, Weight: ix.Weight, Tokenizer: tok, Scorer: scheme}, nil
}

// Ranker returns the fusion ranker over the generation's indexes.
func (g *Generation) Ranker() *ranker.Ranker { return g.ranker }

func (g *Generation) acquire() { g.refs.Add(1) }

func (g *Generation) release() { g.refs.Done() }

// retire closes the stores once every in-flight search has released the
// generation.
func (g *Generation) retire(done func(error)) {
	go func() {
		g.refs.Wait()
		done(g.close())
	}()
}

func (g *Generation) close() error {
	var first error
	for _, r := range g.readers {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	g.readers = nil
	return first
}
