// Package pagerank computes a static link-based authority score per document
// by fixed-round power iteration over the corpus link graph.
package pagerank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/directory"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/klauspost/compress/zstd"
)

// Graph is the resolved link graph of one index generation.
type Graph struct {
	// Links maps a source document to its targets and link multiplicity.
	Links map[posting.DocID]map[posting.DocID]int
	// LinkCount is the number of resolved outgoing links per source,
	// multiplicity included.
	LinkCount map[posting.DocID]int
	// Nodes holds every document of the generation, linked or not.
	Nodes *roaring.Bitmap
}

func NewGraph() *Graph {
	return &Graph{
		Links:     make(map[posting.DocID]map[posting.DocID]int),
		LinkCount: make(map[posting.DocID]int),
		Nodes:     roaring.New(),
	}
}

// AddNode registers a document without links.
func (g *Graph) AddNode(id posting.DocID) { g.Nodes.Add(uint32(id)) }

// AddLink records one link from src to dst.
func (g *Graph) AddLink(src, dst posting.DocID) {
	targets, ok := g.Links[src]
	if !ok {
		targets = make(map[posting.DocID]int)
		g.Links[src] = targets
	}
	targets[dst]++
	g.LinkCount[src]++
	g.Nodes.Add(uint32(src))
	g.Nodes.Add(uint32(dst))
}

// Incoming returns the transpose of Links: target -> source -> count.
func (g *Graph) Incoming() map[posting.DocID]map[posting.DocID]int {
	in := make(map[posting.DocID]map[posting.DocID]int)
	for src, targets := range g.Links {
		for dst, n := range targets {
			sources, ok := in[dst]
			if !ok {
				sources = make(map[posting.DocID]int)
				in[dst] = sources
			}
			sources[src] += n
		}
	}
	return in
}

// Dangling returns the nodes without outgoing links.
func (g *Graph) Dangling() *roaring.Bitmap {
	linked := roaring.New()
	for src := range g.LinkCount {
		linked.Add(uint32(src))
	}
	return roaring.AndNot(g.Nodes, linked)
}

// LinkExtractor returns the raw hrefs found in a document.
type LinkExtractor func(rec directory.Record) ([]string, error)

// PageLinks extracts anchors from the corpus record stored at rec.File.
// Documents in unsupported encodings have no links.
func PageLinks(rec directory.Record) ([]string, error) {
	doc, err := tokenizer.LoadDocument(rec.File)
	if err != nil {
		return nil, err
	}
	if !doc.Permitted() {
		return nil, nil
	}
	page, err := tokenizer.ParsePage(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", rec.File, err)
	}
	return page.Links, nil
}

// BuildGraph scans every document of dir, resolves its links against dir
// and records those that land on a known document. Links to unknown URLs are
// ignored. A document whose links cannot be read is logged and kept as a
// node without links.
func BuildGraph(ctx context.Context, dir *directory.Directory, extract LinkExtractor) (*Graph, error) {
	logger := slog.Default().With("component", "pagerank")
	g := NewGraph()
	var skipped, ignored int
	for _, id := range dir.IDs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g.AddNode(id)
		rec, _ := dir.Record(id)
		hrefs, err := extract(rec)
		if err != nil {
			logger.Warn("skipping links of document", "doc_id", id, "file", rec.File, "error", err)
			skipped++
			continue
		}
		for _, href := range hrefs {
			target, ok := directory.Resolve(rec.URL, href)
			if !ok {
				ignored++
				continue
			}
			dst, ok := dir.FindIDByURL(target)
			if !ok {
				ignored++
				continue
			}
			g.AddLink(id, dst)
		}
	}
	logger.Info("link graph built",
		"nodes", g.Nodes.GetCardinality(),
		"sources", len(g.Links),
		"unresolved_links", ignored,
		"skipped_documents", skipped,
	)
	return g, nil
}

type graphFile struct {
	Links map[posting.DocID]map[posting.DocID]int `json:"links"`
	Nodes []byte                                  `json:"nodes"`
}

// SaveGraph writes g as zstd-compressed JSON, via a temp file.
func SaveGraph(path string, g *Graph) error {
	nodes, err := g.Nodes.ToBytes()
	if err != nil {
		return fmt.Errorf("encoding node set: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating graph directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp graph file: %w", err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("creating compressor: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(graphFile{Links: g.Links, Nodes: nodes}); err != nil {
		enc.Close()
		return fmt.Errorf("encoding graph: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flushing compressor: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing graph file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming graph file: %w", err)
	}
	return nil
}

// LoadGraph reads a graph written by SaveGraph.
func LoadGraph(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening graph file: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating decompressor: %w", err)
	}
	defer dec.Close()

	var gf graphFile
	if err := json.NewDecoder(dec).Decode(&gf); err != nil {
		return nil, fmt.Errorf("decoding graph: %w", err)
	}
	g := NewGraph()
	if err := g.Nodes.UnmarshalBinary(gf.Nodes); err != nil {
		return nil, fmt.Errorf("decoding node set: %w", err)
	}
	for src, targets := range gf.Links {
		g.Links[src] = targets
		g.Nodes.Add(uint32(src))
		for dst, n := range targets {
			g.LinkCount[src] += n
			g.Nodes.Add(uint32(dst))
		}
	}
	return g, nil
}

// LoadOrBuildGraph returns the cached graph at path, building and caching
// it when the cache is absent.
func LoadOrBuildGraph(ctx context.Context, path string, dir *directory.Directory, extract LinkExtractor) (*Graph, error) {
	g, err := LoadGraph(path)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	g, err = BuildGraph(ctx, dir, extract)
	if err != nil {
		return nil, err
	}
	if err := SaveGraph(path, g); err != nil {
		return nil, err
	}
	return g, nil
}
