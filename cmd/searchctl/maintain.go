package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/directory"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/merge"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/pagerank"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/publish"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/store"
	"github.com/spf13/cobra"
)

var (
	mergeScheme  string
	pagerankTop  int
	fetchCurrent bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge <dst> <src...>",
	Short: "Merge postings stores into a new store",
	Long: `Writes the k-way union of the source stores to dst. Every term appears once
and its postings are the doc-ordered union of the sources; postings sharing a
document id are all kept.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dst, srcs, err := mergeBases(args)
		if err != nil {
			return err
		}
		schema, err := schemaOf(mergeScheme, 0)
		if err != nil {
			return err
		}
		readers := make([]*store.Reader, 0, len(srcs))
		defer func() {
			for _, r := range readers {
				r.Close()
			}
		}()
		for _, src := range srcs {
			r, err := store.Open(src, schema)
			if err != nil {
				return err
			}
			readers = append(readers, r)
		}
		w, err := store.Create(dst, schema)
		if err != nil {
			return err
		}
		stats, err := merge.Merge(w, readers...)
		if cerr := w.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		cmd.Printf("merged %d stores: %d terms, %d postings\n", len(readers), stats.Terms, stats.Postings)
		return nil
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild-positions <store>",
	Short: "Regenerate a store's position index from its data file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := store.RebuildPositions(storeBase(args[0]))
		if err != nil {
			return err
		}
		cmd.Printf("rebuilt positions of %d terms\n", n)
		return nil
	},
}

var pagerankCmd = &cobra.Command{
	Use:   "pagerank",
	Short: "Recompute PageRank for a generation",
	Long: `Builds (or loads from cache) the link graph of the generation's documents,
ranks it and saves the table the searcher reads. Searchers pick the table up on
their next reload.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, genDir, err := selectedGeneration()
		if err != nil {
			return err
		}
		d, err := directory.Load(filepath.Join(genDir, indexer.DirectoryFile))
		if err != nil {
			return err
		}
		table, err := pagerank.Compute(cmd.Context(), genDir, d, cfg.PageRank)
		if err != nil {
			return err
		}
		cmd.Printf("ranked %d documents, saved to %s\n", table.Len(), pagerank.Path(genDir, cfg.PageRank.TablePath))
		for i, s := range table.Top(pagerankTop) {
			u, _ := d.FindURLByID(s.DocID)
			cmd.Printf("  [%d] %.6f %s\n", i+1, s.Value, u)
		}
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <generation>",
	Short: "Download a published generation from blob storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := publisher(cmd)
		if err != nil {
			return err
		}
		if err := p.Fetch(cmd.Context(), cfg.Indexer.DataDir, args[0]); err != nil {
			return err
		}
		if fetchCurrent {
			if err := indexer.WriteCurrent(cfg.Indexer.DataDir, args[0]); err != nil {
				return err
			}
		}
		cmd.Printf("generation %s installed in %s\n", args[0], cfg.Indexer.DataDir)
		return nil
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload a generation to blob storage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, _, err := selectedGeneration()
		if err != nil {
			return err
		}
		p, err := publisher(cmd)
		if err != nil {
			return err
		}
		key, err := p.Publish(cmd.Context(), cfg.Indexer.DataDir, id)
		if err != nil {
			return err
		}
		cmd.Printf("generation %s published as %s/%s\n", id, cfg.Blob.Bucket, key)
		return nil
	},
}

// mergeBases splits merge arguments into the destination and source store
// bases. The destination may not be one of the sources.
func mergeBases(args []string) (string, []string, error) {
	if len(args) < 2 {
		return "", nil, errors.New("merge needs a destination and at least one source")
	}
	dst := filepath.Clean(storeBase(args[0]))
	srcs := make([]string, 0, len(args)-1)
	for _, arg := range args[1:] {
		src := filepath.Clean(storeBase(arg))
		if src == dst {
			return "", nil, fmt.Errorf("destination %s is also a merge source", arg)
		}
		srcs = append(srcs, src)
	}
	return dst, srcs, nil
}

func publisher(cmd *cobra.Command) (*publish.Publisher, error) {
	if cfg.Blob.Endpoint == "" {
		return nil, errors.New("blob storage is not configured")
	}
	s, err := publish.NewMinioStore(cmd.Context(), cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("connecting to blob store: %w", err)
	}
	return publish.NewPublisher(s, cfg.Blob.Prefix), nil
}

func init() {
	mergeCmd.Flags().StringVar(&mergeScheme, "scheme", "tf_idf", "scoring scheme whose schema the stores use")
	pagerankCmd.Flags().IntVarP(&pagerankTop, "top", "k", 10, "number of top documents to print")
	fetchCmd.Flags().BoolVar(&fetchCurrent, "activate", false, "point CURRENT at the fetched generation")
	rootCmd.AddCommand(mergeCmd, rebuildCmd, pagerankCmd, fetchCmd, publishCmd)
}
