package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/directory"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/merge"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/scoring"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/postgres"
	"github.com/spf13/cobra"
)

var (
	inspectIndex string
	inspectStage string
	inspectTerms int
	championsK   int
	resolveSQL   bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the manifest of a generation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, genDir, err := selectedGeneration()
		if err != nil {
			return err
		}
		m, err := indexer.ReadManifest(genDir)
		if err != nil {
			return err
		}
		cmd.Printf("generation %s, %d documents, built %s\n", m.Generation, m.Documents, m.CreatedAt.Format("2006-01-02 15:04:05"))
		for _, ix := range m.Indexes {
			cmd.Printf("  %-10s tokenizer=%-8s scheme=%-7s weight=%.2f docs=%d terms=%d postings=%d champions=%t\n",
				ix.Name, ix.Tokenizer, ix.Scheme, ix.Weight, ix.Documents, ix.Terms, ix.Postings, ix.Champions)
		}
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [term]",
	Short: "List the terms of a store, or the postings of one term",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, _, err := openStage(inspectIndex, inspectStage)
		if err != nil {
			return err
		}
		defer r.Close()

		if len(args) == 1 {
			ps, err := r.Postings(args[0])
			if err != nil {
				return err
			}
			for _, p := range ps {
				cmd.Println(p.String())
			}
			return nil
		}
		cmd.Printf("%s: %d terms, schema %s\n", r.Base(), r.Len(), r.Schema())
		for i, term := range r.Terms() {
			if inspectTerms > 0 && i >= inspectTerms {
				cmd.Printf("  ... %d more\n", r.Len()-i)
				break
			}
			cmd.Printf("  %-30s %d\n", term, r.Count(term))
		}
		return nil
	},
}

var championsCmd = &cobra.Command{
	Use:   "champions <term>",
	Short: "Show the highest weighted postings of a term",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, _, err := openStage(inspectIndex, indexer.StageChampion)
		if err != nil {
			return err
		}
		defer r.Close()
		top, err := scoring.NewChampions(r).Top(args[0], championsK)
		if err != nil {
			return err
		}
		for i, p := range top {
			cmd.Printf("  [%d] doc %d %s=%.6f\n", i+1, p.DocID, scoring.PropTFIDF, p.Get(scoring.PropTFIDF))
		}
		return nil
	},
}

var intersectCmd = &cobra.Command{
	Use:   "intersect <term> <term...>",
	Short: "List documents containing every term",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, _, err := openStage(inspectIndex, inspectStage)
		if err != nil {
			return err
		}
		defer r.Close()
		its := make([]posting.Iterator, 0, len(args))
		for _, term := range args {
			it, err := r.Iterator(term)
			if err != nil {
				return err
			}
			its = append(its, it)
		}
		x := merge.Intersect(its...)
		n := 0
		for {
			ip, err := x.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			n++
			cmd.Printf("  doc %d\n", ip.DocID)
		}
		cmd.Printf("%d documents\n", n)
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <doc-id>",
	Short: "Print the URL of a document id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid document id %q: %w", args[0], err)
		}
		id := posting.DocID(n)
		gen, genDir, err := selectedGeneration()
		if err != nil {
			return err
		}
		if resolveSQL {
			if !postgres.Enabled(cfg.Postgres) {
				return errors.New("postgres is not configured")
			}
			pg, err := postgres.New(cmd.Context(), cfg.Postgres)
			if err != nil {
				return err
			}
			defer pg.Close()
			u, err := directory.NewPGResolver(pg, gen, directory.MirrorIndex).FindURLByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			cmd.Println(u)
			return nil
		}
		d, err := directory.Load(filepath.Join(genDir, indexer.DirectoryFile))
		if err != nil {
			return err
		}
		u, ok := d.FindURLByID(id)
		if !ok {
			return fmt.Errorf("document %d not in generation %s", id, gen)
		}
		cmd.Println(u)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{inspectCmd, championsCmd, intersectCmd} {
		c.Flags().StringVarP(&inspectIndex, "index", "i", "words", "index name")
	}
	for _, c := range []*cobra.Command{inspectCmd, intersectCmd} {
		c.Flags().StringVar(&inspectStage, "stage", indexer.StageSchemed, "store stage (finalized, schemed, champion)")
	}
	inspectCmd.Flags().IntVar(&inspectTerms, "terms", 50, "number of terms to list (0 for all)")
	championsCmd.Flags().IntVarP(&championsK, "top", "k", 10, "number of champions")
	resolveCmd.Flags().BoolVar(&resolveSQL, "postgres", false, "resolve through the postgres mirror")
	rootCmd.AddCommand(statsCmd, inspectCmd, championsCmd, intersectCmd, resolveCmd)
}
