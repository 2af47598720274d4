package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/rpc"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var (
	queryLimit  int
	queryJSON   bool
	queryRemote string
)

var queryCmd = &cobra.Command{
	Use:   "query <terms...>",
	Short: "Run a fused search against the current generation",
	Long: `Runs a query through every index of the generation, fusing their scores
under the configured time budget. With --remote the query is sent to a running
searcher over RPC instead of opening the stores locally.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		search, closeFn, err := searcher(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()
		result, err := search(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		return printResult(cmd, result)
	},
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive query prompt",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func init() {
	for _, c := range []*cobra.Command{queryCmd, shellCmd} {
		c.Flags().IntVarP(&queryLimit, "limit", "n", 10, "maximum number of results")
		c.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
		c.Flags().StringVar(&queryRemote, "remote", "", "searcher RPC address (host:port)")
		rootCmd.AddCommand(c)
	}
}

type searchFunc func(ctx context.Context, query string) (*executor.SearchResult, error)

// searcher returns a search function over the local data directory, or over
// RPC when --remote is set.
func searcher(ctx context.Context) (searchFunc, func(), error) {
	if queryRemote != "" {
		client, err := rpc.Dial(ctx, queryRemote)
		if err != nil {
			return nil, nil, err
		}
		search := func(ctx context.Context, query string) (*executor.SearchResult, error) {
			ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			var result executor.SearchResult
			err := client.Call(ctx, handler.MethodQuery, handler.QueryRequest{Query: query, Limit: queryLimit}, &result)
			return &result, err
		}
		return search, func() { client.Close() }, nil
	}

	if generation != "" {
		return nil, nil, errors.New("--generation is not supported for queries; the executor serves CURRENT")
	}
	exec := executor.New(cfg.Indexer.DataDir, cfg.PageRank, executor.RankingOptions(cfg.Ranking), nil)
	if _, err := exec.Reload(); err != nil {
		exec.Close()
		return nil, nil, err
	}
	search := func(ctx context.Context, query string) (*executor.SearchResult, error) {
		return exec.Execute(ctx, query, queryLimit)
	}
	return search, func() { exec.Close() }, nil
}

func printResult(cmd *cobra.Command, result *executor.SearchResult) error {
	if queryJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	if len(result.Results) == 0 {
		cmd.Println("No results found.")
	}
	for i, hit := range result.Results {
		cmd.Printf("  [%d] %s (%.4f) doc %d\n", i+1, hit.URL, hit.Score, hit.DocID)
	}
	fallback := ""
	if result.Fallback {
		fallback = ", fallback budget"
	}
	cmd.Printf("%d candidates, stop %s%s, %.1fms, generation %s\n",
		result.Candidates, result.Stop, fallback, result.ElapsedMs, result.Generation)
	return nil
}

func runShell(cmd *cobra.Command, _ []string) error {
	search, closeFn, err := searcher(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	home, _ := os.UserHomeDir()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "search> ",
		HistoryFile:     filepath.Join(home, ".searchctl_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("starting prompt: %w", err)
	}
	defer rl.Close()
	cmd.SetOut(rl.Stdout())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		query := strings.TrimSpace(line)
		switch query {
		case "":
			continue
		case "exit", "quit", `\q`:
			return nil
		}
		result, err := search(cmd.Context(), query)
		if err != nil {
			cmd.PrintErrln("error:", err)
			continue
		}
		if err := printResult(cmd, result); err != nil {
			return err
		}
	}
}
