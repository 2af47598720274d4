package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/directory"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
)

// DocumentSource lists and loads corpus documents.
type DocumentSource interface {
	Files() ([]string, error)
	Load(file string) (tokenizer.Document, error)
}

// CorpusSource reads *.json documents from a directory tree.
type CorpusSource struct {
	Dir string
}

// Files returns every .json file under Dir in lexical order.
func (c CorpusSource) Files() ([]string, error) {
	var files []string
	err := filepath.WalkDir(c.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing corpus %s: %w", c.Dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func (c CorpusSource) Load(file string) (tokenizer.Document, error) {
	return tokenizer.LoadDocument(file)
}

// Reasons a document is left out of the directory.
const (
	SkipUnreadable       = "unreadable"
	SkipEncoding         = "encoding"
	SkipMissingURL       = "missing_url"
	SkipDuplicateURL     = "duplicate_url"
	SkipDuplicateContent = "duplicate_content"
)

// ScanStats counts the outcome of a directory scan.
type ScanStats struct {
	Files   int
	Added   int
	Skipped map[string]int
}

// BuildDirectory assigns ids, in file order, to every corpus document that
// can be indexed. Documents in unsupported encodings, without a URL, with a
// URL already seen or with visible text identical to an earlier document
// are skipped.
func BuildDirectory(ctx context.Context, src DocumentSource, m *metrics.Metrics) (*directory.Directory, ScanStats, error) {
	logger := slog.Default().With("component", "corpus-scan")
	stats := ScanStats{Skipped: make(map[string]int)}
	files, err := src.Files()
	if err != nil {
		return nil, stats, err
	}
	stats.Files = len(files)

	dir := directory.New()
	fingerprints := make(map[uint64]string)
	skip := func(file, reason string, err error) {
		stats.Skipped[reason]++
		if m != nil {
			m.DocsSkippedTotal.WithLabelValues("corpus", reason).Inc()
		}
		if err != nil {
			logger.Warn("skipping document", "file", file, "reason", reason, "error", err)
			return
		}
		logger.Debug("skipping document", "file", file, "reason", reason)
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		doc, err := src.Load(file)
		if err != nil {
			skip(file, SkipUnreadable, err)
			continue
		}
		if !doc.Permitted() {
			skip(file, SkipEncoding, nil)
			continue
		}
		url := directory.NormalizeURL(doc.URL)
		if url == "" {
			skip(file, SkipMissingURL, nil)
			continue
		}
		if dir.ContainsURL(url) {
			skip(file, SkipDuplicateURL, nil)
			continue
		}
		page, err := tokenizer.ParsePage(doc.Content)
		if err != nil {
			skip(file, SkipUnreadable, err)
			continue
		}
		fp := page.Fingerprint()
		if first, ok := fingerprints[fp]; ok {
			logger.Debug("duplicate content", "file", file, "first", first)
			skip(file, SkipDuplicateContent, nil)
			continue
		}
		fingerprints[fp] = file
		dir.GenerateID(file, doc.URL)
		stats.Added++
	}
	logger.Info("corpus scanned",
		"files", stats.Files,
		"documents", stats.Added,
		"skipped", stats.Skipped,
	)
	return dir, stats, nil
}
