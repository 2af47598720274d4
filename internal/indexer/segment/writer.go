// Package segment manages the partial stores a build worker flushes while
// indexing: one numbered store per flush, later merged into one.
package segment

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/store"
)

// Writer serialises dictionary snapshots into partial stores named 0, 1, 2,
// ... under its directory.
type Writer struct {
	dir     string
	schema  *posting.Schema
	next    int
	written []string
}

// NewWriter creates a Writer that writes partial stores into dir.
func NewWriter(dir string, schema *posting.Schema) *Writer {
	return &Writer{dir: dir, schema: schema}
}

// Write creates the next partial store holding entries and returns its base
// path.
func (w *Writer) Write(entries []index.TermEntry) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("cannot write empty partial")
	}
	base := filepath.Join(w.dir, strconv.Itoa(w.next))
	sw, err := store.Create(base, w.schema)
	if err != nil {
		return "", fmt.Errorf("creating partial %d: %w", w.next, err)
	}
	for _, e := range entries {
		if err := sw.WriteKey(e.Term); err != nil {
			sw.Close()
			return "", fmt.Errorf("writing partial %d: %w", w.next, err)
		}
		if err := sw.Write(e.Postings...); err != nil {
			sw.Close()
			return "", fmt.Errorf("writing partial %d: %w", w.next, err)
		}
	}
	if err := sw.Close(); err != nil {
		return "", fmt.Errorf("closing partial %d: %w", w.next, err)
	}
	w.next++
	w.written = append(w.written, base)
	return base, nil
}

// Written returns the base paths of every partial written so far.
func (w *Writer) Written() []string { return w.written }
