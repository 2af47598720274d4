package pagerank

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// Table is a static per-document score, persisted as doc_id,score rows.
type Table struct {
	scores map[posting.DocID]float64
}

func NewTable(scores map[posting.DocID]float64) *Table {
	if scores == nil {
		scores = make(map[posting.DocID]float64)
	}
	return &Table{scores: scores}
}

// Get returns the score of id. A nil Table has no scores.
func (t *Table) Get(id posting.DocID) (float64, bool) {
	if t == nil {
		return 0, false
	}
	v, ok := t.scores[id]
	return v, ok
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.scores)
}

// Score is one document's rank.
type Score struct {
	DocID posting.DocID
	Value float64
}

// Top returns the k highest ranked documents, ties broken by id.
func (t *Table) Top(k int) []Score {
	if t == nil || k <= 0 {
		return nil
	}
	out := make([]Score, 0, len(t.scores))
	for id, v := range t.scores {
		out = append(out, Score{DocID: id, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].DocID < out[j].DocID
	})
	return out[:min(k, len(out))]
}

// Save writes one row per document, ordered by id, via a temp file.
func (t *Table) Save(path string) error {
	ids := make([]posting.DocID, 0, len(t.scores))
	for id := range t.scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating table directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp table file: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	var line []byte
	for _, id := range ids {
		line = strconv.AppendUint(line[:0], uint64(id), 10)
		line = append(line, ',')
		line = strconv.AppendFloat(line, t.scores[id], 'g', -1, 64)
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return fmt.Errorf("writing table: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming table file: %w", err)
	}
	return nil
}

// LoadTable reads a table written by Save.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening table: %w", err)
	}
	defer f.Close()

	t := NewTable(nil)
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		key, value, ok := bytes.Cut(raw, []byte{','})
		if !ok {
			return nil, fmt.Errorf("%w: %s line %d: missing comma", apperrors.ErrFormat, path, line)
		}
		id, err := strconv.ParseUint(string(key), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", apperrors.ErrFormat, path, line, err)
		}
		score, err := strconv.ParseFloat(string(value), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", apperrors.ErrFormat, path, line, err)
		}
		t.scores[posting.DocID(id)] = score
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	return t, nil
}
