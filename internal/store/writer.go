package store

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// Writer appends term records to a new store. A Writer is not safe for
// concurrent use.
//
// Each term may be written at most once per store. Writing terms in
// ascending order is not required; the position index is sorted on Close.
type Writer struct {
	base      string
	schema    *posting.Schema
	file      *os.File
	buf       *bufio.Writer
	offset    int64
	positions map[string]*Position
	current   *Position
	postings  int64
	scratch   []byte
	closed    bool
}

// Create truncates or creates the data file of the store rooted at base and
// removes any previous position index. The position index is only written
// by Close, so a store whose writer never closed has none.
func Create(base string, schema *posting.Schema) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(base), 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	if err := os.Remove(PositionsPath(base)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("removing stale position index: %w", err)
	}
	f, err := os.Create(DataPath(base))
	if err != nil {
		return nil, fmt.Errorf("creating data file: %w", err)
	}
	return &Writer{
		base:      base,
		schema:    schema,
		file:      f,
		buf:       bufio.NewWriterSize(f, 64*1024),
		positions: make(map[string]*Position),
	}, nil
}

func (w *Writer) Base() string { return w.base }

func (w *Writer) Schema() *posting.Schema { return w.schema }

// Terms returns the number of records written so far.
func (w *Writer) Terms() int { return len(w.positions) }

// Postings returns the number of postings written so far.
func (w *Writer) Postings() int64 { return w.postings }

// WriteKey starts the record of term at the current offset. Subsequent
// postings belong to term until the next WriteKey.
func (w *Writer) WriteKey(term string) error {
	if w.closed {
		return apperrors.Preconditionf("write to closed store %s", w.base)
	}
	if !ValidTerm(term) {
		return apperrors.Preconditionf("invalid term %q", term)
	}
	if _, dup := w.positions[term]; dup {
		return apperrors.Preconditionf("term %q written twice to %s", term, w.base)
	}
	if w.current != nil {
		if err := w.writeByte(RecordSeparator); err != nil {
			return err
		}
	}
	pos := &Position{Offset: w.offset}
	w.positions[term] = pos
	w.current = pos
	return w.writeString(term)
}

// WritePosting appends p to the current record.
func (w *Writer) WritePosting(p posting.Posting) error {
	if w.current == nil {
		return apperrors.Preconditionf("posting %d written before any key", p.DocID)
	}
	if !w.schema.Compatible(p.Schema()) {
		return apperrors.Preconditionf("posting schema %s does not match store schema %s", p.Schema(), w.schema)
	}
	w.scratch = append(w.scratch[:0], KeySeparator)
	w.scratch = p.AppendEncode(w.scratch)
	n, err := w.buf.Write(w.scratch)
	w.offset += int64(n)
	if err != nil {
		return fmt.Errorf("writing posting: %w", err)
	}
	w.current.Count++
	w.postings++
	return nil
}

// Write appends every posting to the current record, in order.
func (w *Writer) Write(postings ...posting.Posting) error {
	for _, p := range postings {
		if err := w.WritePosting(p); err != nil {
			return err
		}
	}
	return nil
}

// Flush forces buffered record data to stable storage. The position index
// is not touched.
func (w *Writer) Flush() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flushing data file: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("syncing data file: %w", err)
	}
	return nil
}

// Close terminates the last record, writes the sorted position index and
// releases the data file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.current != nil {
		if err := w.writeByte(RecordSeparator); err != nil {
			w.file.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		w.file.Close()
		return err
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing data file: %w", err)
	}
	positions := make(map[string]Position, len(w.positions))
	for term, pos := range w.positions {
		positions[term] = *pos
	}
	return writePositions(PositionsPath(w.base), positions)
}

func (w *Writer) writeByte(b byte) error {
	if err := w.buf.WriteByte(b); err != nil {
		return fmt.Errorf("writing data file: %w", err)
	}
	w.offset++
	return nil
}

func (w *Writer) writeString(s string) error {
	n, err := w.buf.WriteString(s)
	w.offset += int64(n)
	if err != nil {
		return fmt.Errorf("writing data file: %w", err)
	}
	return nil
}

// writePositions writes a position index to a temp file and renames it into
// place once synced.
func writePositions(path string, positions map[string]Position) error {
	terms := make([]string, 0, len(positions))
	for term := range positions {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp position file: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	var line []byte
	for _, term := range terms {
		pos := positions[term]
		line = append(line[:0], term...)
		line = append(line, '\t')
		line = strconv.AppendInt(line, pos.Offset, 10)
		line = append(line, '\t')
		line = strconv.AppendInt(line, int64(pos.Count), 10)
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return fmt.Errorf("writing position file: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing position file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing position file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming position file: %w", err)
	}
	return nil
}
