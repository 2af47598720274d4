package store

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// Reader gives random access to the records of a closed store.
//
// Iterators read through positional reads on the shared file handle, so any
// number of them may progress independently, from any goroutine. The row
// cursor (Current, Advance, Rewind) is not safe for concurrent use.
type Reader struct {
	base      string
	schema    *posting.Schema
	file      *os.File
	size      int64
	positions map[string]Position
	terms     []string
	cursor    int
}

// Open loads the position index of the store rooted at base and opens its
// data file.
func Open(base string, schema *posting.Schema) (*Reader, error) {
	positions, terms, err := readPositions(PositionsPath(base))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(DataPath(base))
	if err != nil {
		return nil, fmt.Errorf("opening data file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat data file: %w", err)
	}
	return &Reader{
		base:      base,
		schema:    schema,
		file:      f,
		size:      info.Size(),
		positions: positions,
		terms:     terms,
	}, nil
}

func (r *Reader) Base() string { return r.base }

func (r *Reader) Schema() *posting.Schema { return r.schema }

// Len returns the number of terms in the store.
func (r *Reader) Len() int { return len(r.terms) }

// Terms returns every term in ascending order. The slice must not be
// modified.
func (r *Reader) Terms() []string { return r.terms }

func (r *Reader) Contains(term string) bool {
	_, ok := r.positions[term]
	return ok
}

// Count returns the number of postings stored for term, zero when absent.
func (r *Reader) Count(term string) int {
	return r.positions[term].Count
}

func (r *Reader) Position(term string) (Position, bool) {
	pos, ok := r.positions[term]
	return pos, ok
}

// Current returns the term under the row cursor.
func (r *Reader) Current() (string, bool) {
	if r.cursor >= len(r.terms) {
		return "", false
	}
	return r.terms[r.cursor], true
}

// Advance moves the row cursor to the next term in sorted order.
func (r *Reader) Advance() {
	if r.cursor < len(r.terms) {
		r.cursor++
	}
}

// Rewind moves the row cursor back to the first term.
func (r *Reader) Rewind() { r.cursor = 0 }

// Iterator returns a streaming iterator over the postings of term. It
// returns an error wrapping errors.ErrNotFound for an unknown term.
func (r *Reader) Iterator(term string) (*Iterator, error) {
	pos, ok := r.positions[term]
	if !ok {
		return nil, fmt.Errorf("term %q in %s: %w", term, r.base, apperrors.ErrNotFound)
	}
	return r.iteratorAt(term, pos)
}

// Postings reads every posting of term into memory.
func (r *Reader) Postings(term string) ([]posting.Posting, error) {
	it, err := r.Iterator(term)
	if err != nil {
		return nil, err
	}
	return posting.Collect(it)
}

func (r *Reader) iteratorAt(term string, pos Position) (*Iterator, error) {
	path := DataPath(r.base)
	header := make([]byte, len(term)+1)
	n, err := r.file.ReadAt(header, pos.Offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading record header of %q: %w", term, err)
	}
	header = header[:n]
	if !bytes.HasPrefix(header, []byte(term)) {
		return nil, &FormatError{Path: path, Term: term, Offset: pos.Offset,
			Err: fmt.Errorf("record does not start with its term")}
	}

	it := &Iterator{
		schema: r.schema,
		path:   path,
		term:   term,
		chunk:  ChunkSize,
		state:  stateNeedsRead,
	}
	switch {
	case n == len(term) || header[n-1] == RecordSeparator:
		it.state = stateExhausted
	case header[n-1] == KeySeparator:
		start := pos.Offset + int64(n)
		it.src = io.NewSectionReader(r.file, start, r.size-start)
		it.base = start
	default:
		return nil, &FormatError{Path: path, Term: term, Offset: pos.Offset,
			Err: fmt.Errorf("term followed by %q", header[n-1])}
	}
	return it, nil
}

func (r *Reader) Close() error {
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("closing data file: %w", err)
	}
	return nil
}

func readPositions(path string) (map[string]Position, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening position file: %w", err)
	}
	defer f.Close()

	positions := make(map[string]Position)
	var terms []string
	sorted := true

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		fields := bytes.Split(sc.Bytes(), []byte{'\t'})
		if len(fields) != 3 {
			return nil, nil, &FormatError{Path: path, Offset: int64(line),
				Err: fmt.Errorf("expected 3 fields, got %d", len(fields))}
		}
		term := string(fields[0])
		offset, err := strconv.ParseInt(string(fields[1]), 10, 64)
		if err != nil {
			return nil, nil, &FormatError{Path: path, Term: term, Offset: int64(line), Err: err}
		}
		count, err := strconv.Atoi(string(fields[2]))
		if err != nil {
			return nil, nil, &FormatError{Path: path, Term: term, Offset: int64(line), Err: err}
		}
		if _, dup := positions[term]; dup {
			return nil, nil, &FormatError{Path: path, Term: term, Offset: int64(line),
				Err: fmt.Errorf("duplicate term")}
		}
		if n := len(terms); n > 0 && terms[n-1] > term {
			sorted = false
		}
		positions[term] = Position{Offset: offset, Count: count}
		terms = append(terms, term)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading position file: %w", err)
	}
	if !sorted {
		sort.Strings(terms)
	}
	return positions, terms, nil
}
