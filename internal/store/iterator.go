package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
)

type state uint8

const (
	// stateHasBuffered: the buffer may hold a complete posting segment.
	stateHasBuffered state = iota
	// stateNeedsRead: the buffer lacks a complete segment.
	stateNeedsRead
	// stateExhausted: the record boundary was reached and the buffer drained.
	stateExhausted
)

func (s state) String() string {
	switch s {
	case stateHasBuffered:
		return "has_buffered"
	case stateNeedsRead:
		return "needs_read"
	default:
		return "exhausted"
	}
}

type action uint8

const (
	actEmit action = iota
	actRead
	actDone
)

// step decides what the iterator does next given the undecoded bytes and
// whether the underlying stream has ended. For actEmit, n is the length of
// the segment to decode and last reports whether it closes the record.
func step(pending []byte, eof bool) (act action, n int, last bool) {
	if i := bytes.IndexAny(pending, "\f\n"); i >= 0 {
		return actEmit, i, pending[i] == RecordSeparator
	}
	if !eof {
		return actRead, 0, false
	}
	if len(pending) == 0 {
		return actDone, 0, true
	}
	return actEmit, len(pending), true
}

// Iterator streams the postings of one term record. It holds at most one
// partially read segment plus one chunk in memory.
type Iterator struct {
	schema *posting.Schema
	src    io.Reader
	path   string
	term   string
	chunk  int

	buf   []byte
	start int
	base  int64 // data file offset of buf[0]
	eof   bool
	state state
}

func (it *Iterator) Term() string { return it.term }

// Next returns the next posting of the record, or io.EOF once the record
// boundary is reached. A malformed segment yields a *FormatError and ends
// the iteration.
func (it *Iterator) Next() (posting.Posting, error) {
	for {
		switch it.state {
		case stateExhausted:
			return posting.Posting{}, io.EOF
		case stateNeedsRead:
			if err := it.fill(); err != nil {
				it.state = stateExhausted
				return posting.Posting{}, err
			}
			it.state = stateHasBuffered
		case stateHasBuffered:
			act, n, last := step(it.buf[it.start:], it.eof)
			switch act {
			case actRead:
				it.state = stateNeedsRead
			case actDone:
				it.release()
			case actEmit:
				seg := it.buf[it.start : it.start+n]
				offset := it.base + int64(it.start)
				p, err := posting.Decode(it.schema, seg)
				it.start += n
				if it.start < len(it.buf) {
					it.start++
				}
				if err != nil {
					it.release()
					return posting.Posting{}, &FormatError{Path: it.path, Term: it.term, Offset: offset, Err: err}
				}
				if last {
					it.release()
				}
				return p, nil
			}
		}
	}
}

// fill compacts the buffer and appends up to one chunk from the source.
func (it *Iterator) fill() error {
	if it.start > 0 {
		m := copy(it.buf, it.buf[it.start:])
		it.buf = it.buf[:m]
		it.base += int64(it.start)
		it.start = 0
	}
	if cap(it.buf)-len(it.buf) < it.chunk {
		grown := make([]byte, len(it.buf), 2*cap(it.buf)+it.chunk)
		copy(grown, it.buf)
		it.buf = grown
	}
	n, err := it.src.Read(it.buf[len(it.buf) : len(it.buf)+it.chunk])
	it.buf = it.buf[:len(it.buf)+n]
	if errors.Is(err, io.EOF) {
		it.eof = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading record of %q: %w", it.term, err)
	}
	return nil
}

func (it *Iterator) release() {
	it.state = stateExhausted
	it.buf = nil
	it.start = 0
}
