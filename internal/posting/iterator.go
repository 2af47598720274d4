package posting

import (
	"errors"
	"io"
)

// Iterator yields postings in ascending document order. Next returns io.EOF
// once the sequence is exhausted and keeps returning it afterwards.
type Iterator interface {
	Next() (Posting, error)
}

// SliceIterator iterates over an in-memory posting slice.
type SliceIterator struct {
	postings []Posting
	pos      int
}

func FromSlice(postings []Posting) *SliceIterator {
	return &SliceIterator{postings: postings}
}

func (it *SliceIterator) Next() (Posting, error) {
	if it.pos >= len(it.postings) {
		return Posting{}, io.EOF
	}
	p := it.postings[it.pos]
	it.pos++
	return p, nil
}

// Collect drains it into a slice.
func Collect(it Iterator) ([]Posting, error) {
	var out []Posting
	for {
		p, err := it.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
}
