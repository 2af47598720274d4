package merge

import (
	"errors"
	"io"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
)

// Intersector aligns several doc-ordered iterators and yields one bundle
// per document present in all of them.
type Intersector struct {
	its   []posting.Iterator
	heads []posting.Posting
	done  bool
	err   error
}

// Intersect returns the boolean AND of its. With no iterators the result is
// empty.
func Intersect(its ...posting.Iterator) *Intersector {
	return &Intersector{
		its:   its,
		heads: make([]posting.Posting, len(its)),
		done:  len(its) == 0,
	}
}

// Next returns the next common document, or io.EOF as soon as any input is
// exhausted. Inputs are advanced past the returned document lazily, on the
// following call.
func (x *Intersector) Next() (posting.IntersectPosting, error) {
	if x.err != nil {
		return posting.IntersectPosting{}, x.err
	}
	if x.done {
		return posting.IntersectPosting{}, io.EOF
	}
	// Every head is consumed by the previous bundle, or nothing was read yet.
	for i := range x.its {
		if !x.advance(i) {
			return posting.IntersectPosting{}, x.stop()
		}
	}

	for {
		max := x.heads[0].DocID
		for _, h := range x.heads[1:] {
			if h.DocID > max {
				max = h.DocID
			}
		}
		aligned := true
		for i := range x.heads {
			for x.heads[i].DocID < max {
				if !x.advance(i) {
					return posting.IntersectPosting{}, x.stop()
				}
			}
			if x.heads[i].DocID != max {
				aligned = false
			}
		}
		if aligned {
			bundle := make([]posting.Posting, len(x.heads))
			copy(bundle, x.heads)
			return posting.IntersectPosting{DocID: max, Postings: bundle}, nil
		}
	}
}

func (x *Intersector) advance(i int) bool {
	p, err := x.its[i].Next()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			x.err = err
		}
		x.done = true
		return false
	}
	x.heads[i] = p
	return true
}

func (x *Intersector) stop() error {
	if x.err != nil {
		return x.err
	}
	return io.EOF
}

func isEOF(err error) bool { return errors.Is(err, io.EOF) }
