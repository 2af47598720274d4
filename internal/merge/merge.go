package merge

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// Stats summarises one Merge call.
type Stats struct {
	Terms    int
	Postings int64
}

// Merge writes the k-way union of readers into w. Every term present in any
// reader is written exactly once, and its postings are the doc-ordered union
// of every reader's postings for it. Postings sharing a document id are kept,
// so merging a store with itself doubles every count.
//
// Merge drives the row cursor of each reader; it rewinds them first. A
// reader passed more than once contributes its postings once per
// occurrence. The caller still owns w and must Close it.
func Merge(w *store.Writer, readers ...*store.Reader) (Stats, error) {
	var stats Stats
	for _, r := range readers {
		if !r.Schema().Compatible(w.Schema()) {
			return stats, apperrors.Preconditionf("merging %s with schema %s into %s with schema %s",
				r.Base(), r.Schema(), w.Base(), w.Schema())
		}
		if r.Base() == w.Base() {
			return stats, apperrors.Preconditionf("merging %s into itself", r.Base())
		}
		r.Rewind()
	}

	tied := make([]*store.Reader, 0, len(readers))
	advanced := make(map[*store.Reader]bool, len(readers))
	its := make([]posting.Iterator, 0, len(readers))
	for {
		minTerm, ok := minCurrent(readers)
		if !ok {
			return stats, nil
		}
		tied = tied[:0]
		for _, r := range readers {
			if term, ok := r.Current(); ok && term == minTerm {
				tied = append(tied, r)
			}
		}

		if err := w.WriteKey(minTerm); err != nil {
			return stats, fmt.Errorf("writing merged term: %w", err)
		}
		its = its[:0]
		for _, r := range tied {
			it, err := r.Iterator(minTerm)
			if err != nil {
				return stats, fmt.Errorf("opening %q in %s: %w", minTerm, r.Base(), err)
			}
			its = append(its, it)
		}
		n, err := copyPostings(w, Postings(its...))
		stats.Postings += n
		if err != nil {
			return stats, fmt.Errorf("merging term %q: %w", minTerm, err)
		}
		stats.Terms++

		clear(advanced)
		for _, r := range tied {
			if !advanced[r] {
				advanced[r] = true
				r.Advance()
			}
		}
	}
}

func minCurrent(readers []*store.Reader) (string, bool) {
	var (
		min   string
		found bool
	)
	for _, r := range readers {
		term, ok := r.Current()
		if !ok {
			continue
		}
		if !found || term < min {
			min, found = term, true
		}
	}
	return min, found
}

func copyPostings(w *store.Writer, it posting.Iterator) (int64, error) {
	var n int64
	for {
		p, err := it.Next()
		if err != nil {
			if isEOF(err) {
				return n, nil
			}
			return n, err
		}
		if err := w.WritePosting(p); err != nil {
			return n, err
		}
		n++
	}
}
