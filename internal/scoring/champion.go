package scoring

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/store"
)

// BuildChampions writes, for every term of src, its postings ordered by
// descending weight. Equal weights keep document order. The output store is
// not doc-ordered and must not be merged or intersected.
func BuildChampions(dst *store.Writer, src *store.Reader, weight string) error {
	if _, ok := src.Schema().IndexOf(weight); !ok {
		return fmt.Errorf("schema %s has no property %q", src.Schema(), weight)
	}
	for _, term := range src.Terms() {
		ps, err := src.Postings(term)
		if err != nil {
			return fmt.Errorf("reading %q: %w", term, err)
		}
		sort.SliceStable(ps, func(i, j int) bool {
			return ps[i].Get(weight) > ps[j].Get(weight)
		})
		if err := dst.WriteKey(term); err != nil {
			return err
		}
		if err := dst.Write(ps...); err != nil {
			return fmt.Errorf("writing %q: %w", term, err)
		}
	}
	return nil
}

// Champions reads a champion list store.
type Champions struct {
	r *store.Reader
}

func NewChampions(r *store.Reader) *Champions {
	return &Champions{r: r}
}

// Top returns up to k of the highest weighted postings of term. An unknown
// term has no champions.
func (c *Champions) Top(term string, k int) ([]posting.Posting, error) {
	if !c.r.Contains(term) || k <= 0 {
		return nil, nil
	}
	it, err := c.r.Iterator(term)
	if err != nil {
		return nil, err
	}
	out := make([]posting.Posting, 0, min(k, c.r.Count(term)))
	for len(out) < k {
		p, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("reading champions of %q: %w", term, err)
		}
		out = append(out, p)
	}
	return out, nil
}
