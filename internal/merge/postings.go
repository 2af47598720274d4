// Package merge combines postings streams: a k-way merge of sorted stores
// into one consolidated store, a doc-ordered merge of posting iterators, and
// an N-way intersection producing per-document bundles.
package merge

import (
	"container/heap"
	"errors"
	"io"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
)

type head struct {
	p   posting.Posting
	src int
}

type headHeap []head

func (h headHeap) Len() int { return len(h) }

func (h headHeap) Less(i, j int) bool {
	if h[i].p.DocID != h[j].p.DocID {
		return h[i].p.DocID < h[j].p.DocID
	}
	return h[i].src < h[j].src
}

func (h headHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *headHeap) Push(x interface{}) {
	*h = append(*h, x.(head))
}

func (h *headHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// PostingsIterator yields the union of several doc-ordered iterators in
// doc order. Postings with the same document id are all emitted, in the
// order of the iterators that produced them.
type PostingsIterator struct {
	its    []posting.Iterator
	heads  headHeap
	primed bool
	err    error
}

// Postings merges its by document id. An iterator is dropped once it
// returns io.EOF.
func Postings(its ...posting.Iterator) *PostingsIterator {
	return &PostingsIterator{its: its, heads: make(headHeap, 0, len(its))}
}

func (m *PostingsIterator) Next() (posting.Posting, error) {
	if m.err != nil {
		return posting.Posting{}, m.err
	}
	if !m.primed {
		m.primed = true
		for i, it := range m.its {
			p, ok, err := m.read(it)
			if err != nil {
				return posting.Posting{}, err
			}
			if ok {
				m.heads = append(m.heads, head{p: p, src: i})
			}
		}
		heap.Init(&m.heads)
	}
	if len(m.heads) == 0 {
		return posting.Posting{}, io.EOF
	}
	top := m.heads[0]
	next, ok, err := m.read(m.its[top.src])
	if err != nil {
		return posting.Posting{}, err
	}
	if ok {
		m.heads[0] = head{p: next, src: top.src}
		heap.Fix(&m.heads, 0)
	} else {
		heap.Pop(&m.heads)
	}
	return top.p, nil
}

func (m *PostingsIterator) read(it posting.Iterator) (posting.Posting, bool, error) {
	p, err := it.Next()
	if errors.Is(err, io.EOF) {
		return posting.Posting{}, false, nil
	}
	if err != nil {
		m.err = err
		return posting.Posting{}, false, err
	}
	return p, true, nil
}
