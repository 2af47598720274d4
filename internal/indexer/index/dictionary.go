// Package index holds the in-memory postings dictionary a build worker fills
// before flushing it to a partial store.
package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	"github.com/RoaringBitmap/roaring/v2"
)

// Dictionary maps terms to the postings seen since the last Reset. It is
// owned by a single worker and is not safe for concurrent use.
type Dictionary struct {
	terms    map[string][]posting.Posting
	postings int
	docs     *roaring.Bitmap
}

func NewDictionary() *Dictionary {
	return &Dictionary{
		terms: make(map[string][]posting.Posting),
		docs:  roaring.New(),
	}
}

func (d *Dictionary) Add(term string, p posting.Posting) {
	d.terms[term] = append(d.terms[term], p)
	d.postings++
	d.docs.Add(uint32(p.DocID))
}

// Postings returns the number of postings held.
func (d *Dictionary) Postings() int { return d.postings }

func (d *Dictionary) Terms() int { return len(d.terms) }

// Documents returns the number of distinct documents held.
func (d *Dictionary) Documents() uint64 { return d.docs.GetCardinality() }

// Snapshot returns every term in ascending order with its postings ordered
// by document id.
func (d *Dictionary) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(d.terms))
	for term, postings := range d.terms {
		sort.SliceStable(postings, func(i, j int) bool {
			return postings[i].DocID < postings[j].DocID
		})
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

func (d *Dictionary) Reset() {
	d.terms = make(map[string][]posting.Posting)
	d.postings = 0
	d.docs.Clear()
}
