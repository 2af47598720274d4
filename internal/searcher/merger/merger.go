// Package merger selects the best scored documents from an accumulated
// score table.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/scoring"
)

// TopK returns the limit highest scores, best first. Equal scores order by
// ascending document id.
func TopK(scores map[posting.DocID]float64, limit int) []scoring.Result {
	if limit <= 0 {
		limit = 10
	}
	h := &resultHeap{}
	heap.Init(h)
	for id, score := range scores {
		heap.Push(h, scoring.Result{DocID: id, Score: score})
		if h.Len() > limit {
			heap.Pop(h)
		}
	}
	result := make([]scoring.Result, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(scoring.Result)
	}
	return result
}

// resultHeap is a min-heap: the root is the weakest kept result.
type resultHeap []scoring.Result

func (h resultHeap) Len() int { return len(h) }

func (h resultHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].DocID > h[j].DocID
}

func (h resultHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x interface{}) {
	*h = append(*h, x.(scoring.Result))
}

func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
