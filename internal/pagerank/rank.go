package pagerank

import (
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
)

const (
	DefaultIterations = 20
	DefaultDamping    = 0.85
)

// Options tunes the power iteration.
type Options struct {
	Iterations int
	Damping    float64
}

func (o Options) withDefaults() Options {
	if o.Iterations <= 0 {
		o.Iterations = DefaultIterations
	}
	if o.Damping <= 0 || o.Damping >= 1 {
		o.Damping = DefaultDamping
	}
	return o
}

// Rank runs exactly opts.Iterations rounds of power iteration over g and
// returns the final weight of every node. Every node starts at 1. Each
// round, a target receives damping * count / LinkCount[src] * prev[src] from
// every source linking to it, and every node, dangling or not, receives
// 1 - damping. Without dangling nodes the total weight stays at the node
// count.
func Rank(g *Graph, opts Options) map[posting.DocID]float64 {
	opts = opts.withDefaults()
	logger := slog.Default().With("component", "pagerank")

	incoming := g.Incoming()
	nodes := g.Nodes.ToArray()
	prev := make(map[posting.DocID]float64, len(nodes))
	for _, n := range nodes {
		prev[posting.DocID(n)] = 1
	}
	base := 1 - opts.Damping

	for round := 0; round < opts.Iterations; round++ {
		weight := make(map[posting.DocID]float64, len(nodes))
		for target, sources := range incoming {
			for src, count := range sources {
				weight[target] += opts.Damping * float64(count) / float64(g.LinkCount[src]) * prev[src]
			}
		}
		var total float64
		for _, n := range nodes {
			id := posting.DocID(n)
			weight[id] += base
			total += weight[id]
		}
		prev = weight
		logger.Debug("pagerank round", "round", round+1, "total_weight", total)
	}
	logger.Info("pagerank computed",
		"nodes", len(nodes),
		"dangling", g.Dangling().GetCardinality(),
		"iterations", opts.Iterations,
		"damping", opts.Damping,
	)
	return prev
}
