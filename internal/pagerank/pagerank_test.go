package pagerank

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/directory"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(w map[posting.DocID]float64) float64 {
	var total float64
	for _, v := range w {
		total += v
	}
	return total
}

func TestTriangleConvergesToEqualWeights(t *testing.T) {
	g := NewGraph()
	g.AddLink(1, 2)
	g.AddLink(2, 3)
	g.AddLink(3, 1)

	for _, iterations := range []int{1, 5, 20} {
		w := Rank(g, Options{Iterations: iterations, Damping: 0.85})
		require.Len(t, w, 3)
		assert.InDelta(t, w[1], w[2], 1e-12)
		assert.InDelta(t, w[2], w[3], 1e-12)
		assert.InDelta(t, 3.0, sum(w), 1e-9)
	}
}

func TestConservationWithoutDanglingNodes(t *testing.T) {
	g := NewGraph()
	g.AddLink(1, 2)
	g.AddLink(1, 3)
	g.AddLink(1, 3)
	g.AddLink(2, 1)
	g.AddLink(3, 1)
	g.AddLink(3, 2)
	g.AddLink(4, 1)
	require.True(t, g.Dangling().IsEmpty())

	for iterations := 1; iterations <= 30; iterations++ {
		w := Rank(g, Options{Iterations: iterations, Damping: 0.85})
		assert.InDelta(t, 4.0, sum(w), 1e-9, "after %d rounds", iterations)
	}
}

func TestLinkMultiplicityWeightsContribution(t *testing.T) {
	g := NewGraph()
	g.AddLink(1, 2)
	g.AddLink(1, 3)
	g.AddLink(1, 3)
	g.AddLink(2, 1)
	g.AddLink(3, 1)

	w := Rank(g, Options{Iterations: 1, Damping: 0.5})
	// One round from uniform weight 1: node 2 gets 0.5*1/3, node 3 gets 0.5*2/3.
	assert.InDelta(t, 0.5+0.5/3, w[2], 1e-12)
	assert.InDelta(t, 0.5+1.0/3, w[3], 1e-12)
	assert.InDelta(t, 0.5+0.5+0.5, w[1], 1e-12)
}

func TestDanglingNodesReceiveBaseline(t *testing.T) {
	g := NewGraph()
	g.AddLink(1, 2)
	g.AddNode(3)

	assert.Equal(t, []uint32{2, 3}, g.Dangling().ToArray())

	w := Rank(g, Options{Iterations: 3, Damping: 0.85})
	assert.InDelta(t, 0.15, w[1], 1e-12)
	assert.InDelta(t, 0.15, w[3], 1e-12)
	assert.InDelta(t, 0.15+0.85*0.15, w[2], 1e-12)
}

func TestRankDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, DefaultIterations, o.Iterations)
	assert.Equal(t, DefaultDamping, o.Damping)
}

func TestIncomingIsTranspose(t *testing.T) {
	g := NewGraph()
	g.AddLink(1, 2)
	g.AddLink(1, 2)
	g.AddLink(3, 2)
	in := g.Incoming()
	assert.Equal(t, map[posting.DocID]int{1: 2, 3: 1}, in[2])
	assert.Equal(t, 2, g.LinkCount[1])
}

func TestBuildGraphResolvesAgainstDirectory(t *testing.T) {
	dir := directory.New()
	a := dir.GenerateID("a.json", "http://site.com/a")
	b := dir.GenerateID("b.json", "http://site.com/dir/b")
	c := dir.GenerateID("c.json", "http://site.com/c")

	links := map[string][]string{
		"a.json": {"dir/b", "/c", "/c#frag", "http://elsewhere.com/x", "mailto:x@y"},
		"b.json": {"../a"},
	}
	extract := func(rec directory.Record) ([]string, error) {
		if rec.File == "c.json" {
			return nil, errors.New("unreadable")
		}
		return links[rec.File], nil
	}

	g, err := BuildGraph(context.Background(), dir, extract)
	require.NoError(t, err)
	assert.Equal(t, map[posting.DocID]int{b: 1, c: 2}, g.Links[a])
	assert.Equal(t, 3, g.LinkCount[a])
	assert.Equal(t, map[posting.DocID]int{a: 1}, g.Links[b])
	assert.Equal(t, uint64(3), g.Nodes.GetCardinality())
}

func TestGraphCacheRoundTrip(t *testing.T) {
	g := NewGraph()
	g.AddLink(1, 2)
	g.AddLink(1, 2)
	g.AddLink(2, 5)
	g.AddNode(9)

	path := filepath.Join(t.TempDir(), "cache", "graph.json.zst")
	require.NoError(t, SaveGraph(path, g))

	loaded, err := LoadGraph(path)
	require.NoError(t, err)
	assert.Equal(t, g.Links, loaded.Links)
	assert.Equal(t, g.LinkCount, loaded.LinkCount)
	assert.True(t, g.Nodes.Equals(loaded.Nodes))
}

func TestLoadOrBuildGraphUsesCache(t *testing.T) {
	dir := directory.New()
	a := dir.GenerateID("a.json", "http://s/a")
	b := dir.GenerateID("b.json", "http://s/b")
	calls := 0
	extract := func(rec directory.Record) ([]string, error) {
		calls++
		if rec.ID == a {
			return []string{"http://s/b"}, nil
		}
		return nil, nil
	}
	path := filepath.Join(t.TempDir(), "graph.zst")

	g1, err := LoadOrBuildGraph(context.Background(), path, dir, extract)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	g2, err := LoadOrBuildGraph(context.Background(), path, dir, extract)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "second call is served from the cache")
	assert.Equal(t, g1.Links, g2.Links)
	assert.Equal(t, 1, g2.Links[a][b])
}

func TestTableRoundTrip(t *testing.T) {
	table := NewTable(map[posting.DocID]float64{3: 0.5, 1: 1.25, 2: 0.15})
	path := filepath.Join(t.TempDir(), "rank.csv")
	require.NoError(t, table.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1,1.25\n2,0.15\n3,0.5\n", string(data))

	loaded, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())
	v, ok := loaded.Get(1)
	require.True(t, ok)
	assert.Equal(t, 1.25, v)
	_, ok = loaded.Get(7)
	assert.False(t, ok)

	var nilTable *Table
	_, ok = nilTable.Get(1)
	assert.False(t, ok)
}

func TestLoadTableRejectsMalformedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("1,0.5\nnot-a-row\n"), 0644))
	_, err := LoadTable(path)
	assert.ErrorIs(t, err, apperrors.ErrFormat)
}

func TestTableTop(t *testing.T) {
	table := NewTable(map[posting.DocID]float64{0: 0.2, 1: 0.5, 2: 0.2, 3: 0.1})
	top := table.Top(3)
	require.Len(t, top, 3)
	assert.Equal(t, []Score{{1, 0.5}, {0, 0.2}, {2, 0.2}}, top)
	assert.Len(t, table.Top(10), 4)
	assert.Nil(t, (*Table)(nil).Top(3))
}
