package reload

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	mu      sync.Mutex
	gen     string
	next    string
	err     error
	reloads int
}

func (f *fakeTarget) Reload() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	if f.err != nil {
		return false, f.err
	}
	if f.next == f.gen {
		return false, nil
	}
	f.gen = f.next
	return true, nil
}

func (f *fakeTarget) Generation() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen
}

func (f *fakeTarget) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reloads
}

type fakeCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (c *fakeCache) InvalidateGeneration(_ context.Context, gen string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, gen)
	return 1, nil
}

func TestReloadInvalidatesReplacedGeneration(t *testing.T) {
	target := &fakeTarget{next: "g1"}
	cache := &fakeCache{}
	r := New(target, cache)

	changed, err := r.Reload(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, cache.invalidated, "nothing was served before the first load")

	target.next = "g2"
	changed, err = r.Reload(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"g1"}, cache.invalidated)

	changed, err = r.Reload(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, cache.invalidated, 1)
}

func TestReloadError(t *testing.T) {
	target := &fakeTarget{err: errors.New("missing store")}
	_, err := New(target, nil).Reload(context.Background())
	assert.ErrorContains(t, err, "missing store")
}

func TestHandleMessage(t *testing.T) {
	target := &fakeTarget{gen: "g1", next: "g1"}
	r := New(target, &fakeCache{})

	value, err := json.Marshal(events.GenerationComplete{Generation: "g1"})
	require.NoError(t, err)
	require.NoError(t, r.HandleMessage(context.Background(), nil, value))
	assert.Equal(t, 0, target.count(), "served generation is not reloaded")

	require.NoError(t, r.HandleMessage(context.Background(), nil, []byte("{not json")))
	assert.Equal(t, 0, target.count())

	target.next = "g2"
	value, err = json.Marshal(events.GenerationComplete{Generation: "g2"})
	require.NoError(t, err)
	require.NoError(t, r.HandleMessage(context.Background(), []byte("g2"), value))
	assert.Equal(t, "g2", target.Generation())
}

type fakeFetcher struct {
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, generation string) error {
	f.fetched = append(f.fetched, generation)
	return nil
}

func TestHandleMessageFetchesArchive(t *testing.T) {
	dataDir := t.TempDir()
	target := &fakeTarget{next: "g3"}
	fetcher := &fakeFetcher{}
	r := New(target, nil)
	r.FetchInto(fetcher, dataDir)

	value, err := json.Marshal(events.GenerationComplete{Generation: "g3", Archive: "gens/g3.tar.lz4"})
	require.NoError(t, err)
	require.NoError(t, r.HandleMessage(context.Background(), nil, value))
	assert.Equal(t, []string{"g3"}, fetcher.fetched)

	current, err := indexer.ReadCurrent(dataDir)
	require.NoError(t, err)
	assert.Equal(t, "g3", current)
	assert.Equal(t, "g3", target.Generation())
}

func TestWatchReloadsOnCurrentChange(t *testing.T) {
	dir := t.TempDir()
	target := &fakeTarget{}
	r := New(target, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx, dir, 10*time.Millisecond) }()

	// Give the watcher time to register before the first write.
	time.Sleep(50 * time.Millisecond)
	target.mu.Lock()
	target.next = "g1"
	target.mu.Unlock()
	require.NoError(t, indexer.WriteCurrent(dir, "g1"))

	assert.Eventually(t, func() bool { return target.Generation() == "g1" }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
