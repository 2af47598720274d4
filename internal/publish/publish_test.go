package publish

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryObjects struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failPuts int
	puts     int
}

func (m *memoryObjects) Put(_ context.Context, key string, r io.Reader, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if m.failPuts > 0 {
		m.failPuts--
		return errors.New("connection reset")
	}
	if int64(len(data)) != size {
		return errors.New("short body")
	}
	m.objects[key] = data
	return nil
}

func (m *memoryObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestArchiveRoundTrip(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "generation.json"), `{"generation":"g1"}`)
	writeFile(t, filepath.Join(src, "words", "schemed.postings"), "apple,1:0.5\n")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "empty"), 0755))

	var buf bytes.Buffer
	require.NoError(t, Archive(&buf, src))

	dst := t.TempDir()
	require.NoError(t, Extract(&buf, dst))
	got, err := os.ReadFile(filepath.Join(dst, "words", "schemed.postings"))
	require.NoError(t, err)
	assert.Equal(t, "apple,1:0.5\n", string(got))
	info, err := os.Stat(filepath.Join(dst, "empty"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "g1.tar.lz4", ObjectKey("", "g1"))
	assert.Equal(t, "generations/g1.tar.lz4", ObjectKey("generations/", "g1"))
}

func fastPublisher(store ObjectStore) *Publisher {
	p := NewPublisher(store, "gens")
	p.retry = resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 1, MaxDelay: 1}
	return p
}

func TestPublishAndFetch(t *testing.T) {
	dataDir := t.TempDir()
	genDir := indexer.GenerationDir(dataDir, "g1")
	writeFile(t, filepath.Join(genDir, "directory.csv"), "0,http://example.com/a\n")

	store := &memoryObjects{objects: make(map[string][]byte), failPuts: 1}
	p := fastPublisher(store)
	key, err := p.Publish(context.Background(), dataDir, "g1")
	require.NoError(t, err)
	assert.Equal(t, "gens/g1.tar.lz4", key)
	assert.Equal(t, 2, store.puts, "first upload is retried")

	other := t.TempDir()
	require.NoError(t, p.Fetch(context.Background(), other, "g1"))
	got, err := os.ReadFile(filepath.Join(indexer.GenerationDir(other, "g1"), "directory.csv"))
	require.NoError(t, err)
	assert.Equal(t, "0,http://example.com/a\n", string(got))

	entries, err := os.ReadDir(filepath.Join(other, indexer.GenerationsDir))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging directory is cleaned up")
}

func TestFetchMissingGeneration(t *testing.T) {
	p := fastPublisher(&memoryObjects{objects: make(map[string][]byte)})
	err := p.Fetch(context.Background(), t.TempDir(), "g9")
	assert.ErrorIs(t, err, os.ErrNotExist)

	err = p.Fetch(context.Background(), t.TempDir(), "..")
	assert.Error(t, err)
}
