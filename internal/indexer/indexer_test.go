package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/directory"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/scoring"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySource serves documents from a map, listing them in insertion order.
type memorySource struct {
	order []string
	docs  map[string]tokenizer.Document
}

func newMemorySource() *memorySource {
	return &memorySource{docs: make(map[string]tokenizer.Document)}
}

func (s *memorySource) add(file, url, body string) {
	s.order = append(s.order, file)
	s.docs[file] = tokenizer.Document{URL: url, Content: body, Encoding: "utf-8"}
}

func (s *memorySource) Files() ([]string, error) { return s.order, nil }

func (s *memorySource) Load(file string) (tokenizer.Document, error) {
	doc, ok := s.docs[file]
	if !ok {
		return tokenizer.Document{}, fmt.Errorf("no document %s", file)
	}
	return doc, nil
}

func page(body string) string {
	return "<html><body>" + body + "</body></html>"
}

func sampleCorpus() *memorySource {
	src := newMemorySource()
	src.add("a.json", "http://example.com/a", page("<p>apple banana cherry</p><b>apple</b>"))
	src.add("b.json", "http://example.com/b", page("<p>banana cherry durian</p>"))
	src.add("c.json", "http://example.com/c", page("<p>cherry elderberry fig grape</p>"))
	src.add("d.json", "http://example.com/d", page("<p>apple fig</p>"))
	return src
}

func TestBuildDirectorySkipsUnusableDocuments(t *testing.T) {
	src := sampleCorpus()
	src.add("dup-url.json", "HTTP://EXAMPLE.COM/a", page("<p>something else entirely</p>"))
	src.add("dup-body.json", "http://example.com/e", page("<p>banana  cherry durian</p>"))
	src.add("no-url.json", "", page("<p>orphan</p>"))
	src.docs["latin.json"] = tokenizer.Document{URL: "http://example.com/l", Content: page("x"), Encoding: "klingon"}
	src.order = append(src.order, "latin.json", "missing.json")

	dir, stats, err := BuildDirectory(context.Background(), src, nil)
	require.NoError(t, err)

	assert.Equal(t, 9, stats.Files)
	assert.Equal(t, 4, stats.Added)
	assert.Equal(t, 4, dir.Count())
	assert.Equal(t, 1, stats.Skipped[SkipDuplicateURL])
	assert.Equal(t, 1, stats.Skipped[SkipDuplicateContent])
	assert.Equal(t, 1, stats.Skipped[SkipMissingURL])
	assert.Equal(t, 1, stats.Skipped[SkipEncoding])
	assert.Equal(t, 1, stats.Skipped[SkipUnreadable])

	id, ok := dir.FindIDByURL("http://example.com/c")
	require.True(t, ok)
	assert.Equal(t, posting.DocID(2), id, "ids follow file order")
}

func TestBuildDirectoryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := BuildDirectory(ctx, sampleCorpus(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCorpusSourceListsJSONFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0755))
	for _, name := range []string{"b.json", "a.JSON", "sub/c.json", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(`{"url":"u","content":"","encoding":"utf-8"}`), 0644))
	}

	files, err := CorpusSource{Dir: root}.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.JSON"),
		filepath.Join(root, "b.json"),
		filepath.Join(root, "sub", "c.json"),
	}, files)

	doc, err := CorpusSource{Dir: root}.Load(files[1])
	require.NoError(t, err)
	assert.Equal(t, "u", doc.URL)
}

func newTestBuilder(t *testing.T, src DocumentSource, genDir string, threshold int) *Builder {
	t.Helper()
	tok, err := tokenizer.New("word")
	require.NoError(t, err)
	return NewBuilder(BuilderConfig{
		Name:           "words",
		GenerationDir:  genDir,
		Tokenizer:      tok,
		Scheme:         scoring.NewTFIDF(scoring.CorpusSize(4), nil),
		Source:         src,
		FlushThreshold: threshold,
		Champions:      true,
		KeepPartials:   true,
	})
}

func TestBuilderWritesEveryStage(t *testing.T) {
	src := sampleCorpus()
	dir, _, err := BuildDirectory(context.Background(), src, nil)
	require.NoError(t, err)

	genDir := t.TempDir()
	b := newTestBuilder(t, src, genDir, 3)
	stats, err := b.Build(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Documents)
	assert.Greater(t, stats.Partials, 1, "a small threshold forces several partials")
	assert.True(t, stats.Champions)
	assert.Equal(t, 4, stats.Lengths[0])

	for _, stage := range []string{StageFinalized, StageSchemed, StageChampion} {
		assert.True(t, store.Exists(StageBase(genDir, "words", stage)), stage)
	}
	bases, err := segment.Bases(filepath.Join(IndexDir(genDir, "words"), PartialsDir))
	require.NoError(t, err)
	assert.Len(t, bases, stats.Partials)

	r, err := store.Open(StageBase(genDir, "words", StageSchemed), scoring.TFIDFSchema)
	require.NoError(t, err)
	defer r.Close()

	cherry, err := r.Postings("cherri")
	require.NoError(t, err)
	require.Len(t, cherry, 3)
	for i, p := range cherry {
		assert.Equal(t, posting.DocID(i), p.DocID, "postings stay in id order across partials")
	}
	elder, err := r.Postings("elderberri")
	require.NoError(t, err)
	require.Len(t, elder, 1)
	assert.Greater(t, elder[0].Get(scoring.PropTFIDF), 0.0)
	assert.Equal(t, stats.Terms, r.Len())
}

func TestBuilderRemovesPartials(t *testing.T) {
	src := sampleCorpus()
	dir, _, err := BuildDirectory(context.Background(), src, nil)
	require.NoError(t, err)

	genDir := t.TempDir()
	b := newTestBuilder(t, src, genDir, 0)
	b.cfg.KeepPartials = false
	_, err = b.Build(context.Background(), dir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(IndexDir(genDir, "words"), PartialsDir))
	assert.True(t, os.IsNotExist(err))
	assert.True(t, store.Exists(StageBase(genDir, "words", StageSchemed)))
}

func TestBuilderSkipsDocumentsWithoutTerms(t *testing.T) {
	src := sampleCorpus()
	src.add("empty.json", "http://example.com/empty", page(""))
	dir, _, err := BuildDirectory(context.Background(), src, nil)
	require.NoError(t, err)
	require.Equal(t, 5, dir.Count())

	stats, err := newTestBuilder(t, src, t.TempDir(), 0).Build(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Documents)
	assert.Equal(t, 1, stats.Skipped)
}

func testIndexerConfig(t *testing.T) config.IndexerConfig {
	return config.IndexerConfig{
		DataDir:        t.TempDir(),
		FlushThreshold: 5,
		Workers:        2,
		Champions:      true,
		Indexes: []config.IndexSpec{
			{Name: "words", Tokenizer: "word", Scheme: "tf_idf", Weight: 1},
			{Name: "bigrams", Tokenizer: "bigram", Weight: 0.5},
			{Name: "bold", Tokenizer: "bold", Scheme: "tf_idf", Weight: 0.5},
		},
	}
}

func TestPipelineBuildsGeneration(t *testing.T) {
	cfg := testIndexerConfig(t)
	gen, err := NewPipeline(cfg, sampleCorpus(), nil).Run(context.Background())
	require.NoError(t, err)

	current, err := ReadCurrent(cfg.DataDir)
	require.NoError(t, err)
	assert.Equal(t, gen.ID, current)

	m, err := ReadManifest(GenerationDir(cfg.DataDir, current))
	require.NoError(t, err)
	assert.Equal(t, 4, m.Documents)
	require.Len(t, m.Indexes, 3)

	bigrams, ok := m.Index("bigrams")
	require.True(t, ok)
	assert.Equal(t, "tf_idf", bigrams.Scheme)
	assert.Equal(t, 0.5, bigrams.Weight)

	bold, ok := m.Index("bold")
	require.True(t, ok)
	assert.Equal(t, 1, bold.Documents, "only one page has bold text")

	for _, ix := range m.Indexes {
		assert.True(t, store.Exists(StageBase(gen.Dir, ix.Name, StageSchemed)), ix.Name)
		assert.True(t, store.Exists(StageBase(gen.Dir, ix.Name, StageChampion)), ix.Name)
	}

	docs, err := directory.Load(filepath.Join(gen.Dir, DirectoryFile))
	require.NoError(t, err)
	assert.Equal(t, 4, docs.Count())
	n, ok := docs.Property(0, "words_terms")
	require.True(t, ok)
	assert.Equal(t, 4.0, n)
}

func TestPipelineFailureKeepsCurrent(t *testing.T) {
	cfg := testIndexerConfig(t)
	require.NoError(t, WriteCurrent(cfg.DataDir, "previous"))
	cfg.Indexes = append(cfg.Indexes, config.IndexSpec{Name: "broken", Tokenizer: "nope"})

	_, err := NewPipeline(cfg, sampleCorpus(), nil).Run(context.Background())
	require.Error(t, err)

	current, err := ReadCurrent(cfg.DataDir)
	require.NoError(t, err)
	assert.Equal(t, "previous", current)
}

func TestPipelineHooksRunBeforeCurrent(t *testing.T) {
	cfg := testIndexerConfig(t)
	require.NoError(t, WriteCurrent(cfg.DataDir, "previous"))

	p := NewPipeline(cfg, sampleCorpus(), nil)
	var seen string
	p.BeforeCurrent(func(_ context.Context, gen *Generation) error {
		seen = gen.ID
		current, err := ReadCurrent(cfg.DataDir)
		require.NoError(t, err)
		assert.Equal(t, "previous", current)
		return nil
	})
	gen, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gen.ID, seen)

	p = NewPipeline(cfg, sampleCorpus(), nil)
	p.BeforeCurrent(func(context.Context, *Generation) error { return errors.New("ranking failed") })
	_, err = p.Run(context.Background())
	assert.ErrorContains(t, err, "ranking failed")
	current, err := ReadCurrent(cfg.DataDir)
	require.NoError(t, err)
	assert.Equal(t, gen.ID, current)
}

func TestValidGenerationID(t *testing.T) {
	assert.True(t, ValidGenerationID("3f2a"))
	for _, id := range []string{"", ".", "..", "a/b", `a\b`} {
		assert.False(t, ValidGenerationID(id), id)
	}
}

func TestLayoutCurrentAndManifest(t *testing.T) {
	data := t.TempDir()

	_, err := ReadCurrent(data)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	require.NoError(t, os.WriteFile(filepath.Join(data, CurrentFile), []byte("../escape\n"), 0644))
	_, err = ReadCurrent(data)
	assert.True(t, errors.Is(err, apperrors.ErrFormat))

	genDir := GenerationDir(data, "g1")
	_, err = ReadManifest(genDir)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	require.NoError(t, WriteManifest(genDir, &Manifest{
		Generation: "g1",
		Documents:  2,
		Indexes:    []IndexManifest{{Name: "words", Scheme: "tf_idf", Weight: 1}},
	}))
	m, err := ReadManifest(genDir)
	require.NoError(t, err)
	assert.Equal(t, "g1", m.Generation)
	_, ok := m.Index("missing")
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(genDir, ManifestFile), []byte("{"), 0644))
	_, err = ReadManifest(genDir)
	assert.True(t, errors.Is(err, apperrors.ErrFormat))
}
