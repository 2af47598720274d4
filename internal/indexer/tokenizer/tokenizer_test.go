package tokenizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><head><title>Running Cats</title>
<style>.x { color: red }</style><script>var hidden = 1;</script></head>
<body><h1>Cats</h1><p>The cats were running <b>fast</b> 1234567 99</p>
<!-- comment words -->
<a href="/about">About</a> <a href=" http://example.com/x ">x</a> <a name="anchor">y</a>
</body></html>`

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"cat", "run", "fast", "99"}, Words("Cats RUNNING, fast! 1234567 99", false))
	assert.Equal(t, []string{"cat", "run"}, Words("the cats are running", true))
	assert.Empty(t, Words("  -- ", false))
}

func TestParsePage(t *testing.T) {
	page, err := ParsePage(samplePage)
	require.NoError(t, err)

	assert.Equal(t, "Running Cats", page.Title)
	assert.Equal(t, []string{"Cats", "The cats were running", "fast", "1234567 99", "About", "x", "y"}, page.Text)
	assert.Equal(t, []string{"Cats", "fast"}, page.Emphasis)
	assert.Equal(t, []string{"/about", "http://example.com/x"}, page.Links)
}

func TestWordTokenizer(t *testing.T) {
	page, err := ParsePage(samplePage)
	require.NoError(t, err)

	res := Word{}.Tokenize("u", page)
	assert.Equal(t, "u", res.URL)
	assert.Equal(t, 2, res.Counts["cat"])
	assert.Equal(t, 1, res.Counts["run"])
	assert.NotContains(t, res.Counts, "1234567")
	assert.NotContains(t, res.Counts, "hidden")
	assert.NotContains(t, res.Counts, "comment")
	total := 0
	for _, c := range res.Counts {
		total += c
	}
	assert.Equal(t, total, res.Total)
}

func TestNGramTokenizer(t *testing.T) {
	page := &Page{Text: []string{"quick brown", "fox jumps"}}
	res := NGram{N: 2}.Tokenize("u", page)
	assert.Equal(t, map[string]int{"quick brown": 1, "brown fox": 1, "fox jump": 1}, res.Counts)
	assert.Equal(t, 3, res.Total)

	assert.Equal(t, []string{"quick brown fox"}, NGram{N: 3}.TokenizeQuery("quick brown fox"))
	assert.Empty(t, NGram{N: 3}.TokenizeQuery("quick brown"))
}

func TestBoldTokenizer(t *testing.T) {
	page, err := ParsePage(samplePage)
	require.NoError(t, err)
	res := Bold{}.Tokenize("u", page)
	assert.Equal(t, map[string]int{"cat": 2, "fast": 1, "run": 1}, res.Counts)
}

func TestNew(t *testing.T) {
	for _, kind := range []string{"word", "word-nostop", "bigram", "trigram", "bold"} {
		tok, err := New(kind)
		require.NoError(t, err, kind)
		assert.Equal(t, kind, tok.Name())
	}
	_, err := New("soundex")
	assert.Error(t, err)
}

func TestLoadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"url":"http://a/","content":"<p>hi</p>","encoding":"UTF-8"}`), 0644))

	doc, err := LoadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "http://a/", doc.URL)
	assert.True(t, doc.Permitted())

	doc.Encoding = "windows-1252"
	assert.False(t, doc.Permitted())
}

func TestFingerprintIgnoresWhitespace(t *testing.T) {
	a := &Page{Text: []string{"hello world", "a/b"}}
	b := &Page{Text: []string{"helloworld", "ab"}}
	c := &Page{Text: []string{"hello there"}}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}
