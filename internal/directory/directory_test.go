package directory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndLookup(t *testing.T) {
	d := New()
	a := d.GenerateID("a.json", "HTTP://Example.com:80/Docs/#top")
	b := d.GenerateID("b.json", "https://example.com/other")

	assert.Equal(t, posting.DocID(0), a)
	assert.Equal(t, posting.DocID(1), b)
	assert.Equal(t, 2, d.Count())

	id, ok := d.FindIDByURL("http://example.com/Docs")
	require.True(t, ok)
	assert.Equal(t, a, id)
	assert.True(t, d.ContainsURL("https://EXAMPLE.com/other/"))
	assert.False(t, d.ContainsURL("https://example.com/missing"))

	u, ok := d.FindURLByID(b)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/other", u)
	_, ok = d.FindURLByID(99)
	assert.False(t, ok)
}

func TestProperties(t *testing.T) {
	d := New()
	id := d.GenerateID("a.json", "http://a")
	require.NoError(t, d.SetProperty(id, "total_count", 42))

	v, ok := d.Property(id, "total_count")
	require.True(t, ok)
	assert.Equal(t, 42.0, v)

	_, ok = d.Property(id, "missing")
	assert.False(t, ok)

	assert.ErrorIs(t, d.SetProperty(7, "total_count", 1), apperrors.ErrNotFound)
	assert.ErrorIs(t, d.SetProperty(id, "url", 1), apperrors.ErrInvalidInput)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	d := New()
	a := d.GenerateID("docs/a.json", "http://a.com/x")
	b := d.GenerateID("docs/b,with,commas.json", "http://b.com/y")
	require.NoError(t, d.SetProperty(a, "total_count", 10))
	require.NoError(t, d.SetProperty(b, "bold_count", 2.5))

	path := filepath.Join(t.TempDir(), "primary", "directory.csv")
	require.NoError(t, d.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "doc_id,file,url,bold_count,total_count\n"))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Count())
	rec, ok := loaded.Record(b)
	require.True(t, ok)
	assert.Equal(t, "docs/b,with,commas.json", rec.File)
	assert.Equal(t, map[string]float64{"bold_count": 2.5}, rec.Props)

	next := loaded.GenerateID("c.json", "http://c.com")
	assert.Equal(t, posting.DocID(2), next)
}

func TestLoadRejectsBadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,url\n1,x\n"), 0644))
	_, err := Load(path)
	assert.ErrorIs(t, err, apperrors.ErrFormat)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		base, href, want string
		ok               bool
	}{
		{"http://a.com/dir/page", "other", "http://a.com/dir/other", true},
		{"http://a.com/dir/page", "/root/", "http://a.com/root", true},
		{"http://a.com/", "HTTPS://B.com/x#frag", "https://b.com/x", true},
		{"http://a.com/", "mailto:me@a.com", "", false},
		{"http://a.com/", "javascript:void(0)", "", false},
	}
	for _, tt := range tests {
		got, ok := Resolve(tt.base, tt.href)
		assert.Equal(t, tt.ok, ok, tt.href)
		assert.Equal(t, tt.want, got, tt.href)
	}
}
