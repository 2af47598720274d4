// Package directory maps corpus documents to dense integer ids and back,
// and carries named scalar properties per document. It is persisted as a
// CSV file with a header row of doc_id, file, url and the property names.
package directory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

var fixedColumns = []string{"doc_id", "file", "url"}

// Record is one document entry.
type Record struct {
	ID    posting.DocID
	File  string
	URL   string
	Props map[string]float64
}

// Directory is safe for concurrent use.
type Directory struct {
	mu      sync.RWMutex
	records []*Record
	byURL   map[string]posting.DocID
	byID    map[posting.DocID]*Record
	next    posting.DocID
}

func New() *Directory {
	return &Directory{
		byURL: make(map[string]posting.DocID),
		byID:  make(map[posting.DocID]*Record),
	}
}

// GenerateID assigns the next id to the document stored in file and served
// at rawURL. URLs are normalised before they are recorded.
func (d *Directory) GenerateID(file, rawURL string) posting.DocID {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec := &Record{ID: d.next, File: file, URL: NormalizeURL(rawURL), Props: map[string]float64{}}
	d.next++
	d.insert(rec)
	return rec.ID
}

func (d *Directory) insert(rec *Record) {
	d.records = append(d.records, rec)
	d.byID[rec.ID] = rec
	if rec.URL != "" {
		if _, seen := d.byURL[rec.URL]; !seen {
			d.byURL[rec.URL] = rec.ID
		}
	}
	if rec.ID >= d.next {
		d.next = rec.ID + 1
	}
}

// FindIDByURL resolves a URL, normalising it first.
func (d *Directory) FindIDByURL(rawURL string) (posting.DocID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byURL[NormalizeURL(rawURL)]
	return id, ok
}

func (d *Directory) ContainsURL(rawURL string) bool {
	_, ok := d.FindIDByURL(rawURL)
	return ok
}

func (d *Directory) FindURLByID(id posting.DocID) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.byID[id]
	if !ok {
		return "", false
	}
	return rec.URL, true
}

// Record returns a copy of the entry for id.
func (d *Directory) Record(id posting.DocID) (Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.byID[id]
	if !ok {
		return Record{}, false
	}
	cp := *rec
	cp.Props = make(map[string]float64, len(rec.Props))
	for k, v := range rec.Props {
		cp.Props[k] = v
	}
	return cp, true
}

// Count returns the number of documents.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}

// IDs returns every document id in assignment order.
func (d *Directory) IDs() []posting.DocID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]posting.DocID, len(d.records))
	for i, rec := range d.records {
		out[i] = rec.ID
	}
	return out
}

func (d *Directory) SetProperty(id posting.DocID, name string, value float64) error {
	if isFixedColumn(name) || name == "" || strings.ContainsAny(name, ",\n\"") {
		return fmt.Errorf("%w: property name %q", apperrors.ErrInvalidInput, name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.byID[id]
	if !ok {
		return fmt.Errorf("document %d: %w", id, apperrors.ErrNotFound)
	}
	rec.Props[name] = value
	return nil
}

func (d *Directory) Property(id posting.DocID, name string) (float64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.byID[id]
	if !ok {
		return 0, false
	}
	v, ok := rec.Props[name]
	return v, ok
}

// Save writes the directory as CSV to a temp file and renames it into place.
func (d *Directory) Save(path string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	propSet := make(map[string]struct{})
	for _, rec := range d.records {
		for name := range rec.Props {
			propSet[name] = struct{}{}
		}
	}
	props := make([]string, 0, len(propSet))
	for name := range propSet {
		props = append(props, name)
	}
	sort.Strings(props)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory dir: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp directory file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(append(append([]string{}, fixedColumns...), props...)); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	row := make([]string, len(fixedColumns)+len(props))
	for _, rec := range d.records {
		row[0] = strconv.FormatUint(uint64(rec.ID), 10)
		row[1] = rec.File
		row[2] = rec.URL
		for i, name := range props {
			if v, ok := rec.Props[name]; ok {
				row[3+i] = strconv.FormatFloat(v, 'g', -1, 64)
			} else {
				row[3+i] = ""
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing document %d: %w", rec.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing directory: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing directory: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming directory file: %w", err)
	}
	return nil
}

// Load reads a directory saved by Save.
func Load(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening directory: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading directory header: %w", err)
	}
	if len(header) < len(fixedColumns) {
		return nil, fmt.Errorf("%w: directory header %v", apperrors.ErrFormat, header)
	}
	for i, col := range fixedColumns {
		if header[i] != col {
			return nil, fmt.Errorf("%w: directory column %d is %q, want %q", apperrors.ErrFormat, i, header[i], col)
		}
	}
	props := header[len(fixedColumns):]

	d := New()
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return d, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading directory: %v", apperrors.ErrFormat, err)
		}
		id, err := strconv.ParseUint(row[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: document id %q", apperrors.ErrFormat, row[0])
		}
		rec := &Record{ID: posting.DocID(id), File: row[1], URL: row[2], Props: make(map[string]float64)}
		for i, name := range props {
			raw := row[len(fixedColumns)+i]
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: document %d property %s: %v", apperrors.ErrFormat, id, name, err)
			}
			rec.Props[name] = v
		}
		if _, dup := d.byID[rec.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate document id %d", apperrors.ErrFormat, id)
		}
		d.insert(rec)
	}
}

func isFixedColumn(name string) bool {
	for _, col := range fixedColumns {
		if col == name {
			return true
		}
	}
	return false
}

// NormalizeURL canonicalises a URL for identity comparison: lower-case
// scheme and host, no default port, no fragment, no trailing slash. Input
// that does not parse is returned trimmed.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !(u.Scheme == "http" && port == "80") && !(u.Scheme == "https" && port == "443") {
		host += ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

// Resolve resolves href against base and normalises the result. It reports
// false for hrefs that are not http(s) links.
func Resolve(base, href string) (string, bool) {
	b, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	u := b.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return NormalizeURL(u.String()), true
}
