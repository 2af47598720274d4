package indexer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// On-disk layout of a data directory:
//
//	<data>/CURRENT                          id of the generation to serve
//	<data>/generations/<id>/generation.json manifest
//	<data>/generations/<id>/directory.csv   document directory
//	<data>/generations/<id>/<index>/partials/<n>.{postings,positions}
//	<data>/generations/<id>/<index>/{finalized,schemed,champion}.{postings,positions}
const (
	CurrentFile    = "CURRENT"
	GenerationsDir = "generations"
	ManifestFile   = "generation.json"
	DirectoryFile  = "directory.csv"
	PartialsDir    = "partials"

	StageFinalized = "finalized"
	StageSchemed   = "schemed"
	StageChampion  = "champion"
)

// GenerationDir returns the directory of generation id.
func GenerationDir(dataDir, id string) string {
	return filepath.Join(dataDir, GenerationsDir, id)
}

// IndexDir returns the directory holding the stores of one index.
func IndexDir(genDir, index string) string {
	return filepath.Join(genDir, index)
}

// StageBase returns the store base path of one build stage of an index.
func StageBase(genDir, index, stage string) string {
	return filepath.Join(genDir, index, stage)
}

// IndexManifest describes one built index.
type IndexManifest struct {
	Name      string  `json:"name"`
	Tokenizer string  `json:"tokenizer"`
	Scheme    string  `json:"scheme"`
	Weight    float64 `json:"weight"`
	Documents int     `json:"documents"`
	Terms     int     `json:"terms"`
	Postings  int64   `json:"postings"`
	Champions bool    `json:"champions"`
}

// Manifest describes a finished generation.
type Manifest struct {
	Generation string          `json:"generation"`
	CreatedAt  time.Time       `json:"created_at"`
	Documents  int             `json:"documents"`
	Indexes    []IndexManifest `json:"indexes"`
}

// Index returns the manifest entry of the named index.
func (m *Manifest) Index(name string) (IndexManifest, bool) {
	for _, ix := range m.Indexes {
		if ix.Name == name {
			return ix, true
		}
	}
	return IndexManifest{}, false
}

func WriteManifest(genDir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return writeFileAtomic(filepath.Join(genDir, ManifestFile), append(data, '\n'))
}

func ReadManifest(genDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(genDir, ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest of %s: %w", genDir, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest of %s: %v", apperrors.ErrFormat, genDir, err)
	}
	return &m, nil
}

// WriteCurrent points dataDir at generation id.
func WriteCurrent(dataDir, id string) error {
	return writeFileAtomic(filepath.Join(dataDir, CurrentFile), []byte(id+"\n"))
}

// ReadCurrent returns the generation dataDir points at.
func ReadCurrent(dataDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, CurrentFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no current generation in %s: %w", dataDir, apperrors.ErrNotFound)
		}
		return "", fmt.Errorf("reading current generation: %w", err)
	}
	id := strings.TrimSpace(string(data))
	if !ValidGenerationID(id) {
		return "", fmt.Errorf("%w: current generation %q", apperrors.ErrFormat, id)
	}
	return id, nil
}

// ValidGenerationID reports whether id can name a generation directory.
func ValidGenerationID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming %s: %w", tmpPath, err)
	}
	return nil
}
