// Package store implements the on-disk postings store: an append-only data
// file holding one record per term, and a side position index mapping each
// term to the byte offset of its record and its posting count.
//
// Data file layout, one record per term:
//
//	<term>\f<posting>\f<posting>...\n
//
// Position index layout, one row per term, sorted by term:
//
//	<term>\t<offset>\t<count>\n
package store

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

const (
	// KeySeparator precedes every posting of a record, including the first.
	KeySeparator = '\f'
	// RecordSeparator terminates a record.
	RecordSeparator = '\n'

	DataExt      = ".postings"
	PositionsExt = ".positions"

	// ChunkSize is the number of bytes an Iterator reads per refill.
	ChunkSize = 16 * 1024
)

// Position locates one term record inside the data file.
type Position struct {
	Offset int64
	Count  int
}

// DataPath returns the data file of the store rooted at base.
func DataPath(base string) string { return base + DataExt }

// PositionsPath returns the position index of the store rooted at base.
func PositionsPath(base string) string { return base + PositionsExt }

// Exists reports whether both files of the store rooted at base are present.
func Exists(base string) bool {
	for _, p := range []string{DataPath(base), PositionsPath(base)} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// Remove deletes both files of a store. Missing files are ignored.
func Remove(base string) error {
	for _, p := range []string{DataPath(base), PositionsPath(base)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}

// ValidTerm reports whether term can be stored as a key.
func ValidTerm(term string) bool {
	return term != "" && !strings.ContainsAny(term, posting.ReservedBytes())
}

// FormatError reports a malformed record, posting or position row. A store
// returning it is corrupt and must be rebuilt.
type FormatError struct {
	Path   string
	Term   string
	Offset int64
	Err    error
}

func (e *FormatError) Error() string {
	if e.Term == "" {
		return fmt.Sprintf("%s at offset %d: %v", e.Path, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s: term %q at offset %d: %v", e.Path, e.Term, e.Offset, e.Err)
}

func (e *FormatError) Unwrap() []error {
	return []error{apperrors.ErrFormat, e.Err}
}
