package segment

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/store"
)

// Bases lists the partial stores under dir in flush order. Files that are
// not numbered partials are ignored.
func Bases(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading partials directory: %w", err)
	}
	nums := make([]int, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, store.PositionsExt) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(name, store.PositionsExt))
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	sort.Ints(nums)
	bases := make([]string, len(nums))
	for i, n := range nums {
		bases[i] = filepath.Join(dir, strconv.Itoa(n))
	}
	return bases, nil
}

// OpenAll opens every partial store under dir. On error, already opened
// readers are closed.
func OpenAll(dir string, schema *posting.Schema) ([]*store.Reader, error) {
	bases, err := Bases(dir)
	if err != nil {
		return nil, err
	}
	readers := make([]*store.Reader, 0, len(bases))
	for _, base := range bases {
		r, err := store.Open(base, schema)
		if err != nil {
			CloseAll(readers)
			return nil, fmt.Errorf("opening partial %s: %w", base, err)
		}
		readers = append(readers, r)
	}
	return readers, nil
}

// CloseAll closes every reader, returning the first error encountered.
func CloseAll(readers []*store.Reader) error {
	var firstErr error
	for _, r := range readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RemoveAll deletes the partials directory.
func RemoveAll(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing partials: %w", err)
	}
	return nil
}
