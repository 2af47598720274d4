package store

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// RebuildPositions regenerates the position index of the store rooted at
// base by scanning its data file. It recovers a store whose writer flushed
// record data but never reached Close. It returns the number of terms found.
func RebuildPositions(base string) (int, error) {
	path := DataPath(base)
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening data file: %w", err)
	}
	defer f.Close()

	positions := make(map[string]Position)
	var (
		term    []byte
		inTerm  = true
		started bool
		current Position
		offset  int64
	)
	finish := func() error {
		if !started {
			return nil
		}
		if len(term) == 0 {
			return &FormatError{Path: path, Offset: current.Offset, Err: fmt.Errorf("empty term")}
		}
		key := string(term)
		if _, dup := positions[key]; dup {
			return &FormatError{Path: path, Term: key, Offset: current.Offset, Err: fmt.Errorf("duplicate term")}
		}
		positions[key] = current
		term = term[:0]
		inTerm = true
		started = false
		return nil
	}

	chunk := make([]byte, ChunkSize)
	for {
		n, err := f.Read(chunk)
		for i, b := range chunk[:n] {
			if !started {
				started = true
				current = Position{Offset: offset + int64(i)}
			}
			switch {
			case b == RecordSeparator:
				if err := finish(); err != nil {
					return 0, err
				}
			case b == KeySeparator:
				inTerm = false
				current.Count++
			case inTerm:
				term = append(term, b)
			}
		}
		offset += int64(n)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("scanning data file: %w", err)
		}
	}
	if err := finish(); err != nil {
		return 0, err
	}
	if err := writePositions(PositionsPath(base), positions); err != nil {
		return 0, err
	}
	return len(positions), nil
}
