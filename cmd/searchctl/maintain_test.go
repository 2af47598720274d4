package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeBases(t *testing.T) {
	dst, srcs, err := mergeBases([]string{"out/merged.postings", "a/words", "b/words.positions"})
	require.NoError(t, err)
	assert.Equal(t, "out/merged", dst)
	assert.Equal(t, []string{"a/words", "b/words"}, srcs)

	_, srcs, err = mergeBases([]string{"out", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, srcs)

	_, _, err = mergeBases([]string{"out"})
	assert.Error(t, err)
}

func TestMergeBasesRejectsDestinationAmongSources(t *testing.T) {
	_, _, err := mergeBases([]string{"data/words", "data/other", "data/words.postings"})
	assert.Error(t, err)

	_, _, err = mergeBases([]string{"./data/words", "data/words"})
	assert.Error(t, err)
}
