package merger

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/scoring"
	"github.com/stretchr/testify/assert"
)

func TestTopK(t *testing.T) {
	scores := map[posting.DocID]float64{1: 0.5, 2: 2.0, 3: 1.0, 4: 1.0, 5: 0.1}

	got := TopK(scores, 3)
	assert.Equal(t, []scoring.Result{
		{DocID: 2, Score: 2.0},
		{DocID: 3, Score: 1.0},
		{DocID: 4, Score: 1.0},
	}, got)

	assert.Len(t, TopK(scores, 0), 5, "non-positive limit falls back to 10")
	assert.Empty(t, TopK(nil, 5))
}
