package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultScores(t *testing.T) {
	want := map[int]int{1: 1000, 2: 850, 3: 700, 4: 550, 5: 400, 6: 250}
	for attempt, score := range want {
		assert.Equal(t, score, Default.Score(attempt), "attempt %d", attempt)
	}
}

func TestFloor(t *testing.T) {
	// Even absurd attempt counts never drop below the floor.
	assert.Equal(t, 100, Default.Score(10))
	assert.Equal(t, 100, Default.Score(100))

	p := Policy{Base: 500, Step: 300, Floor: 50}
	assert.Equal(t, 500, p.Score(1))
	assert.Equal(t, 200, p.Score(2))
	assert.Equal(t, 50, p.Score(3))
}
