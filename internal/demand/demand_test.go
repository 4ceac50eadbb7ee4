package demand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewODMatrixRejectsShapeMismatch(t *testing.T) {
	_, err := NewODMatrix([]string{"A", "B"}, 3, 600, make([]float32, 5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MatrixShapeMismatch")
}

func TestGenerateFromODMatrixIsDeterministicForFixedSeed(t *testing.T) {
	data := make([]float32, 2*2*2)
	// A->B heavy demand in both slots.
	data[0*2*2+1*2+0] = 5
	data[0*2*2+1*2+1] = 5
	m, err := NewODMatrix([]string{"A", "B"}, 2, 600, data)
	require.NoError(t, err)

	g1 := NewGenerator(42, 900)
	g2 := NewGenerator(42, 900)
	a1 := g1.GenerateFromODMatrix(m, 0, 1200)
	a2 := g2.GenerateFromODMatrix(m, 0, 1200)
	assert.Equal(t, a1, a2)
}

func TestGenerateFromODMatrixOnlyProducesKnownStationPairs(t *testing.T) {
	data := make([]float32, 2*2*1)
	data[0*2*1+1*1+0] = 10
	m, err := NewODMatrix([]string{"A", "B"}, 1, 600, data)
	require.NoError(t, err)

	g := NewGenerator(1, 900)
	out := g.GenerateFromODMatrix(m, 0, 600)
	for _, a := range out {
		assert.Equal(t, "A", a.Origin)
		assert.Equal(t, "B", a.Destination)
	}
}

func TestDeterministicTestSetIsSortableAndNonEmpty(t *testing.T) {
	set := DeterministicTestSet(900)
	assert.NotEmpty(t, set)
	for _, a := range set {
		assert.NotEqual(t, a.Origin, a.Destination)
		assert.Greater(t, a.MaxWaitTime, 0.0)
	}
}

func TestPeriodForTimeBucketsIntoSixWindows(t *testing.T) {
	assert.Equal(t, 1, periodForTime(0))
	assert.Equal(t, 2, periodForTime(4*3600))
	assert.Equal(t, 6, periodForTime(23*3600))
}
