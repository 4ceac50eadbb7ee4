package transit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStationFIFOOrder(t *testing.T) {
	s := NewStation("A", "Alpha", 0, 0, 0)
	s.Enqueue("p1")
	s.Enqueue("p2")
	s.Enqueue("p3")

	assert.Equal(t, []string{"p1", "p2", "p3"}, s.Snapshot())
	assert.Equal(t, 3, s.Len())

	require.NoError(t, s.Remove("p2"))
	assert.Equal(t, []string{"p1", "p3"}, s.Snapshot())
}

func TestStationRemoveUnknownPassenger(t *testing.T) {
	s := NewStation("A", "Alpha", 0, 0, 0)
	err := s.Remove("ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UnknownPassenger")
}
