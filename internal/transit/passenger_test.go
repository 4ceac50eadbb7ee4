package transit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassengerLifecycleBoardThenArrive(t *testing.T) {
	p, err := NewPassenger("p1", "A", "B", 50, 900)
	require.NoError(t, err)
	assert.Equal(t, Waiting, p.State)

	require.NoError(t, p.Board(100))
	assert.Equal(t, Onboard, p.State)
	require.NotNil(t, p.PickupTime)
	assert.Equal(t, 100.0, *p.PickupTime)

	require.NoError(t, p.Arrive(300))
	assert.Equal(t, Arrived, p.State)

	wt, err := p.WaitTime(1000)
	require.NoError(t, err)
	assert.Equal(t, 50.0, wt) // pickupTime(100) - appearTime(50)
}

func TestPassengerAssignThenBoard(t *testing.T) {
	p, err := NewPassenger("p1", "A", "B", 0, 900)
	require.NoError(t, err)

	require.NoError(t, p.AssignToVehicle("M1", 10))
	assert.Equal(t, Assigned, p.State)
	assert.Equal(t, "M1", p.AssignedVehicleID)

	require.NoError(t, p.Board(40))
	assert.Equal(t, Onboard, p.State)
}

func TestPassengerAbandon(t *testing.T) {
	p, err := NewPassenger("p1", "A", "B", 100, 300)
	require.NoError(t, err)

	assert.False(t, p.CheckTimeout(300))
	assert.True(t, p.CheckTimeout(401))

	require.NoError(t, p.Abandon(500))
	assert.Equal(t, Abandoned, p.State)

	wt, err := p.WaitTime(1000)
	require.NoError(t, err)
	assert.Equal(t, 400.0, wt)
}

func TestPassengerInvalidTransitionsFromTerminalStates(t *testing.T) {
	p, err := NewPassenger("p1", "A", "B", 0, 900)
	require.NoError(t, err)
	require.NoError(t, p.Board(10))
	require.NoError(t, p.Arrive(50))

	err = p.Board(60)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidTransition")

	err = p.Abandon(60)
	require.Error(t, err)

	err = p.AssignToVehicle("M1", 60)
	require.Error(t, err)
}

func TestPassengerArriveBeforePickupIsTimeRegression(t *testing.T) {
	p, err := NewPassenger("p1", "A", "B", 0, 900)
	require.NoError(t, err)
	require.NoError(t, p.Board(100))

	err = p.Arrive(50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TimeRegression")
}

func TestPassengerCheckTimeoutIsPure(t *testing.T) {
	p, err := NewPassenger("p1", "A", "B", 0, 300)
	require.NoError(t, err)

	assert.True(t, p.CheckTimeout(400))
	assert.Equal(t, Waiting, p.State, "CheckTimeout must never mutate state")
}

func TestNewPassengerRejectsSameOriginDestination(t *testing.T) {
	_, err := NewPassenger("p1", "A", "A", 0, 900)
	require.Error(t, err)
}
