package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitsim/internal/config"
	"transitsim/internal/network"
	"transitsim/internal/oracle"
	"transitsim/internal/transit"
)

// buildNetwork constructs a 4-station network (A,B,C,D) with a constant
// travel time between any two distinct stations.
func buildNetwork(t *testing.T, seconds float64) *network.Network {
	t.Helper()
	ids := []string{"A", "B", "C", "D"}
	n := len(ids)
	data := make([]float32, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				data[i*n+j] = float32(seconds)
			}
		}
	}
	o, err := oracle.NewMatrixOracle(n, 1, 0, data)
	require.NoError(t, err)
	stations := make([]network.StationInfo, n)
	for i, id := range ids {
		stations[i] = network.StationInfo{ID: id, Name: id, Index: i}
	}
	net, err := network.New(stations, o)
	require.NoError(t, err)
	return net
}

// TestDirectBusBoardingAndArrival covers spec.md section 8's "direct
// bus boarding" scenario: a passenger whose destination lies ahead on
// the bus's schedule boards and arrives without ever touching the
// optimizer. The bus reaches A after the passenger appears, since a bus
// arriving at the same instant would be dispatched first.
func TestDirectBusBoardingAndArrival(t *testing.T) {
	net := buildNetwork(t, 300)
	bus, err := transit.NewBus("BUS1", 40, []transit.ScheduleStop{
		{StationID: "A", ScheduledArrivalTime: 100},
		{StationID: "B", ScheduledArrivalTime: 300},
		{StationID: "C", ScheduledArrivalTime: 600},
	})
	require.NoError(t, err)

	e := New(net, []*transit.Bus{bus}, nil, 1000, config.OptimizerDummy, 120, 1, nil)
	require.NoError(t, e.SeedBusSchedules())
	require.NoError(t, e.SeedDemand([]PassengerAppearance{
		{Origin: "A", Destination: "C", AppearTime: 0, MaxWaitTime: 900},
	}))

	require.NoError(t, e.Run())

	var pass *transit.Passenger
	for id := range e.passengers {
		pass = e.passengers[id]
	}
	require.NotNil(t, pass)
	assert.Equal(t, transit.Arrived, pass.State)
	require.NotNil(t, pass.PickupTime)
	require.NotNil(t, pass.ArrivalTime)
	assert.Equal(t, 100.0, *pass.PickupTime)
	assert.Equal(t, 600.0, *pass.ArrivalTime)
	assert.Empty(t, e.CheckInvariants())
}

// TestPassengerTimeoutAbandonment covers the "timeout abandonment"
// scenario: a passenger whose max wait time elapses with no vehicle
// ever reaching them is abandoned, not left dangling.
func TestPassengerTimeoutAbandonment(t *testing.T) {
	net := buildNetwork(t, 300)
	e := New(net, nil, nil, 2000, config.OptimizerDummy, 120, 1, nil)
	require.NoError(t, e.SeedDemand([]PassengerAppearance{
		{Origin: "A", Destination: "C", AppearTime: 0, MaxWaitTime: 500},
	}))

	require.NoError(t, e.Run())

	var pass *transit.Passenger
	for id := range e.passengers {
		pass = e.passengers[id]
	}
	require.NotNil(t, pass)
	assert.Equal(t, transit.Abandoned, pass.State)
	require.NotNil(t, pass.AbandonTime)
	assert.Equal(t, 500.0, *pass.AbandonTime)
	reason, ok := e.AbandonReason(pass.ID)
	assert.True(t, ok)
	assert.Equal(t, ReasonTimeout, reason)
}

// TestMinibusGreedyInsertionPickupAndDropoff drives a full
// optimizer-assigned minibus trip end to end: a pending request is
// picked up by the nearest idle minibus and delivered.
func TestMinibusGreedyInsertionPickupAndDropoff(t *testing.T) {
	net := buildNetwork(t, 300)
	mb, err := transit.NewMinibus("M1", 6, "A")
	require.NoError(t, err)

	e := New(net, nil, []*transit.Minibus{mb}, 5000, config.OptimizerGreedyInsertion, 100, 1, nil)
	require.NoError(t, e.SeedOptimizerCadence(0))
	require.NoError(t, e.SeedDemand([]PassengerAppearance{
		{Origin: "A", Destination: "C", AppearTime: 0, MaxWaitTime: 900},
	}))

	require.NoError(t, e.Run())

	var pass *transit.Passenger
	for id := range e.passengers {
		pass = e.passengers[id]
	}
	require.NotNil(t, pass)
	assert.Equal(t, transit.Arrived, pass.State)
	assert.Equal(t, "M1", pass.AssignedVehicleID)
	assert.Empty(t, e.CheckInvariants())
}

// TestFinalizeFlushesInFlightPassengersAsAbandoned covers spec.md
// section 5's checkpoint behavior: a passenger still WAITING when the
// horizon ends is flushed to ABANDONED with reason "simulation ended",
// not left in limbo.
func TestFinalizeFlushesInFlightPassengersAsAbandoned(t *testing.T) {
	net := buildNetwork(t, 300)
	e := New(net, nil, nil, 100, config.OptimizerDummy, 120, 1, nil)
	require.NoError(t, e.SeedDemand([]PassengerAppearance{
		{Origin: "A", Destination: "C", AppearTime: 0, MaxWaitTime: 10000},
	}))

	require.NoError(t, e.Run())

	var pass *transit.Passenger
	for id := range e.passengers {
		pass = e.passengers[id]
	}
	require.NotNil(t, pass)
	assert.Equal(t, transit.Abandoned, pass.State)
	reason, ok := e.AbandonReason(pass.ID)
	assert.True(t, ok)
	assert.Equal(t, ReasonSimulationEnded, reason)
}

// TestDeterministicRerunProducesIdenticalHistory covers spec.md section
// 8's determinism law: identical seed, config, and demand over the same
// network produce a byte-identical terminal history, ids included —
// passenger ids are derived from the engine's seed rather than minted
// fresh per run, so the full row (not just state) must match.
func TestDeterministicRerunProducesIdenticalHistory(t *testing.T) {
	run := func() []*transit.Passenger {
		net := buildNetwork(t, 300)
		mb, err := transit.NewMinibus("M1", 2, "A")
		require.NoError(t, err)
		e := New(net, nil, []*transit.Minibus{mb}, 5000, config.OptimizerGreedyInsertion, 100, 42, nil)
		require.NoError(t, e.SeedOptimizerCadence(0))
		require.NoError(t, e.SeedDemand([]PassengerAppearance{
			{Origin: "A", Destination: "C", AppearTime: 0, MaxWaitTime: 900},
			{Origin: "B", Destination: "D", AppearTime: 10, MaxWaitTime: 900},
		}))
		require.NoError(t, e.Run())
		var rows []*transit.Passenger
		for _, id := range e.History() {
			p, _ := e.Passenger(id)
			rows = append(rows, p)
		}
		return rows
	}
	first, second := run(), run()
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID, "passenger ids must be reproducible across runs")
		assert.Equal(t, first[i], second[i])
	}
}
