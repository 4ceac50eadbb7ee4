package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitsim/internal/config"
	"transitsim/internal/engine"
	"transitsim/internal/network"
	"transitsim/internal/oracle"
	"transitsim/internal/transit"
)

func buildTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	ids := []string{"A", "B", "C"}
	n := len(ids)
	data := make([]float32, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				data[i*n+j] = 300
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

	bus, err := transit.NewBus("BUS1", 40, []transit.ScheduleStop{
		{StationID: "A", ScheduledArrivalTime: 100},
		{StationID: "C", ScheduledArrivalTime: 300},
	})
	require.NoError(t, err)

	e := engine.New(net, []*transit.Bus{bus}, nil, 1000, config.OptimizerDummy, 120, 1, nil)
	require.NoError(t, e.SeedBusSchedules())
	require.NoError(t, e.SeedDemand([]engine.PassengerAppearance{
		{Origin: "A", Destination: "C", AppearTime: 0, MaxWaitTime: 900},
		{Origin: "B", Destination: "C", AppearTime: 0, MaxWaitTime: 10},
	}))
	require.NoError(t, e.Run())
	return e
}

func TestBuildSummaryCountsServedAndAbandoned(t *testing.T) {
	e := buildTestEngine(t)
	sum := BuildSummary(e)
	assert.Equal(t, 2, sum.TotalPassengers)
	assert.Equal(t, 1, sum.Served)
	assert.Equal(t, 1, sum.Abandoned)
	assert.Greater(t, sum.AverageTravelSeconds, 0.0)
}

func TestPassengerRowsAreSortedAndComplete(t *testing.T) {
	e := buildTestEngine(t)
	rows := PassengerRows(e)
	require.Len(t, rows, 2)
	assert.LessOrEqual(t, rows[0].PassengerID, rows[1].PassengerID)
	for _, r := range rows {
		assert.NotEmpty(t, r.State)
	}
}

func TestVehicleRowsIncludesBus(t *testing.T) {
	e := buildTestEngine(t)
	rows := VehicleRows(e)
	require.Len(t, rows, 1)
	assert.Equal(t, "BUS1", rows[0].VehicleID)
	assert.Equal(t, "bus", rows[0].VehicleType)
}

func TestWriteCSVReportsProducesReadableFiles(t *testing.T) {
	e := buildTestEngine(t)
	dir := t.TempDir()
	pPath, vPath, err := WriteCSVReports(dir, e)
	require.NoError(t, err)

	pBytes, err := os.ReadFile(pPath)
	require.NoError(t, err)
	assert.Contains(t, string(pBytes), "passenger_id")

	vBytes, err := os.ReadFile(vPath)
	require.NoError(t, err)
	assert.Contains(t, string(vBytes), "vehicle_id")

	assert.Equal(t, filepath.Dir(pPath), dir)
}
