package loader

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStationsFromReaderParsesLocationPair(t *testing.T) {
	r := strings.NewReader(`{"stations":[{"station_id":"A","name":"Alpha","location":[1.5,2.5],"index":0}]}`)
	stations, err := LoadStationsFromReader(r)
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, "A", stations[0].ID)
	assert.Equal(t, 1.5, stations[0].Lat)
	assert.Equal(t, 2.5, stations[0].Lon)
}

func TestLoadStationsFromReaderRejectsBadLocation(t *testing.T) {
	r := strings.NewReader(`{"stations":[{"station_id":"A","name":"Alpha","location":[1.5],"index":0}]}`)
	_, err := LoadStationsFromReader(r)
	assert.Error(t, err)
}

func writeBinaryFloat32(t *testing.T, path string, values []float32) {
	t.Helper()
	buf := new(bytes.Buffer)
	for _, v := range values {
		require.NoError(t, binary.Write(buf, binary.LittleEndian, math.Float32bits(v)))
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestLoadTravelTimeMatrixRoundTrips(t *testing.T) {
	dir := t.TempDir()
	matrixPath := filepath.Join(dir, "matrix.bin")
	metaPath := filepath.Join(dir, "meta.json")

	values := []float32{0, 100, 200, 0}
	writeBinaryFloat32(t, matrixPath, values)

	meta := travelTimeMetadata{
		StationMapping:       map[string]int{"A": 0, "B": 1},
		MatrixShape:          []int{2, 2},
		TimeSlotDurationSecs: 0,
	}
	b, err := json.Marshal(meta)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(metaPath, b, 0o644))

	data, err := LoadTravelTimeMatrix(matrixPath, metaPath)
	require.NoError(t, err)
	assert.Equal(t, 2, data.N)
	assert.Equal(t, 1, data.Slots)
	assert.Equal(t, values, data.Values)
}

func TestLoadTravelTimeMatrixRejectsShortFile(t *testing.T) {
	dir := t.TempDir()
	matrixPath := filepath.Join(dir, "matrix.bin")
	metaPath := filepath.Join(dir, "meta.json")

	writeBinaryFloat32(t, matrixPath, []float32{0, 100})

	meta := travelTimeMetadata{MatrixShape: []int{2, 2}}
	b, _ := json.Marshal(meta)
	require.NoError(t, os.WriteFile(metaPath, b, 0o644))

	_, err := LoadTravelTimeMatrix(matrixPath, metaPath)
	assert.Error(t, err)
}

func TestLoadBusSchedulesGroupsAndSortsByStopSequence(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "schedule.csv")
	content := "bus_id,route_name,stop_sequence,station_id,arrival_time\n" +
		"B1,Loop,2,B,06:05:00\n" +
		"B1,Loop,1,A,06:00:00\n" +
		"B2,Loop,1,C,06:10:00\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(content), 0o644))

	buses, err := LoadBusSchedules(csvPath, 40)
	require.NoError(t, err)
	require.Len(t, buses, 2)

	for _, b := range buses {
		if b.ID == "B1" {
			require.Len(t, b.Schedule, 2)
			assert.Equal(t, "A", b.Schedule[0].StationID)
			assert.Equal(t, 21600.0, b.Schedule[0].ScheduledArrivalTime) // 06:00:00 in seconds since midnight
			assert.Equal(t, "B", b.Schedule[1].StationID)
			assert.Equal(t, 21900.0, b.Schedule[1].ScheduledArrivalTime)
		}
	}
}
