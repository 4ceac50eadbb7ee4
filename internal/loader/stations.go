// Package loader reads the external file formats of spec.md section 6
// — stations JSON, the binary travel-time/OD matrices and their JSON
// metadata sidecars, and the bus schedule CSV — and turns them into the
// core's in-memory types. These are external collaborators the core
// itself never imports (spec.md section 1's scope boundary).
package loader

import (
	"encoding/json"
	"io"
	"os"

	"transitsim/internal/apperrors"
	"transitsim/internal/network"
)

type stationsFile struct {
	Stations []stationRecord `json:"stations"`
}

type stationRecord struct {
	StationID string    `json:"station_id"`
	Name      string    `json:"name"`
	Location  []float64 `json:"location"`
	Index     int       `json:"index"`
}

// LoadStations reads the stations JSON file of spec.md section 6.
func LoadStations(path string) ([]network.StationInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindDataLoad, "opening stations file").WithDetail("path", path)
	}
	defer f.Close()
	return LoadStationsFromReader(f)
}

// LoadStationsFromReader parses the stations JSON shape from r.
func LoadStationsFromReader(r io.Reader) ([]network.StationInfo, error) {
	var raw stationsFile
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindDataLoad, "decoding stations file")
	}
	out := make([]network.StationInfo, 0, len(raw.Stations))
	for _, s := range raw.Stations {
		if len(s.Location) != 2 {
			return nil, apperrors.New(apperrors.KindDataLoad, "station location must be [lat, lon]").WithDetail("station_id", s.StationID)
		}
		out = append(out, network.StationInfo{
			ID:    s.StationID,
			Name:  s.Name,
			Lat:   s.Location[0],
			Lon:   s.Location[1],
			Index: s.Index,
		})
	}
	return out, nil
}
