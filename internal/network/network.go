// Package network provides the ordered set of stations with stable
// integer indices (spec.md section 2), wrapping a TravelTimeOracle so
// callers can address stations by string id.
package network

import (
	"transitsim/internal/apperrors"
	"transitsim/internal/oracle"
)

// StationInfo is the static (non-mutating) description of a station:
// identity and geography, as distinct from transit.Station which also
// carries the live waiting-passenger FIFO.
type StationInfo struct {
	ID        string
	Name      string
	Lat, Lon  float64
	Index     int
}

// Network resolves station ids to indices and answers travel-time
// queries through the wrapped oracle.
type Network struct {
	stations []StationInfo
	byID     map[string]int // id -> index
	oracle   oracle.Oracle
}

// New builds a Network from stations (whose Index fields must cover
// [0, N) exactly once) and the oracle that serves them.
func New(stations []StationInfo, o oracle.Oracle) (*Network, error) {
	byID := make(map[string]int, len(stations))
	seen := make([]bool, len(stations))
	for _, s := range stations {
		if s.Index < 0 || s.Index >= len(stations) {
			return nil, apperrors.New(apperrors.KindDataLoad, "station index out of [0,N) range").WithDetail("station_id", s.ID)
		}
		if seen[s.Index] {
			return nil, apperrors.New(apperrors.KindDataLoad, "duplicate station index").WithDetail("index", s.Index)
		}
		seen[s.Index] = true
		if _, dup := byID[s.ID]; dup {
			return nil, apperrors.New(apperrors.KindDataLoad, "duplicate station id").WithDetail("station_id", s.ID)
		}
		byID[s.ID] = s.Index
	}
	ordered := make([]StationInfo, len(stations))
	for _, s := range stations {
		ordered[s.Index] = s
	}
	return &Network{stations: ordered, byID: byID, oracle: o}, nil
}

// Size returns the number of stations, N.
func (n *Network) Size() int { return len(n.stations) }

// IndexOf resolves a station id to its index.
func (n *Network) IndexOf(id string) (int, error) {
	idx, ok := n.byID[id]
	if !ok {
		return -1, apperrors.New(apperrors.KindUnknownStation, "unknown station id").WithDetail("station_id", id)
	}
	return idx, nil
}

// Station returns the StationInfo at index idx.
func (n *Network) Station(idx int) (StationInfo, error) {
	if idx < 0 || idx >= len(n.stations) {
		return StationInfo{}, apperrors.New(apperrors.KindUnknownStation, "station index out of range").WithDetail("index", idx)
	}
	return n.stations[idx], nil
}

// StationByID returns the StationInfo for the given id.
func (n *Network) StationByID(id string) (StationInfo, error) {
	idx, err := n.IndexOf(id)
	if err != nil {
		return StationInfo{}, err
	}
	return n.stations[idx], nil
}

// All returns every station in index order.
func (n *Network) All() []StationInfo { return n.stations }

// TravelTime answers the oracle contract for two station ids.
func (n *Network) TravelTime(originID, destID string, currentTime float64) (float64, error) {
	oi, err := n.IndexOf(originID)
	if err != nil {
		return 0, err
	}
	di, err := n.IndexOf(destID)
	if err != nil {
		return 0, err
	}
	return n.oracle.Get(oi, di, currentTime)
}
