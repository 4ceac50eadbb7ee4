package transit

import (
	"sync"

	"transitsim/internal/apperrors"
)

// Station holds a FIFO of waiting passenger ids with thread-safe
// mutation, adapted from the teacher's BusStop directional queues
// (jwmdev-brt08/backend/model/stop.go) down to the single undirected
// FIFO spec.md section 3 calls for — direction here is implicit in
// each passenger's origin/destination pair, not a station attribute.
type Station struct {
	ID    string
	Name  string
	Lat   float64
	Lon   float64
	Index int

	mu      sync.Mutex
	waiting []string // passenger ids, FIFO order
}

// NewStation constructs an empty station.
func NewStation(id, name string, lat, lon float64, index int) *Station {
	return &Station{ID: id, Name: name, Lat: lat, Lon: lon, Index: index}
}

// Enqueue appends a passenger id to the back of the FIFO.
func (s *Station) Enqueue(passengerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiting = append(s.waiting, passengerID)
}

// Remove deletes a passenger id from the FIFO wherever it sits
// (boarding removes from the front in practice, but abandonment may
// remove from the middle). Returns UnknownPassenger if absent.
func (s *Station) Remove(passengerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range s.waiting {
		if id == passengerID {
			s.waiting = append(s.waiting[:i], s.waiting[i+1:]...)
			return nil
		}
	}
	return apperrors.New(apperrors.KindUnknownPassenger, "passenger not in station FIFO").
		WithDetail("station_id", s.ID).WithDetail("passenger_id", passengerID)
}

// Snapshot returns a by-value copy of the current FIFO order, safe for
// the optimizer to read without holding the station lock.
func (s *Station) Snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.waiting))
	copy(out, s.waiting)
	return out
}

// Len reports the current FIFO length.
func (s *Station) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiting)
}
