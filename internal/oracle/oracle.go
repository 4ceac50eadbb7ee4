// Package oracle implements the TravelTimeOracle contract of spec.md
// section 4.1: a 3-D (origin x destination x time-slot) lookup table
// that answers travelTime(origin, dest, departureTime) in seconds.
package oracle

import (
	"transitsim/internal/apperrors"
)

// Oracle answers time-dependent travel-time queries between station
// indices. Implementations must be safe for concurrent reads; the
// engine and optimizer both query it from a single goroutine in
// practice, but the optimizer snapshot may be copied out for an
// off-loop worker per spec.md section 5.
type Oracle interface {
	// Get returns the travel time in seconds from originIdx to destIdx
	// departing at currentTime (seconds since simulation epoch).
	Get(originIdx, destIdx int, currentTime float64) (float64, error)
}

// MatrixOracle is a dense, in-memory TravelTimeOracle backed by a
// row-major []float32 of shape (N, N) or (N, N, S).
type MatrixOracle struct {
	n                int
	slots            int // 1 when the matrix is time-invariant
	slotDurationSecs float64
	data             []float32 // len == n*n*slots
}

// NewMatrixOracle validates the matrix shape against n and slots and
// constructs a MatrixOracle. slots == 1 and slotDurationSecs == 0
// signal a time-invariant 2-D matrix.
func NewMatrixOracle(n, slots int, slotDurationSecs float64, data []float32) (*MatrixOracle, error) {
	if n <= 0 {
		return nil, apperrors.New(apperrors.KindMatrixShapeMismatch, "station count must be positive")
	}
	if slots <= 0 {
		slots = 1
	}
	want := n * n * slots
	if len(data) != want {
		return nil, apperrors.New(apperrors.KindMatrixShapeMismatch, "matrix data length does not match declared shape").
			WithDetail("want", want).WithDetail("got", len(data))
	}
	return &MatrixOracle{n: n, slots: slots, slotDurationSecs: slotDurationSecs, data: data}, nil
}

// Get implements Oracle. Self-distance is whatever the matrix encodes
// (typically zero, but not assumed); symmetry is never assumed.
func (o *MatrixOracle) Get(originIdx, destIdx int, currentTime float64) (float64, error) {
	if originIdx < 0 || originIdx >= o.n || destIdx < 0 || destIdx >= o.n {
		return 0, apperrors.New(apperrors.KindUnknownStation, "station index out of range").
			WithDetail("origin", originIdx).WithDetail("dest", destIdx).WithDetail("n", o.n)
	}
	slot := 0
	if o.slots > 1 && o.slotDurationSecs > 0 {
		slot = int(currentTime / o.slotDurationSecs)
		if slot < 0 {
			slot = 0
		}
		if slot >= o.slots {
			slot = o.slots - 1
		}
	}
	idx := (originIdx*o.n+destIdx)*o.slots + slot
	return float64(o.data[idx]), nil
}

// NumStations reports the matrix dimension N.
func (o *MatrixOracle) NumStations() int { return o.n }
