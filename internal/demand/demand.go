// Package demand pre-computes passenger appearances over the
// simulation horizon (spec.md section 2), either by Poisson-sampling
// an OD matrix per time slot (grounded on
// original_source/.history/demand/od_matrix_20251212135634.py's
// generate_passengers_for_slot) or by replaying a fixed deterministic
// set (grounded on .history/demand/test_passenger_20251128000538.py
// and the teacher's data.TimePeriodMultiplier table).
package demand

import (
	"math"
	"math/rand"
	"sort"

	"transitsim/internal/apperrors"
)

// Appearance is one precomputed PASSENGER_APPEAR occurrence.
type Appearance struct {
	Origin      string
	Destination string
	AppearTime  float64
	MaxWaitTime float64
}

// TimePeriodMultiplier mirrors jwmdev-brt08/backend/data.TimePeriodMultiplier:
// a coarse demand multiplier by hour-of-day period id, applied on top
// of the OD matrix's own time-slot rates.
var TimePeriodMultiplier = map[int]float64{
	1: 0.3, // very early off-peak
	2: 1.6, // morning peak
	3: 0.9, // late morning
	4: 0.8, // mid-day
	5: 1.4, // evening peak
	6: 0.5, // late evening
}

// periodForTime buckets simulated seconds-of-day into one of the six
// periods above, quantizing the day into six four-hour windows.
func periodForTime(t float64) int {
	hour := int(t/3600) % 24
	return hour/4 + 1
}

// ODMatrix is the (N, N, S) expected-passengers-per-slot matrix of
// spec.md section 6.
type ODMatrix struct {
	StationIDs       []string
	NumSlots         int
	SlotDurationSecs float64
	// Data[o*n*s + d*s + slot] = expected passengers in that slot.
	Data []float32
	n    int
}

// NewODMatrix validates shape and builds an ODMatrix.
func NewODMatrix(stationIDs []string, numSlots int, slotDurationSecs float64, data []float32) (*ODMatrix, error) {
	n := len(stationIDs)
	want := n * n * numSlots
	if len(data) != want {
		return nil, apperrors.New(apperrors.KindMatrixShapeMismatch, "OD matrix data length does not match declared shape").
			WithDetail("want", want).WithDetail("got", len(data))
	}
	return &ODMatrix{StationIDs: stationIDs, NumSlots: numSlots, SlotDurationSecs: slotDurationSecs, Data: data, n: n}, nil
}

func (m *ODMatrix) slotIndex(t float64) int {
	if m.SlotDurationSecs <= 0 {
		return 0
	}
	idx := int(t / m.SlotDurationSecs)
	if idx < 0 {
		idx = 0
	}
	if idx >= m.NumSlots {
		idx = m.NumSlots - 1
	}
	return idx
}

func (m *ODMatrix) expected(originIdx, destIdx, slot int) float64 {
	return float64(m.Data[(originIdx*m.n+destIdx)*m.NumSlots+slot])
}

// Generator produces the full set of passenger appearances for a
// simulation horizon, sorted by appear time so the engine can seed the
// event queue directly.
type Generator struct {
	rng         *rand.Rand
	maxWaitTime float64
}

// NewGenerator builds a Generator seeded for determinism (spec.md
// section 8's byte-identical-rerun law).
func NewGenerator(seed int64, maxWaitTime float64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed)), maxWaitTime: maxWaitTime}
}

// GenerateFromODMatrix Poisson-samples passenger counts per OD pair
// per time slot across [startTime, endTime), applying both the
// matrix's own per-slot rate and the coarse TimePeriodMultiplier.
func (g *Generator) GenerateFromODMatrix(m *ODMatrix, startTime, endTime float64) []Appearance {
	var out []Appearance
	slotDur := m.SlotDurationSecs
	if slotDur <= 0 {
		slotDur = endTime - startTime
		if slotDur <= 0 {
			return out
		}
	}
	for slotStart := startTime; slotStart < endTime; slotStart += slotDur {
		slot := m.slotIndex(slotStart)
		mult := TimePeriodMultiplier[periodForTime(slotStart)]
		if mult == 0 {
			mult = 1.0
		}
		slotEnd := slotStart + slotDur
		if slotEnd > endTime {
			slotEnd = endTime
		}
		for oi, originID := range m.StationIDs {
			for di, destID := range m.StationIDs {
				if oi == di {
					continue
				}
				mean := m.expected(oi, di, slot) * mult
				if mean <= 0 {
					continue
				}
				count := g.poisson(mean)
				for k := 0; k < count; k++ {
					t := slotStart + g.rng.Float64()*(slotEnd-slotStart)
					if t >= endTime {
						t = math.Nextafter(endTime, slotStart)
					}
					out = append(out, Appearance{Origin: originID, Destination: destID, AppearTime: t, MaxWaitTime: g.maxWaitTime})
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppearTime < out[j].AppearTime })
	return out
}

// poisson samples from a Poisson distribution with the given mean,
// using Knuth's algorithm for small means and a normal approximation
// for large ones — adapted from the teacher's
// jwmdev-brt08/backend/sim/simulator.go Simulator.poisson.
func (g *Generator) poisson(mean float64) int {
	if mean <= 0 {
		return 0
	}
	if mean > 30 {
		std := math.Sqrt(mean)
		v := int(math.Round(g.rng.NormFloat64()*std + mean))
		if v < 0 {
			return 0
		}
		return v
	}
	L := math.Exp(-mean)
	k := 0
	p := 1.0
	for p > L {
		k++
		p *= g.rng.Float64()
	}
	return k - 1
}

// DeterministicTestSet returns a small, fixed set of passenger
// appearances independent of any RNG, for the "test" generation method
// (spec.md section 6's passengerGenerationMethod=test), grounded on
// original_source/.history/demand/test_passenger_20251128000538.py's
// hand-authored fixtures.
func DeterministicTestSet(maxWaitTime float64) []Appearance {
	return []Appearance{
		{Origin: "A", Destination: "B", AppearTime: 50, MaxWaitTime: 900},
		{Origin: "A", Destination: "C", AppearTime: 0, MaxWaitTime: maxWaitTime},
		{Origin: "B", Destination: "D", AppearTime: 0, MaxWaitTime: maxWaitTime},
		{Origin: "A", Destination: "B", AppearTime: 100, MaxWaitTime: 300},
		{Origin: "C", Destination: "A", AppearTime: 200, MaxWaitTime: maxWaitTime},
		{Origin: "B", Destination: "C", AppearTime: 400, MaxWaitTime: maxWaitTime},
	}
}
