package transit

import "transitsim/internal/apperrors"

// StopAction is PICKUP or DROPOFF, per spec.md section 3.
type StopAction string

const (
	Pickup  StopAction = "PICKUP"
	Dropoff StopAction = "DROPOFF"
)

// RouteStop is one stop of a minibus's route plan.
type RouteStop struct {
	StationID     string
	Action        StopAction
	PassengerIDs  []string
}

// Minibus is a dynamically-routed vehicle carrying a mutable ordered
// route plan, replaced wholesale by the optimizer (never patched from
// outside, section 3 ownership rule).
type Minibus struct {
	ID              string
	Capacity        int
	CurrentLocation string

	currentOccupancy int
	onboard          map[string]bool

	RoutePlan []RouteStop

	// HasPendingArrival tracks whether a MINIBUS_ARRIVAL event is
	// already scheduled for this vehicle, so the engine knows whether
	// applying a new plan needs to also schedule the next arrival
	// (spec.md section 4.5.5).
	HasPendingArrival bool

	DistanceTraveledSeconds float64 // cumulative travel-time cost, for utilization reporting
}

// NewMinibus constructs an idle minibus at the given starting station.
func NewMinibus(id string, capacity int, startStation string) (*Minibus, error) {
	if capacity <= 0 {
		return nil, apperrors.New(apperrors.KindDataLoad, "minibus capacity must be positive").WithDetail("minibus_id", id)
	}
	return &Minibus{ID: id, Capacity: capacity, CurrentLocation: startStation, onboard: make(map[string]bool)}, nil
}

// CurrentOccupancy returns |onboardPassengers|.
func (m *Minibus) CurrentOccupancy() int { return m.currentOccupancy }

// RemainingCapacity returns how many more passengers can board.
func (m *Minibus) RemainingCapacity() int {
	rem := m.Capacity - m.currentOccupancy
	if rem < 0 {
		return 0
	}
	return rem
}

// HasOnboard reports whether passengerID is aboard.
func (m *Minibus) HasOnboard(passengerID string) bool { return m.onboard[passengerID] }

// OnboardIDs returns a snapshot of onboard passenger ids.
func (m *Minibus) OnboardIDs() []string {
	out := make([]string, 0, len(m.onboard))
	for id := range m.onboard {
		out = append(out, id)
	}
	return out
}

// Board adds a passenger to the onboard set, enforcing capacity.
func (m *Minibus) Board(passengerID string) error {
	if m.currentOccupancy >= m.Capacity {
		return apperrors.New(apperrors.KindCapacityViolation, "minibus is at capacity").WithDetail("minibus_id", m.ID)
	}
	if m.onboard[passengerID] {
		return apperrors.New(apperrors.KindInvalidTransition, "passenger already onboard this minibus").WithDetail("minibus_id", m.ID)
	}
	m.onboard[passengerID] = true
	m.currentOccupancy++
	return nil
}

// Alight removes a passenger from the onboard set.
func (m *Minibus) Alight(passengerID string) error {
	if !m.onboard[passengerID] {
		return apperrors.New(apperrors.KindUnknownPassenger, "passenger not onboard this minibus").WithDetail("minibus_id", m.ID)
	}
	delete(m.onboard, passengerID)
	m.currentOccupancy--
	return nil
}

// PopHeadStop removes and returns the first stop of the route plan.
func (m *Minibus) PopHeadStop() (RouteStop, bool) {
	if len(m.RoutePlan) == 0 {
		return RouteStop{}, false
	}
	head := m.RoutePlan[0]
	m.RoutePlan = m.RoutePlan[1:]
	return head, true
}

// ReplaceRoutePlan installs a new route plan wholesale, the only
// mutation path the optimizer's output should ever take (section 4.5.5:
// plans are replaced, never patched in place from outside).
func (m *Minibus) ReplaceRoutePlan(plan []RouteStop) {
	m.RoutePlan = plan
}

// Idle reports whether the minibus has no remaining route plan.
func (m *Minibus) Idle() bool { return len(m.RoutePlan) == 0 }
