package transit

import "transitsim/internal/apperrors"

// ScheduleStop is one entry of a fixed-route bus's schedule.
type ScheduleStop struct {
	StationID             string
	ScheduledArrivalTime  float64
}

// Bus is a fixed-schedule vehicle: its stop list and arrival times are
// set at construction and never change (spec.md section 3: buses never
// deviate from schedule and never abandon partial trips).
type Bus struct {
	ID       string
	Capacity int
	Schedule []ScheduleStop

	currentOccupancy int
	onboard          map[string]bool // passenger id -> true
	TotalBoarded     int
	TotalAlighted    int
}

// NewBus validates that schedule times are strictly increasing and
// constructs a Bus.
func NewBus(id string, capacity int, schedule []ScheduleStop) (*Bus, error) {
	if capacity <= 0 {
		return nil, apperrors.New(apperrors.KindDataLoad, "bus capacity must be positive").WithDetail("bus_id", id)
	}
	for i := 1; i < len(schedule); i++ {
		if schedule[i].ScheduledArrivalTime <= schedule[i-1].ScheduledArrivalTime {
			return nil, apperrors.New(apperrors.KindDataLoad, "bus schedule arrival times must be strictly increasing").
				WithDetail("bus_id", id).WithDetail("stop_index", i)
		}
	}
	return &Bus{ID: id, Capacity: capacity, Schedule: schedule, onboard: make(map[string]bool)}, nil
}

// CurrentOccupancy returns |onboardPassengers|, always <= Capacity.
func (b *Bus) CurrentOccupancy() int { return b.currentOccupancy }

// RemainingCapacity returns how many more passengers can board.
func (b *Bus) RemainingCapacity() int {
	rem := b.Capacity - b.currentOccupancy
	if rem < 0 {
		return 0
	}
	return rem
}

// HasOnboard reports whether passengerID is currently aboard.
func (b *Bus) HasOnboard(passengerID string) bool { return b.onboard[passengerID] }

// Board adds a passenger to the onboard set, enforcing capacity.
func (b *Bus) Board(passengerID string) error {
	if b.currentOccupancy >= b.Capacity {
		return apperrors.New(apperrors.KindCapacityViolation, "bus is at capacity").WithDetail("bus_id", b.ID)
	}
	if b.onboard[passengerID] {
		return apperrors.New(apperrors.KindInvalidTransition, "passenger already onboard this bus").WithDetail("bus_id", b.ID)
	}
	b.onboard[passengerID] = true
	b.currentOccupancy++
	b.TotalBoarded++
	return nil
}

// Alight removes a passenger from the onboard set.
func (b *Bus) Alight(passengerID string) error {
	if !b.onboard[passengerID] {
		return apperrors.New(apperrors.KindUnknownPassenger, "passenger not onboard this bus").WithDetail("bus_id", b.ID)
	}
	delete(b.onboard, passengerID)
	b.currentOccupancy--
	b.TotalAlighted++
	return nil
}

// OnboardIDs returns a snapshot of onboard passenger ids.
func (b *Bus) OnboardIDs() []string {
	out := make([]string, 0, len(b.onboard))
	for id := range b.onboard {
		out = append(out, id)
	}
	return out
}

// NextStopIndex returns the schedule index after stopIndex, or -1 if
// stopIndex is the last stop.
func (b *Bus) NextStopIndex(stopIndex int) int {
	if stopIndex+1 >= len(b.Schedule) {
		return -1
	}
	return stopIndex + 1
}

// DestinationLiesAhead reports whether stationID appears in the bus's
// remaining schedule strictly after stopIndex — used by BUS_ARRIVAL to
// decide whether a waiting passenger's destination is reachable on this
// bus before boarding them.
func (b *Bus) DestinationLiesAhead(stopIndex int, stationID string) bool {
	for i := stopIndex + 1; i < len(b.Schedule); i++ {
		if b.Schedule[i].StationID == stationID {
			return true
		}
	}
	return false
}
