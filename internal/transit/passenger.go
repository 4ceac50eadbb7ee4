// Package transit holds the passenger/vehicle state machines and
// station FIFOs of spec.md section 3-4.2, the tightly-coupled core
// this engine exists to get right.
package transit

import (
	"transitsim/internal/apperrors"
)

// PassengerState is one of the five states of spec.md section 4.2.
type PassengerState string

const (
	Waiting   PassengerState = "WAITING"
	Assigned  PassengerState = "ASSIGNED"
	Onboard   PassengerState = "ONBOARD"
	Arrived   PassengerState = "ARRIVED"
	Abandoned PassengerState = "ABANDONED"
)

// Passenger is a single rider's lifecycle record. All cross-references
// to vehicles are by id only (design note, section 9): Passenger never
// holds a pointer to a Minibus or Bus.
type Passenger struct {
	ID          string
	Origin      string
	Destination string
	AppearTime  float64
	MaxWaitTime float64

	State PassengerState

	AssignedVehicleID string
	AssignTime        *float64
	PickupTime        *float64
	ArrivalTime       *float64
	AbandonTime       *float64
}

// NewPassenger constructs a passenger record in the WAITING state; the
// engine calls it when PASSENGER_APPEAR fires. id is assigned by
// the caller (the engine, deterministically from its seed — spec.md
// section 8's determinism law applies to passenger ids too, since every
// history/report row is keyed on them) rather than minted here.
func NewPassenger(id, origin, destination string, appearTime, maxWaitTime float64) (*Passenger, error) {
	if origin == destination {
		return nil, apperrors.New(apperrors.KindInvalidTransition, "origin and destination must differ")
	}
	if appearTime < 0 {
		return nil, apperrors.New(apperrors.KindInvalidTime, "appearTime must be >= 0")
	}
	if maxWaitTime <= 0 {
		return nil, apperrors.New(apperrors.KindInvalidTime, "maxWaitTime must be > 0")
	}
	return &Passenger{
		ID:          id,
		Origin:      origin,
		Destination: destination,
		AppearTime:  appearTime,
		MaxWaitTime: maxWaitTime,
		State:       Waiting,
	}, nil
}

func (p *Passenger) isTerminalOrOnboard() bool {
	return p.State == Onboard || p.State == Arrived || p.State == Abandoned
}

// AssignToVehicle transitions WAITING -> ASSIGNED.
func (p *Passenger) AssignToVehicle(vehicleID string, t float64) error {
	if p.State != Waiting {
		return invalidTransition(p, "assignToVehicle")
	}
	if err := p.checkMonotonic(t); err != nil {
		return err
	}
	p.State = Assigned
	p.AssignedVehicleID = vehicleID
	tt := t
	p.AssignTime = &tt
	return nil
}

// Board transitions WAITING or ASSIGNED -> ONBOARD.
func (p *Passenger) Board(t float64) error {
	if p.State != Waiting && p.State != Assigned {
		return invalidTransition(p, "board")
	}
	if err := p.checkMonotonic(t); err != nil {
		return err
	}
	p.State = Onboard
	tt := t
	p.PickupTime = &tt
	return nil
}

// Arrive transitions ONBOARD -> ARRIVED. Requires t >= pickupTime.
func (p *Passenger) Arrive(t float64) error {
	if p.State != Onboard {
		return invalidTransition(p, "arrive")
	}
	if p.PickupTime != nil && t < *p.PickupTime {
		return apperrors.New(apperrors.KindTimeRegression, "arrive time precedes pickup time").
			WithDetail("passenger_id", p.ID).WithDetail("t", t).WithDetail("pickup_time", *p.PickupTime)
	}
	if err := p.checkMonotonic(t); err != nil {
		return err
	}
	p.State = Arrived
	tt := t
	p.ArrivalTime = &tt
	return nil
}

// Abandon transitions WAITING or ASSIGNED -> ABANDONED.
func (p *Passenger) Abandon(t float64) error {
	if p.State != Waiting && p.State != Assigned {
		return invalidTransition(p, "abandon")
	}
	if err := p.checkMonotonic(t); err != nil {
		return err
	}
	p.State = Abandoned
	tt := t
	p.AbandonTime = &tt
	return nil
}

// CheckTimeout is a pure predicate: true iff t - appearTime > maxWaitTime
// and the passenger is not already onboard or in a terminal state. It
// never mutates state.
func (p *Passenger) CheckTimeout(t float64) bool {
	if p.isTerminalOrOnboard() {
		return false
	}
	return t-p.AppearTime > p.MaxWaitTime
}

// WaitTime returns pickupTime-appearTime if picked up, abandonTime-appearTime
// if abandoned, else t-appearTime.
func (p *Passenger) WaitTime(t float64) (float64, error) {
	if p.PickupTime != nil {
		return *p.PickupTime - p.AppearTime, nil
	}
	if p.AbandonTime != nil {
		return *p.AbandonTime - p.AppearTime, nil
	}
	if t < p.AppearTime {
		return 0, apperrors.New(apperrors.KindTimeRegression, "waitTime queried before appearTime").
			WithDetail("passenger_id", p.ID)
	}
	return t - p.AppearTime, nil
}

// checkMonotonic enforces that t does not regress past any already
// recorded milestone.
func (p *Passenger) checkMonotonic(t float64) error {
	last := p.AppearTime
	if p.AssignTime != nil && *p.AssignTime > last {
		last = *p.AssignTime
	}
	if p.PickupTime != nil && *p.PickupTime > last {
		last = *p.PickupTime
	}
	if t < last {
		return apperrors.New(apperrors.KindTimeRegression, "time regressed past recorded milestone").
			WithDetail("passenger_id", p.ID).WithDetail("t", t).WithDetail("last_milestone", last)
	}
	return nil
}

func invalidTransition(p *Passenger, call string) error {
	return apperrors.New(apperrors.KindInvalidTransition, "illegal passenger state transition").
		WithDetail("passenger_id", p.ID).WithDetail("from_state", string(p.State)).WithDetail("call", call)
}
