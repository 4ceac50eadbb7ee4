// Package engine implements the discrete-event scheduler and
// dispatcher of spec.md section 4.4: it owns the event queue and all
// entity registries exclusively (design note, section 9 — components
// hold only ids and resolve them through the engine), pops events in
// (time, priority, sequence) order, and mutates Station/Bus/Minibus/
// Passenger state in response. Grounded on the teacher's sim.Simulator
// drive loop (jwmdev-brt08/backend/sim/simulator.go, sim/runner.go)
// generalized from a single fixed route to the full station network
// and dual bus/minibus fleets spec.md calls for.
package engine

import (
	"encoding/binary"
	"sort"

	"github.com/google/uuid"

	"transitsim/internal/apperrors"
	"transitsim/internal/config"
	"transitsim/internal/eventqueue"
	"transitsim/internal/logging"
	"transitsim/internal/network"
	"transitsim/internal/optimizer"
	"transitsim/internal/transit"
)

// busArrivalPayload is the BUS_ARRIVAL event payload.
type busArrivalPayload struct {
	BusID     string
	StopIndex int
}

// minibusArrivalPayload is the MINIBUS_ARRIVAL event payload.
type minibusArrivalPayload struct {
	MinibusID string
	StationID string
}

// passengerAppearPayload is the PASSENGER_APPEAR event payload. The
// Passenger entity is constructed and registered when this event
// fires, not before (spec.md section 4.4).
type passengerAppearPayload struct {
	Origin      string
	Destination string
	AppearTime  float64
	MaxWaitTime float64
}

// passengerTimeoutPayload is the PASSENGER_TIMEOUT event payload (the
// supplemented per-passenger deadline event of spec.md section 9).
type passengerTimeoutPayload struct {
	PassengerID string
}

// AbandonReason records why a passenger left active tracking, for the
// metrics/output consumer (spec.md section 5's finalize/checkpoint
// behavior: in-flight passengers flush to ABANDONED with a reason).
const (
	ReasonTimeout         = "max wait time exceeded"
	ReasonSimulationEnded = "simulation ended"
)

// Engine owns the event queue and every entity registry exclusively.
type Engine struct {
	net *network.Network
	log *logging.Logger

	stations  map[string]*transit.Station
	passengers map[string]*transit.Passenger
	buses      map[string]*transit.Bus
	minibuses  map[string]*transit.Minibus

	queue       *eventqueue.EventQueue
	currentTime float64
	endTime     float64

	optimizerType        config.OptimizerType
	optimizationInterval float64

	seed         int64
	passengerSeq uint64

	abandonReason map[string]string
	history       []string // ids of passengers reaching a terminal state, in terminal order
}

// New constructs an Engine over a fixed network, bus, and minibus
// fleet. Stations are derived from the network. seed drives the
// deterministic passenger-id sequence (spec.md section 8's determinism
// law), the same way demand.NewGenerator seeds its own RNG.
func New(net *network.Network, buses []*transit.Bus, minibuses []*transit.Minibus, endTime float64, optimizerType config.OptimizerType, optimizationInterval float64, seed int64, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.Default()
	}
	stations := make(map[string]*transit.Station, net.Size())
	for _, s := range net.All() {
		stations[s.ID] = transit.NewStation(s.ID, s.Name, s.Lat, s.Lon, s.Index)
	}
	busMap := make(map[string]*transit.Bus, len(buses))
	for _, b := range buses {
		busMap[b.ID] = b
	}
	minibusMap := make(map[string]*transit.Minibus, len(minibuses))
	for _, m := range minibuses {
		minibusMap[m.ID] = m
	}
	return &Engine{
		net:                  net,
		log:                  log,
		stations:             stations,
		passengers:           make(map[string]*transit.Passenger),
		buses:                busMap,
		minibuses:            minibusMap,
		queue:                eventqueue.New(),
		endTime:              endTime,
		optimizerType:        optimizerType,
		optimizationInterval: optimizationInterval,
		seed:                 seed,
		abandonReason:        make(map[string]string),
	}
}

// nextPassengerID derives the next passenger id from the engine's seed
// and an internal counter via uuid.NewSHA1, so identical seed and event
// order (guaranteed by identical config and demand) produce identical
// ids across runs instead of the crypto-random ids uuid.NewString would
// mint.
func (e *Engine) nextPassengerID() string {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(e.seed))
	binary.BigEndian.PutUint64(buf[8:16], e.passengerSeq)
	e.passengerSeq++
	return uuid.NewSHA1(uuid.NameSpaceOID, buf[:]).String()
}

// SeedBusSchedules enqueues each bus's first BUS_ARRIVAL.
func (e *Engine) SeedBusSchedules() error {
	for _, b := range e.buses {
		if len(b.Schedule) == 0 {
			continue
		}
		if _, err := e.queue.Enqueue(b.Schedule[0].ScheduledArrivalTime, eventqueue.BusArrival, busArrivalPayload{BusID: b.ID, StopIndex: 0}); err != nil {
			return err
		}
	}
	return nil
}

// SeedPassengerAppearances enqueues one PASSENGER_APPEAR per
// precomputed demand.Appearance. Passenger appearances do not schedule a
// PASSENGER_TIMEOUT here — that happens when PASSENGER_APPEAR fires and
// the passenger's id is known.
func (e *Engine) SeedPassengerAppearances(appearances []passengerAppearPayload) error {
	for _, a := range appearances {
		if _, err := e.queue.Enqueue(a.AppearTime, eventqueue.PassengerAppear, a); err != nil {
			return err
		}
	}
	return nil
}

// PassengerAppearance is the public shape demand.Appearance maps onto,
// kept distinct so callers outside the engine package never import the
// private payload type.
type PassengerAppearance struct {
	Origin      string
	Destination string
	AppearTime  float64
	MaxWaitTime float64
}

// SeedDemand is the public entry point for loading precomputed
// appearances into the event queue.
func (e *Engine) SeedDemand(appearances []PassengerAppearance) error {
	payloads := make([]passengerAppearPayload, len(appearances))
	for i, a := range appearances {
		payloads[i] = passengerAppearPayload{Origin: a.Origin, Destination: a.Destination, AppearTime: a.AppearTime, MaxWaitTime: a.MaxWaitTime}
	}
	return e.SeedPassengerAppearances(payloads)
}

// SeedOptimizerCadence enqueues the first OPTIMIZE_CALL.
func (e *Engine) SeedOptimizerCadence(startTime float64) error {
	if len(e.minibuses) == 0 {
		return nil
	}
	_, err := e.queue.Enqueue(startTime, eventqueue.OptimizeCall, nil)
	return err
}

// Run drains the event queue per spec.md section 4.4's main loop. It
// peeks before popping so an event beyond the horizon is left
// untouched rather than popped and discarded — popping would advance
// the queue's last-popped-time past currentTime and spuriously trip
// the monotonic-time invariant.
func (e *Engine) Run() error {
	for {
		peeked, ok := e.queue.Peek()
		if !ok || peeked.Time > e.endTime {
			break
		}
		evt, _ := e.queue.Pop()
		e.currentTime = evt.Time
		if err := e.dispatch(evt); err != nil {
			return err
		}
	}
	e.finalize()
	return nil
}

func (e *Engine) dispatch(evt *eventqueue.Event) error {
	e.log.WithSimTime(e.currentTime).WithEvent(string(evt.Type)).Debugw("dispatching event")
	switch evt.Type {
	case eventqueue.BusArrival:
		return e.handleBusArrival(evt.Payload.(busArrivalPayload))
	case eventqueue.MinibusArrival:
		return e.handleMinibusArrival(evt.Payload.(minibusArrivalPayload))
	case eventqueue.PassengerAppear:
		return e.handlePassengerAppear(evt.Payload.(passengerAppearPayload))
	case eventqueue.OptimizeCall:
		return e.handleOptimizeCall()
	case eventqueue.PassengerTimeout:
		return e.handlePassengerTimeout(evt.Payload.(passengerTimeoutPayload))
	default:
		return apperrors.New(apperrors.KindUnknownVehicle, "unknown event type").WithDetail("type", string(evt.Type))
	}
}

func (e *Engine) handleBusArrival(p busArrivalPayload) error {
	bus, ok := e.buses[p.BusID]
	if !ok {
		return apperrors.New(apperrors.KindUnknownVehicle, "unknown bus").WithDetail("bus_id", p.BusID)
	}
	stationID := bus.Schedule[p.StopIndex].StationID
	station, ok := e.stations[stationID]
	if !ok {
		return apperrors.New(apperrors.KindUnknownStation, "unknown station").WithDetail("station_id", stationID)
	}

	onboardIDs := bus.OnboardIDs()
	sort.Strings(onboardIDs)
	for _, pid := range onboardIDs {
		pass := e.passengers[pid]
		if pass.Destination != stationID {
			continue
		}
		if err := pass.Arrive(e.currentTime); err != nil {
			return err
		}
		if err := bus.Alight(pid); err != nil {
			return err
		}
		e.recordTerminal(pid)
	}

	for _, pid := range station.Snapshot() {
		if bus.RemainingCapacity() <= 0 {
			break
		}
		pass, ok := e.passengers[pid]
		if !ok {
			continue
		}
		if pass.CheckTimeout(e.currentTime) {
			if err := pass.Abandon(e.currentTime); err != nil {
				return err
			}
			_ = station.Remove(pid)
			e.abandonReason[pid] = ReasonTimeout
			e.recordTerminal(pid)
			continue
		}
		if !bus.DestinationLiesAhead(p.StopIndex, pass.Destination) {
			continue
		}
		if err := pass.Board(e.currentTime); err != nil {
			return err
		}
		if err := bus.Board(pid); err != nil {
			return err
		}
		_ = station.Remove(pid)
	}

	if next := bus.NextStopIndex(p.StopIndex); next != -1 {
		_, err := e.queue.Enqueue(bus.Schedule[next].ScheduledArrivalTime, eventqueue.BusArrival, busArrivalPayload{BusID: bus.ID, StopIndex: next})
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) handleMinibusArrival(p minibusArrivalPayload) error {
	mb, ok := e.minibuses[p.MinibusID]
	if !ok {
		return apperrors.New(apperrors.KindUnknownVehicle, "unknown minibus").WithDetail("minibus_id", p.MinibusID)
	}
	mb.CurrentLocation = p.StationID
	mb.HasPendingArrival = false

	station, ok := e.stations[p.StationID]
	if !ok {
		return apperrors.New(apperrors.KindUnknownStation, "unknown station").WithDetail("station_id", p.StationID)
	}

	for len(mb.RoutePlan) > 0 && mb.RoutePlan[0].StationID == p.StationID {
		stop, _ := mb.PopHeadStop()
		switch stop.Action {
		case transit.Dropoff:
			for _, pid := range stop.PassengerIDs {
				pass, ok := e.passengers[pid]
				if !ok {
					return apperrors.New(apperrors.KindUnknownPassenger, "unknown passenger in route plan").WithDetail("passenger_id", pid)
				}
				if err := pass.Arrive(e.currentTime); err != nil {
					return err
				}
				if err := mb.Alight(pid); err != nil {
					return err
				}
				e.recordTerminal(pid)
			}
		case transit.Pickup:
			for _, pid := range stop.PassengerIDs {
				pass, ok := e.passengers[pid]
				if !ok {
					return apperrors.New(apperrors.KindUnknownPassenger, "unknown passenger in route plan").WithDetail("passenger_id", pid)
				}
				if pass.State != transit.Assigned || pass.AssignedVehicleID != mb.ID {
					continue
				}
				if err := pass.Board(e.currentTime); err != nil {
					return err
				}
				if err := mb.Board(pid); err != nil {
					return err
				}
				_ = station.Remove(pid)
			}
		}
	}

	if len(mb.RoutePlan) > 0 {
		next := mb.RoutePlan[0]
		leg, err := e.net.TravelTime(mb.CurrentLocation, next.StationID, e.currentTime)
		if err != nil {
			return err
		}
		mb.DistanceTraveledSeconds += leg
		if _, err := e.queue.Enqueue(e.currentTime+leg, eventqueue.MinibusArrival, minibusArrivalPayload{MinibusID: mb.ID, StationID: next.StationID}); err != nil {
			return err
		}
		mb.HasPendingArrival = true
	}
	return nil
}

func (e *Engine) handlePassengerAppear(p passengerAppearPayload) error {
	pass, err := transit.NewPassenger(e.nextPassengerID(), p.Origin, p.Destination, p.AppearTime, p.MaxWaitTime)
	if err != nil {
		return err
	}
	e.passengers[pass.ID] = pass

	station, ok := e.stations[p.Origin]
	if !ok {
		return apperrors.New(apperrors.KindUnknownStation, "unknown origin station").WithDetail("station_id", p.Origin)
	}
	station.Enqueue(pass.ID)

	_, err = e.queue.Enqueue(p.AppearTime+p.MaxWaitTime, eventqueue.PassengerTimeout, passengerTimeoutPayload{PassengerID: pass.ID})
	return err
}

func (e *Engine) handlePassengerTimeout(p passengerTimeoutPayload) error {
	pass, ok := e.passengers[p.PassengerID]
	if !ok {
		return apperrors.New(apperrors.KindUnknownPassenger, "unknown passenger").WithDetail("passenger_id", p.PassengerID)
	}
	if pass.State != transit.Waiting && pass.State != transit.Assigned {
		return nil
	}
	if station, ok := e.stations[pass.Origin]; ok {
		_ = station.Remove(pass.ID)
	}
	if err := pass.Abandon(e.currentTime); err != nil {
		return err
	}
	e.abandonReason[pass.ID] = ReasonTimeout
	e.recordTerminal(pass.ID)
	return nil
}

func (e *Engine) handleOptimizeCall() error {
	if e.optimizerType != config.OptimizerGreedyInsertion || len(e.minibuses) == 0 {
		if e.optimizationInterval > 0 {
			_, err := e.queue.Enqueue(e.currentTime+e.optimizationInterval, eventqueue.OptimizeCall, nil)
			return err
		}
		return nil
	}

	pending, err := e.collectPendingRequests()
	if err != nil {
		return err
	}

	snap := optimizer.Snapshot{CurrentTime: e.currentTime, PendingRequests: pending}
	for _, mb := range e.minibuses {
		snap.Minibuses = append(snap.Minibuses, optimizer.MinibusSnapshot{
			ID:                  mb.ID,
			Capacity:            mb.Capacity,
			CurrentLocation:     mb.CurrentLocation,
			CurrentOccupancy:    mb.CurrentOccupancy(),
			OnboardPassengerIDs: mb.OnboardIDs(),
			CurrentRoutePlan:    append([]transit.RouteStop(nil), mb.RoutePlan...),
		})
	}
	sort.Slice(snap.Minibuses, func(i, j int) bool { return snap.Minibuses[i].ID < snap.Minibuses[j].ID })

	plans, err := optimizer.Optimize(snap, e.net.TravelTime, e.log)
	if err != nil {
		return err
	}

	if err := e.applyPlans(plans); err != nil {
		return err
	}

	if e.optimizationInterval > 0 {
		if _, err := e.queue.Enqueue(e.currentTime+e.optimizationInterval, eventqueue.OptimizeCall, nil); err != nil {
			return err
		}
	}
	return nil
}

// collectPendingRequests sweeps every WAITING passenger for timeout
// (spec.md section 4.4's timeout policy at optimizer snapshot time)
// and returns the rest as pending requests in a deterministic order.
func (e *Engine) collectPendingRequests() ([]optimizer.PendingRequest, error) {
	ids := make([]string, 0, len(e.passengers))
	for id := range e.passengers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var pending []optimizer.PendingRequest
	for _, id := range ids {
		pass := e.passengers[id]
		if pass.State != transit.Waiting {
			continue
		}
		if pass.CheckTimeout(e.currentTime) {
			if station, ok := e.stations[pass.Origin]; ok {
				_ = station.Remove(id)
			}
			if err := pass.Abandon(e.currentTime); err != nil {
				return nil, err
			}
			e.abandonReason[id] = ReasonTimeout
			e.recordTerminal(id)
			continue
		}
		pending = append(pending, optimizer.PendingRequest{
			PassengerID: id,
			Origin:      pass.Origin,
			Destination: pass.Destination,
			AppearTime:  pass.AppearTime,
		})
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].AppearTime < pending[j].AppearTime })
	return pending, nil
}

// applyPlans implements spec.md section 4.5.5: reject any plan that
// fails ValidateRoutePlan or whose PICKUP/DROPOFF stations do not match
// the passengers' origin/destination, replace each remaining minibus's
// plan, re-label newly assigned passengers, and schedule a
// MINIBUS_ARRIVAL only for vehicles that were idle — an in-flight
// arrival's time is never moved, only its contents change.
func (e *Engine) applyPlans(plans map[string][]transit.RouteStop) error {
	for minibusID, plan := range plans {
		mb, ok := e.minibuses[minibusID]
		if !ok {
			continue
		}
		if err := optimizer.ValidateRoutePlan(plan, mb.Capacity, mb.CurrentOccupancy()); err != nil {
			e.log.Warnw("rejecting optimizer route plan: capacity violation", "minibus_id", minibusID, "error", err)
			continue
		}
		stationMismatch := false
		for _, stop := range plan {
			for _, pid := range stop.PassengerIDs {
				pass, ok := e.passengers[pid]
				if ok && ((stop.Action == transit.Pickup && pass.Origin != stop.StationID) || (stop.Action == transit.Dropoff && pass.Destination != stop.StationID)) {
					stationMismatch = true
				}
			}
		}
		if stationMismatch {
			e.log.Warnw("rejecting optimizer route plan: stop station does not match passenger origin/destination", "minibus_id", minibusID)
			continue
		}

		for _, stop := range plan {
			if stop.Action != transit.Pickup {
				continue
			}
			for _, pid := range stop.PassengerIDs {
				pass, ok := e.passengers[pid]
				if !ok {
					return apperrors.New(apperrors.KindUnknownPassenger, "optimizer assigned unknown passenger").WithDetail("passenger_id", pid)
				}
				if pass.State == transit.Waiting {
					if err := pass.AssignToVehicle(minibusID, e.currentTime); err != nil {
						return err
					}
				}
			}
		}

		hadPending := mb.HasPendingArrival
		mb.ReplaceRoutePlan(plan)

		if !hadPending && len(plan) > 0 {
			first := plan[0]
			leg, err := e.net.TravelTime(mb.CurrentLocation, first.StationID, e.currentTime)
			if err != nil {
				return err
			}
			mb.DistanceTraveledSeconds += leg
			if _, err := e.queue.Enqueue(e.currentTime+leg, eventqueue.MinibusArrival, minibusArrivalPayload{MinibusID: minibusID, StationID: first.StationID}); err != nil {
				return err
			}
			mb.HasPendingArrival = true
		}
	}
	return nil
}

// finalize flushes every still-WAITING or ASSIGNED passenger to
// ABANDONED with reason "simulation ended" (spec.md section 5's
// checkpoint behavior). Passengers still ONBOARD are not abandoned: the
// state machine has no ONBOARD -> ABANDONED edge, so they are marked
// ARRIVED at the final time, with an empty reason, without having
// reached their destination and without alighting from their vehicle.
func (e *Engine) finalize() {
	ids := make([]string, 0, len(e.passengers))
	for id := range e.passengers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		pass := e.passengers[id]
		switch pass.State {
		case transit.Arrived, transit.Abandoned:
			continue
		case transit.Onboard:
			_ = pass.Arrive(e.currentTime)
			e.abandonReason[id] = ""
			e.recordTerminal(id)
		default:
			if station, ok := e.stations[pass.Origin]; ok {
				_ = station.Remove(id)
			}
			_ = pass.Abandon(e.currentTime)
			e.abandonReason[id] = ReasonSimulationEnded
			e.recordTerminal(id)
		}
	}
}

func (e *Engine) recordTerminal(passengerID string) {
	e.history = append(e.history, passengerID)
}

// Passenger exposes a registered passenger by id, for reporting.
func (e *Engine) Passenger(id string) (*transit.Passenger, bool) {
	p, ok := e.passengers[id]
	return p, ok
}

// History returns passenger ids in the order they reached a terminal state.
func (e *Engine) History() []string {
	out := make([]string, len(e.history))
	copy(out, e.history)
	return out
}

// AbandonReason returns the recorded reason a passenger was abandoned,
// if any.
func (e *Engine) AbandonReason(passengerID string) (string, bool) {
	r, ok := e.abandonReason[passengerID]
	return r, ok
}

// Buses exposes the bus registry for reporting.
func (e *Engine) Buses() map[string]*transit.Bus { return e.buses }

// Minibuses exposes the minibus registry for reporting.
func (e *Engine) Minibuses() map[string]*transit.Minibus { return e.minibuses }

// CurrentTime returns the time of the last dispatched event.
func (e *Engine) CurrentTime() float64 { return e.currentTime }

// CheckInvariants validates the testable properties of spec.md section
// 8 against the engine's current state; intended for use in tests.
func (e *Engine) CheckInvariants() []error {
	var errs []error
	for id, b := range e.buses {
		if b.CurrentOccupancy() > b.Capacity || b.CurrentOccupancy() < 0 {
			errs = append(errs, apperrors.New(apperrors.KindCapacityViolation, "bus occupancy invariant violated").WithDetail("bus_id", id))
		}
	}
	for id, m := range e.minibuses {
		if m.CurrentOccupancy() > m.Capacity || m.CurrentOccupancy() < 0 {
			errs = append(errs, apperrors.New(apperrors.KindCapacityViolation, "minibus occupancy invariant violated").WithDetail("minibus_id", id))
		}
	}
	onboardOwners := make(map[string]int)
	for _, b := range e.buses {
		for _, pid := range b.OnboardIDs() {
			onboardOwners[pid]++
		}
	}
	for _, m := range e.minibuses {
		for _, pid := range m.OnboardIDs() {
			onboardOwners[pid]++
		}
	}
	for pid, pass := range e.passengers {
		if pass.State == transit.Onboard && onboardOwners[pid] != 1 {
			errs = append(errs, apperrors.New(apperrors.KindInvalidTransition, "onboard passenger not owned by exactly one vehicle").WithDetail("passenger_id", pid))
		}
		if pass.PickupTime != nil && *pass.PickupTime < pass.AppearTime {
			errs = append(errs, apperrors.New(apperrors.KindTimeRegression, "pickupTime before appearTime").WithDetail("passenger_id", pid))
		}
		if pass.ArrivalTime != nil && pass.PickupTime != nil && *pass.ArrivalTime < *pass.PickupTime {
			errs = append(errs, apperrors.New(apperrors.KindTimeRegression, "arrivalTime before pickupTime").WithDetail("passenger_id", pid))
		}
	}
	if last, ok := e.queue.LastPoppedTime(); ok && last > e.currentTime {
		errs = append(errs, apperrors.New(apperrors.KindTimeRegression, "queue popped time exceeds engine currentTime"))
	}
	return errs
}
