// Package optimizer implements the greedy-insertion dynamic vehicle
// router of spec.md section 4.5. It is grounded on the original
// Python prototype's clean-rewrite pass
// (_examples/original_source/.history/optimizer/greedy_insertion_20260107234159.py),
// which settled on "always insert both pickup and dropoff as new
// stops, merge only for capacity checking and final output, and merge
// with dropoff before pickup" after earlier drafts hit capacity bugs
// from checking against the unmerged route. The candidate-enumerate /
// feasibility-filter / cost-minimize shape mirrors Hintro's
// MatchingService (shivamshaw23-Hintro/internal/service/matching.go).
package optimizer

import (
	"math"

	"transitsim/internal/apperrors"
	"transitsim/internal/logging"
	"transitsim/internal/transit"
)

// PendingRequest is an unassigned WAITING passenger eligible for
// insertion into a minibus route.
type PendingRequest struct {
	PassengerID string
	Origin      string
	Destination string
	AppearTime  float64
}

// MinibusSnapshot is a by-value copy of one minibus's routing-relevant
// state, copied by the engine between events so the optimizer never
// touches live state (spec.md section 5).
type MinibusSnapshot struct {
	ID                   string
	Capacity             int
	CurrentLocation      string
	CurrentOccupancy     int
	OnboardPassengerIDs  []string
	CurrentRoutePlan     []transit.RouteStop
}

// Snapshot is the optimizer's entire input (spec.md section 4.5).
type Snapshot struct {
	CurrentTime     float64
	PendingRequests []PendingRequest
	Minibuses       []MinibusSnapshot
}

// TravelTimeFunc answers a time-dependent travel time between two
// station ids, departing at the given time.
type TravelTimeFunc func(originID, destID string, currentTime float64) (float64, error)

// compoundStop is the internal working representation of section
// 4.5.1: one station visit carrying both its pickups and dropoffs,
// fused from consecutive same-station stops.
type compoundStop struct {
	station string
	pickup  []string
	dropoff []string
}

func cloneStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// Optimize runs one greedy-insertion pass and returns, per minibus id,
// the new ordered route plan.
func Optimize(snap Snapshot, travelTime TravelTimeFunc, log *logging.Logger) (map[string][]transit.RouteStop, error) {
	if log == nil {
		log = logging.Default()
	}
	log.Debugw("optimizer pass starting", "pending_requests", len(snap.PendingRequests), "minibuses", len(snap.Minibuses))

	// Idempotent-on-empty-demand law (spec.md section 8): with no
	// pending requests, return each minibus's existing plan unchanged.
	if len(snap.PendingRequests) == 0 {
		out := make(map[string][]transit.RouteStop, len(snap.Minibuses))
		for _, mb := range snap.Minibuses {
			out[mb.ID] = mb.CurrentRoutePlan
		}
		return out, nil
	}

	vehicles := make([]*vehicleState, 0, len(snap.Minibuses))
	for _, mb := range snap.Minibuses {
		vehicles = append(vehicles, &vehicleState{
			id:              mb.ID,
			capacity:        mb.Capacity,
			initialLocation: mb.CurrentLocation,
			initialOccupancy: mb.CurrentOccupancy,
			route:           buildRouteFromPlan(mb.CurrentRoutePlan),
		})
	}

	// Section 4.5.2: process pending requests in input order — this is
	// the greedy choice and must be preserved for determinism.
	for _, req := range snap.PendingRequests {
		var bestVehicle *vehicleState
		var bestRoute []compoundStop
		bestCost := math.Inf(1)

		for _, v := range vehicles {
			candidateRoute, cost, err := tryInsert(v, req, snap.CurrentTime, travelTime)
			if err != nil {
				return nil, err
			}
			if candidateRoute != nil && cost < bestCost {
				bestVehicle = v
				bestRoute = candidateRoute
				bestCost = cost
			}
		}

		if bestVehicle != nil {
			bestVehicle.route = bestRoute
			log.Debugw("assigned passenger", "passenger_id", req.PassengerID, "minibus_id", bestVehicle.id, "cost", bestCost)
		} else {
			log.Debugw("could not assign passenger this pass", "passenger_id", req.PassengerID)
		}
	}

	out := make(map[string][]transit.RouteStop, len(vehicles))
	for _, v := range vehicles {
		out[v.id] = toRoutePlan(mergeConsecutive(v.route))
	}
	return out, nil
}

type vehicleState struct {
	id                string
	capacity          int
	initialLocation   string
	initialOccupancy  int
	route             []compoundStop
}

// buildRouteFromPlan converts an externally-shaped route plan (already
// DROPOFF-before-PICKUP per stop) into the internal compound-stop list,
// merging consecutive same-station stops the way the engine's
// executor will see them.
func buildRouteFromPlan(plan []transit.RouteStop) []compoundStop {
	var route []compoundStop
	for _, stop := range plan {
		if len(route) > 0 && route[len(route)-1].station == stop.StationID {
			last := &route[len(route)-1]
			switch stop.Action {
			case transit.Pickup:
				last.pickup = append(last.pickup, stop.PassengerIDs...)
			case transit.Dropoff:
				last.dropoff = append(last.dropoff, stop.PassengerIDs...)
			}
			continue
		}
		cs := compoundStop{station: stop.StationID}
		switch stop.Action {
		case transit.Pickup:
			cs.pickup = cloneStrings(stop.PassengerIDs)
		case transit.Dropoff:
			cs.dropoff = cloneStrings(stop.PassengerIDs)
		}
		route = append(route, cs)
	}
	return route
}

// tryInsert enumerates every (pickupPos, dropoffPos) pair for one
// request against one vehicle's current route (section 4.5.2, step 1),
// filters by capacity (step 2), and returns the minimum-cost feasible
// candidate (step 3).
func tryInsert(v *vehicleState, req PendingRequest, currentTime float64, travelTime TravelTimeFunc) ([]compoundStop, float64, error) {
	n := len(v.route)
	bestCost := math.Inf(1)
	var best []compoundStop

	for pickupPos := 0; pickupPos <= n; pickupPos++ {
		for dropoffPos := pickupPos + 1; dropoffPos <= n+1; dropoffPos++ {
			candidate := insertPickupDropoff(v.route, pickupPos, dropoffPos, req)

			if !capacityFeasible(candidate, v.capacity, v.initialOccupancy) {
				continue
			}
			cost, err := routeCost(v.initialLocation, candidate, currentTime, travelTime)
			if err != nil {
				return nil, 0, err
			}
			if cost < bestCost {
				bestCost = cost
				best = candidate
			}
		}
	}
	if best == nil {
		return nil, math.Inf(1), nil
	}
	return best, bestCost, nil
}

// insertPickupDropoff inserts the request's origin as a new stop at
// pickupPos, then its destination as a new stop at dropoffPos (a
// position in the route *after* the pickup insertion, per section
// 4.5.2).
func insertPickupDropoff(route []compoundStop, pickupPos, dropoffPos int, req PendingRequest) []compoundStop {
	withPickup := make([]compoundStop, 0, len(route)+2)
	withPickup = append(withPickup, route[:pickupPos]...)
	withPickup = append(withPickup, compoundStop{station: req.Origin, pickup: []string{req.PassengerID}})
	withPickup = append(withPickup, route[pickupPos:]...)

	out := make([]compoundStop, 0, len(withPickup)+1)
	out = append(out, withPickup[:dropoffPos]...)
	out = append(out, compoundStop{station: req.Destination, dropoff: []string{req.PassengerID}})
	out = append(out, withPickup[dropoffPos:]...)
	return out
}

// capacityFeasible implements section 4.5.3: merge consecutive
// same-station stops first (execution operates on the merged plan),
// then walk the merged route applying dropoffs before pickups at each
// stop, rejecting if occupancy ever goes negative or exceeds capacity.
func capacityFeasible(route []compoundStop, capacity, initialOccupancy int) bool {
	merged := mergeConsecutive(route)
	occupancy := initialOccupancy
	for _, stop := range merged {
		occupancy -= len(stop.dropoff)
		if occupancy < 0 {
			return false
		}
		occupancy += len(stop.pickup)
		if occupancy > capacity {
			return false
		}
	}
	return true
}

// mergeConsecutive fuses adjacent compound stops at the same station,
// dropping the original per-request stop boundaries. Section 4.5.1/4.5.4.
func mergeConsecutive(route []compoundStop) []compoundStop {
	var merged []compoundStop
	for _, stop := range route {
		if len(merged) > 0 && merged[len(merged)-1].station == stop.station {
			last := &merged[len(merged)-1]
			last.pickup = append(last.pickup, stop.pickup...)
			last.dropoff = append(last.dropoff, stop.dropoff...)
			continue
		}
		merged = append(merged, compoundStop{
			station: stop.station,
			pickup:  cloneStrings(stop.pickup),
			dropoff: cloneStrings(stop.dropoff),
		})
	}
	var out []compoundStop
	for _, stop := range merged {
		if len(stop.pickup) == 0 && len(stop.dropoff) == 0 {
			continue
		}
		out = append(out, stop)
	}
	return out
}

// routeCost implements section 4.5.4: cumulative travel time starting
// at currentTime from the vehicle's current location, advancing the
// query time after each leg so later legs see later time slots. An
// empty route costs 0, and a stop at the station the vehicle is already
// at adds no leg.
func routeCost(startLocation string, route []compoundStop, currentTime float64, travelTime TravelTimeFunc) (float64, error) {
	if len(route) == 0 {
		return 0, nil
	}
	total := 0.0
	arrival := currentTime
	from := startLocation
	for _, stop := range route {
		if from == stop.station {
			continue
		}
		leg, err := travelTime(from, stop.station, arrival)
		if err != nil {
			return 0, err
		}
		total += leg
		arrival += leg
		from = stop.station
	}
	return total, nil
}

// toRoutePlan converts merged compound stops to the external route
// plan shape, emitting DROPOFF before PICKUP at each station (the
// order capacityFeasible assumed, spec.md section 4.5.5/6).
func toRoutePlan(merged []compoundStop) []transit.RouteStop {
	var out []transit.RouteStop
	for _, stop := range merged {
		if len(stop.dropoff) > 0 {
			out = append(out, transit.RouteStop{StationID: stop.station, Action: transit.Dropoff, PassengerIDs: stop.dropoff})
		}
		if len(stop.pickup) > 0 {
			out = append(out, transit.RouteStop{StationID: stop.station, Action: transit.Pickup, PassengerIDs: stop.pickup})
		}
	}
	return out
}

// ValidateRoutePlan enforces the engine's wire-format validation from
// spec.md section 6: every action is PICKUP or DROPOFF, every PICKUP
// precedes its matching DROPOFF within the same minibus, and capacity
// holds along the plan. A DROPOFF with no PICKUP in the plan is legal
// (the passenger was already onboard); a PICKUP that comes after a
// DROPOFF of the same passenger is rejected. It does not check
// origin/destination station matches, which requires the passenger
// registry and is performed by the engine at apply time.
func ValidateRoutePlan(plan []transit.RouteStop, capacity, initialOccupancy int) error {
	seenDropoff := make(map[string]bool)
	occupancy := initialOccupancy
	for i, stop := range plan {
		switch stop.Action {
		case transit.Pickup:
			for _, pid := range stop.PassengerIDs {
				if seenDropoff[pid] {
					return apperrors.New(apperrors.KindCapacityViolation, "route plan drops off a passenger before picking them up").
						WithDetail("index", i).WithDetail("passenger_id", pid)
				}
			}
			occupancy += len(stop.PassengerIDs)
		case transit.Dropoff:
			for _, pid := range stop.PassengerIDs {
				seenDropoff[pid] = true
			}
			occupancy -= len(stop.PassengerIDs)
		default:
			return apperrors.New(apperrors.KindCapacityViolation, "route stop has unknown action").WithDetail("index", i)
		}
		if occupancy < 0 || occupancy > capacity {
			return apperrors.New(apperrors.KindCapacityViolation, "route plan violates capacity").
				WithDetail("index", i).WithDetail("occupancy", occupancy).WithDetail("capacity", capacity)
		}
	}
	return nil
}
