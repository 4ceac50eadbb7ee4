// Package eventqueue implements the min-heap of spec.md section 4.3:
// events ordered lexicographically over (time, priority, sequence),
// grounded on the teacher's container/heap event-priority-queue idiom
// (jwmdev-brt08/backend/driver/batch.go's eventPQ).
package eventqueue

import (
	"container/heap"

	"transitsim/internal/apperrors"
)

// EventType names the taxonomy of spec.md section 4.3's priority table.
type EventType string

const (
	BusArrival        EventType = "BUS_ARRIVAL"
	MinibusArrival     EventType = "MINIBUS_ARRIVAL"
	PassengerAppear    EventType = "PASSENGER_APPEAR"
	OptimizeCall       EventType = "OPTIMIZE_CALL"
	PassengerTimeout   EventType = "PASSENGER_TIMEOUT"
)

// priorityOf implements the priority table: lower sorts earlier.
func priorityOf(t EventType) int {
	switch t {
	case BusArrival:
		return 0
	case MinibusArrival:
		return 1
	case PassengerAppear:
		return 2
	case OptimizeCall:
		return 3
	case PassengerTimeout:
		return 4
	default:
		return 99
	}
}

// Event carries a (time, priority, sequence) sort key, a type, and an
// arbitrary payload the engine's dispatcher type-asserts on.
type Event struct {
	Time     float64
	Priority int
	Sequence uint64
	Type     EventType
	Payload  any
}

type heapImpl []*Event

func (h heapImpl) Len() int { return len(h) }
func (h heapImpl) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].Sequence < h[j].Sequence
}
func (h heapImpl) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *heapImpl) Push(x any)   { *h = append(*h, x.(*Event)) }
func (h *heapImpl) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// EventQueue is the engine's sole event queue: a min-heap keyed on
// (time, priority, sequence) with a monotonic sequence counter assigned
// at enqueue time so ties resolve by insertion order.
type EventQueue struct {
	h        heapImpl
	nextSeq  uint64
	poppedAt float64 // time of the last popped event, for monotonicity checks
	hasPopped bool
}

// New returns an empty EventQueue.
func New() *EventQueue {
	q := &EventQueue{}
	heap.Init(&q.h)
	return q
}

// Enqueue pushes a new event, assigning it the next sequence stamp.
// Negative times fail with InvalidTime.
func (q *EventQueue) Enqueue(t float64, typ EventType, payload any) (*Event, error) {
	if t < 0 {
		return nil, apperrors.New(apperrors.KindInvalidTime, "event time must be non-negative").WithDetail("time", t)
	}
	e := &Event{Time: t, Priority: priorityOf(typ), Sequence: q.nextSeq, Type: typ, Payload: payload}
	q.nextSeq++
	heap.Push(&q.h, e)
	return e, nil
}

// Pop removes and returns the minimum (time, priority, sequence) event.
// Reports ok=false when the queue is empty.
func (q *EventQueue) Pop() (*Event, bool) {
	if q.h.Len() == 0 {
		return nil, false
	}
	e := heap.Pop(&q.h).(*Event)
	q.poppedAt = e.Time
	q.hasPopped = true
	return e, true
}

// Peek returns the minimum event without removing it.
func (q *EventQueue) Peek() (*Event, bool) {
	if q.h.Len() == 0 {
		return nil, false
	}
	return q.h[0], true
}

// Len reports the number of pending events.
func (q *EventQueue) Len() int { return q.h.Len() }

// LastPoppedTime returns the time of the most recently popped event and
// whether any event has been popped yet — used to assert the queue's
// monotonic-time invariant (spec.md section 8, invariant 4).
func (q *EventQueue) LastPoppedTime() (float64, bool) { return q.poppedAt, q.hasPopped }
