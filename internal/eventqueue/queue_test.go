package eventqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityOrderingAtEqualTime(t *testing.T) {
	q := New()
	_, err := q.Enqueue(100, OptimizeCall, nil)
	require.NoError(t, err)
	_, err = q.Enqueue(100, PassengerAppear, nil)
	require.NoError(t, err)
	_, err = q.Enqueue(100, BusArrival, nil)
	require.NoError(t, err)
	_, err = q.Enqueue(100, MinibusArrival, nil)
	require.NoError(t, err)

	var order []EventType
	for q.Len() > 0 {
		e, _ := q.Pop()
		order = append(order, e.Type)
	}
	assert.Equal(t, []EventType{BusArrival, MinibusArrival, PassengerAppear, OptimizeCall}, order)
}

func TestInsertionOrderBreaksTiesAtEqualTimeAndPriority(t *testing.T) {
	q := New()
	type payload struct{ id int }
	_, err := q.Enqueue(50, PassengerAppear, payload{1})
	require.NoError(t, err)
	_, err = q.Enqueue(50, PassengerAppear, payload{2})
	require.NoError(t, err)
	_, err = q.Enqueue(50, PassengerAppear, payload{3})
	require.NoError(t, err)

	e1, _ := q.Pop()
	e2, _ := q.Pop()
	e3, _ := q.Pop()
	assert.Equal(t, 1, e1.Payload.(payload).id)
	assert.Equal(t, 2, e2.Payload.(payload).id)
	assert.Equal(t, 3, e3.Payload.(payload).id)
}

func TestTimeOrderingAcrossDifferentTimes(t *testing.T) {
	q := New()
	_, _ = q.Enqueue(300, BusArrival, nil)
	_, _ = q.Enqueue(50, OptimizeCall, nil)
	_, _ = q.Enqueue(100, MinibusArrival, nil)

	var times []float64
	for q.Len() > 0 {
		e, _ := q.Pop()
		times = append(times, e.Time)
	}
	assert.Equal(t, []float64{50, 100, 300}, times)
}

func TestEnqueueNegativeTimeFails(t *testing.T) {
	q := New()
	_, err := q.Enqueue(-1, BusArrival, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidTime")
}

func TestPopEmptyQueue(t *testing.T) {
	q := New()
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestMidSimulationInjectionIsOrderedCorrectly(t *testing.T) {
	q := New()
	_, _ = q.Enqueue(100, BusArrival, nil)
	e, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 100.0, e.Time)

	// Handler dispatch for e injects a follow-up event after the pop.
	_, err := q.Enqueue(200, MinibusArrival, nil)
	require.NoError(t, err)
	e2, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 200.0, e2.Time)
}
