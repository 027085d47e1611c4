package tokenkeep

import (
	"time"

	"github.com/google/uuid"
)

// waiter is one parked QueueForRefresh caller. Its channel has capacity 1 and
// receives exactly one settlement; callers that abandon the wait (context
// cancellation) remove themselves before the settlement can arrive.
type waiter struct {
	id         string
	ch         chan error
	enqueuedAt time.Time
}

func (w *waiter) settle(err error) {
	w.ch <- err
}

// waiterQueue is the bounded FIFO of callers waiting for the next refresh
// cycle. It is not internally synchronized; the coordinator's mutex guards
// every call, which also makes the drain-before-next-enqueue ordering hold by
// construction.
type waiterQueue struct {
	maxSize int
	waiters []*waiter
}

func newWaiterQueue(maxSize int) *waiterQueue {
	return &waiterQueue{
		maxSize: maxSize,
	}
}

func (q *waiterQueue) len() int {
	return len(q.waiters)
}

// enqueue parks a new waiter, or reports ok=false when the capacity valve is
// closed.
func (q *waiterQueue) enqueue(now time.Time) (*waiter, bool) {
	if len(q.waiters) >= q.maxSize {
		return nil, false
	}
	w := &waiter{
		id:         uuid.NewString(),
		ch:         make(chan error, 1),
		enqueuedAt: now,
	}
	q.waiters = append(q.waiters, w)
	return w, true
}

// takeAll empties the queue and returns the waiters in enqueue order.
func (q *waiterQueue) takeAll() []*waiter {
	out := q.waiters
	q.waiters = nil
	return out
}

// remove discards the waiter with the given id, keeping order.
func (q *waiterQueue) remove(id string) bool {
	for i, w := range q.waiters {
		if w.id == id {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// expire removes and returns every waiter enqueued at or before the cutoff.
func (q *waiterQueue) expire(cutoff time.Time) []*waiter {
	var expired []*waiter
	kept := q.waiters[:0]
	for _, w := range q.waiters {
		if !w.enqueuedAt.After(cutoff) {
			expired = append(expired, w)
			continue
		}
		kept = append(kept, w)
	}
	q.waiters = kept
	return expired
}
