package queue

import (
	"fmt"
	"time"

	"kiosk-system/internal/domain"
)

// OrderQueue holds the authoritative processing order and status of all active
// orders. It is a plain data structure: callers (the queue manager) own all
// locking. At most one order is in_progress at a time, the single robotic arm
// being the only processing resource.
type OrderQueue struct {
	orders  map[string]*domain.Order
	pending []string // order ids awaiting processing, FIFO
	current string   // id of the in_progress order, empty if none

	events []domain.StatusEvent

	now func() time.Time
}

func New() *OrderQueue {
	return &OrderQueue{
		orders: make(map[string]*domain.Order),
		now:    time.Now,
	}
}

// Enqueue appends the order with status pending.
func (q *OrderQueue) Enqueue(o domain.Order) error {
	if _, ok := q.orders[o.ID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateOrder, o.ID)
	}
	o.Status = domain.StatusPending
	q.orders[o.ID] = &o
	q.pending = append(q.pending, o.ID)
	q.emit(&o)
	return nil
}

// StartNext promotes the first pending order to in_progress and returns it.
func (q *OrderQueue) StartNext() (domain.Order, error) {
	if q.current != "" {
		return domain.Order{}, fmt.Errorf("%w: order %s", domain.ErrResourceBusy, q.current)
	}
	if len(q.pending) == 0 {
		return domain.Order{}, domain.ErrEmptyQueue
	}
	id := q.pending[0]
	q.pending = q.pending[1:]
	o := q.orders[id]
	started := q.now().UTC()
	o.Status = domain.StatusInProgress
	o.StartedAt = &started
	q.current = id
	q.emit(o)
	return *o, nil
}

// Complete marks the in_progress order as completed, removes it from the
// active queue and returns the elapsed processing duration.
func (q *OrderQueue) Complete(orderID string) (domain.Order, time.Duration, error) {
	o, err := q.takeCurrent(orderID)
	if err != nil {
		return domain.Order{}, 0, err
	}
	done := q.now().UTC()
	o.Status = domain.StatusCompleted
	o.CompletedAt = &done
	o.Duration = done.Sub(*o.StartedAt)
	q.remove(o.ID)
	q.emit(o)
	return *o, o.Duration, nil
}

// Fail marks the in_progress order as failed and removes it. No processing
// duration is reported; a failed run must not feed the estimator.
func (q *OrderQueue) Fail(orderID, reason string) (domain.Order, error) {
	o, err := q.takeCurrent(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	done := q.now().UTC()
	o.Status = domain.StatusFailed
	o.CompletedAt = &done
	o.ErrorMessage = reason
	q.remove(o.ID)
	q.emit(o)
	return *o, nil
}

// Cancel removes a pending or in_progress order.
func (q *OrderQueue) Cancel(orderID string) (domain.Order, error) {
	o, ok := q.orders[orderID]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrNotFound, orderID)
	}
	if o.Status != domain.StatusPending && o.Status != domain.StatusInProgress {
		return domain.Order{}, fmt.Errorf("%w: order %s is %s", domain.ErrInvalidState, orderID, o.Status)
	}
	done := q.now().UTC()
	o.Status = domain.StatusCancelled
	o.CompletedAt = &done
	q.remove(orderID)
	q.emit(o)
	return *o, nil
}

// SetEstimate records the computed completion estimate on an active order.
func (q *OrderQueue) SetEstimate(orderID string, at time.Time) {
	if o, ok := q.orders[orderID]; ok {
		t := at.UTC()
		o.EstimatedCompletion = &t
	}
}

// Snapshot returns copies of all active orders in processing order: the
// in_progress order first (if any), then pending orders FIFO. Callers never
// get a live reference into queue state.
func (q *OrderQueue) Snapshot() []domain.Order {
	out := make([]domain.Order, 0, len(q.orders))
	if q.current != "" {
		out = append(out, *q.orders[q.current])
	}
	for _, id := range q.pending {
		out = append(out, *q.orders[id])
	}
	return out
}

// Get returns a copy of an active order.
func (q *OrderQueue) Get(orderID string) (domain.Order, bool) {
	o, ok := q.orders[orderID]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// Position returns the 1-based queue position of a pending order. The
// in_progress order has position 0. Absent orders report -1.
func (q *OrderQueue) Position(orderID string) int {
	if orderID == q.current && q.current != "" {
		return 0
	}
	for i, id := range q.pending {
		if id == orderID {
			return i + 1
		}
	}
	return -1
}

// PendingIDs returns the ids of pending orders in processing order.
func (q *OrderQueue) PendingIDs() []string {
	out := make([]string, len(q.pending))
	copy(out, q.pending)
	return out
}

// CurrentID returns the id of the in_progress order, empty if none.
func (q *OrderQueue) CurrentID() string { return q.current }

func (q *OrderQueue) Len() int { return len(q.orders) }

// Drain returns the change events accumulated since the last call.
func (q *OrderQueue) Drain() []domain.StatusEvent {
	evs := q.events
	q.events = nil
	return evs
}

func (q *OrderQueue) takeCurrent(orderID string) (*domain.Order, error) {
	o, ok := q.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, orderID)
	}
	if o.Status != domain.StatusInProgress {
		return nil, fmt.Errorf("%w: order %s is %s, not in_progress", domain.ErrInvalidState, orderID, o.Status)
	}
	return o, nil
}

func (q *OrderQueue) remove(orderID string) {
	delete(q.orders, orderID)
	if q.current == orderID {
		q.current = ""
	}
	for i, id := range q.pending {
		if id == orderID {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
}

func (q *OrderQueue) emit(o *domain.Order) {
	q.events = append(q.events, domain.StatusEvent{
		OrderID:             o.ID,
		NewStatus:           o.Status,
		EstimatedCompletion: o.EstimatedCompletion,
		OccurredAt:          q.now().UTC(),
	})
}
