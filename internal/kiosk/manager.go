// Package kiosk orchestrates the order queue and the wait-time estimator
// behind a single transactional surface. External collaborators (HTTP API,
// persistence, dashboard hub) only ever talk to the Manager.
package kiosk

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"kiosk-system/internal/catalog"
	"kiosk-system/internal/domain"
	"kiosk-system/internal/estimate"
	"kiosk-system/internal/queue"
)

// Store is the persistence collaborator. The Manager is its sole writer;
// writes for one mutation happen inside that mutation's critical section, so
// they can never reorder across operations. Failures are propagated to the
// caller unmodified; retry policy belongs to the store.
type Store interface {
	CreateOrder(ctx context.Context, o domain.Order) error
	UpdateOrder(ctx context.Context, o domain.Order) error
	UpdateEstimates(ctx context.Context, estimates map[string]time.Time) error
	AppendHistorySample(ctx context.Context, recipeID string, perUnit time.Duration) error
	LoadActiveOrders(ctx context.Context) ([]domain.Order, error)
}

// Listener receives status change events after a mutation commits. Listeners
// run outside the critical section and must not be able to corrupt queue
// state; they get value copies only.
type Listener interface {
	Notify(ev domain.StatusEvent)
}

// SnapshotSink receives the full queue snapshot after each mutation. The
// Redis cache implements it.
type SnapshotSink interface {
	Store(ctx context.Context, s StatusSnapshot)
}

// StatusSnapshot is a consistent copy of queue state for read-only consumers.
type StatusSnapshot struct {
	Paused         bool
	Processing     bool
	CurrentOrderID string
	QueueLength    int
	Orders         []domain.Order
	UpdatedAt      time.Time
}

type Manager struct {
	mu sync.RWMutex

	queue  *queue.OrderQueue
	est    *estimate.Estimator
	store  Store
	cat    *catalog.Catalog
	log    *logrus.Entry
	paused bool

	listeners []Listener
	sink      SnapshotSink
}

func NewManager(store Store, est *estimate.Estimator, cat *catalog.Catalog, log *logrus.Entry) *Manager {
	return &Manager{
		queue: queue.New(),
		est:   est,
		store: store,
		cat:   cat,
		log:   log,
	}
}

// Subscribe registers a listener for status change events. Not safe to call
// concurrently with mutations; wire listeners during startup.
func (m *Manager) Subscribe(l Listener) { m.listeners = append(m.listeners, l) }

// SetSnapshotSink wires the optional snapshot cache. Startup wiring only.
func (m *Manager) SetSnapshotSink(s SnapshotSink) { m.sink = s }

// Restore loads active orders from the store on startup. An order that was
// in_progress when the process died is demoted to the front of the pending
// queue: the robot arm does not survive restarts mid-drink.
func (m *Manager) Restore(ctx context.Context) error {
	active, err := m.store.LoadActiveOrders(ctx)
	if err != nil {
		return errors.Wrap(err, "load active orders")
	}

	m.mu.Lock()
	var demoted []domain.Order
	for _, o := range active {
		if o.Status == domain.StatusInProgress {
			o.Status = domain.StatusPending
			o.StartedAt = nil
			demoted = append(demoted, o)
			continue
		}
		if err := m.queue.Enqueue(o); err != nil {
			m.mu.Unlock()
			return err
		}
	}
	// LoadActiveOrders returns submission order; a demoted order was already
	// being processed and goes back ahead of everything pending.
	for i := len(demoted) - 1; i >= 0; i-- {
		rest := m.queue.PendingIDs()
		if err := m.requeueFront(demoted[i], rest); err != nil {
			m.mu.Unlock()
			return err
		}
	}
	estimates := m.reestimateLocked()
	m.queue.Drain() // boot is not a state change; don't replay events
	m.mu.Unlock()

	for _, o := range demoted {
		if err := m.store.UpdateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "persist demoted order")
		}
	}
	if err := m.store.UpdateEstimates(ctx, estimates); err != nil {
		return errors.Wrap(err, "persist estimates")
	}
	m.log.WithFields(logrus.Fields{"action": "queue_restored", "orders": len(active)}).Info("restored pending orders")
	m.syncSnapshot(ctx)
	return nil
}

// requeueFront rebuilds the pending sequence with o first. Caller holds the
// lock.
func (m *Manager) requeueFront(o domain.Order, pendingIDs []string) error {
	held := make([]domain.Order, 0, len(pendingIDs))
	for _, id := range pendingIDs {
		cur, ok := m.queue.Get(id)
		if !ok {
			continue
		}
		if _, err := m.queue.Cancel(id); err != nil {
			return err
		}
		held = append(held, cur)
	}
	m.queue.Drain() // discard the synthetic cancel/enqueue churn
	if err := m.queue.Enqueue(o); err != nil {
		return err
	}
	for _, h := range held {
		if err := m.queue.Enqueue(h); err != nil {
			return err
		}
	}
	m.queue.Drain()
	return nil
}

// SubmitOrder validates the request, enqueues the order, re-estimates the
// whole queue, persists and returns the stored order with its estimate.
func (m *Manager) SubmitOrder(ctx context.Context, customerName string, items []domain.Item) (domain.Order, error) {
	o, err := domain.NewOrder(customerName, items, time.Now())
	if err != nil {
		return domain.Order{}, err
	}
	if m.cat != nil {
		for _, it := range items {
			r, ok := m.cat.Get(it.RecipeID)
			if !ok || !r.Enabled {
				return domain.Order{}, errors.Wrapf(domain.ErrValidation, "unknown or disabled recipe %s", it.RecipeID)
			}
		}
	}

	m.mu.Lock()
	if err := m.queue.Enqueue(o); err != nil {
		m.mu.Unlock()
		return domain.Order{}, err
	}
	m.reestimateLocked()
	stored, _ := m.queue.Get(o.ID)
	if err := m.store.CreateOrder(ctx, stored); err != nil {
		// Undo the enqueue so memory and store cannot diverge.
		_, _ = m.queue.Cancel(o.ID)
		m.queue.Drain()
		m.mu.Unlock()
		return domain.Order{}, errors.Wrap(err, "persist order")
	}
	if err := m.persistEstimatesLocked(ctx); err != nil {
		m.mu.Unlock()
		return domain.Order{}, err
	}
	evs := m.drainLocked()
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"action": "order_submitted", "order_id": stored.ID, "items": len(items)}).Info("order enqueued")
	m.publish(ctx, evs)
	return stored, nil
}

// Advance promotes the first pending order to in_progress. An empty queue is
// an expected, recoverable condition: ErrEmptyQueue is returned and nothing
// changes.
func (m *Manager) Advance(ctx context.Context) (domain.Order, error) {
	m.mu.Lock()
	if m.paused {
		m.mu.Unlock()
		return domain.Order{}, domain.ErrPaused
	}
	started, err := m.queue.StartNext()
	if err != nil {
		m.mu.Unlock()
		return domain.Order{}, err
	}
	m.reestimateLocked()
	started, _ = m.queue.Get(started.ID)
	if err := m.store.UpdateOrder(ctx, started); err != nil {
		m.mu.Unlock()
		return domain.Order{}, errors.Wrap(err, "persist order start")
	}
	if err := m.persistEstimatesLocked(ctx); err != nil {
		m.mu.Unlock()
		return domain.Order{}, err
	}
	evs := m.drainLocked()
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"action": "order_started", "order_id": started.ID}).Info("order in progress")
	m.publish(ctx, evs)
	return started, nil
}

// FinishCurrent completes the in_progress order, feeds the observed duration
// into the estimator history, re-estimates the remaining queue and returns
// the completed order along with updated estimates for all still-active
// orders.
func (m *Manager) FinishCurrent(ctx context.Context, orderID string) (domain.Order, map[string]time.Time, error) {
	m.mu.Lock()
	done, elapsed, err := m.queue.Complete(orderID)
	if err != nil {
		m.mu.Unlock()
		return domain.Order{}, nil, err
	}
	samples := m.attributeDuration(done, elapsed)
	for _, s := range samples {
		m.est.RecordCompletion(s.recipeID, s.perUnit)
	}
	if err := m.store.UpdateOrder(ctx, done); err != nil {
		m.mu.Unlock()
		return domain.Order{}, nil, errors.Wrap(err, "persist order completion")
	}
	for _, s := range samples {
		if err := m.store.AppendHistorySample(ctx, s.recipeID, s.perUnit); err != nil {
			m.mu.Unlock()
			return domain.Order{}, nil, errors.Wrap(err, "persist history sample")
		}
	}
	estimates := m.reestimateLocked()
	if err := m.persistEstimatesLocked(ctx); err != nil {
		m.mu.Unlock()
		return domain.Order{}, nil, err
	}
	evs := m.drainLocked()
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"action":   "order_completed",
		"order_id": orderID,
		"duration": elapsed.Round(time.Millisecond).String(),
	}).Info("order completed")
	m.publish(ctx, evs)
	return done, estimates, nil
}

// FailCurrent marks the in_progress order as failed. No history sample is
// recorded: a failed run says nothing about how long the drink takes.
func (m *Manager) FailCurrent(ctx context.Context, orderID, reason string) error {
	m.mu.Lock()
	failed, err := m.queue.Fail(orderID, reason)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if err := m.store.UpdateOrder(ctx, failed); err != nil {
		m.mu.Unlock()
		return errors.Wrap(err, "persist order failure")
	}
	m.reestimateLocked()
	if err := m.persistEstimatesLocked(ctx); err != nil {
		m.mu.Unlock()
		return err
	}
	evs := m.drainLocked()
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"action": "order_failed", "order_id": orderID, "reason": reason}).Error("order failed")
	m.publish(ctx, evs)
	return nil
}

// CancelOrder removes a pending or in_progress order.
func (m *Manager) CancelOrder(ctx context.Context, orderID string) error {
	m.mu.Lock()
	cancelled, err := m.queue.Cancel(orderID)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if err := m.store.UpdateOrder(ctx, cancelled); err != nil {
		m.mu.Unlock()
		return errors.Wrap(err, "persist order cancellation")
	}
	m.reestimateLocked()
	if err := m.persistEstimatesLocked(ctx); err != nil {
		m.mu.Unlock()
		return err
	}
	evs := m.drainLocked()
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"action": "order_cancelled", "order_id": orderID}).Info("order cancelled")
	m.publish(ctx, evs)
	return nil
}

// Clear cancels every pending order in one critical section. The in_progress
// order, if any, keeps running; stopping the arm mid-pour is the operator's
// call via FailCurrent.
func (m *Manager) Clear(ctx context.Context) (int, error) {
	m.mu.Lock()
	var cancelled []domain.Order
	for _, id := range m.queue.PendingIDs() {
		o, err := m.queue.Cancel(id)
		if err != nil {
			m.mu.Unlock()
			return len(cancelled), err
		}
		cancelled = append(cancelled, o)
	}
	for _, o := range cancelled {
		if err := m.store.UpdateOrder(ctx, o); err != nil {
			m.mu.Unlock()
			return len(cancelled), errors.Wrap(err, "persist order cancellation")
		}
	}
	m.reestimateLocked()
	if err := m.persistEstimatesLocked(ctx); err != nil {
		m.mu.Unlock()
		return len(cancelled), err
	}
	evs := m.drainLocked()
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"action": "queue_cleared", "cancelled": len(cancelled)}).Warn("queue cleared")
	m.publish(ctx, evs)
	return len(cancelled), nil
}

// Pause stops Advance from promoting orders. Submissions stay open.
func (m *Manager) Pause(ctx context.Context) {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
	m.log.WithField("action", "queue_paused").Warn("queue processing paused")
	m.syncSnapshot(ctx)
}

func (m *Manager) Resume(ctx context.Context) {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
	m.log.WithField("action", "queue_resumed").Info("queue processing resumed")
	m.syncSnapshot(ctx)
}

// Estimates returns the stored completion estimate for every active order.
// Estimates are anchored at the last mutation, so repeated reads without an
// intervening mutation return identical results.
func (m *Manager) Estimates() map[string]time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]time.Time)
	for _, o := range m.queue.Snapshot() {
		if o.EstimatedCompletion != nil {
			out[o.ID] = *o.EstimatedCompletion
		}
	}
	return out
}

// Lookup returns a copy of an active order together with its queue position
// (0 = in progress, 1 = next up).
func (m *Manager) Lookup(orderID string) (domain.Order, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.queue.Get(orderID)
	if !ok {
		return domain.Order{}, -1, errors.Wrapf(domain.ErrNotFound, "order %s", orderID)
	}
	return o, m.queue.Position(orderID), nil
}

// Status returns a consistent snapshot of queue state.
func (m *Manager) Status() StatusSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() StatusSnapshot {
	orders := m.queue.Snapshot()
	return StatusSnapshot{
		Paused:         m.paused,
		Processing:     m.queue.CurrentID() != "",
		CurrentOrderID: m.queue.CurrentID(),
		QueueLength:    m.queue.Len(),
		Orders:         orders,
		UpdatedAt:      time.Now().UTC(),
	}
}

// reestimateLocked recomputes estimates for the whole queue and stores them
// on the orders. Caller holds the write lock.
func (m *Manager) reestimateLocked() map[string]time.Time {
	estimates := m.est.Estimate(m.queue.Snapshot())
	for id, at := range estimates {
		m.queue.SetEstimate(id, at)
	}
	return estimates
}

func (m *Manager) persistEstimatesLocked(ctx context.Context) error {
	estimates := make(map[string]time.Time)
	for _, o := range m.queue.Snapshot() {
		if o.EstimatedCompletion != nil {
			estimates[o.ID] = *o.EstimatedCompletion
		}
	}
	if len(estimates) == 0 {
		return nil
	}
	return errors.Wrap(m.store.UpdateEstimates(ctx, estimates), "persist estimates")
}

// drainLocked takes the queue's change events and patches in the estimate
// computed after the transition, so subscribers always see the fresh value.
func (m *Manager) drainLocked() []domain.StatusEvent {
	evs := m.queue.Drain()
	for i := range evs {
		if o, ok := m.queue.Get(evs[i].OrderID); ok {
			evs[i].EstimatedCompletion = o.EstimatedCompletion
		}
	}
	return evs
}

func (m *Manager) publish(ctx context.Context, evs []domain.StatusEvent) {
	for _, ev := range evs {
		for _, l := range m.listeners {
			l.Notify(ev)
		}
	}
	m.syncSnapshot(ctx)
}

func (m *Manager) syncSnapshot(ctx context.Context) {
	if m.sink == nil {
		return
	}
	m.sink.Store(ctx, m.Status())
}

type recipeSample struct {
	recipeID string
	perUnit  time.Duration
}

// attributeDuration splits an observed order duration into per-unit recipe
// samples, proportionally to each item's expected share. An order of unknown
// total expectation is split evenly across units.
func (m *Manager) attributeDuration(o domain.Order, elapsed time.Duration) []recipeSample {
	var totalExpected time.Duration
	var totalUnits int
	for _, it := range o.Items {
		totalExpected += m.est.ExpectedRecipe(it.RecipeID) * time.Duration(it.Quantity)
		totalUnits += it.Quantity
	}
	out := make([]recipeSample, 0, len(o.Items))
	for _, it := range o.Items {
		var perUnit time.Duration
		if totalExpected > 0 {
			share := float64(m.est.ExpectedRecipe(it.RecipeID)*time.Duration(it.Quantity)) / float64(totalExpected)
			perUnit = time.Duration(share * float64(elapsed) / float64(it.Quantity))
		} else if totalUnits > 0 {
			perUnit = elapsed / time.Duration(totalUnits)
		}
		out = append(out, recipeSample{recipeID: it.RecipeID, perUnit: perUnit})
	}
	return out
}
