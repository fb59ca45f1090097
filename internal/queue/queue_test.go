package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiosk-system/internal/domain"
)

func testOrder(t *testing.T, recipeID string) domain.Order {
	t.Helper()
	o, err := domain.NewOrder("alice", []domain.Item{{RecipeID: recipeID, Quantity: 1}}, time.Now())
	require.NoError(t, err)
	return o
}

func TestEnqueueDuplicate(t *testing.T) {
	q := New()
	o := testOrder(t, "grape_juice")

	require.NoError(t, q.Enqueue(o))
	err := q.Enqueue(o)
	assert.ErrorIs(t, err, domain.ErrDuplicateOrder)
	assert.Equal(t, 1, q.Len())
}

func TestStartNextEmpty(t *testing.T) {
	q := New()
	_, err := q.StartNext()
	assert.ErrorIs(t, err, domain.ErrEmptyQueue)
}

func TestStartNextBusy(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(testOrder(t, "grape_juice")))
	require.NoError(t, q.Enqueue(testOrder(t, "lemon_juice")))

	first, err := q.StartNext()
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, first.Status)
	assert.NotNil(t, first.StartedAt)

	_, err = q.StartNext()
	assert.ErrorIs(t, err, domain.ErrResourceBusy)
	assert.Equal(t, first.ID, q.CurrentID())
}

func TestCompleteReturnsElapsed(t *testing.T) {
	q := New()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return base }

	o := testOrder(t, "grape_juice")
	require.NoError(t, q.Enqueue(o))
	_, err := q.StartNext()
	require.NoError(t, err)

	q.now = func() time.Time { return base.Add(4 * time.Minute) }
	done, elapsed, err := q.Complete(o.ID)
	require.NoError(t, err)
	assert.Equal(t, 4*time.Minute, elapsed)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.CurrentID())
}

func TestCompleteNotInProgress(t *testing.T) {
	q := New()
	o := testOrder(t, "grape_juice")
	require.NoError(t, q.Enqueue(o))

	_, _, err := q.Complete(o.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, _, err = q.Complete("nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// State unchanged by the failed calls.
	assert.Equal(t, 1, q.Len())
	got, ok := q.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestCancelPendingAndInProgress(t *testing.T) {
	q := New()
	o1 := testOrder(t, "grape_juice")
	o2 := testOrder(t, "lemon_juice")
	require.NoError(t, q.Enqueue(o1))
	require.NoError(t, q.Enqueue(o2))
	_, err := q.StartNext()
	require.NoError(t, err)

	// in_progress cancel frees the arm
	cancelled, err := q.Cancel(o1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Empty(t, q.CurrentID())

	// pending cancel
	_, err = q.Cancel(o2.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, q.Len())

	// terminal orders are gone
	_, err = q.Cancel(o2.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFail(t *testing.T) {
	q := New()
	o := testOrder(t, "grape_juice")
	require.NoError(t, q.Enqueue(o))
	_, err := q.StartNext()
	require.NoError(t, err)

	failed, err := q.Fail(o.ID, "arm jammed")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, failed.Status)
	assert.Equal(t, "arm jammed", failed.ErrorMessage)
	assert.Equal(t, 0, q.Len())
}

func TestPositions(t *testing.T) {
	q := New()
	o1 := testOrder(t, "grape_juice")
	o2 := testOrder(t, "lemon_juice")
	o3 := testOrder(t, "rose_milk")
	require.NoError(t, q.Enqueue(o1))
	require.NoError(t, q.Enqueue(o2))
	require.NoError(t, q.Enqueue(o3))

	assert.Equal(t, 1, q.Position(o1.ID))
	assert.Equal(t, 3, q.Position(o3.ID))

	_, err := q.StartNext()
	require.NoError(t, err)
	assert.Equal(t, 0, q.Position(o1.ID))
	assert.Equal(t, 1, q.Position(o2.ID))
	assert.Equal(t, -1, q.Position("nope"))
}

func TestSnapshotOrderAndIsolation(t *testing.T) {
	q := New()
	o1 := testOrder(t, "grape_juice")
	o2 := testOrder(t, "lemon_juice")
	require.NoError(t, q.Enqueue(o1))
	require.NoError(t, q.Enqueue(o2))
	_, err := q.StartNext()
	require.NoError(t, err)

	snap := q.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, o1.ID, snap[0].ID)
	assert.Equal(t, domain.StatusInProgress, snap[0].Status)
	assert.Equal(t, o2.ID, snap[1].ID)

	// Mutating the snapshot must not touch queue state.
	snap[1].Status = domain.StatusCompleted
	got, _ := q.Get(o2.ID)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestEventsEmittedPerTransition(t *testing.T) {
	q := New()
	o := testOrder(t, "grape_juice")
	require.NoError(t, q.Enqueue(o))
	_, err := q.StartNext()
	require.NoError(t, err)
	_, _, err = q.Complete(o.ID)
	require.NoError(t, err)

	evs := q.Drain()
	require.Len(t, evs, 3)
	assert.Equal(t, domain.StatusPending, evs[0].NewStatus)
	assert.Equal(t, domain.StatusInProgress, evs[1].NewStatus)
	assert.Equal(t, domain.StatusCompleted, evs[2].NewStatus)

	assert.Empty(t, q.Drain())
}
