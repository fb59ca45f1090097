package estimate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiosk-system/internal/catalog"
	"kiosk-system/internal/domain"
)

var testCatalog = catalog.NewStatic([]catalog.Recipe{
	{ID: "grape_juice", Name: "Grape Juice", Expected: 5 * time.Minute, Enabled: true},
	{ID: "lemon_juice", Name: "Lemon Juice", Expected: 3 * time.Minute, Enabled: true},
})

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func pendingOrder(id, recipeID string, qty int) domain.Order {
	return domain.Order{
		ID:     id,
		Items:  []domain.Item{{RecipeID: recipeID, Quantity: qty}},
		Status: domain.StatusPending,
	}
}

func TestFallbackChain(t *testing.T) {
	e := New(testCatalog, time.Minute, 0.8)

	// no history: catalog expected duration
	assert.Equal(t, 5*time.Minute, e.ExpectedRecipe("grape_juice"))
	// unknown recipe: global default
	assert.Equal(t, time.Minute, e.ExpectedRecipe("mystery_juice"))

	// history overrides the catalog
	e.RecordCompletion("grape_juice", 4*time.Minute)
	assert.Equal(t, 4*time.Minute, e.ExpectedRecipe("grape_juice"))
}

func TestEWMADecay(t *testing.T) {
	e := New(testCatalog, time.Minute, 0.8)

	e.RecordCompletion("grape_juice", 100*time.Second) // seeds the average
	e.RecordCompletion("grape_juice", 200*time.Second)

	// 0.8*100s + 0.2*200s = 120s
	assert.Equal(t, 120*time.Second, e.ExpectedRecipe("grape_juice"))
	assert.Equal(t, 2, e.Samples("grape_juice"))
}

func TestExpectedOrderSumsItems(t *testing.T) {
	e := New(testCatalog, time.Minute, 0.8)
	o := domain.Order{Items: []domain.Item{
		{RecipeID: "grape_juice", Quantity: 2},
		{RecipeID: "lemon_juice", Quantity: 1},
	}}
	assert.Equal(t, 13*time.Minute, e.ExpectedOrder(o))
}

func TestEstimateEmptyQueueSingleOrder(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	e := New(testCatalog, time.Minute, 0.8)
	e.now = fixedClock(now)

	est := e.Estimate([]domain.Order{pendingOrder("o1", "grape_juice", 1)})
	assert.Equal(t, now.Add(5*time.Minute), est["o1"])
}

func TestEstimateCumulativeWithInProgress(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	e := New(testCatalog, time.Minute, 0.8)
	e.now = fixedClock(now)

	started := now.Add(-2 * time.Minute)
	current := pendingOrder("o1", "grape_juice", 1)
	current.Status = domain.StatusInProgress
	current.StartedAt = &started

	est := e.Estimate([]domain.Order{
		current,
		pendingOrder("o2", "lemon_juice", 1),
	})

	// o1 has 3 of its 5 minutes left; o2 waits for that plus its own 3.
	assert.Equal(t, now.Add(3*time.Minute), est["o1"])
	assert.Equal(t, now.Add(6*time.Minute), est["o2"])
}

func TestInProgressRemainingFlooredAtZero(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	e := New(testCatalog, time.Minute, 0.8)
	e.now = fixedClock(now)

	started := now.Add(-20 * time.Minute) // way overdue
	current := pendingOrder("o1", "grape_juice", 1)
	current.Status = domain.StatusInProgress
	current.StartedAt = &started

	est := e.Estimate([]domain.Order{
		current,
		pendingOrder("o2", "lemon_juice", 1),
	})
	assert.Equal(t, now, est["o1"])
	assert.Equal(t, now.Add(3*time.Minute), est["o2"])
}

func TestEstimateIdempotent(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	e := New(testCatalog, time.Minute, 0.8)
	e.now = fixedClock(now)

	snap := []domain.Order{
		pendingOrder("o1", "grape_juice", 1),
		pendingOrder("o2", "lemon_juice", 2),
	}
	first := e.Estimate(snap)
	second := e.Estimate(snap)
	assert.Equal(t, first, second)
}

// Walks the full submit/advance/finish timeline from the kiosk's expected
// usage: O1 (5 min drink) is started, O2 (3 min drink) queues behind it, O1
// finishes after 4 observed minutes.
func TestQueueTimelineScenario(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	e := New(testCatalog, time.Minute, 0.8)
	e.now = fixedClock(t0)

	o1 := pendingOrder("o1", "grape_juice", 1)
	est := e.Estimate([]domain.Order{o1})
	assert.Equal(t, t0.Add(5*time.Minute), est["o1"])

	// O1 starts; one minute later O2 arrives.
	t1 := t0.Add(time.Minute)
	e.now = fixedClock(t1)
	started := t0
	o1.Status = domain.StatusInProgress
	o1.StartedAt = &started
	o2 := pendingOrder("o2", "lemon_juice", 1)

	est = e.Estimate([]domain.Order{o1, o2})
	assert.Equal(t, t1.Add(4*time.Minute), est["o1"])                // 4 of 5 minutes left
	assert.Equal(t, t1.Add(4*time.Minute+3*time.Minute), est["o2"]) // behind O1's remainder

	// O1 completes after 4 observed minutes; the sample seeds the average.
	e.RecordCompletion("grape_juice", 4*time.Minute)
	require.Equal(t, 4*time.Minute, e.ExpectedRecipe("grape_juice"))

	t2 := t0.Add(4 * time.Minute)
	e.now = fixedClock(t2)
	est = e.Estimate([]domain.Order{o2})
	assert.Equal(t, t2.Add(3*time.Minute), est["o2"])
}
