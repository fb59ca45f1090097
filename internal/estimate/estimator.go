// Package estimate predicts completion times for queued orders from
// historical processing durations.
package estimate

import (
	"time"

	"kiosk-system/internal/domain"
)

// DurationSource supplies the expected processing duration for a recipe when
// no history exists yet. The recipe catalog implements it.
type DurationSource interface {
	ExpectedDuration(recipeID string) (time.Duration, bool)
}

type ewma struct {
	avg     time.Duration
	samples int
}

// Estimator keeps an exponentially weighted moving average of processing
// duration per recipe. History is append-only; old data decays rather than
// being pruned.
//
// Fallback chain for a recipe with no samples: catalog expected duration,
// then the configured global default.
type Estimator struct {
	decay      float64
	defaultDur time.Duration
	catalog    DurationSource
	history    map[string]*ewma

	now func() time.Time
}

// New builds an estimator. decay is the weight kept from the previous average
// on each new sample; values outside (0,1) fall back to 0.8.
func New(catalog DurationSource, defaultDur time.Duration, decay float64) *Estimator {
	if decay <= 0 || decay >= 1 {
		decay = 0.8
	}
	if defaultDur <= 0 {
		defaultDur = time.Minute
	}
	return &Estimator{
		decay:      decay,
		defaultDur: defaultDur,
		catalog:    catalog,
		history:    make(map[string]*ewma),
	}
}

// RecordCompletion appends a historical sample for one unit of a recipe.
func (e *Estimator) RecordCompletion(recipeID string, d time.Duration) {
	if d < 0 {
		d = 0
	}
	h, ok := e.history[recipeID]
	if !ok {
		// Seed with the first observation rather than blending it with the
		// catalog default.
		e.history[recipeID] = &ewma{avg: d, samples: 1}
		return
	}
	h.avg = time.Duration(e.decay*float64(h.avg) + (1-e.decay)*float64(d))
	h.samples++
}

// ExpectedRecipe returns the expected processing duration for one unit of a
// recipe.
func (e *Estimator) ExpectedRecipe(recipeID string) time.Duration {
	if h, ok := e.history[recipeID]; ok {
		return h.avg
	}
	if e.catalog != nil {
		if d, ok := e.catalog.ExpectedDuration(recipeID); ok {
			return d
		}
	}
	return e.defaultDur
}

// ExpectedOrder returns the expected processing duration for a whole order:
// the sum over items of per-unit recipe duration times quantity.
func (e *Estimator) ExpectedOrder(o domain.Order) time.Duration {
	var total time.Duration
	for _, it := range o.Items {
		total += e.ExpectedRecipe(it.RecipeID) * time.Duration(it.Quantity)
	}
	return total
}

// Samples reports how many completions have been recorded for a recipe.
func (e *Estimator) Samples(recipeID string) int {
	if h, ok := e.history[recipeID]; ok {
		return h.samples
	}
	return 0
}

// Estimate computes the estimated completion timestamp for every order in the
// snapshot. The snapshot must be in processing order, the in_progress order
// first. Cumulative wait for an order is the sum of expected durations of all
// orders ahead of it plus its own; the in_progress order contributes its
// remaining time, floored at zero.
//
// Estimate is pure over snapshot and clock: repeated calls without an
// intervening mutation return identical results.
func (e *Estimator) Estimate(snapshot []domain.Order) map[string]time.Time {
	clock := e.now
	if clock == nil {
		clock = time.Now
	}
	now := clock().UTC()

	out := make(map[string]time.Time, len(snapshot))
	var cumulative time.Duration
	for _, o := range snapshot {
		expected := e.ExpectedOrder(o)
		if o.Status == domain.StatusInProgress && o.StartedAt != nil {
			remaining := expected - now.Sub(*o.StartedAt)
			if remaining < 0 {
				remaining = 0
			}
			cumulative += remaining
		} else {
			cumulative += expected
		}
		out[o.ID] = now.Add(cumulative)
	}
	return out
}
