// Package catalog holds the drink menu: recipe identifiers, prices and the
// expected processing duration the estimator falls back to when a recipe has
// no completion history.
package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type Recipe struct {
	ID       string
	Name     string
	Price    float64
	Expected time.Duration
	Enabled  bool
}

// Source lists recipes from the backing store.
type Source interface {
	ListRecipes(ctx context.Context) ([]Recipe, error)
}

// Catalog is an in-memory view of the recipes table, loaded at startup and
// safe for concurrent lookups.
type Catalog struct {
	mu      sync.RWMutex
	recipes map[string]Recipe
}

func Load(ctx context.Context, src Source) (*Catalog, error) {
	recipes, err := src.ListRecipes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "catalog: load recipes")
	}
	c := &Catalog{recipes: make(map[string]Recipe, len(recipes))}
	for _, r := range recipes {
		c.recipes[r.ID] = r
	}
	return c, nil
}

// NewStatic builds a catalog from a fixed recipe list. Used in tests and when
// running without a database.
func NewStatic(recipes []Recipe) *Catalog {
	c := &Catalog{recipes: make(map[string]Recipe, len(recipes))}
	for _, r := range recipes {
		c.recipes[r.ID] = r
	}
	return c
}

func (c *Catalog) Get(recipeID string) (Recipe, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.recipes[recipeID]
	return r, ok
}

// ExpectedDuration implements estimate.DurationSource.
func (c *Catalog) ExpectedDuration(recipeID string) (time.Duration, bool) {
	r, ok := c.Get(recipeID)
	if !ok || r.Expected <= 0 {
		return 0, false
	}
	return r.Expected, true
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.recipes)
}
