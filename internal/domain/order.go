package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusInProgress OrderStatus = "in_progress"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
	StatusFailed     OrderStatus = "failed"
)

// Terminal reports whether no further transitions are permitted from s.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Item is a line of an order: a recipe reference plus quantity. Immutable once
// attached to an Order.
type Item struct {
	RecipeID string `json:"recipe_id"`
	Quantity int    `json:"quantity"`
}

// Order is a customer request tracked through its lifecycle. Only the queue
// manager mutates an Order after construction.
type Order struct {
	ID           string
	CustomerName string
	Items        []Item
	Status       OrderStatus

	SubmittedAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	// Duration is the observed processing time, set when the order leaves
	// in_progress. Zero until then.
	Duration time.Duration

	// EstimatedCompletion is nil until the estimator has run for this order.
	EstimatedCompletion *time.Time

	// ErrorMessage is set only for failed orders.
	ErrorMessage string
}

// NewOrder validates the request at the boundary and mints an identifier.
// Malformed orders never reach queue logic.
func NewOrder(customerName string, items []Item, now time.Time) (Order, error) {
	if len(items) == 0 {
		return Order{}, fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	for i, it := range items {
		if strings.TrimSpace(it.RecipeID) == "" {
			return Order{}, fmt.Errorf("%w: item %d has no recipe", ErrValidation, i)
		}
		if it.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: invalid quantity for recipe %s", ErrValidation, it.RecipeID)
		}
	}
	return Order{
		ID:           uuid.New().String(),
		CustomerName: strings.TrimSpace(customerName),
		Items:        items,
		Status:       StatusPending,
		SubmittedAt:  now.UTC(),
	}, nil
}
