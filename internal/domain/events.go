package domain

import "time"

// StatusEvent is published to the dashboard hub whenever the queue manager
// mutates an order. Consumers are read-only.
type StatusEvent struct {
	OrderID             string      `json:"order_id"`
	NewStatus           OrderStatus `json:"new_status"`
	EstimatedCompletion *time.Time  `json:"estimated_completion,omitempty"`
	OccurredAt          time.Time   `json:"occurred_at"`
}
