package domain

import "errors"

// Domain errors surfaced to callers. All of them are recoverable: the API layer
// maps them to 4xx responses and the process keeps running.
var (
	ErrDuplicateOrder = errors.New("order already in queue")
	ErrEmptyQueue     = errors.New("no pending orders")
	ErrResourceBusy   = errors.New("another order is in progress")
	ErrNotFound       = errors.New("order not found")
	ErrInvalidState   = errors.New("invalid order state for this operation")
	ErrValidation     = errors.New("invalid order")
	ErrPaused         = errors.New("queue processing is paused")
)
