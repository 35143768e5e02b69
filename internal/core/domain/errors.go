package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptyRequest    = errors.New("booking request has no line items")
	ErrBookingNotFound = errors.New("booking not found")
)

// InvalidQuantityError rejects a non-positive requested quantity before any
// state is touched.
type InvalidQuantityError struct {
	ItemID   string
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for item %s", e.Quantity, e.ItemID)
}

// ItemNotFoundError aborts a booking that references an unknown item.
type ItemNotFoundError struct {
	ItemID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %s not found", e.ItemID)
}

// InsufficientInventoryError carries enough detail for the caller to render a
// precise message: which item fell short, what was asked, what was left.
type InsufficientInventoryError struct {
	ItemID    string
	Requested int
	Available int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("item %s has insufficient availability (requested: %d, available: %d)",
		e.ItemID, e.Requested, e.Available)
}

// WindowExpiredError rejects a cancellation attempted after the grace window.
type WindowExpiredError struct {
	BookingID string
	Deadline  time.Time
}

func (e *WindowExpiredError) Error() string {
	return fmt.Sprintf("booking %s can no longer be cancelled (deadline was %s)",
		e.BookingID, e.Deadline.Format(time.RFC3339))
}

// PersistenceError marks a storage-layer fault. The coordinators guarantee a
// failed commit leaves no partial effect, so callers may retry the whole
// operation from scratch.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
