package port

import (
	"context"

	"github.com/tickethub/booking-engine/internal/core/domain"
)

// BookingStore is the durable store behind the booking engine. InTx runs fn
// inside one atomic unit: every mutation made through the BookingTx becomes
// visible to other operations entirely or not at all. Any error from fn (or
// from commit) rolls the unit back and is returned unchanged, except that
// storage faults surface as *domain.PersistenceError.
type BookingStore interface {
	InTx(ctx context.Context, fn func(tx BookingTx) error) error

	// GetTicket reads a ticket outside any transaction. Returns
	// *domain.ItemNotFoundError for an unknown item.
	GetTicket(ctx context.Context, itemID string) (*domain.Ticket, error)

	// GetBooking reads a committed booking with its line items in insertion
	// order. Returns domain.ErrBookingNotFound if absent.
	GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error)

	// UpsertTicket creates or replaces a ticket listing.
	UpsertTicket(ctx context.Context, t domain.Ticket) error
}

// BookingTx is the handle coordinators use inside an atomic unit.
//
// LockTicket serializes all access to the item for the remainder of the
// transaction; callers locking more than one item must lock in ascending
// ItemID order, which is the deadlock-avoidance discipline for concurrent
// multi-item bookings.
type BookingTx interface {
	LockTicket(ctx context.Context, itemID string) (*domain.Ticket, error)

	// DeductStock decrements availability, failing with
	// *domain.InsufficientInventoryError when the item holds less than qty.
	// The item must already be locked by this transaction.
	DeductStock(ctx context.Context, itemID string, qty int) error

	// RestoreStock increments availability. No upper bound is enforced.
	RestoreStock(ctx context.Context, itemID string, qty int) error

	InsertBooking(ctx context.Context, b *domain.Booking) error

	// GetBookingForUpdate loads a booking and locks it against concurrent
	// cancellation. Returns domain.ErrBookingNotFound if absent.
	GetBookingForUpdate(ctx context.Context, bookingID string) (*domain.Booking, error)

	// DeleteBooking removes the booking and its line items.
	DeleteBooking(ctx context.Context, bookingID string) error
}
