package domain

import (
	"time"

	"github.com/google/uuid"
)

// CancelWindow is the fixed grace period after creation during which a
// booking may still be cancelled.
const CancelWindow = 24 * time.Hour

// LineItem is one (item, quantity) entry of a booking. UnitPrice is the
// price captured at reservation time; later price changes on the ticket do
// not touch it.
type LineItem struct {
	ItemID    string `json:"item_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// Subtotal returns quantity times the captured unit price.
func (li LineItem) Subtotal() int64 {
	return int64(li.Quantity) * li.UnitPrice
}

// Booking is the persisted result of a successful reservation. It owns its
// line items: deleting the booking deletes them too. Once committed a booking
// is immutable except for cancellation.
type Booking struct {
	ID         string
	BuyerID    string
	TotalPrice int64
	Lines      []LineItem
	CreatedAt  time.Time
}

// NewBooking builds a booking from captured line items, deriving the total.
// It enforces the aggregate invariants: at least one line, every quantity
// positive.
func NewBooking(buyerID string, lines []LineItem, now time.Time) (*Booking, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyRequest
	}
	var total int64
	for _, li := range lines {
		if li.Quantity <= 0 {
			return nil, &InvalidQuantityError{ItemID: li.ItemID, Quantity: li.Quantity}
		}
		total += li.Subtotal()
	}

	return &Booking{
		ID:         uuid.NewString(),
		BuyerID:    buyerID,
		TotalPrice: total,
		Lines:      lines,
		CreatedAt:  now,
	}, nil
}

// CancelDeadline returns the instant after which cancellation is refused.
func (b *Booking) CancelDeadline() time.Time {
	return b.CreatedAt.Add(CancelWindow)
}

// Cancellable reports whether the booking may still be cancelled at now.
func (b *Booking) Cancellable(now time.Time) bool {
	return now.Before(b.CancelDeadline())
}
