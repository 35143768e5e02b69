package domain

import "time"

type EventType string

const (
	BookingCommittedEvent EventType = "booking.committed"
	BookingCancelledEvent EventType = "booking.cancelled"
)

// Event is the outbound notification shape. Emission happens after the
// owning transaction committed and is best-effort; delivery retries belong to
// the dispatcher, not to the coordinators.
type Event struct {
	Type        EventType  `json:"type"`
	BookingID   string     `json:"booking_id"`
	BuyerID     string     `json:"buyer_id,omitempty"`
	RequesterID string     `json:"requester_id,omitempty"`
	Lines       []LineItem `json:"line_items,omitempty"`
	TotalPrice  int64      `json:"total_price,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

// CommittedEvent builds the event emitted after a successful booking.
func CommittedEvent(b *Booking, now time.Time) Event {
	return Event{
		Type:       BookingCommittedEvent,
		BookingID:  b.ID,
		BuyerID:    b.BuyerID,
		Lines:      b.Lines,
		TotalPrice: b.TotalPrice,
		OccurredAt: now,
	}
}

// CancelledEvent builds the event emitted after a successful cancellation.
func CancelledEvent(bookingID, requesterID string, now time.Time) Event {
	return Event{
		Type:        BookingCancelledEvent,
		BookingID:   bookingID,
		RequesterID: requesterID,
		OccurredAt:  now,
	}
}
