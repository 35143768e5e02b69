package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/tickethub/booking-engine/internal/core/domain"
	"github.com/tickethub/booking-engine/internal/port"
)

var ErrDuplicateRequest = errors.New("duplicate request")

// BookingRequest is one (item, quantity) line of an inbound booking.
type BookingRequest struct {
	ItemID   string
	Quantity int
}

// BookingService is the transaction coordinator: it turns a batch of
// requests into either one committed booking plus the matching inventory
// decrements, or no state change at all. Cancellation mirrors this in
// reverse.
type BookingService struct {
	store      port.BookingStore
	cache      port.CacheRepository
	logger     *zap.Logger
	eventQueue chan domain.Event
}

func NewBookingService(store port.BookingStore, cache port.CacheRepository, logger *zap.Logger, queueSize int) *BookingService {
	return &BookingService{
		store:      store,
		cache:      cache,
		logger:     logger,
		eventQueue: make(chan domain.Event, queueSize),
	}
}

// CreateBooking reserves every requested quantity and records a single
// booking at the captured prices, or commits nothing.
//
// Items are locked in ascending ItemID order regardless of request order;
// two concurrent batches touching the same items therefore serialize at the
// first contended item instead of deadlocking. Prices are read under those
// locks, so the captured unit price and the decrement it pays for come from
// the same atomic unit.
func (s *BookingService) CreateBooking(ctx context.Context, buyerID string, requests []BookingRequest) (*domain.Booking, error) {
	if len(requests) == 0 {
		return nil, domain.ErrEmptyRequest
	}
	for _, r := range requests {
		if r.Quantity <= 0 {
			return nil, &domain.InvalidQuantityError{ItemID: r.ItemID, Quantity: r.Quantity}
		}
	}

	var booking *domain.Booking
	err := s.store.InTx(ctx, func(tx port.BookingTx) error {
		prices := make(map[string]int64, len(requests))
		for _, itemID := range sortedDistinctItems(requests) {
			t, err := tx.LockTicket(ctx, itemID)
			if err != nil {
				return err
			}
			prices[itemID] = t.UnitPrice
		}

		lines := make([]domain.LineItem, 0, len(requests))
		for _, r := range requests {
			if err := tx.DeductStock(ctx, r.ItemID, r.Quantity); err != nil {
				return err
			}
			lines = append(lines, domain.LineItem{
				ItemID:    r.ItemID,
				Quantity:  r.Quantity,
				UnitPrice: prices[r.ItemID],
			})
		}

		b, err := domain.NewBooking(buyerID, lines, time.Now())
		if err != nil {
			return err
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.refreshAvailability(ctx, booking.Lines)
	s.emit(domain.CommittedEvent(booking, time.Now()))
	return booking, nil
}

// CancelBooking reverses a booking's effect on inventory if now is still
// inside the grace window. Restocks and booking removal commit as one atomic
// unit; a rejected or failed cancellation leaves everything untouched.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, requesterID string, now time.Time) error {
	var cancelled *domain.Booking
	err := s.store.InTx(ctx, func(tx port.BookingTx) error {
		b, err := tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if !b.Cancellable(now) {
			return &domain.WindowExpiredError{BookingID: b.ID, Deadline: b.CancelDeadline()}
		}

		for _, itemID := range sortedLineItems(b.Lines) {
			if _, err := tx.LockTicket(ctx, itemID); err != nil {
				return err
			}
		}
		for _, li := range b.Lines {
			if err := tx.RestoreStock(ctx, li.ItemID, li.Quantity); err != nil {
				return err
			}
		}
		if err := tx.DeleteBooking(ctx, b.ID); err != nil {
			return err
		}
		cancelled = b
		return nil
	})
	if err != nil {
		return err
	}

	s.refreshAvailability(ctx, cancelled.Lines)
	s.emit(domain.CancelledEvent(bookingID, requesterID, time.Now()))
	return nil
}

// GetBooking loads a committed booking. Authorization happens upstream.
func (s *BookingService) GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	return s.store.GetBooking(ctx, bookingID)
}

// CreateTicket lists (or relists) an inventory item.
func (s *BookingService) CreateTicket(ctx context.Context, t domain.Ticket) error {
	if err := s.store.UpsertTicket(ctx, t); err != nil {
		return err
	}
	if err := s.cache.SetAvailability(ctx, t.ItemID, t.Available); err != nil {
		s.logger.Warn("availability cache refresh failed",
			zap.String("item_id", t.ItemID), zap.Error(err))
	}
	return nil
}

// GetTicket reads a ticket, serving availability from cache when possible.
func (s *BookingService) GetTicket(ctx context.Context, itemID string) (*domain.Ticket, error) {
	t, err := s.store.GetTicket(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if avail, ok, cacheErr := s.cache.GetAvailability(ctx, itemID); cacheErr == nil && ok {
		t.Available = avail
	}
	return t, nil
}

// ClaimRequest claims a caller-supplied request id so that a blind retry of
// an already-committed booking is rejected instead of re-run.
func (s *BookingService) ClaimRequest(ctx context.Context, requestID string) error {
	key := fmt.Sprintf("booking-request:%s", requestID)
	ok, err := s.cache.SetIdempotency(ctx, key)
	if err != nil {
		return fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return ErrDuplicateRequest
	}
	return nil
}

// Events exposes committed/cancelled events for the dispatcher.
func (s *BookingService) Events() <-chan domain.Event {
	return s.eventQueue
}

func (s *BookingService) Close() {
	close(s.eventQueue)
}

// emit hands an event to the dispatch queue. Emission is outside the atomic
// unit: a full queue drops the event rather than failing or delaying the
// committed transaction.
func (s *BookingService) emit(event domain.Event) {
	select {
	case s.eventQueue <- event:
	default:
		s.logger.Warn("event queue full, dropping event",
			zap.String("type", string(event.Type)),
			zap.String("booking_id", event.BookingID))
	}
}

func (s *BookingService) refreshAvailability(ctx context.Context, lines []domain.LineItem) {
	for _, li := range lines {
		t, err := s.store.GetTicket(ctx, li.ItemID)
		if err != nil {
			s.logger.Warn("availability read-back failed",
				zap.String("item_id", li.ItemID), zap.Error(err))
			continue
		}
		if err := s.cache.SetAvailability(ctx, li.ItemID, t.Available); err != nil {
			s.logger.Warn("availability cache refresh failed",
				zap.String("item_id", li.ItemID), zap.Error(err))
		}
	}
}

func sortedDistinctItems(requests []BookingRequest) []string {
	seen := make(map[string]bool, len(requests))
	items := make([]string, 0, len(requests))
	for _, r := range requests {
		if !seen[r.ItemID] {
			seen[r.ItemID] = true
			items = append(items, r.ItemID)
		}
	}
	sort.Strings(items)
	return items
}

func sortedLineItems(lines []domain.LineItem) []string {
	seen := make(map[string]bool, len(lines))
	items := make([]string, 0, len(lines))
	for _, li := range lines {
		if !seen[li.ItemID] {
			seen[li.ItemID] = true
			items = append(items, li.ItemID)
		}
	}
	sort.Strings(items)
	return items
}
