package storage

import (
	"context"
	"sync"

	"github.com/tickethub/booking-engine/internal/core/domain"
	"github.com/tickethub/booking-engine/internal/port"
)

// MemoryAdapter implements port.BookingStore entirely in process. Each item
// carries its own mutex, held from LockTicket until the transaction ends, so
// reserve/release calls on one item are linearizable while distinct items
// proceed concurrently. Mutations are applied in place with an undo log that
// rolls them back when the transaction fails.
//
// Used by tests and by single-node setups that do not need durability.
type MemoryAdapter struct {
	mu       sync.Mutex
	tickets  map[string]*memTicket
	bookings map[string]*memBooking
}

type memTicket struct {
	mu sync.Mutex
	t  domain.Ticket
}

type memBooking struct {
	mu      sync.Mutex
	b       domain.Booking
	deleted bool
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		tickets:  make(map[string]*memTicket),
		bookings: make(map[string]*memBooking),
	}
}

func (m *MemoryAdapter) InTx(ctx context.Context, fn func(tx port.BookingTx) error) error {
	tx := &memoryTx{
		store:   m,
		tickets: make(map[string]*memTicket),
		claimed: make(map[string]*memBooking),
	}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	tx.commit()
	return nil
}

func (m *MemoryAdapter) GetTicket(ctx context.Context, itemID string) (*domain.Ticket, error) {
	m.mu.Lock()
	mt, ok := m.tickets[itemID]
	m.mu.Unlock()
	if !ok {
		return nil, &domain.ItemNotFoundError{ItemID: itemID}
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()
	t := mt.t
	return &t, nil
}

func (m *MemoryAdapter) GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	m.mu.Lock()
	mb, ok := m.bookings[bookingID]
	m.mu.Unlock()
	if !ok {
		return nil, domain.ErrBookingNotFound
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.deleted {
		return nil, domain.ErrBookingNotFound
	}
	b := copyBooking(mb.b)
	return &b, nil
}

func (m *MemoryAdapter) UpsertTicket(ctx context.Context, t domain.Ticket) error {
	m.mu.Lock()
	mt, ok := m.tickets[t.ItemID]
	if !ok {
		m.tickets[t.ItemID] = &memTicket{t: t}
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	mt.mu.Lock()
	mt.t = t
	mt.mu.Unlock()
	return nil
}

type memoryTx struct {
	store   *MemoryAdapter
	tickets map[string]*memTicket  // locked by this tx
	claimed map[string]*memBooking // locked by this tx
	inserts []domain.Booking
	undo    []func()
}

func (tx *memoryTx) LockTicket(ctx context.Context, itemID string) (*domain.Ticket, error) {
	mt, err := tx.lockItem(itemID)
	if err != nil {
		return nil, err
	}
	t := mt.t
	return &t, nil
}

func (tx *memoryTx) DeductStock(ctx context.Context, itemID string, qty int) error {
	mt, err := tx.lockItem(itemID)
	if err != nil {
		return err
	}
	if mt.t.Available < qty {
		return &domain.InsufficientInventoryError{
			ItemID:    itemID,
			Requested: qty,
			Available: mt.t.Available,
		}
	}
	mt.t.Available -= qty
	tx.undo = append(tx.undo, func() { mt.t.Available += qty })
	return nil
}

func (tx *memoryTx) RestoreStock(ctx context.Context, itemID string, qty int) error {
	mt, err := tx.lockItem(itemID)
	if err != nil {
		return err
	}
	mt.t.Available += qty
	tx.undo = append(tx.undo, func() { mt.t.Available -= qty })
	return nil
}

func (tx *memoryTx) InsertBooking(ctx context.Context, b *domain.Booking) error {
	tx.inserts = append(tx.inserts, copyBooking(*b))
	return nil
}

func (tx *memoryTx) GetBookingForUpdate(ctx context.Context, bookingID string) (*domain.Booking, error) {
	if mb, ok := tx.claimed[bookingID]; ok {
		if mb.deleted {
			return nil, domain.ErrBookingNotFound
		}
		b := copyBooking(mb.b)
		return &b, nil
	}

	tx.store.mu.Lock()
	mb, ok := tx.store.bookings[bookingID]
	tx.store.mu.Unlock()
	if !ok {
		return nil, domain.ErrBookingNotFound
	}

	mb.mu.Lock()
	if mb.deleted {
		mb.mu.Unlock()
		return nil, domain.ErrBookingNotFound
	}
	tx.claimed[bookingID] = mb
	b := copyBooking(mb.b)
	return &b, nil
}

func (tx *memoryTx) DeleteBooking(ctx context.Context, bookingID string) error {
	mb, ok := tx.claimed[bookingID]
	if !ok {
		if _, err := tx.GetBookingForUpdate(ctx, bookingID); err != nil {
			return err
		}
		mb = tx.claimed[bookingID]
	}
	mb.deleted = true
	tx.undo = append(tx.undo, func() { mb.deleted = false })
	return nil
}

// lockItem takes the per-item mutex, blocking until the current holder's
// transaction finishes. The coordinator's ascending lock order is what keeps
// two multi-item transactions from waiting on each other in a cycle.
func (tx *memoryTx) lockItem(itemID string) (*memTicket, error) {
	if mt, ok := tx.tickets[itemID]; ok {
		return mt, nil
	}

	tx.store.mu.Lock()
	mt, ok := tx.store.tickets[itemID]
	tx.store.mu.Unlock()
	if !ok {
		return nil, &domain.ItemNotFoundError{ItemID: itemID}
	}

	mt.mu.Lock()
	tx.tickets[itemID] = mt
	return mt, nil
}

func (tx *memoryTx) commit() {
	tx.store.mu.Lock()
	for i := range tx.inserts {
		b := tx.inserts[i]
		tx.store.bookings[b.ID] = &memBooking{b: b}
	}
	for id, mb := range tx.claimed {
		if mb.deleted {
			delete(tx.store.bookings, id)
		}
	}
	tx.store.mu.Unlock()
	tx.unlock()
}

func (tx *memoryTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.unlock()
}

func (tx *memoryTx) unlock() {
	for _, mt := range tx.tickets {
		mt.mu.Unlock()
	}
	for _, mb := range tx.claimed {
		mb.mu.Unlock()
	}
}

func copyBooking(b domain.Booking) domain.Booking {
	lines := make([]domain.LineItem, len(b.Lines))
	copy(lines, b.Lines)
	b.Lines = lines
	return b
}
