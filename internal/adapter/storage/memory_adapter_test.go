package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tickethub/booking-engine/internal/core/domain"
	"github.com/tickethub/booking-engine/internal/port"
)

func seedTicket(t *testing.T, store *MemoryAdapter, itemID string, price int64, available int) {
	t.Helper()
	err := store.UpsertTicket(context.Background(), domain.Ticket{
		ItemID:    itemID,
		Name:      itemID,
		UnitPrice: price,
		Available: available,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed %s: %v", itemID, err)
	}
}

func TestMemory_DeductAndRestore(t *testing.T) {
	store := NewMemoryAdapter()
	ctx := context.Background()
	seedTicket(t, store, "t1", 1000, 10)

	err := store.InTx(ctx, func(tx port.BookingTx) error {
		if err := tx.DeductStock(ctx, "t1", 4); err != nil {
			return err
		}
		return tx.RestoreStock(ctx, "t1", 1)
	})
	if err != nil {
		t.Fatalf("tx failed: %v", err)
	}

	tk, err := store.GetTicket(ctx, "t1")
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if tk.Available != 7 {
		t.Errorf("expected availability 7, got %d", tk.Available)
	}
}

func TestMemory_DeductInsufficient(t *testing.T) {
	store := NewMemoryAdapter()
	ctx := context.Background()
	seedTicket(t, store, "t1", 1000, 2)

	err := store.InTx(ctx, func(tx port.BookingTx) error {
		return tx.DeductStock(ctx, "t1", 3)
	})

	var insufficient *domain.InsufficientInventoryError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientInventoryError, got: %v", err)
	}
	if insufficient.Requested != 3 || insufficient.Available != 2 {
		t.Errorf("unexpected detail: %+v", insufficient)
	}

	tk, _ := store.GetTicket(ctx, "t1")
	if tk.Available != 2 {
		t.Errorf("failed tx must not change availability, got %d", tk.Available)
	}
}

func TestMemory_RollbackUndoesAllMutations(t *testing.T) {
	store := NewMemoryAdapter()
	ctx := context.Background()
	seedTicket(t, store, "t1", 1000, 10)
	seedTicket(t, store, "t2", 2000, 10)

	boom := errors.New("boom")
	err := store.InTx(ctx, func(tx port.BookingTx) error {
		if err := tx.DeductStock(ctx, "t1", 3); err != nil {
			return err
		}
		if err := tx.DeductStock(ctx, "t2", 5); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got: %v", err)
	}

	for _, itemID := range []string{"t1", "t2"} {
		tk, _ := store.GetTicket(ctx, itemID)
		if tk.Available != 10 {
			t.Errorf("%s: expected availability 10 after rollback, got %d", itemID, tk.Available)
		}
	}
}

func TestMemory_BookingLifecycle(t *testing.T) {
	store := NewMemoryAdapter()
	ctx := context.Background()

	booking := &domain.Booking{
		ID:         "b-1",
		BuyerID:    "buyer-1",
		TotalPrice: 3000,
		Lines: []domain.LineItem{
			{ItemID: "t1", Quantity: 3, UnitPrice: 1000},
		},
		CreatedAt: time.Now(),
	}

	err := store.InTx(ctx, func(tx port.BookingTx) error {
		return tx.InsertBooking(ctx, booking)
	})
	if err != nil {
		t.Fatalf("insert tx failed: %v", err)
	}

	got, err := store.GetBooking(ctx, "b-1")
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	if got.TotalPrice != 3000 || len(got.Lines) != 1 {
		t.Errorf("unexpected booking: %+v", got)
	}

	// Mutating the returned aggregate must not touch the stored copy.
	got.Lines[0].Quantity = 99
	again, _ := store.GetBooking(ctx, "b-1")
	if again.Lines[0].Quantity != 3 {
		t.Error("stored booking leaked a mutable reference")
	}

	err = store.InTx(ctx, func(tx port.BookingTx) error {
		if _, err := tx.GetBookingForUpdate(ctx, "b-1"); err != nil {
			return err
		}
		return tx.DeleteBooking(ctx, "b-1")
	})
	if err != nil {
		t.Fatalf("delete tx failed: %v", err)
	}

	if _, err := store.GetBooking(ctx, "b-1"); !errors.Is(err, domain.ErrBookingNotFound) {
		t.Errorf("expected ErrBookingNotFound after delete, got: %v", err)
	}
}

func TestMemory_DeleteRollbackKeepsBooking(t *testing.T) {
	store := NewMemoryAdapter()
	ctx := context.Background()

	booking := &domain.Booking{ID: "b-1", BuyerID: "buyer-1", CreatedAt: time.Now()}
	store.InTx(ctx, func(tx port.BookingTx) error {
		return tx.InsertBooking(ctx, booking)
	})

	boom := errors.New("boom")
	err := store.InTx(ctx, func(tx port.BookingTx) error {
		if err := tx.DeleteBooking(ctx, "b-1"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got: %v", err)
	}

	if _, err := store.GetBooking(ctx, "b-1"); err != nil {
		t.Errorf("booking must survive a rolled-back delete: %v", err)
	}
}

func TestMemory_UnknownItem(t *testing.T) {
	store := NewMemoryAdapter()
	ctx := context.Background()

	var notFound *domain.ItemNotFoundError

	if _, err := store.GetTicket(ctx, "ghost"); !errors.As(err, &notFound) {
		t.Errorf("expected ItemNotFoundError, got: %v", err)
	}

	err := store.InTx(ctx, func(tx port.BookingTx) error {
		_, err := tx.LockTicket(ctx, "ghost")
		return err
	})
	if !errors.As(err, &notFound) {
		t.Errorf("expected ItemNotFoundError, got: %v", err)
	}
}

func TestMemory_ConcurrentDeducts_Linearizable(t *testing.T) {
	store := NewMemoryAdapter()
	ctx := context.Background()
	seedTicket(t, store, "t1", 1000, 100)

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 300; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.InTx(ctx, func(tx port.BookingTx) error {
				return tx.DeductStock(ctx, "t1", 1)
			})
			if err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != 100 {
		t.Errorf("expected exactly 100 successful deducts, got %d", successCount.Load())
	}

	tk, _ := store.GetTicket(ctx, "t1")
	if tk.Available != 0 {
		t.Errorf("expected availability 0, got %d", tk.Available)
	}
}
