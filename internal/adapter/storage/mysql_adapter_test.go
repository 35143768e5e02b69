package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/tickethub/booking-engine/internal/core/domain"
	"github.com/tickethub/booking-engine/internal/port"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/bookings?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	return db
}

func seedMySQLTicket(t *testing.T, adapter *MySQLAdapter, itemID string, price int64, available int) {
	t.Helper()
	err := adapter.UpsertTicket(context.Background(), domain.Ticket{
		ItemID:    itemID,
		Name:      itemID,
		UnitPrice: price,
		Available: available,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", itemID, err)
	}
}

func TestMySQL_CreateBookingFlow(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	itemID := "mysql-test-" + uuid.NewString()[:8]
	seedMySQLTicket(t, adapter, itemID, 1500, 10)

	booking := &domain.Booking{
		ID:         uuid.NewString(),
		BuyerID:    "test-buyer",
		TotalPrice: 4500,
		Lines: []domain.LineItem{
			{ItemID: itemID, Quantity: 3, UnitPrice: 1500},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	err := adapter.InTx(ctx, func(tx port.BookingTx) error {
		tk, err := tx.LockTicket(ctx, itemID)
		if err != nil {
			return err
		}
		if tk.UnitPrice != 1500 {
			t.Errorf("expected locked price 1500, got %d", tk.UnitPrice)
		}
		if err := tx.DeductStock(ctx, itemID, 3); err != nil {
			return err
		}
		return tx.InsertBooking(ctx, booking)
	})
	if err != nil {
		t.Fatalf("booking tx failed: %v", err)
	}

	got, err := adapter.GetBooking(ctx, booking.ID)
	if err != nil {
		t.Fatalf("GetBooking failed: %v", err)
	}
	if got.TotalPrice != 4500 || len(got.Lines) != 1 || got.Lines[0].Quantity != 3 {
		t.Errorf("unexpected booking: %+v", got)
	}

	tk, err := adapter.GetTicket(ctx, itemID)
	if err != nil {
		t.Fatalf("GetTicket failed: %v", err)
	}
	if tk.Available != 7 {
		t.Errorf("expected availability 7, got %d", tk.Available)
	}

	// Cleanup
	adapter.InTx(ctx, func(tx port.BookingTx) error {
		return tx.DeleteBooking(ctx, booking.ID)
	})
	db.ExecContext(ctx, `DELETE FROM tickets WHERE item_id = ?`, itemID)
}

func TestMySQL_DeductInsufficient(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	itemID := "mysql-empty-" + uuid.NewString()[:8]
	seedMySQLTicket(t, adapter, itemID, 1000, 1)

	err := adapter.InTx(ctx, func(tx port.BookingTx) error {
		return tx.DeductStock(ctx, itemID, 2)
	})

	var insufficient *domain.InsufficientInventoryError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientInventoryError, got: %v", err)
	}
	if insufficient.Requested != 2 || insufficient.Available != 1 {
		t.Errorf("unexpected detail: %+v", insufficient)
	}

	tk, _ := adapter.GetTicket(ctx, itemID)
	if tk.Available != 1 {
		t.Errorf("failed tx must not change availability, got %d", tk.Available)
	}

	db.ExecContext(ctx, `DELETE FROM tickets WHERE item_id = ?`, itemID)
}

func TestMySQL_RollbackLeavesNoPartialState(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	itemID := "mysql-rollback-" + uuid.NewString()[:8]
	seedMySQLTicket(t, adapter, itemID, 1000, 5)

	bookingID := uuid.NewString()
	boom := errors.New("boom")

	err := adapter.InTx(ctx, func(tx port.BookingTx) error {
		if err := tx.DeductStock(ctx, itemID, 2); err != nil {
			return err
		}
		booking := &domain.Booking{
			ID:        bookingID,
			BuyerID:   "test-buyer",
			Lines:     []domain.LineItem{{ItemID: itemID, Quantity: 2, UnitPrice: 1000}},
			CreatedAt: time.Now(),
		}
		if err := tx.InsertBooking(ctx, booking); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got: %v", err)
	}

	tk, _ := adapter.GetTicket(ctx, itemID)
	if tk.Available != 5 {
		t.Errorf("expected availability 5 after rollback, got %d", tk.Available)
	}
	if _, err := adapter.GetBooking(ctx, bookingID); !errors.Is(err, domain.ErrBookingNotFound) {
		t.Errorf("expected no booking after rollback, got: %v", err)
	}

	db.ExecContext(ctx, `DELETE FROM tickets WHERE item_id = ?`, itemID)
}

func TestMySQL_CancelFlow(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	itemID := "mysql-cancel-" + uuid.NewString()[:8]
	seedMySQLTicket(t, adapter, itemID, 1000, 3)

	booking := &domain.Booking{
		ID:         uuid.NewString(),
		BuyerID:    "test-buyer",
		TotalPrice: 3000,
		Lines:      []domain.LineItem{{ItemID: itemID, Quantity: 3, UnitPrice: 1000}},
		CreatedAt:  time.Now(),
	}
	err := adapter.InTx(ctx, func(tx port.BookingTx) error {
		if err := tx.DeductStock(ctx, itemID, 3); err != nil {
			return err
		}
		return tx.InsertBooking(ctx, booking)
	})
	if err != nil {
		t.Fatalf("booking tx failed: %v", err)
	}

	err = adapter.InTx(ctx, func(tx port.BookingTx) error {
		b, err := tx.GetBookingForUpdate(ctx, booking.ID)
		if err != nil {
			return err
		}
		for _, li := range b.Lines {
			if err := tx.RestoreStock(ctx, li.ItemID, li.Quantity); err != nil {
				return err
			}
		}
		return tx.DeleteBooking(ctx, b.ID)
	})
	if err != nil {
		t.Fatalf("cancel tx failed: %v", err)
	}

	tk, _ := adapter.GetTicket(ctx, itemID)
	if tk.Available != 3 {
		t.Errorf("expected availability restored to 3, got %d", tk.Available)
	}
	if _, err := adapter.GetBooking(ctx, booking.ID); !errors.Is(err, domain.ErrBookingNotFound) {
		t.Errorf("expected booking gone, got: %v", err)
	}

	db.ExecContext(ctx, `DELETE FROM tickets WHERE item_id = ?`, itemID)
}

func TestMySQL_GetTicket_NotFound(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	adapter := NewMySQLAdapter(db)

	var notFound *domain.ItemNotFoundError
	_, err := adapter.GetTicket(context.Background(), "nonexistent-item")
	if !errors.As(err, &notFound) {
		t.Errorf("expected ItemNotFoundError, got: %v", err)
	}
}
