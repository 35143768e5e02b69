package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tickethub/booking-engine/internal/core/domain"
	"github.com/tickethub/booking-engine/internal/port"
)

// MySQLAdapter implements port.BookingStore on top of InnoDB transactions.
// Row locks taken by SELECT ... FOR UPDATE provide the per-item
// serialization; the coordinator's ascending lock order keeps concurrent
// multi-item bookings out of deadlock.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) InTx(ctx context.Context, fn func(tx port.BookingTx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.PersistenceError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback()

	if err := fn(&mysqlTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &domain.PersistenceError{Op: "commit", Err: err}
	}
	return nil
}

func (m *MySQLAdapter) GetTicket(ctx context.Context, itemID string) (*domain.Ticket, error) {
	return scanTicket(m.db.QueryRowContext(ctx, `
		SELECT item_id, name, unit_price, available, created_at, updated_at
		FROM tickets WHERE item_id = ?`, itemID), itemID)
}

func (m *MySQLAdapter) GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	var b domain.Booking
	err := m.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, total_price, created_at
		FROM bookings WHERE id = ?`, bookingID,
	).Scan(&b.ID, &b.BuyerID, &b.TotalPrice, &b.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "query booking", Err: err}
	}

	b.Lines, err = queryLines(ctx, m.db, bookingID)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (m *MySQLAdapter) UpsertTicket(ctx context.Context, t domain.Ticket) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO tickets (item_id, name, unit_price, available, created_at, updated_at)
		VALUES (?, ?, ?, ?, NOW(6), NOW(6))
		ON DUPLICATE KEY UPDATE name = VALUES(name), unit_price = VALUES(unit_price),
			available = VALUES(available), updated_at = NOW(6)`,
		t.ItemID, t.Name, t.UnitPrice, t.Available,
	)
	if err != nil {
		return &domain.PersistenceError{Op: "upsert ticket", Err: err}
	}
	return nil
}

type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) LockTicket(ctx context.Context, itemID string) (*domain.Ticket, error) {
	return scanTicket(t.tx.QueryRowContext(ctx, `
		SELECT item_id, name, unit_price, available, created_at, updated_at
		FROM tickets WHERE item_id = ? FOR UPDATE`, itemID), itemID)
}

func (t *mysqlTx) DeductStock(ctx context.Context, itemID string, qty int) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE tickets
		SET available = available - ?, updated_at = NOW(6)
		WHERE item_id = ? AND available >= ?`,
		qty, itemID, qty,
	)
	if err != nil {
		return &domain.PersistenceError{Op: "deduct stock", Err: err}
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var available int
		err := t.tx.QueryRowContext(ctx,
			`SELECT available FROM tickets WHERE item_id = ?`, itemID,
		).Scan(&available)
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.ItemNotFoundError{ItemID: itemID}
		}
		if err != nil {
			return &domain.PersistenceError{Op: "read availability", Err: err}
		}
		return &domain.InsufficientInventoryError{ItemID: itemID, Requested: qty, Available: available}
	}
	return nil
}

func (t *mysqlTx) RestoreStock(ctx context.Context, itemID string, qty int) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE tickets
		SET available = available + ?, updated_at = NOW(6)
		WHERE item_id = ?`,
		qty, itemID,
	)
	if err != nil {
		return &domain.PersistenceError{Op: "restore stock", Err: err}
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &domain.ItemNotFoundError{ItemID: itemID}
	}
	return nil
}

func (t *mysqlTx) InsertBooking(ctx context.Context, b *domain.Booking) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO bookings (id, buyer_id, total_price, created_at)
		VALUES (?, ?, ?, ?)`,
		b.ID, b.BuyerID, b.TotalPrice, b.CreatedAt,
	)
	if err != nil {
		return &domain.PersistenceError{Op: "insert booking", Err: err}
	}

	for i, li := range b.Lines {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO booking_lines (booking_id, line_no, item_id, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)`,
			b.ID, i, li.ItemID, li.Quantity, li.UnitPrice,
		)
		if err != nil {
			return &domain.PersistenceError{Op: "insert booking line", Err: err}
		}
	}
	return nil
}

func (t *mysqlTx) GetBookingForUpdate(ctx context.Context, bookingID string) (*domain.Booking, error) {
	var b domain.Booking
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, buyer_id, total_price, created_at
		FROM bookings WHERE id = ? FOR UPDATE`, bookingID,
	).Scan(&b.ID, &b.BuyerID, &b.TotalPrice, &b.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "query booking", Err: err}
	}

	b.Lines, err = queryLines(ctx, t.tx, bookingID)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (t *mysqlTx) DeleteBooking(ctx context.Context, bookingID string) error {
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM booking_lines WHERE booking_id = ?`, bookingID); err != nil {
		return &domain.PersistenceError{Op: "delete booking lines", Err: err}
	}
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM bookings WHERE id = ?`, bookingID); err != nil {
		return &domain.PersistenceError{Op: "delete booking", Err: err}
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryLines(ctx context.Context, q querier, bookingID string) ([]domain.LineItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT item_id, quantity, unit_price
		FROM booking_lines WHERE booking_id = ? ORDER BY line_no`, bookingID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "query booking lines", Err: err}
	}
	defer rows.Close()

	var lines []domain.LineItem
	for rows.Next() {
		var li domain.LineItem
		if err := rows.Scan(&li.ItemID, &li.Quantity, &li.UnitPrice); err != nil {
			return nil, &domain.PersistenceError{Op: "scan booking line", Err: err}
		}
		lines = append(lines, li)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "iterate booking lines", Err: err}
	}
	return lines, nil
}

func scanTicket(row *sql.Row, itemID string) (*domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(&t.ItemID, &t.Name, &t.UnitPrice, &t.Available, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ItemNotFoundError{ItemID: itemID}
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: fmt.Sprintf("query ticket %s", itemID), Err: err}
	}
	return &t, nil
}
