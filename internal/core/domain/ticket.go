package domain

import "time"

// Ticket is one sellable inventory record. Available never goes negative and
// only changes through the store's atomic deduct/restore operations.
// UnitPrice is in minor currency units (cents) so price sums stay exact.
type Ticket struct {
	ItemID    string
	Name      string
	UnitPrice int64
	Available int
	CreatedAt time.Time
	UpdatedAt time.Time
}
