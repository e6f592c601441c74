// internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeFormat is how created_at values are persisted.
const TimeFormat = time.RFC3339

// FoodItem is one sellable catalog item. Name doubles as the join key
// against the order ledger's packed item strings, so names must stay
// stable once orders exist.
type FoodItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"` // configured inventory quantity
	Image    string  `json:"image"`
}

// OrderRecord is one placed order. Item holds the packed item-list
// string (see internal/itemlist); Quantity is the sum of all packed
// quantities. Legacy records may hold a bare item name in Item, with
// Quantity carrying the count.
type OrderRecord struct {
	OrderID      int64     `json:"order_id"`
	CustomerName string    `json:"customer_name"`
	Item         string    `json:"item"`
	Quantity     int       `json:"quantity"`
	Phone        int64     `json:"phone"`
	Membership   int64     `json:"membership"`
	CreatedAt    time.Time `json:"created_at"`
}

// Sentinel errors shared by all drivers.
var (
	ErrNotFound          = errors.New("record not found")
	ErrInsertFailed      = errors.New("store reported no rows inserted")
	ErrInsufficientStock = errors.New("insufficient stock for order")
)

// InsufficientStockError reports which item ran out during a reservation.
type InsufficientStockError struct {
	ItemName  string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.ItemName, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Store is the table-store boundary: a catalog table, an order ledger,
// and a settings row for the bookings flag.
//
// ReserveOrder is the admission point for new orders: it must re-check
// per-item headroom against the current ledger and insert only if every
// line still fits, returning ErrInsufficientStock otherwise. How atomic
// that check-and-insert is depends on the driver.
type Store interface {
	FoodItems(ctx context.Context) ([]FoodItem, error)
	FoodItemByID(ctx context.Context, id string) (*FoodItem, error)

	Orders(ctx context.Context) ([]OrderRecord, error)
	ReserveOrder(ctx context.Context, rec OrderRecord) error
	DeleteOrder(ctx context.Context, orderID int64) error
	DeleteAllOrders(ctx context.Context) error

	BookingsClosed(ctx context.Context) (bool, error)
	SetBookingsClosed(ctx context.Context, closed bool) error

	Close() error
}
