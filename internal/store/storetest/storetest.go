// internal/store/storetest/storetest.go
//
// Package storetest provides an in-memory Store for handler and service
// tests, with injectable failures per method.
package storetest

import (
	"context"

	"canteenbackend/internal/itemlist"
	"canteenbackend/internal/store"
)

// Fake is an in-memory store.Store. Zero value is usable. Set the
// *Err fields to force failures on the corresponding reads/writes.
type Fake struct {
	Items  []store.FoodItem
	Placed []store.OrderRecord
	Closed bool

	ItemsErr   error
	OrdersErr  error
	ReserveErr error
	FlagErr    error
	DeleteErr  error
}

var _ store.Store = (*Fake)(nil)

func (f *Fake) FoodItems(ctx context.Context) ([]store.FoodItem, error) {
	if f.ItemsErr != nil {
		return nil, f.ItemsErr
	}
	return append([]store.FoodItem(nil), f.Items...), nil
}

func (f *Fake) FoodItemByID(ctx context.Context, id string) (*store.FoodItem, error) {
	if f.ItemsErr != nil {
		return nil, f.ItemsErr
	}
	for _, item := range f.Items {
		if item.ID == id {
			found := item
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *Fake) Orders(ctx context.Context) ([]store.OrderRecord, error) {
	if f.OrdersErr != nil {
		return nil, f.OrdersErr
	}
	return append([]store.OrderRecord(nil), f.Placed...), nil
}

// ReserveOrder mirrors the drivers' admission check: re-derive ordered
// quantities, refuse any line past headroom, then append.
func (f *Fake) ReserveOrder(ctx context.Context, rec store.OrderRecord) error {
	if f.ReserveErr != nil {
		return f.ReserveErr
	}

	configured := make(map[string]int, len(f.Items))
	for _, item := range f.Items {
		configured[item.Name] = item.Quantity
	}
	ordered := make(map[string]int)
	for _, placed := range f.Placed {
		for _, line := range itemlist.Decode(placed.Item, placed.Quantity) {
			ordered[line.Name] += line.Quantity
		}
	}

	for _, line := range itemlist.Decode(rec.Item, rec.Quantity) {
		total, ok := configured[line.Name]
		if !ok {
			return store.ErrNotFound
		}
		available := total - ordered[line.Name]
		if line.Quantity > available {
			return &store.InsufficientStockError{
				ItemName:  line.Name,
				Requested: line.Quantity,
				Available: available,
			}
		}
	}

	f.Placed = append(f.Placed, rec)
	return nil
}

func (f *Fake) DeleteOrder(ctx context.Context, orderID int64) error {
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	for i, rec := range f.Placed {
		if rec.OrderID == orderID {
			f.Placed = append(f.Placed[:i], f.Placed[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *Fake) DeleteAllOrders(ctx context.Context) error {
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	f.Placed = nil
	return nil
}

func (f *Fake) BookingsClosed(ctx context.Context) (bool, error) {
	if f.FlagErr != nil {
		return false, f.FlagErr
	}
	return f.Closed, nil
}

func (f *Fake) SetBookingsClosed(ctx context.Context, closed bool) error {
	if f.FlagErr != nil {
		return f.FlagErr
	}
	f.Closed = closed
	return nil
}

func (f *Fake) Close() error { return nil }
