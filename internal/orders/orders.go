// internal/orders/orders.go
//
// Package orders converts a validated cart into one order-ledger record.
package orders

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"canteenbackend/internal/cart"
	"canteenbackend/internal/itemlist"
	"canteenbackend/internal/logger"
	"canteenbackend/internal/store"
)

var ErrEmptyCart = errors.New("cart is empty")

type Service struct {
	store store.Store
	carts *cart.Manager
}

func NewService(st store.Store, carts *cart.Manager) *Service {
	return &Service{store: st, carts: carts}
}

// Place encodes the session's cart into a single ledger record and
// reserves it at the store. The cart is cleared only after the store
// accepts the reservation, so a failed insert leaves the cart intact.
//
// Phone and membership silently coerce to 0 when empty or non-numeric.
func (s *Service) Place(ctx context.Context, token, customerName, phone, membership string) (*store.OrderRecord, error) {
	entries := s.carts.Get(token)
	if len(entries) == 0 {
		return nil, ErrEmptyCart
	}

	lines := make([]itemlist.Line, 0, len(entries))
	totalQuantity := 0
	for _, entry := range entries {
		lines = append(lines, itemlist.Line{Name: entry.Name, Quantity: entry.Quantity})
		totalQuantity += entry.Quantity
	}
	// Map iteration order is random; keep the packed string stable.
	sort.Slice(lines, func(i, j int) bool { return lines[i].Name < lines[j].Name })

	rec := store.OrderRecord{
		OrderID:      newOrderID(),
		CustomerName: customerName,
		Item:         itemlist.Encode(lines),
		Quantity:     totalQuantity,
		Phone:        coerceInt(phone),
		Membership:   coerceInt(membership),
		CreatedAt:    time.Now().UTC(),
	}

	logger.LogInfo("Placing order %d for %q: %s", rec.OrderID, customerName, rec.Item)

	if err := s.store.ReserveOrder(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to place order %d: %w", rec.OrderID, err)
	}

	s.carts.Clear(token)
	return &rec, nil
}

// newOrderID returns a random positive 63-bit ID. Order IDs used to be
// unix seconds, which collide under concurrent placement; creation time
// now lives in its own column.
func newOrderID() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// Degenerate fallback; keeps placement working if the
		// entropy source fails.
		return time.Now().UnixNano()
	}
	id := int64(binary.BigEndian.Uint64(b[:]) >> 1)
	if id == 0 {
		id = 1
	}
	return id
}

func coerceInt(s string) int64 {
	if s == "" {
		return 0
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
