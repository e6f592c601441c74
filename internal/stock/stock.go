// internal/stock/stock.go
//
// Package stock derives availability from the catalog and the order
// ledger. Nothing here mutates state: every caller re-reads the ledger
// and recomputes from scratch, so two computations over the same inputs
// always agree.
//
// Accounting joins catalog items to ledger lines by item *name*. That
// is the persisted contract of the packed item-list format; renaming a
// catalog item orphans its historical orders.
package stock

import (
	"math"
	"sort"
	"strings"

	"canteenbackend/internal/itemlist"
	"canteenbackend/internal/store"
)

// Level is the derived availability of one catalog item.
type Level struct {
	Remaining  int  `json:"remaining"`
	OutOfStock bool `json:"out_of_stock"`
}

// OrderedQuantities tallies the quantity already claimed by placed
// orders, per item name. Malformed packed parts contribute their
// decoded best-effort quantity; a corrupt record never aborts the scan.
func OrderedQuantities(orders []store.OrderRecord) map[string]int {
	ordered := make(map[string]int)
	for _, order := range orders {
		for _, line := range itemlist.Decode(order.Item, order.Quantity) {
			ordered[line.Name] += line.Quantity
		}
	}
	return ordered
}

// ComputeRemaining derives remaining stock and the out-of-stock flag
// for every catalog item.
func ComputeRemaining(items []store.FoodItem, orders []store.OrderRecord) map[string]Level {
	ordered := OrderedQuantities(orders)

	levels := make(map[string]Level, len(items))
	for _, item := range items {
		remaining := item.Quantity - ordered[item.Name]
		levels[item.Name] = Level{
			Remaining:  remaining,
			OutOfStock: remaining <= 0,
		}
	}
	return levels
}

// OrderedFor returns the quantity already claimed for a single item
// name. A substring check skips orders that cannot mention the item;
// exact per-line matching then keeps a name that happens to be a
// substring of another item's packed entry from inflating the tally.
func OrderedFor(orders []store.OrderRecord, name string) int {
	total := 0
	for _, order := range orders {
		if !strings.Contains(order.Item, name) {
			continue
		}
		for _, line := range itemlist.Decode(order.Item, order.Quantity) {
			if line.Name == name {
				total += line.Quantity
			}
		}
	}
	return total
}

// SummaryRow is one line of the per-item order summary.
type SummaryRow struct {
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
}

// Tally computes per-order revenue, the per-item quantity summary, and
// the grand total collected. Item names absent from the catalog price
// at zero. Amounts round to 3 decimals (KD).
func Tally(items []store.FoodItem, orders []store.OrderRecord) (orderTotals map[int64]float64, summary map[string]int, grandTotal float64) {
	prices := make(map[string]float64, len(items))
	for _, item := range items {
		prices[item.Name] = item.Price
	}

	orderTotals = make(map[int64]float64, len(orders))
	summary = make(map[string]int)

	for _, order := range orders {
		orderTotal := 0.0
		for _, line := range itemlist.Decode(order.Item, order.Quantity) {
			orderTotal += prices[line.Name] * float64(line.Quantity)
			summary[line.Name] += line.Quantity
		}
		orderTotals[order.OrderID] = round3(orderTotal)
		grandTotal += orderTotal
	}

	return orderTotals, summary, round3(grandTotal)
}

// SortedSummary flattens an item summary into rows sorted by name.
func SortedSummary(summary map[string]int) []SummaryRow {
	rows := make([]SummaryRow, 0, len(summary))
	for item, qty := range summary {
		rows = append(rows, SummaryRow{Item: item, Quantity: qty})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Item < rows[j].Item })
	return rows
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
