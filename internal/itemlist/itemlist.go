// internal/itemlist/itemlist.go
//
// Package itemlist encodes and decodes the packed item-list string
// persisted on each order record. The ledger keeps one free-text column
// per order instead of a line-item table, so every reader of the ledger
// (stock accounting, admin views, the spreadsheet export) goes through
// this codec.
package itemlist

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	pairSeparator = ", "
	qtyMarker     = " (x"
)

// Line is one (name, quantity) pair of an order.
type Line struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Encode packs cart lines into a single string of the form
// "Burger (x2), Cake (x1)".
//
// Known limitation: item names containing ", " or " (x" make the
// encoding ambiguous. Catalog names are expected to be free of both.
func Encode(lines []Line) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		parts = append(parts, fmt.Sprintf("%s (x%d)", line.Name, line.Quantity))
	}
	return strings.Join(parts, pairSeparator)
}

// Decode unpacks an order's item string back into lines.
//
// Records created before multi-item orders existed store a bare item
// name with no "(xN)" suffix; those decode as a single line whose
// quantity comes from the record's own quantity column, passed here as
// fallbackQty. A malformed quantity token inside a packed part degrades
// to 1 rather than failing the whole record.
func Decode(item string, fallbackQty int) []Line {
	if item == "" {
		return nil
	}

	if !strings.Contains(item, qtyMarker) {
		// Legacy single-item record.
		if fallbackQty <= 0 {
			fallbackQty = 1
		}
		return []Line{{Name: item, Quantity: fallbackQty}}
	}

	var lines []Line
	for _, part := range strings.Split(item, pairSeparator) {
		if !strings.Contains(part, qtyMarker) {
			continue
		}
		name, qtyToken, found := strings.Cut(part, qtyMarker)
		if !found {
			continue
		}
		qty, err := strconv.Atoi(strings.TrimSuffix(qtyToken, ")"))
		if err != nil {
			qty = 1
		}
		lines = append(lines, Line{Name: name, Quantity: qty})
	}
	return lines
}
