// internal/export/export.go
//
// Package export builds the admin spreadsheet: an "Orders" sheet with
// one row per placed order and a "Summary" sheet of per-item quantities
// with a grand-total row.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"canteenbackend/internal/stock"
)

// OrderRow is one spreadsheet line of the Orders sheet.
type OrderRow struct {
	OrderID      int64
	CustomerName string
	Phone        int64
	Items        string
	Quantity     int
	Membership   int64
	TotalAmount  float64
}

const (
	ordersSheet  = "Orders"
	summarySheet = "Summary"
)

var orderHeaders = []string{
	"Order ID", "Customer Name", "Phone", "Items", "Quantity", "Membership", "Total Amount (KD)",
}

// Workbook renders orders and the name-sorted item summary into an
// xlsx workbook. The caller owns closing the returned file.
func Workbook(rows []OrderRow, summary []stock.SummaryRow) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", ordersSheet); err != nil {
		return nil, fmt.Errorf("failed to name orders sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"333333"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	totalStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDDDDD"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create total style: %w", err)
	}

	if err := writeOrders(f, rows, headerStyle); err != nil {
		return nil, err
	}
	if err := writeSummary(f, summary, headerStyle, totalStyle); err != nil {
		return nil, err
	}

	return f, nil
}

func writeOrders(f *excelize.File, rows []OrderRow, headerStyle int) error {
	for col, header := range orderHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(ordersSheet, cell, header); err != nil {
			return fmt.Errorf("failed to write orders header: %w", err)
		}
	}
	if err := f.SetCellStyle(ordersSheet, "A1", "G1", headerStyle); err != nil {
		return fmt.Errorf("failed to style orders header: %w", err)
	}

	if len(rows) == 0 {
		return f.SetCellValue(ordersSheet, "A2", "No orders found")
	}

	for i, row := range rows {
		values := []interface{}{
			row.OrderID, row.CustomerName, row.Phone, row.Items,
			row.Quantity, row.Membership, row.TotalAmount,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(ordersSheet, cell, value); err != nil {
				return fmt.Errorf("failed to write order row %d: %w", i+1, err)
			}
		}
	}
	return nil
}

func writeSummary(f *excelize.File, summary []stock.SummaryRow, headerStyle, totalStyle int) error {
	if err := f.SetCellValue(summarySheet, "A1", "Item"); err != nil {
		return fmt.Errorf("failed to write summary header: %w", err)
	}
	if err := f.SetCellValue(summarySheet, "B1", "Quantity Ordered"); err != nil {
		return fmt.Errorf("failed to write summary header: %w", err)
	}
	if err := f.SetCellStyle(summarySheet, "A1", "B1", headerStyle); err != nil {
		return fmt.Errorf("failed to style summary header: %w", err)
	}

	if len(summary) == 0 {
		return f.SetCellValue(summarySheet, "A2", "No items ordered")
	}

	total := 0
	for i, row := range summary {
		rowNum := i + 2
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("A%d", rowNum), row.Item); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("B%d", rowNum), row.Quantity); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
		total += row.Quantity
	}

	totalRow := len(summary) + 2
	if err := f.SetCellValue(summarySheet, fmt.Sprintf("A%d", totalRow), "TOTAL"); err != nil {
		return fmt.Errorf("failed to write total row: %w", err)
	}
	if err := f.SetCellValue(summarySheet, fmt.Sprintf("B%d", totalRow), total); err != nil {
		return fmt.Errorf("failed to write total row: %w", err)
	}
	if err := f.SetCellStyle(summarySheet,
		fmt.Sprintf("A%d", totalRow), fmt.Sprintf("B%d", totalRow), totalStyle); err != nil {
		return fmt.Errorf("failed to style total row: %w", err)
	}
	return nil
}
