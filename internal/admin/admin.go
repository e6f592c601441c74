// internal/admin/admin.go
//
// Package admin serves the order-management surface: the order list
// with per-item summary and revenue, password-gated deletion and the
// bookings toggle, and the spreadsheet export.
package admin

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"canteenbackend/internal/config"
	"canteenbackend/internal/export"
	"canteenbackend/internal/itemlist"
	"canteenbackend/internal/logger"
	"canteenbackend/internal/middleware"
	"canteenbackend/internal/stock"
	"canteenbackend/internal/store"
)

type Handler struct {
	store store.Store
}

func NewHandler(st store.Store) *Handler {
	return &Handler{store: st}
}

// checkPassword gates destructive admin actions on the shared secret.
// One generic message covers both a wrong and a missing password.
func checkPassword(submitted string) bool {
	correct := config.AdminPassword()
	return correct != "" && submitted == correct
}

// orderView is one admin row: the raw record plus parsed lines and the
// computed total.
type orderView struct {
	OrderID      int64           `json:"order_id"`
	CustomerName string          `json:"customer_name"`
	Item         string          `json:"item"`
	Quantity     int             `json:"quantity"`
	Phone        int64           `json:"phone"`
	Membership   int64           `json:"membership"`
	CreatedAt    string          `json:"created_at"`
	TotalAmount  float64         `json:"total_amount"`
	ParsedItems  []itemlist.Line `json:"parsed_items"`
}

// SummaryHandler serves GET /admin.
func (h *Handler) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	logger.LogHTTPRequest(r)

	ctx := r.Context()

	orders, err := h.store.Orders(ctx)
	if err != nil {
		logger.LogError("Error in admin route: %v", err)
		middleware.WriteError(w, http.StatusInternalServerError, "store_error",
			"Admin page error: "+err.Error())
		return
	}
	items, err := h.store.FoodItems(ctx)
	if err != nil {
		logger.LogError("Error in admin route: %v", err)
		middleware.WriteError(w, http.StatusInternalServerError, "store_error",
			"Admin page error: "+err.Error())
		return
	}

	orderTotals, summary, grandTotal := stock.Tally(items, orders)

	loc := logger.DisplayLocation()
	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, orderView{
			OrderID:      order.OrderID,
			CustomerName: order.CustomerName,
			Item:         order.Item,
			Quantity:     order.Quantity,
			Phone:        order.Phone,
			Membership:   order.Membership,
			CreatedAt:    order.CreatedAt.In(loc).Format("2006-01-02 15:04:05"),
			TotalAmount:  orderTotals[order.OrderID],
			ParsedItems:  itemlist.Decode(order.Item, order.Quantity),
		})
	}

	closed, err := h.store.BookingsClosed(ctx)
	if err != nil {
		logger.LogError("Failed to read bookings flag: %v", err)
		closed = false
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"orders":          views,
		"item_summary":    stock.SortedSummary(summary),
		"total_amount":    grandTotal,
		"bookings_closed": closed,
		"excel_export":    config.ExcelExportEnabled(),
	})
}

// ToggleBookingsHandler serves POST /toggle_bookings.
func (h *Handler) ToggleBookingsHandler(w http.ResponseWriter, r *http.Request) {
	logger.LogHTTPRequest(r)

	if r.Method != http.MethodPost {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Only POST requests are supported")
		return
	}
	if err := r.ParseForm(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid form body")
		return
	}
	if !checkPassword(r.FormValue("password")) {
		middleware.WriteError(w, http.StatusForbidden, "invalid_credential",
			"Incorrect password. Booking status not changed.")
		return
	}

	ctx := r.Context()
	closed, err := h.store.BookingsClosed(ctx)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "store_error",
			"Could not change bookings status: "+err.Error())
		return
	}
	if err := h.store.SetBookingsClosed(ctx, !closed); err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "store_error",
			"Could not change bookings status: "+err.Error())
		return
	}

	status := "open"
	if !closed {
		status = "closed"
	}
	logger.LogInfo("Bookings status changed to: %s", status)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"bookings_closed": !closed,
	})
}

// ClearOrdersHandler serves POST /clear_orders.
func (h *Handler) ClearOrdersHandler(w http.ResponseWriter, r *http.Request) {
	logger.LogHTTPRequest(r)

	if r.Method != http.MethodPost {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Only POST requests are supported")
		return
	}
	if err := r.ParseForm(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid form body")
		return
	}
	if !checkPassword(r.FormValue("password")) {
		middleware.WriteError(w, http.StatusForbidden, "invalid_credential",
			"Incorrect password. Orders were not cleared.")
		return
	}

	if err := h.store.DeleteAllOrders(r.Context()); err != nil {
		logger.LogError("Error clearing orders: %v", err)
		middleware.WriteError(w, http.StatusInternalServerError, "store_error",
			"Could not clear orders: "+err.Error())
		return
	}

	logger.LogInfo("All orders cleared by admin from %s", logger.GetClientIP(r))
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// DeleteOrderHandler serves POST /delete_order.
func (h *Handler) DeleteOrderHandler(w http.ResponseWriter, r *http.Request) {
	logger.LogHTTPRequest(r)

	if r.Method != http.MethodPost {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Only POST requests are supported")
		return
	}
	if err := r.ParseForm(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid form body")
		return
	}
	if !checkPassword(r.FormValue("password")) {
		middleware.WriteError(w, http.StatusForbidden, "invalid_credential",
			"Incorrect password. The order was not deleted.")
		return
	}

	orderID, err := strconv.ParseInt(r.FormValue("order_id"), 10, 64)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid_request", "No order ID provided.")
		return
	}

	err = h.store.DeleteOrder(r.Context(), orderID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.WriteError(w, http.StatusOK, "not_found", "Order not found.")
		return
	}
	if err != nil {
		logger.LogError("Error deleting order %d: %v", orderID, err)
		middleware.WriteError(w, http.StatusInternalServerError, "store_error",
			"Could not delete the order: "+err.Error())
		return
	}

	logger.LogInfo("Deleted order %d", orderID)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// ExportExcelHandler serves GET /export_excel: the Orders + Summary
// workbook as an attachment.
func (h *Handler) ExportExcelHandler(w http.ResponseWriter, r *http.Request) {
	logger.LogHTTPRequest(r)

	if !config.ExcelExportEnabled() {
		middleware.WriteError(w, http.StatusServiceUnavailable, "export_unavailable",
			"Excel export not available")
		return
	}

	ctx := r.Context()
	orders, err := h.store.Orders(ctx)
	if err != nil {
		logger.LogError("Error exporting Excel: %v", err)
		middleware.WriteError(w, http.StatusInternalServerError, "store_error",
			"Failed to export data: "+err.Error())
		return
	}
	items, err := h.store.FoodItems(ctx)
	if err != nil {
		logger.LogError("Error exporting Excel: %v", err)
		middleware.WriteError(w, http.StatusInternalServerError, "store_error",
			"Failed to export data: "+err.Error())
		return
	}

	orderTotals, summary, _ := stock.Tally(items, orders)

	rows := make([]export.OrderRow, 0, len(orders))
	for _, order := range orders {
		rows = append(rows, export.OrderRow{
			OrderID:      order.OrderID,
			CustomerName: order.CustomerName,
			Phone:        order.Phone,
			Items:        order.Item,
			Quantity:     order.Quantity,
			Membership:   order.Membership,
			TotalAmount:  orderTotals[order.OrderID],
		})
	}

	workbook, err := export.Workbook(rows, stock.SortedSummary(summary))
	if err != nil {
		logger.LogError("Error building workbook: %v", err)
		middleware.WriteError(w, http.StatusInternalServerError, "store_error",
			"Failed to export data: "+err.Error())
		return
	}
	defer workbook.Close()

	filename := "orders_export_" + time.Now().In(logger.DisplayLocation()).Format("2006-01-02_15-04-05") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := workbook.Write(w); err != nil {
		logger.LogError("Error writing workbook response: %v", err)
	}
}
