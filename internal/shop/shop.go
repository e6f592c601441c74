// internal/shop/shop.go
//
// Package shop serves the storefront: catalog with live stock, the
// session cart, checkout revalidation and order placement.
//
// Store failures split two ways on purpose. Availability display fails
// open (a dead ledger shows everything as in stock rather than an empty
// storefront); cart mutations and order placement fail closed.
package shop

import (
	"errors"
	"net/http"
	"strings"

	"canteenbackend/internal/cart"
	"canteenbackend/internal/config"
	"canteenbackend/internal/logger"
	"canteenbackend/internal/middleware"
	"canteenbackend/internal/orders"
	"canteenbackend/internal/stock"
	"canteenbackend/internal/store"
)

type Handler struct {
	store  store.Store
	carts  *cart.Manager
	orders *orders.Service
}

func NewHandler(st store.Store, carts *cart.Manager, orderSvc *orders.Service) *Handler {
	return &Handler{store: st, carts: carts, orders: orderSvc}
}

// catalogItem is one storefront row: the catalog item plus its derived
// availability. Remaining is nil when the ledger could not be read.
type catalogItem struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Image      string  `json:"image"`
	Remaining  *int    `json:"remaining,omitempty"`
	OutOfStock bool    `json:"out_of_stock"`
}

// HomeHandler serves GET /: the catalog with remaining stock, the sale
// date, and the bookings flag.
func (h *Handler) HomeHandler(w http.ResponseWriter, r *http.Request) {
	logger.LogHTTPRequest(r)

	// "/" is the mux catch-all; anything else is a miss.
	if r.URL.Path != "/" {
		middleware.WriteError(w, http.StatusNotFound, "not_found", "Page not found")
		return
	}

	ctx := r.Context()

	closed, err := h.store.BookingsClosed(ctx)
	if err != nil {
		// Fail open: an unreadable flag keeps the storefront up.
		logger.LogError("Failed to read bookings flag: %v", err)
		closed = false
	}
	if closed {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"bookings_closed": true,
		})
		return
	}

	items, err := h.store.FoodItems(ctx)
	if err != nil {
		logger.LogError("Failed to load catalog: %v", err)
		middleware.WriteError(w, http.StatusInternalServerError, "store_error",
			"Could not load the menu. Please try again.")
		return
	}

	catalog := make([]catalogItem, 0, len(items))
	ledger, err := h.store.Orders(ctx)
	if err != nil {
		// Fail open for availability display: a dead ledger must not
		// blank the whole catalog, so everything shows as in stock.
		logger.LogError("Error calculating stock status: %v", err)
		for _, item := range items {
			catalog = append(catalog, catalogItem{
				ID: item.ID, Name: item.Name, Price: item.Price, Image: item.Image,
				OutOfStock: false,
			})
		}
	} else {
		levels := stock.ComputeRemaining(items, ledger)
		for _, item := range items {
			level := levels[item.Name]
			remaining := level.Remaining
			catalog = append(catalog, catalogItem{
				ID: item.ID, Name: item.Name, Price: item.Price, Image: item.Image,
				Remaining: &remaining, OutOfStock: level.OutOfStock,
			})
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"bookings_closed": false,
		"sale_date":       config.SaleDate(),
		"items":           catalog,
	})
}

// BookingsClosedHandler serves GET /bookings_closed.
func (h *Handler) BookingsClosedHandler(w http.ResponseWriter, r *http.Request) {
	logger.LogHTTPRequest(r)

	closed, err := h.store.BookingsClosed(r.Context())
	if err != nil {
		logger.LogError("Failed to read bookings flag: %v", err)
		closed = false
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"bookings_closed": closed,
	})
}

// AddToCartHandler serves POST /add_to_cart. The add is clamped to the
// item's live headroom; only zero headroom refuses outright.
func (h *Handler) AddToCartHandler(w http.ResponseWriter, r *http.Request) {
	logger.LogHTTPRequest(r)

	if r.Method != http.MethodPost {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Only POST requests are supported")
		return
	}

	var req struct {
		ItemID   string `json:"item_id"`
		Quantity int    `json:"quantity"`
	}
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	ctx := r.Context()
	token := middleware.SessionToken(ctx)

	item, err := h.store.FoodItemByID(ctx, req.ItemID)
	if errors.Is(err, store.ErrNotFound) {
		logger.LogWarn("Item with ID %s not found in catalog", req.ItemID)
		middleware.WriteError(w, http.StatusOK, "not_found", "Item not found")
		return
	}
	if err != nil {
		logger.LogError("Error fetching item %s: %v", req.ItemID, err)
		middleware.WriteError(w, http.StatusOK, "store_error", err.Error())
		return
	}

	// Fail closed: no ledger, no mutation.
	ledger, err := h.store.Orders(ctx)
	if err != nil {
		logger.LogError("Error reading ledger for add_to_cart: %v", err)
		middleware.WriteError(w, http.StatusOK, "store_error", err.Error())
		return
	}

	ordered := stock.OrderedFor(ledger, item.Name)
	result, err := h.carts.Add(token, *item, ordered, req.Quantity)
	if errors.Is(err, cart.ErrOutOfStock) {
		middleware.WriteError(w, http.StatusOK, "out_of_stock", "This item is out of stock.")
		return
	}
	if err != nil {
		middleware.WriteError(w, http.StatusOK, "store_error", err.Error())
		return
	}

	resp := map[string]interface{}{
		"success":   true,
		"cart_size": result.CartSize,
	}
	if result.Adjusted {
		resp["adjusted"] = true
		resp["message"] = result.Message
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// GetCartHandler serves GET /get_cart.
func (h *Handler) GetCartHandler(w http.ResponseWriter, r *http.Request) {
	logger.LogHTTPRequest(r)

	token := middleware.SessionToken(r.Context())
	middleware.WriteJSON(w, http.StatusOK, h.carts.Get(token))
}

// UpdateCartHandler serves POST /update_cart. Quantities at or below
// zero remove the line. Updates do not re-check stock; checkout
// revalidation covers that.
func (h *Handler) UpdateCartHandler(w http.ResponseWriter, r *http.Request) {
	logger.LogHTTPRequest(r)

	if r.Method != http.MethodPost {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Only POST requests are supported")
		return
	}

	var req struct {
		ItemID   string `json:"item_id"`
		Quantity int    `json:"quantity"`
	}
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	token := middleware.SessionToken(r.Context())
	if err := h.carts.Update(token, req.ItemID, req.Quantity); err != nil {
		middleware.WriteError(w, http.StatusOK, "not_found", "Item not found in cart")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// CheckoutHandler serves GET /checkout. Before the checkout view
// renders, every cart line is re-validated against the current ledger;
// lines past headroom are reduced or dropped with a note.
func (h *Handler) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	logger.LogHTTPRequest(r)

	ctx := r.Context()
	token := middleware.SessionToken(ctx)

	var messages []string
	var changed bool

	ledger, err := h.store.Orders(ctx)
	if err != nil {
		// Revalidation is best effort; checkout still renders.
		logger.LogError("Error verifying cart: %v", err)
	} else {
		ordered := stock.OrderedQuantities(ledger)
		messages, changed = h.carts.Revalidate(token, func(itemID string) (string, int, bool) {
			item, err := h.store.FoodItemByID(ctx, itemID)
			if err != nil {
				return "", 0, false
			}
			return item.Name, item.Quantity - ordered[item.Name], true
		})
	}

	resp := map[string]interface{}{
		"cart":          h.carts.Get(token),
		"cart_adjusted": changed,
	}
	if changed {
		resp["adjustment_message"] = "Some items in your cart were adjusted due to stock limitations: " +
			strings.Join(messages, ", ")
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// PlaceOrderHandler serves POST /place_order (form-encoded name, phone,
// membership).
func (h *Handler) PlaceOrderHandler(w http.ResponseWriter, r *http.Request) {
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

	ctx := r.Context()
	token := middleware.SessionToken(ctx)

	rec, err := h.orders.Place(ctx, token,
		r.FormValue("name"), r.FormValue("phone"), r.FormValue("membership"))
	switch {
	case errors.Is(err, orders.ErrEmptyCart):
		middleware.WriteError(w, http.StatusOK, "empty_cart",
			"Your cart is empty. Please add items before checkout.")
		return
	case errors.Is(err, store.ErrInsufficientStock):
		middleware.WriteError(w, http.StatusOK, "out_of_stock",
			"Some items sold out while you were checking out. Please review your cart.")
		return
	case errors.Is(err, store.ErrInsertFailed):
		middleware.WriteError(w, http.StatusOK, "store_error",
			"Failed to place your order. Please try again or contact support.")
		return
	case err != nil:
		logger.LogError("Error placing order: %v", err)
		middleware.WriteError(w, http.StatusOK, "store_error", "Failed to place your order: "+err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"order_id": rec.OrderID,
	})
}
