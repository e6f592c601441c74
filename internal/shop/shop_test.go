package shop

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"canteenbackend/internal/cart"
	"canteenbackend/internal/middleware"
	"canteenbackend/internal/orders"
	"canteenbackend/internal/store"
	"canteenbackend/internal/store/storetest"
)

const testSession = "test-session"

type fixture struct {
	store   *storetest.Fake
	carts   *cart.Manager
	handler *Handler
}

func newFixture() *fixture {
	st := &storetest.Fake{
		Items: []store.FoodItem{
			{ID: "1", Name: "Burger", Price: 1.5, Quantity: 5, Image: "burger.png"},
			{ID: "2", Name: "Cake", Price: 2.0, Quantity: 3, Image: "cake.png"},
		},
	}
	carts := cart.NewManager(time.Minute)
	return &fixture{
		store:   st,
		carts:   carts,
		handler: NewHandler(st, carts, orders.NewService(st, carts)),
	}
}

func (f *fixture) do(t *testing.T, fn http.HandlerFunc, method, path string, body string, contentType string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: testSession})

	rr := httptest.NewRecorder()
	middleware.APIMiddleware(fn)(rr, req)

	var payload map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rr.Body.String())
	}
	return rr, payload
}

func (f *fixture) postJSON(t *testing.T, fn http.HandlerFunc, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	return f.do(t, fn, http.MethodPost, path, body, "application/json")
}

func TestHome(t *testing.T) {
	f := newFixture()
	f.store.Placed = []store.OrderRecord{
		{OrderID: 1, Item: "Cake (x3)", Quantity: 3},
	}

	rr, payload := f.do(t, f.handler.HomeHandler, http.MethodGet, "/", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if payload["bookings_closed"] != false {
		t.Error("bookings should be open")
	}

	items := payload["items"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}

	burger := items[0].(map[string]interface{})
	if burger["out_of_stock"] != false || burger["remaining"].(float64) != 5 {
		t.Errorf("burger = %v", burger)
	}
	cake := items[1].(map[string]interface{})
	if cake["out_of_stock"] != true || cake["remaining"].(float64) != 0 {
		t.Errorf("cake = %v", cake)
	}
}

func TestHomeFailsOpenOnLedgerError(t *testing.T) {
	f := newFixture()
	f.store.OrdersErr = errors.New("ledger down")

	rr, payload := f.do(t, f.handler.HomeHandler, http.MethodGet, "/", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	for _, raw := range payload["items"].([]interface{}) {
		item := raw.(map[string]interface{})
		if item["out_of_stock"] != false {
			t.Errorf("item %v marked out of stock despite fail-open policy", item["name"])
		}
		if _, ok := item["remaining"]; ok {
			t.Errorf("item %v reports remaining without ledger data", item["name"])
		}
	}
}

func TestHomeBookingsClosed(t *testing.T) {
	f := newFixture()
	f.store.Closed = true

	_, payload := f.do(t, f.handler.HomeHandler, http.MethodGet, "/", "", "")
	if payload["bookings_closed"] != true {
		t.Error("expected bookings_closed payload")
	}
	if _, ok := payload["items"]; ok {
		t.Error("closed storefront must not list items")
	}
}

func TestAddToCart(t *testing.T) {
	f := newFixture()

	_, payload := f.postJSON(t, f.handler.AddToCartHandler, "/add_to_cart",
		`{"item_id":"1","quantity":2}`)
	if payload["success"] != true {
		t.Fatalf("add failed: %v", payload)
	}
	if payload["cart_size"].(float64) != 1 {
		t.Errorf("cart_size = %v, want 1", payload["cart_size"])
	}
	if _, ok := payload["adjusted"]; ok {
		t.Error("unadjusted add must not set the adjusted flag")
	}
}

func TestAddToCartClamps(t *testing.T) {
	f := newFixture()

	// Burger has 5 configured and none ordered; asking for 10 clamps.
	_, payload := f.postJSON(t, f.handler.AddToCartHandler, "/add_to_cart",
		`{"item_id":"1","quantity":10}`)
	if payload["success"] != true || payload["adjusted"] != true {
		t.Fatalf("expected adjusted success, got %v", payload)
	}
	if msg := payload["message"].(string); !strings.Contains(msg, "5") {
		t.Errorf("message = %q, want mention of 5 added", msg)
	}
	if got := f.carts.Get(testSession)["1"].Quantity; got != 5 {
		t.Errorf("cart quantity = %d, want 5", got)
	}
}

func TestAddToCartOutOfStock(t *testing.T) {
	f := newFixture()
	f.store.Placed = []store.OrderRecord{
		{OrderID: 1, Item: "Burger (x5)", Quantity: 5},
	}

	_, payload := f.postJSON(t, f.handler.AddToCartHandler, "/add_to_cart",
		`{"item_id":"1","quantity":1}`)
	if payload["success"] != false || payload["code"] != "out_of_stock" {
		t.Fatalf("expected out_of_stock failure, got %v", payload)
	}
	if f.carts.Len(testSession) != 0 {
		t.Error("cart must be unchanged after refusal")
	}
}

func TestAddToCartUnknownItem(t *testing.T) {
	f := newFixture()

	_, payload := f.postJSON(t, f.handler.AddToCartHandler, "/add_to_cart",
		`{"item_id":"404","quantity":1}`)
	if payload["success"] != false || payload["code"] != "not_found" {
		t.Fatalf("expected not_found failure, got %v", payload)
	}
}

func TestAddToCartFailsClosedOnLedgerError(t *testing.T) {
	f := newFixture()
	f.store.OrdersErr = errors.New("ledger down")

	_, payload := f.postJSON(t, f.handler.AddToCartHandler, "/add_to_cart",
		`{"item_id":"1","quantity":1}`)
	if payload["success"] != false || payload["code"] != "store_error" {
		t.Fatalf("expected store_error failure, got %v", payload)
	}
	if f.carts.Len(testSession) != 0 {
		t.Error("mutation must fail closed on ledger error")
	}
}

func TestGetCart(t *testing.T) {
	f := newFixture()
	f.postJSON(t, f.handler.AddToCartHandler, "/add_to_cart", `{"item_id":"1","quantity":2}`)

	_, payload := f.do(t, f.handler.GetCartHandler, http.MethodGet, "/get_cart", "", "")
	entry := payload["1"].(map[string]interface{})
	if entry["name"] != "Burger" || entry["quantity"].(float64) != 2 {
		t.Errorf("cart entry = %v", entry)
	}
}

func TestUpdateCart(t *testing.T) {
	f := newFixture()
	f.postJSON(t, f.handler.AddToCartHandler, "/add_to_cart", `{"item_id":"1","quantity":2}`)

	_, payload := f.postJSON(t, f.handler.UpdateCartHandler, "/update_cart",
		`{"item_id":"1","quantity":4}`)
	if payload["success"] != true {
		t.Fatalf("update failed: %v", payload)
	}
	if got := f.carts.Get(testSession)["1"].Quantity; got != 4 {
		t.Errorf("quantity = %d, want 4", got)
	}

	_, payload = f.postJSON(t, f.handler.UpdateCartHandler, "/update_cart",
		`{"item_id":"404","quantity":4}`)
	if payload["success"] != false || payload["code"] != "not_found" {
		t.Fatalf("expected not_found failure, got %v", payload)
	}
}

func TestCheckoutRevalidates(t *testing.T) {
	f := newFixture()
	f.postJSON(t, f.handler.AddToCartHandler, "/add_to_cart", `{"item_id":"1","quantity":5}`)

	// Another customer claims 3 Burgers after the cart was filled.
	f.store.Placed = append(f.store.Placed,
		store.OrderRecord{OrderID: 1, Item: "Burger (x3)", Quantity: 3})

	_, payload := f.do(t, f.handler.CheckoutHandler, http.MethodGet, "/checkout", "", "")
	if payload["cart_adjusted"] != true {
		t.Fatalf("expected adjustment, got %v", payload)
	}
	if msg := payload["adjustment_message"].(string); !strings.Contains(msg, "Burger (adjusted to 2)") {
		t.Errorf("adjustment message = %q", msg)
	}
	if got := f.carts.Get(testSession)["1"].Quantity; got != 2 {
		t.Errorf("quantity after revalidation = %d, want 2", got)
	}
}

func TestCheckoutRemovesSoldOutLines(t *testing.T) {
	f := newFixture()
	f.postJSON(t, f.handler.AddToCartHandler, "/add_to_cart", `{"item_id":"2","quantity":2}`)

	f.store.Placed = append(f.store.Placed,
		store.OrderRecord{OrderID: 1, Item: "Cake (x3)", Quantity: 3})

	_, payload := f.do(t, f.handler.CheckoutHandler, http.MethodGet, "/checkout", "", "")
	if payload["cart_adjusted"] != true {
		t.Fatalf("expected adjustment, got %v", payload)
	}
	if msg := payload["adjustment_message"].(string); !strings.Contains(msg, "Cake (removed - out of stock)") {
		t.Errorf("adjustment message = %q", msg)
	}
	if f.carts.Len(testSession) != 0 {
		t.Error("sold-out line should be removed")
	}
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture()
	f.postJSON(t, f.handler.AddToCartHandler, "/add_to_cart", `{"item_id":"1","quantity":2}`)
	f.postJSON(t, f.handler.AddToCartHandler, "/add_to_cart", `{"item_id":"2","quantity":1}`)

	form := url.Values{"name": {"Dana"}, "phone": {"12345678"}, "membership": {"42"}}
	_, payload := f.do(t, f.handler.PlaceOrderHandler, http.MethodPost, "/place_order",
		form.Encode(), "application/x-www-form-urlencoded")
	if payload["success"] != true {
		t.Fatalf("place failed: %v", payload)
	}
	if payload["order_id"].(float64) <= 0 {
		t.Errorf("order_id = %v, want positive", payload["order_id"])
	}

	if len(f.store.Placed) != 1 {
		t.Fatalf("ledger holds %d orders, want 1", len(f.store.Placed))
	}
	rec := f.store.Placed[0]
	if rec.Item != "Burger (x2), Cake (x1)" || rec.Quantity != 3 {
		t.Errorf("stored order = %+v", rec)
	}
	if f.carts.Len(testSession) != 0 {
		t.Error("cart must be cleared after placement")
	}
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	f := newFixture()

	_, payload := f.do(t, f.handler.PlaceOrderHandler, http.MethodPost, "/place_order",
		"name=Dana", "application/x-www-form-urlencoded")
	if payload["success"] != false || payload["code"] != "empty_cart" {
		t.Fatalf("expected empty_cart failure, got %v", payload)
	}
}
