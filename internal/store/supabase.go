// internal/store/supabase.go
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"canteenbackend/internal/itemlist"
	"canteenbackend/internal/logger"
)

const (
	foodItemsTable = "food-items"
	orderListTable = "order-list"
	settingsTable  = "settings"

	supabaseTimeout = 10 * time.Second
)

// SupabaseStore talks to a hosted Supabase project through its PostgREST
// endpoint (/rest/v1/<table>).
//
// ReserveOrder here re-checks headroom immediately before the insert but
// cannot serialize against other writers the way the SQLite driver
// does; closing that window fully would need a server-side RPC.
type SupabaseStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// supaOrderRecord mirrors OrderRecord with created_at as a string, the
// shape PostgREST sends and accepts.
type supaOrderRecord struct {
	OrderID      int64  `json:"order_id"`
	CustomerName string `json:"customer_name"`
	Item         string `json:"item"`
	Quantity     int    `json:"quantity"`
	Phone        int64  `json:"phone"`
	Membership   int64  `json:"membership"`
	CreatedAt    string `json:"created_at,omitempty"`
}

type supaSetting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NewSupabaseStore builds a client for the given project URL and key.
func NewSupabaseStore(baseURL, apiKey string) (*SupabaseStore, error) {
	if baseURL == "" || apiKey == "" {
		return nil, fmt.Errorf("supabase URL and key are required")
	}
	return &SupabaseStore{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: supabaseTimeout},
	}, nil
}

func (s *SupabaseStore) Close() error { return nil }

func (s *SupabaseStore) endpoint(table, query string) string {
	u := fmt.Sprintf("%s/rest/v1/%s", s.baseURL, table)
	if query != "" {
		u += "?" + query
	}
	return u
}

func (s *SupabaseStore) do(ctx context.Context, method, url string, body io.Reader, extraHeaders map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("supabase request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read supabase response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return data, resp.StatusCode, fmt.Errorf("supabase returned %d: %s", resp.StatusCode, string(data))
	}
	return data, resp.StatusCode, nil
}

//
// --- Catalog ---
//

func (s *SupabaseStore) FoodItems(ctx context.Context) ([]FoodItem, error) {
	data, _, err := s.do(ctx, http.MethodGet,
		s.endpoint(foodItemsTable, "select=*&order=id"), nil, nil)
	if err != nil {
		return nil, err
	}

	var items []FoodItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode food items: %w", err)
	}
	return items, nil
}

func (s *SupabaseStore) FoodItemByID(ctx context.Context, id string) (*FoodItem, error) {
	query := "select=*&id=eq." + url.QueryEscape(id)
	data, _, err := s.do(ctx, http.MethodGet, s.endpoint(foodItemsTable, query), nil, nil)
	if err != nil {
		return nil, err
	}

	var items []FoodItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode food item: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return &items[0], nil
}

//
// --- Order ledger ---
//

func (s *SupabaseStore) Orders(ctx context.Context) ([]OrderRecord, error) {
	data, _, err := s.do(ctx, http.MethodGet,
		s.endpoint(orderListTable, "select=*&order=created_at.desc"), nil, nil)
	if err != nil {
		return nil, err
	}

	var raw []supaOrderRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}

	orders := make([]OrderRecord, 0, len(raw))
	for _, r := range raw {
		rec := OrderRecord{
			OrderID:      r.OrderID,
			CustomerName: r.CustomerName,
			Item:         r.Item,
			Quantity:     r.Quantity,
			Phone:        r.Phone,
			Membership:   r.Membership,
		}
		if t, err := time.Parse(TimeFormat, r.CreatedAt); err == nil {
			rec.CreatedAt = t
		}
		orders = append(orders, rec)
	}
	return orders, nil
}

func (s *SupabaseStore) ReserveOrder(ctx context.Context, rec OrderRecord) error {
	// Best-effort headroom re-check right before the insert.
	items, err := s.FoodItems(ctx)
	if err != nil {
		return err
	}
	orders, err := s.Orders(ctx)
	if err != nil {
		return err
	}

	configured := make(map[string]int, len(items))
	for _, item := range items {
		configured[item.Name] = item.Quantity
	}
	ordered := make(map[string]int)
	for _, order := range orders {
		for _, line := range itemlist.Decode(order.Item, order.Quantity) {
			ordered[line.Name] += line.Quantity
		}
	}

	for _, line := range itemlist.Decode(rec.Item, rec.Quantity) {
		total, ok := configured[line.Name]
		if !ok {
			return ErrNotFound
		}
		available := total - ordered[line.Name]
		if line.Quantity > available {
			return &InsufficientStockError{
				ItemName:  line.Name,
				Requested: line.Quantity,
				Available: available,
			}
		}
	}

	payload, err := json.Marshal(supaOrderRecord{
		OrderID:      rec.OrderID,
		CustomerName: rec.CustomerName,
		Item:         rec.Item,
		Quantity:     rec.Quantity,
		Phone:        rec.Phone,
		Membership:   rec.Membership,
		CreatedAt:    rec.CreatedAt.Format(TimeFormat),
	})
	if err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}

	data, _, err := s.do(ctx, http.MethodPost, s.endpoint(orderListTable, ""),
		bytes.NewReader(payload), map[string]string{"Prefer": "return=representation"})
	if err != nil {
		return err
	}

	var inserted []supaOrderRecord
	if err := json.Unmarshal(data, &inserted); err != nil || len(inserted) == 0 {
		logger.LogWarn("Order insert returned no rows for order %d", rec.OrderID)
		return ErrInsertFailed
	}
	return nil
}

func (s *SupabaseStore) DeleteOrder(ctx context.Context, orderID int64) error {
	query := "order_id=eq." + strconv.FormatInt(orderID, 10)
	_, _, err := s.do(ctx, http.MethodDelete, s.endpoint(orderListTable, query), nil, nil)
	return err
}

func (s *SupabaseStore) DeleteAllOrders(ctx context.Context) error {
	orders, err := s.Orders(ctx)
	if err != nil {
		return err
	}
	for _, order := range orders {
		if err := s.DeleteOrder(ctx, order.OrderID); err != nil {
			return fmt.Errorf("failed to delete order %d: %w", order.OrderID, err)
		}
	}
	return nil
}

//
// --- Settings ---
//

func (s *SupabaseStore) BookingsClosed(ctx context.Context) (bool, error) {
	query := "select=*&key=eq." + bookingsClosedKey
	data, _, err := s.do(ctx, http.MethodGet, s.endpoint(settingsTable, query), nil, nil)
	if err != nil {
		return false, err
	}

	var settings []supaSetting
	if err := json.Unmarshal(data, &settings); err != nil {
		return false, fmt.Errorf("failed to decode settings: %w", err)
	}
	if len(settings) == 0 {
		return false, nil
	}
	return settings[0].Value == "true", nil
}

func (s *SupabaseStore) SetBookingsClosed(ctx context.Context, closed bool) error {
	payload, err := json.Marshal(supaSetting{Key: bookingsClosedKey, Value: boolValue(closed)})
	if err != nil {
		return fmt.Errorf("failed to encode setting: %w", err)
	}

	_, _, err = s.do(ctx, http.MethodPost, s.endpoint(settingsTable, ""),
		bytes.NewReader(payload), map[string]string{"Prefer": "resolution=merge-duplicates"})
	return err
}
