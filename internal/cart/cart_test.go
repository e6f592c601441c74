package cart

import (
	"errors"
	"testing"
	"time"

	"canteenbackend/internal/store"
)

func burger(quantity int) store.FoodItem {
	return store.FoodItem{ID: "1", Name: "Burger", Price: 1.5, Quantity: quantity, Image: "burger.png"}
}

func TestAddClampsToHeadroom(t *testing.T) {
	m := NewManager(time.Minute)
	token := NewSessionToken()

	// 5 configured, nothing ordered, empty cart: asking for 10 yields 5.
	result, err := m.Add(token, burger(5), 0, 10)
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if result.Added != 5 {
		t.Errorf("Added = %d, want 5", result.Added)
	}
	if !result.Adjusted {
		t.Error("expected adjusted result")
	}
	if result.Message == "" {
		t.Error("expected adjustment message")
	}
	if result.CartSize != 1 {
		t.Errorf("CartSize = %d, want 1", result.CartSize)
	}
}

func TestAddRefusesWhenNoHeadroom(t *testing.T) {
	m := NewManager(time.Minute)
	token := NewSessionToken()

	// Configured 3, already ordered 3: zero headroom refuses outright.
	_, err := m.Add(token, burger(3), 3, 1)
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("Add() error = %v, want ErrOutOfStock", err)
	}
	if m.Len(token) != 0 {
		t.Error("cart must be unchanged after refusal")
	}
}

func TestAddAccountsForCartHolding(t *testing.T) {
	m := NewManager(time.Minute)
	token := NewSessionToken()

	if _, err := m.Add(token, burger(5), 0, 3); err != nil {
		t.Fatalf("first Add() error: %v", err)
	}

	// 2 units of headroom left; a second add for 4 clamps to 2.
	result, err := m.Add(token, burger(5), 0, 4)
	if err != nil {
		t.Fatalf("second Add() error: %v", err)
	}
	if result.Added != 2 || !result.Adjusted {
		t.Errorf("second add = %+v, want 2 added, adjusted", result)
	}

	entry := m.Get(token)["1"]
	if entry.Quantity != 5 {
		t.Errorf("cart quantity = %d, want 5", entry.Quantity)
	}

	// Headroom is now exactly zero.
	if _, err := m.Add(token, burger(5), 0, 1); !errors.Is(err, ErrOutOfStock) {
		t.Errorf("third Add() error = %v, want ErrOutOfStock", err)
	}
}

func TestAddDefaultsQuantityToOne(t *testing.T) {
	m := NewManager(time.Minute)
	token := NewSessionToken()

	result, err := m.Add(token, burger(5), 0, 0)
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if result.Added != 1 || result.Adjusted {
		t.Errorf("Add with zero quantity = %+v, want 1 added, not adjusted", result)
	}
}

func TestUpdate(t *testing.T) {
	m := NewManager(time.Minute)
	token := NewSessionToken()

	if _, err := m.Add(token, burger(10), 0, 2); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	// Update does not re-check stock, even past headroom.
	if err := m.Update(token, "1", 50); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if got := m.Get(token)["1"].Quantity; got != 50 {
		t.Errorf("quantity after update = %d, want 50", got)
	}

	// Zero or negative removes the line.
	if err := m.Update(token, "1", 0); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if m.Len(token) != 0 {
		t.Error("expected empty cart after zero-quantity update")
	}

	if err := m.Update(token, "404", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestRevalidate(t *testing.T) {
	m := NewManager(time.Minute)
	token := NewSessionToken()

	if _, err := m.Add(token, burger(10), 0, 5); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	cake := store.FoodItem{ID: "2", Name: "Cake", Price: 2, Quantity: 10}
	if _, err := m.Add(token, cake, 0, 3); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	// Burger headroom dropped to 2, Cake sold out entirely.
	headroom := func(itemID string) (string, int, bool) {
		switch itemID {
		case "1":
			return "Burger", 2, true
		case "2":
			return "Cake", 0, true
		}
		return "", 0, false
	}

	messages, changed := m.Revalidate(token, headroom)
	if !changed {
		t.Fatal("expected revalidation to change the cart")
	}
	if len(messages) != 2 {
		t.Fatalf("messages = %v, want 2 entries", messages)
	}

	entries := m.Get(token)
	if got := entries["1"].Quantity; got != 2 {
		t.Errorf("Burger quantity = %d, want 2", got)
	}
	if _, ok := entries["2"]; ok {
		t.Error("Cake line should have been removed")
	}
}

func TestRevalidateNoChanges(t *testing.T) {
	m := NewManager(time.Minute)
	token := NewSessionToken()

	if _, err := m.Add(token, burger(10), 0, 2); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	messages, changed := m.Revalidate(token, func(string) (string, int, bool) {
		return "Burger", 8, true
	})
	if changed || len(messages) != 0 {
		t.Errorf("Revalidate() = (%v, %v), want no changes", messages, changed)
	}
}

func TestRevalidateSkipsUnresolvableItems(t *testing.T) {
	m := NewManager(time.Minute)
	token := NewSessionToken()

	if _, err := m.Add(token, burger(10), 0, 5); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	_, changed := m.Revalidate(token, func(string) (string, int, bool) {
		return "", 0, false
	})
	if changed {
		t.Error("unresolvable items must be left alone")
	}
	if got := m.Get(token)["1"].Quantity; got != 5 {
		t.Errorf("quantity = %d, want 5", got)
	}
}

func TestClear(t *testing.T) {
	m := NewManager(time.Minute)
	token := NewSessionToken()

	if _, err := m.Add(token, burger(10), 0, 2); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	m.Clear(token)
	if m.Len(token) != 0 {
		t.Error("expected empty cart after Clear")
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	m := NewManager(time.Minute)
	a, b := NewSessionToken(), NewSessionToken()

	if _, err := m.Add(a, burger(10), 0, 2); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if m.Len(b) != 0 {
		t.Error("session b must not see session a's cart")
	}
}
