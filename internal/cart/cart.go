// internal/cart/cart.go
//
// Package cart holds per-visitor shopping carts in memory, keyed by a
// session token carried in a cookie. Carts are bounded by live stock on
// every add: the admission policy clamps the requested quantity to the
// available headroom instead of rejecting outright, and only refuses
// when no headroom is left at all.
package cart

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"canteenbackend/internal/logger"
	"canteenbackend/internal/store"
)

var (
	ErrOutOfStock = errors.New("item is out of stock")
	ErrNotFound   = errors.New("item not found in cart")
)

// Entry is one cart line, keyed by catalog item ID in the cart map.
type Entry struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Image    string  `json:"image"`
}

// AddResult reports the outcome of a clamped add.
type AddResult struct {
	Added    int
	CartSize int
	Adjusted bool
	Message  string
}

type session struct {
	entries  map[string]*Entry
	lastUsed time.Time
}

// Manager owns all live cart sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
}

const DefaultTTL = 2 * time.Hour

func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		sessions: make(map[string]*session),
		ttl:      ttl,
	}
}

// NewSessionToken mints a fresh cart session token.
func NewSessionToken() string {
	return uuid.NewString()
}

// touch returns the session for token, creating it if needed.
// Caller must hold m.mu.
func (m *Manager) touch(token string) *session {
	s, ok := m.sessions[token]
	if !ok {
		s = &session{entries: make(map[string]*Entry)}
		m.sessions[token] = s
	}
	s.lastUsed = time.Now()
	return s
}

// Add reserves up to requestedQty units of item in the session's cart.
// alreadyOrdered is the quantity the ledger has claimed for this item
// name; headroom is what is left after subtracting the cart's own
// holding. Returns ErrOutOfStock (cart unchanged) when headroom is
// exhausted, otherwise adds min(requestedQty, headroom) and flags the
// result as adjusted if it had to clamp.
func (m *Manager) Add(token string, item store.FoodItem, alreadyOrdered, requestedQty int) (AddResult, error) {
	if requestedQty < 1 {
		requestedQty = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.touch(token)

	currentCartQty := 0
	if entry, ok := s.entries[item.ID]; ok {
		currentCartQty = entry.Quantity
	}

	availableStock := item.Quantity - alreadyOrdered
	canAdd := availableStock - currentCartQty
	if canAdd <= 0 {
		return AddResult{}, ErrOutOfStock
	}

	actualAdd := requestedQty
	if actualAdd > canAdd {
		actualAdd = canAdd
	}

	if entry, ok := s.entries[item.ID]; ok {
		entry.Quantity += actualAdd
	} else {
		s.entries[item.ID] = &Entry{
			Name:     item.Name,
			Price:    item.Price,
			Quantity: actualAdd,
			Image:    item.Image,
		}
	}

	result := AddResult{Added: actualAdd, CartSize: len(s.entries)}
	if actualAdd < requestedQty {
		result.Adjusted = true
		result.Message = fmt.Sprintf("Only %d items were added due to stock limitations.", actualAdd)
	}
	return result, nil
}

// Update sets the quantity of an existing cart line, removing it when
// the new quantity drops to zero or below. It does not re-check stock;
// checkout revalidation catches anything that grew past headroom.
func (m *Manager) Update(token, itemID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.touch(token)
	if _, ok := s.entries[itemID]; !ok {
		return ErrNotFound
	}

	if quantity <= 0 {
		delete(s.entries, itemID)
	} else {
		s.entries[itemID].Quantity = quantity
	}
	return nil
}

// Headroom reports the current purchasable quantity for one cart line's
// item. ok=false means the item could not be resolved and the line
// should be left alone.
type Headroom func(itemID string) (name string, maxAllowed int, ok bool)

// Revalidate re-checks every cart line against live headroom just
// before checkout, closing the window between cart assembly and
// payment. Lines above headroom are reduced to it, or removed when no
// headroom remains. Returns a human-readable note per adjusted line.
func (m *Manager) Revalidate(token string, headroom Headroom) (messages []string, changed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.touch(token)
	for itemID, entry := range s.entries {
		name, maxAllowed, ok := headroom(itemID)
		if !ok {
			continue
		}
		if entry.Quantity <= maxAllowed {
			continue
		}
		if maxAllowed <= 0 {
			delete(s.entries, itemID)
			messages = append(messages, fmt.Sprintf("%s (removed - out of stock)", name))
		} else {
			entry.Quantity = maxAllowed
			messages = append(messages, fmt.Sprintf("%s (adjusted to %d)", name, maxAllowed))
		}
		changed = true
	}
	return messages, changed
}

// Get returns a copy of the session's cart, keyed by item ID.
func (m *Manager) Get(token string) map[string]Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.touch(token)
	cart := make(map[string]Entry, len(s.entries))
	for id, entry := range s.entries {
		cart[id] = *entry
	}
	return cart
}

// Len returns the number of distinct lines in the session's cart.
func (m *Manager) Len(token string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.touch(token).entries)
}

// Clear empties the session's cart.
func (m *Manager) Clear(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch(token).entries = make(map[string]*Entry)
}

// CleanExpiredSessions periodically drops carts idle past the TTL.
// Run as a background goroutine.
func (m *Manager) CleanExpiredSessions() {
	ticker := time.NewTicker(time.Minute * 5)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		for token, s := range m.sessions {
			if time.Since(s.lastUsed) > m.ttl {
				delete(m.sessions, token)
			}
		}
		m.mu.Unlock()
		logger.LogInfo("Cart session cleanup completed")
	}
}
