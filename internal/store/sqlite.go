// internal/store/sqlite.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"canteenbackend/internal/itemlist"
	"canteenbackend/internal/logger"
)

// Database connection pool configuration
const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = time.Hour
	connMaxIdleTime = time.Minute * 15
	queryTimeout    = time.Second * 30
)

const foodItemsSchema = `
	CREATE TABLE IF NOT EXISTS food_items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		price REAL NOT NULL DEFAULT 0,
		quantity INTEGER NOT NULL DEFAULT 0,
		image TEXT DEFAULT ''
	);`

const orderListSchema = `
	CREATE TABLE IF NOT EXISTS order_list (
		order_id INTEGER PRIMARY KEY,
		customer_name TEXT NOT NULL,
		item TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0,
		phone INTEGER NOT NULL DEFAULT 0,
		membership INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_order_list_created_at ON order_list(created_at);`

const settingsSchema = `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`

const bookingsClosedKey = "bookings_closed"

// SQLiteStore keeps the catalog, ledger and settings in a local SQLite
// database. It is the default driver and the only one whose
// ReserveOrder check-and-insert runs inside a single transaction.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path,
// provisions the schema, and seeds the bookings flag.
func OpenSQLite(path string, bookingsClosedDefault bool) (*SQLiteStore, error) {
	db, err := openWithRetry(path, 3)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := s.seedSettings(bookingsClosedDefault); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed settings: %w", err)
	}
	return s, nil
}

func openWithRetry(path string, maxRetries int) (*sql.DB, error) {
	var db *sql.DB
	var err error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err = sql.Open("sqlite", path)
		if err != nil {
			logger.LogWarn("Database connection attempt %d failed: %v", attempt, err)
			if attempt < maxRetries {
				time.Sleep(time.Duration(attempt) * time.Second)
				continue
			}
			return nil, fmt.Errorf("failed to open database after %d attempts: %w", maxRetries, err)
		}

		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxIdleConns)
		db.SetConnMaxLifetime(connMaxLifetime)
		db.SetConnMaxIdleTime(connMaxIdleTime)

		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		err = db.PingContext(ctx)
		cancel()

		if err != nil {
			logger.LogWarn("Database ping attempt %d failed: %v", attempt, err)
			db.Close()
			if attempt < maxRetries {
				time.Sleep(time.Duration(attempt) * time.Second)
				continue
			}
			return nil, fmt.Errorf("failed to ping database after %d attempts: %w", maxRetries, err)
		}

		if err := enablePragmas(db); err != nil {
			logger.LogWarn("Failed to enable some database optimizations: %v", err)
			// Pragma failures are not fatal.
		}

		logger.LogInfo("Database connection established successfully (attempt %d)", attempt)
		return db, nil
	}

	return nil, fmt.Errorf("failed to initialize database after %d attempts", maxRetries)
}

func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	var lastErr error
	for _, pragma := range pragmas {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		_, err := db.ExecContext(ctx, pragma)
		cancel()

		if err != nil {
			logger.LogWarn("Failed to execute %s: %v", pragma, err)
			lastErr = err
		}
	}
	return lastErr
}

func (s *SQLiteStore) createTables() error {
	for _, schema := range []string{foodItemsSchema, orderListSchema, settingsSchema} {
		if _, err := s.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) seedSettings(bookingsClosedDefault bool) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
		bookingsClosedKey, boolValue(bookingsClosedDefault))
	return err
}

func boolValue(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

//
// --- Catalog ---
//

func (s *SQLiteStore) FoodItems(ctx context.Context) ([]FoodItem, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, price, quantity, image FROM food_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query food items: %w", err)
	}
	defer rows.Close()

	var items []FoodItem
	for rows.Next() {
		var item FoodItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Price, &item.Quantity, &item.Image); err != nil {
			return nil, fmt.Errorf("failed to scan food item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating food items: %w", err)
	}
	return items, nil
}

func (s *SQLiteStore) FoodItemByID(ctx context.Context, id string) (*FoodItem, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var item FoodItem
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, price, quantity, image FROM food_items WHERE id = ?`, id).
		Scan(&item.ID, &item.Name, &item.Price, &item.Quantity, &item.Image)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query food item %s: %w", id, err)
	}
	return &item, nil
}

// UpsertFoodItem creates or replaces a catalog row. Used for seeding
// and tests; the storefront itself never mutates the catalog.
func (s *SQLiteStore) UpsertFoodItem(ctx context.Context, item FoodItem) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO food_items (id, name, price, quantity, image) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, price=excluded.price,
			quantity=excluded.quantity, image=excluded.image`,
		item.ID, item.Name, item.Price, item.Quantity, item.Image)
	if err != nil {
		return fmt.Errorf("failed to upsert food item %s: %w", item.ID, err)
	}
	return nil
}

//
// --- Order ledger ---
//

func (s *SQLiteStore) Orders(ctx context.Context) ([]OrderRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id, customer_name, item, quantity, phone, membership, created_at
		 FROM order_list ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []OrderRecord
	for rows.Next() {
		rec, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return orders, nil
}

func scanOrder(rows *sql.Rows) (OrderRecord, error) {
	var rec OrderRecord
	var createdAt string
	if err := rows.Scan(&rec.OrderID, &rec.CustomerName, &rec.Item, &rec.Quantity,
		&rec.Phone, &rec.Membership, &createdAt); err != nil {
		return rec, fmt.Errorf("failed to scan order: %w", err)
	}
	if t, err := time.Parse(TimeFormat, createdAt); err == nil {
		rec.CreatedAt = t
	}
	return rec, nil
}

// ReserveOrder re-checks headroom for every line of the order and
// inserts the record, all inside one immediate transaction. Two
// concurrent reservations for the last unit serialize here; the loser
// gets ErrInsufficientStock.
func (s *SQLiteStore) ReserveOrder(ctx context.Context, rec OrderRecord) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reservation: %w", err)
	}
	defer tx.Rollback()

	// Grab the write lock up front so the headroom check and the insert
	// see the same ledger state.
	if _, err := tx.ExecContext(ctx, `UPDATE settings SET value = value WHERE key = ?`, bookingsClosedKey); err != nil {
		return fmt.Errorf("failed to lock ledger: %w", err)
	}

	ordered, err := orderedWithinTx(ctx, tx)
	if err != nil {
		return err
	}

	for _, line := range itemlist.Decode(rec.Item, rec.Quantity) {
		var configured int
		err := tx.QueryRowContext(ctx,
			`SELECT quantity FROM food_items WHERE name = ?`, line.Name).Scan(&configured)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check stock for %s: %w", line.Name, err)
		}

		available := configured - ordered[line.Name]
		if line.Quantity > available {
			return &InsufficientStockError{
				ItemName:  line.Name,
				Requested: line.Quantity,
				Available: available,
			}
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO order_list (order_id, customer_name, item, quantity, phone, membership, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.OrderID, rec.CustomerName, rec.Item, rec.Quantity, rec.Phone, rec.Membership,
		rec.CreatedAt.Format(TimeFormat))
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrInsertFailed
	}

	return tx.Commit()
}

// orderedWithinTx tallies already-claimed quantities per item name from
// the full ledger, seen through the reservation transaction.
func orderedWithinTx(ctx context.Context, tx *sql.Tx) (map[string]int, error) {
	rows, err := tx.QueryContext(ctx, `SELECT item, quantity FROM order_list`)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	defer rows.Close()

	ordered := make(map[string]int)
	for rows.Next() {
		var item string
		var qty int
		if err := rows.Scan(&item, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		for _, line := range itemlist.Decode(item, qty) {
			ordered[line.Name] += line.Quantity
		}
	}
	return ordered, rows.Err()
}

func (s *SQLiteStore) DeleteOrder(ctx context.Context, orderID int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM order_list WHERE order_id = ?`, orderID)
	if err != nil {
		return fmt.Errorf("failed to delete order %d: %w", orderID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteAllOrders(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM order_list`); err != nil {
		return fmt.Errorf("failed to clear orders: %w", err)
	}
	return nil
}

//
// --- Settings ---
//

func (s *SQLiteStore) BookingsClosed(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, bookingsClosedKey).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read bookings flag: %w", err)
	}
	return value == "true", nil
}

func (s *SQLiteStore) SetBookingsClosed(ctx context.Context, closed bool) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		bookingsClosedKey, boolValue(closed))
	if err != nil {
		return fmt.Errorf("failed to update bookings flag: %w", err)
	}
	return nil
}
