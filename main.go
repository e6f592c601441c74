// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"canteenbackend/internal/admin"
	"canteenbackend/internal/cart"
	"canteenbackend/internal/config"
	"canteenbackend/internal/logger"
	"canteenbackend/internal/middleware"
	"canteenbackend/internal/orders"
	"canteenbackend/internal/shop"
	"canteenbackend/internal/store"
)

type App struct {
	addr          string
	mux           *http.ServeMux
	connections   sync.WaitGroup
	totalRequests int64
}

func main() {
	// Step 1: configuration first
	config.LoadEnv()

	// Step 2: logging
	if err := logger.SetupLogger(config.LoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.LogInfo("Environment loaded. Logger ready.")

	// Step 3: table store
	st, err := openStore()
	if err != nil {
		logger.LogFatal("Failed to open store: %v", err)
	}
	defer st.Close()

	// Step 4: services
	carts := cart.NewManager(cart.DefaultTTL)
	orderSvc := orders.NewService(st, carts)

	shopHandler := shop.NewHandler(st, carts, orderSvc)
	adminHandler := admin.NewHandler(st)

	// Step 5: app
	app := &App{
		addr: config.ServerAddress(),
		mux:  routes(shopHandler, adminHandler),
	}

	// Step 6: background tasks
	go carts.CleanExpiredSessions()

	// Step 7: run server
	app.Run()
}

func openStore() (store.Store, error) {
	driver := config.StoreDriver()
	logger.LogInfo("Using %s store driver", driver)

	if driver == "supabase" {
		return store.NewSupabaseStore(config.SupabaseURL(), config.SupabaseKey())
	}
	return store.OpenSQLite(config.SQLitePath(), config.BookingsClosedDefault())
}

// routes sets up all API routes
func routes(shopHandler *shop.Handler, adminHandler *admin.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/", middleware.APIMiddleware(shopHandler.HomeHandler))
	mux.HandleFunc("/bookings_closed", middleware.APIMiddleware(shopHandler.BookingsClosedHandler))
	mux.HandleFunc("/add_to_cart", middleware.APIMiddleware(shopHandler.AddToCartHandler))
	mux.HandleFunc("/get_cart", middleware.APIMiddleware(shopHandler.GetCartHandler))
	mux.HandleFunc("/update_cart", middleware.APIMiddleware(shopHandler.UpdateCartHandler))
	mux.HandleFunc("/checkout", middleware.APIMiddleware(shopHandler.CheckoutHandler))
	mux.HandleFunc("/place_order", middleware.APIMiddleware(shopHandler.PlaceOrderHandler))

	mux.HandleFunc("/admin", middleware.APIMiddleware(adminHandler.SummaryHandler))
	mux.HandleFunc("/toggle_bookings", middleware.APIMiddleware(adminHandler.ToggleBookingsHandler))
	mux.HandleFunc("/clear_orders", middleware.APIMiddleware(adminHandler.ClearOrdersHandler))
	mux.HandleFunc("/delete_order", middleware.APIMiddleware(adminHandler.DeleteOrderHandler))
	mux.HandleFunc("/export_excel", middleware.APIMiddleware(adminHandler.ExportExcelHandler))

	return mux
}

// Run starts the HTTP server and shuts it down gracefully on SIGTERM.
func (a *App) Run() {
	server := &http.Server{
		Addr:         a.addr,
		Handler:      a.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.LogInfo("Starting server on %s", a.addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.LogFatal("Server failed: %v", err)
		}
	}()

	<-stop
	logger.LogInfo("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.LogError("Server shutdown error: %v", err)
	}

	logger.LogInfo("Waiting for active connections to finish...")
	a.connections.Wait()
	logger.LogInfo("All connections closed. Total requests handled: %d", atomic.LoadInt64(&a.totalRequests))
	logger.LogInfo("Server shut down gracefully")
}

// Handler assembles outer middleware around the main mux
func (a *App) Handler() http.Handler {
	var handler http.Handler = a.mux

	handler = a.trackConnections(handler)
	handler = withTimeout(handler, 15*time.Second)

	return handler
}

// Middleware: timeout handler
func withTimeout(h http.Handler, timeout time.Duration) http.Handler {
	return http.TimeoutHandler(h, timeout, "Request timed out")
}

// Middleware: track active connections and total requests
func (a *App) trackConnections(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.connections.Add(1)
		atomic.AddInt64(&a.totalRequests, 1)
		defer a.connections.Done()

		h.ServeHTTP(w, r)
	})
}
