// internal/config/config.go
package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"canteenbackend/internal/logger"
)

//
// --- Loaders ---
//

// LoadEnv reads the .env file, falling back to system environment variables.
func LoadEnv() {
	wd, err := os.Getwd()
	if err != nil {
		log.Printf("Could not determine working directory: %v", err)
	}

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file found in %s. Using system environment variables.", wd)
	} else {
		log.Printf("Loaded environment variables from .env file in %s", wd)
	}
}

// LoggerConfig returns a logger.Config struct populated from environment
func LoggerConfig() logger.Config {
	logDir := os.Getenv("LOGS_DIRECTORY")
	if logDir == "" {
		logDir = "./logs"
	}

	logFormat := os.Getenv("LOG_FILE_FORMAT")
	if logFormat == "" {
		logFormat = "server_%s.log"
	}

	timezone := os.Getenv("TIME_ZONE")
	if timezone == "" {
		timezone = "Asia/Kuwait"
	}

	return logger.Config{
		LogsDirectory: logDir,
		LogFileFormat: logFormat,
		TimeZone:      timezone,
	}
}

//
// --- Getters (exported) ---
//

// StoreDriver selects the table-store backend: "sqlite" (default) or "supabase".
func StoreDriver() string {
	driver := strings.ToLower(os.Getenv("STORE_DRIVER"))
	if driver == "" {
		return "sqlite"
	}
	return driver
}

// SQLitePath is the database file for the sqlite store driver.
func SQLitePath() string {
	path := os.Getenv("SQLITE_PATH")
	if path == "" {
		return "./data/canteen.db"
	}
	return path
}

func SupabaseURL() string {
	return os.Getenv("SUPA_URL")
}

func SupabaseKey() string {
	return os.Getenv("SUPA_KEY")
}

// AdminPassword is the shared secret gating admin mutations
// (delete/clear orders, bookings toggle).
func AdminPassword() string {
	return os.Getenv("DELETE_PASS")
}

// BookingsClosedDefault seeds the persisted bookings flag on first boot.
func BookingsClosedDefault() bool {
	return strings.ToLower(os.Getenv("BOOKINGS_CLOSED")) == "true"
}

// ExcelExportEnabled gates the /export_excel endpoint.
// Defaults to enabled; set EXCEL_EXPORT=false to turn the export off.
func ExcelExportEnabled() bool {
	return strings.ToLower(os.Getenv("EXCEL_EXPORT")) != "false"
}

// SaleDate is the human-readable sale date shown on the storefront.
func SaleDate() string {
	date := os.Getenv("SALE_DATE")
	if date == "" {
		return "May 31, 2025"
	}
	return date
}

// ServerAddress builds the listen address from environment variables.
func ServerAddress() string {
	host := os.Getenv("SERVER_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "5051"
	}
	return host + ":" + port
}
