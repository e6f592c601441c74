// internal/middleware/middleware.go
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"canteenbackend/internal/logger"
)

// Request context keys
type contextKey string

const (
	RequestIDKey    contextKey = "request_id"
	SessionTokenKey contextKey = "cart_session"
)

// SessionCookieName is the cookie carrying the visitor's cart token.
const SessionCookieName = "cart_session"

// APIMiddleware is the standard chain for storefront and admin endpoints.
func APIMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return RequestID(
		Logging(
			Session(
				ErrorHandling(next),
			),
		),
	)
}

// RequestID middleware adds a unique request ID to each request
func RequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// Logging middleware logs method, path and timing for every request.
func Logging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		logger.LogInfo("%s %s -> %d from %s in %v",
			r.Method, r.URL.Path, rw.statusCode, logger.GetClientIP(r), time.Since(start))
	}
}

// Session ensures every visitor has a cart session cookie, minting one
// on first contact, and exposes the token through the request context.
func Session(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var token string
		if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
			token = cookie.Value
		} else {
			token = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), SessionTokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// ErrorHandling middleware provides panic recovery with a JSON response.
func ErrorHandling(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.LogError("Panic in handler for %s %s: %v", r.Method, r.URL.Path, err)
				WriteError(w, http.StatusInternalServerError, "internal_error",
					"An internal error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	}
}

// SessionToken retrieves the cart session token from request context.
func SessionToken(ctx context.Context) string {
	if token, ok := ctx.Value(SessionTokenKey).(string); ok {
		return token
	}
	return ""
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes the standard failure shape:
// {"success": false, "error": "...", "code": "..."}.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	WriteJSON(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

// ParseJSONRequest parses a JSON request body into the provided struct.
func ParseJSONRequest(r *http.Request, v interface{}) error {
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return fmt.Errorf("content-type must be application/json")
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields() // Strict parsing
	return decoder.Decode(v)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
