package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

// requestIDHeader carries the caller's correlation id; one is minted when
// absent.
const requestIDHeader = "X-Request-ID"

// apiKeyMiddleware validates the X-API-Key header. An empty expected key
// disables authentication.
func apiKeyMiddleware(expectedKey string, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expectedKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				metrics.RecordAuthRequest(false)
				sendError(w, "Missing X-API-Key header", http.StatusUnauthorized)
				return
			}
			if apiKey != expectedKey {
				metrics.RecordAuthRequest(false)
				sendError(w, "Invalid API key", http.StatusUnauthorized)
				return
			}
			metrics.RecordAuthRequest(true)
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger assigns each request a ksuid correlation id and logs one
// line per request with method, path, status, and duration.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = ksuid.New().String()
			}
			w.Header().Set(requestIDHeader, requestID)

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			reqLogger := logger.With().Str("request_id", requestID).Logger()
			next.ServeHTTP(rw, r.WithContext(reqLogger.WithContext(r.Context())))

			reqLogger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rw.statusCode).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// sendSuccess sends a successful JSON response
func sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	response := APIResponse{
		Success: true,
		Data:    data,
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// sendError sends an error JSON response
func sendError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := APIResponse{
		Success: false,
		Error:   message,
	}
	_ = json.NewEncoder(w).Encode(response)
}
