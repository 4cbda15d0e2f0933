package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/valmeris/atlas/internal/api/handlers"
	"github.com/valmeris/atlas/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(riskHandler *handlers.RiskHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", riskHandler.Health).Methods("GET")

	// API v1
	api := r.PathPrefix("/api/v1").Subrouter()

	// Snapshots
	api.HandleFunc("/portfolios/{id}/snapshots/latest", riskHandler.GetLatestSnapshot).Methods("GET")
	api.HandleFunc("/portfolios/{id}/snapshots/{date}", riskHandler.GetSnapshot).Methods("GET")
	api.HandleFunc("/portfolios/{id}/calculate", riskHandler.Calculate).Methods("POST")

	// Alerts
	api.HandleFunc("/portfolios/{id}/alerts/{date}", riskHandler.GetAlerts).Methods("GET")
	api.HandleFunc("/portfolios/{id}/alerts/{date}/ack", riskHandler.AcknowledgeAlert).Methods("POST")

	// Limits
	api.HandleFunc("/portfolios/{id}/limits", riskHandler.GetLimits).Methods("GET")
	api.HandleFunc("/portfolios/{id}/limits", riskHandler.UpsertLimit).Methods("PUT")

	// Backtesting
	api.HandleFunc("/portfolios/{id}/backtest", riskHandler.GetBacktestStats).Methods("GET")

	// Scenario catalogue
	api.HandleFunc("/scenarios", riskHandler.GetScenarios).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))
	r.Use(rateLimitMiddleware())

	return r
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitMiddleware throttles requests. On-demand calculations are
// expensive, so the whole API shares one token bucket.
func rateLimitMiddleware() mux.MiddlewareFunc {
	limiter := rate.NewLimiter(rate.Limit(50), 100)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Rate limit exceeded",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
