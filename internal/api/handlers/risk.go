package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/valmeris/atlas/internal/batch"
	"github.com/valmeris/atlas/internal/risk"
	"github.com/valmeris/atlas/internal/store"
	"github.com/valmeris/atlas/pkg/database"
	"github.com/valmeris/atlas/pkg/logger"
	"github.com/valmeris/atlas/pkg/redis"
)

// snapshotCacheTTL bounds staleness of cached snapshot reads.
// Snapshots are immutable per (portfolio, date, version), so the TTL
// only matters across recomputations.
const snapshotCacheTTL = 5 * time.Minute

// RiskHandler handles risk API endpoints
// ⭐ SSOT: 리스크 API 핸들러는 이 구조체에서만
type RiskHandler struct {
	runner        *batch.Runner
	portfolios    *store.PortfolioRepository
	snapshots     *store.SnapshotRepository
	db            *database.DB
	cache         *redis.Cache
	engineVersion string
	logger        *logger.Logger
}

// NewRiskHandler creates a new risk handler
func NewRiskHandler(
	runner *batch.Runner,
	portfolios *store.PortfolioRepository,
	snapshots *store.SnapshotRepository,
	db *database.DB,
	cache *redis.Cache,
	engineVersion string,
	log *logger.Logger,
) *RiskHandler {
	return &RiskHandler{
		runner:        runner,
		portfolios:    portfolios,
		snapshots:     snapshots,
		db:            db,
		cache:         cache,
		engineVersion: engineVersion,
		logger:        log,
	}
}

// Health returns server and database health
// GET /health
func (h *RiskHandler) Health(w http.ResponseWriter, r *http.Request) {
	status, err := h.db.HealthCheck(r.Context())
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"service":  "atlas-risk-api",
		"database": status,
	})
}

// GetSnapshot returns the snapshot for a portfolio and date
// GET /api/v1/portfolios/{id}/snapshots/{date}
func (h *RiskHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	portfolioID := vars["id"]

	asOf, err := time.Parse("2006-01-02", vars["date"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date format (expected YYYY-MM-DD)")
		return
	}

	var snapshot risk.RiskSnapshot
	cacheKey := "snapshot:" + portfolioID + ":" + vars["date"] + ":" + h.engineVersion
	err = h.cache.GetOrSet(ctx, cacheKey, &snapshot, snapshotCacheTTL, func() (interface{}, error) {
		s, err := h.snapshots.Get(ctx, portfolioID, asOf, h.engineVersion)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Snapshot not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get snapshot")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve snapshot")
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

// GetLatestSnapshot returns the most recent snapshot for a portfolio
// GET /api/v1/portfolios/{id}/snapshots/latest
func (h *RiskHandler) GetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	portfolioID := mux.Vars(r)["id"]

	snapshot, err := h.snapshots.Latest(ctx, portfolioID, h.engineVersion)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No snapshots for portfolio")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get latest snapshot")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve snapshot")
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

// CalculateRequest triggers an on-demand computation
type CalculateRequest struct {
	AsOf string `json:"as_of"` // YYYY-MM-DD, default today
}

// CalculateResponse reports the outcome of an on-demand computation
type CalculateResponse struct {
	CalculationID string            `json:"calculation_id"`
	Status        risk.CalcStatus   `json:"status"`
	Snapshot      *risk.RiskSnapshot `json:"snapshot,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// Calculate runs the engine for one portfolio on demand.
// Interactive path: the engine deadline applies, not the batch budget.
// POST /api/v1/portfolios/{id}/calculate
func (h *RiskHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	portfolioID := mux.Vars(r)["id"]

	var req CalculateRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	asOf := time.Now().UTC().Truncate(24 * time.Hour)
	if req.AsOf != "" {
		var err error
		asOf, err = time.Parse("2006-01-02", req.AsOf)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'as_of' date format (expected YYYY-MM-DD)")
			return
		}
	}

	portfolio, err := h.portfolios.GetPortfolio(ctx, portfolioID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Portfolio not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get portfolio")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve portfolio")
		return
	}

	calcID := uuid.New().String()
	h.logger.WithFields(map[string]interface{}{
		"calculation_id": calcID,
		"portfolio":      portfolioID,
		"as_of":          asOf.Format("2006-01-02"),
	}).Info("On-demand calculation triggered")

	snapshot, err := h.runner.ComputeOne(ctx, *portfolio, asOf)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, risk.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		h.logger.WithError(err).WithField("calculation_id", calcID).Error("On-demand calculation failed")
		respondJSON(w, status, CalculateResponse{
			CalculationID: calcID,
			Status:        risk.StatusFailed,
			Error:         err.Error(),
		})
		return
	}

	// 새 스냅샷이 캐시된 구버전을 대체
	_ = h.cache.Delete(ctx, "snapshot:"+portfolioID+":"+asOf.Format("2006-01-02")+":"+h.engineVersion)

	respondJSON(w, http.StatusOK, CalculateResponse{
		CalculationID: calcID,
		Status:        snapshot.Status,
		Snapshot:      snapshot,
	})
}

// GetAlerts returns the alerts for a portfolio and date
// GET /api/v1/portfolios/{id}/alerts/{date}
func (h *RiskHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)

	asOf, err := time.Parse("2006-01-02", vars["date"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date format (expected YYYY-MM-DD)")
		return
	}

	alerts, err := h.snapshots.ListAlerts(ctx, vars["id"], asOf)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list alerts")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve alerts")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio_id": vars["id"],
		"as_of":        vars["date"],
		"alerts":       alerts,
	})
}

// AckRequest identifies the alert to acknowledge
type AckRequest struct {
	Metric string `json:"metric"`
}

// AcknowledgeAlert marks one alert acknowledged
// POST /api/v1/portfolios/{id}/alerts/{date}/ack
func (h *RiskHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)

	asOf, err := time.Parse("2006-01-02", vars["date"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date format (expected YYYY-MM-DD)")
		return
	}

	var req AckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Metric == "" {
		respondError(w, http.StatusBadRequest, "Request body must name a metric")
		return
	}

	err = h.snapshots.AcknowledgeAlert(ctx, vars["id"], asOf, req.Metric)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Alert not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to acknowledge alert")
		respondError(w, http.StatusInternalServerError, "Failed to acknowledge alert")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

// GetLimits returns the configured limits of a portfolio
// GET /api/v1/portfolios/{id}/limits
func (h *RiskHandler) GetLimits(w http.ResponseWriter, r *http.Request) {
	limits, err := h.portfolios.GetLimits(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.logger.WithError(err).Error("Failed to get limits")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve limits")
		return
	}
	respondJSON(w, http.StatusOK, limits)
}

// UpsertLimit creates or replaces one limit
// PUT /api/v1/portfolios/{id}/limits
func (h *RiskHandler) UpsertLimit(w http.ResponseWriter, r *http.Request) {
	var limit risk.Limit
	if err := json.NewDecoder(r.Body).Decode(&limit); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	limit.PortfolioID = mux.Vars(r)["id"]

	if limit.Metric == "" || limit.Value <= 0 {
		respondError(w, http.StatusBadRequest, "Limit requires a metric and a positive value")
		return
	}
	if limit.Warning <= 0 || limit.Warning > 1 || limit.Critical <= limit.Warning || limit.Critical > 1 {
		respondError(w, http.StatusBadRequest, "Thresholds must satisfy 0 < warning < critical <= 1")
		return
	}

	if err := h.portfolios.UpsertLimit(r.Context(), limit); err != nil {
		h.logger.WithError(err).Error("Failed to upsert limit")
		respondError(w, http.StatusInternalServerError, "Failed to save limit")
		return
	}
	respondJSON(w, http.StatusOK, limit)
}

// GetBacktestStats returns the rolling backtesting evaluation
// GET /api/v1/portfolios/{id}/backtest?as_of=YYYY-MM-DD
func (h *RiskHandler) GetBacktestStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	portfolioID := mux.Vars(r)["id"]

	asOf := time.Now().UTC()
	if q := r.URL.Query().Get("as_of"); q != "" {
		var err error
		asOf, err = time.Parse("2006-01-02", q)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'as_of' date format (expected YYYY-MM-DD)")
			return
		}
	}

	stats, err := h.runner.BacktestStats(ctx, portfolioID, asOf)
	if err != nil {
		h.logger.WithError(err).Error("Failed to evaluate backtest")
		respondError(w, http.StatusInternalServerError, "Failed to evaluate backtest")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// GetScenarios returns the stress scenario catalogue
// GET /api/v1/scenarios
func (h *RiskHandler) GetScenarios(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, risk.Catalogue())
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
