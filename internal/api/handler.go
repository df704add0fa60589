package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/harrierhq/harrier/internal/bus"
	"github.com/harrierhq/harrier/internal/domain"
	"github.com/harrierhq/harrier/internal/fraud"
	"github.com/harrierhq/harrier/internal/rules"
	"github.com/harrierhq/harrier/internal/thresholds"
)

// historyLookback bounds how much history is loaded for a synchronous
// check. Wide enough to cover the annual threshold windows.
const historyLookback = 400 * 24 * time.Hour

// historyTTL is how long a loaded history snapshot stays cached.
const historyTTL = 5 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	detector *fraud.Detector
	provider *thresholds.Provider
	custom   *rules.CustomEngine
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, detector *fraud.Detector, provider *thresholds.Provider, custom *rules.CustomEngine, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		detector: detector,
		provider: provider,
		custom:   custom,
		version:  version,
	}
}

// CheckResponse is the response for POST /check.
type CheckResponse struct {
	Result   domain.FraudCheckResult `json:"result"`
	Metadata struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Check handles POST /check requests: a synchronous fraud check of a
// single transaction against the org's stored history.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	orgID := GetOrgID(ctx)
	traceID := GetTraceID(ctx)
	country := r.URL.Query().Get("country")

	var req domain.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if errMsg := validateTransaction(&req); errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": errMsg,
		})
		return
	}

	tx := req.ToTransaction(orgID)
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}

	history, err := h.loadHistory(r, orgID)
	if err != nil {
		slog.Error("failed to load history", "org_id", orgID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load transaction history",
		})
		return
	}

	result := h.detector.CheckTransaction(*tx, history, country)

	h.persistResult(r, orgID, tx, &result)
	h.publishResult(r, &result)

	resp := CheckResponse{Result: result}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// BatchCheckRequest is the request body for POST /check/batch.
type BatchCheckRequest struct {
	CountryCode  string                      `json:"countryCode,omitempty"`
	Transactions []domain.TransactionRequest `json:"transactions"`
}

// BatchCheckResponse is the response for POST /check/batch.
type BatchCheckResponse struct {
	Results  []domain.FraudCheckResult `json:"results"`
	Metadata struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// CheckBatch handles POST /check/batch. Transactions are checked in
// order, each folded into the rolling history before the next.
func (h *Handler) CheckBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	orgID := GetOrgID(ctx)
	traceID := GetTraceID(ctx)

	var req BatchCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Transactions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactions must not be empty",
		})
		return
	}

	txs := make([]domain.Transaction, 0, len(req.Transactions))
	for i := range req.Transactions {
		if errMsg := validateTransaction(&req.Transactions[i]); errMsg != "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": errMsg,
			})
			return
		}
		tx := req.Transactions[i].ToTransaction(orgID)
		if tx.ID == "" {
			tx.ID = uuid.New().String()
		}
		txs = append(txs, *tx)
	}

	history, err := h.loadHistory(r, orgID)
	if err != nil {
		slog.Error("failed to load history", "org_id", orgID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load transaction history",
		})
		return
	}

	results := h.detector.CheckBatch(txs, history, req.CountryCode)

	for i := range results {
		h.persistResult(r, orgID, &txs[i], &results[i])
		h.publishResult(r, &results[i])
	}

	resp := BatchCheckResponse{Results: results}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

func validateTransaction(req *domain.TransactionRequest) string {
	if req.Amount <= 0 {
		return "amount must be positive"
	}
	if len(req.Currency) != 3 {
		return "currency must be a 3-letter code"
	}
	if req.Date.IsZero() {
		return "date is required"
	}
	return ""
}

// loadHistory returns the org's transaction history, from cache when warm.
func (h *Handler) loadHistory(r *http.Request, orgID string) ([]domain.Transaction, error) {
	ctx := r.Context()

	if h.cache != nil {
		history, err := h.cache.GetHistory(ctx, orgID)
		if err == nil && history != nil {
			return history, nil
		}
	}

	if h.repo == nil {
		return nil, nil
	}

	since := time.Now().Add(-historyLookback)
	history, err := h.repo.ListTransactions(ctx, orgID, since)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		_ = h.cache.SetHistory(ctx, orgID, history, historyTTL)
	}

	return history, nil
}

// persistResult stores the transaction, its alerts, and the audit record.
func (h *Handler) persistResult(r *http.Request, orgID string, tx *domain.Transaction, result *domain.FraudCheckResult) {
	if h.repo == nil {
		return
	}
	ctx := r.Context()

	if err := h.repo.SaveTransaction(ctx, orgID, tx); err != nil {
		slog.Error("failed to save transaction", "tx_id", tx.ID, "error", err)
	}
	if len(result.Alerts) > 0 {
		if err := h.repo.SaveAlerts(ctx, orgID, result.Alerts); err != nil {
			slog.Error("failed to save alerts", "tx_id", tx.ID, "error", err)
		}
	}
	if err := h.repo.SaveCheckResult(ctx, orgID, result); err != nil {
		slog.Error("failed to save check result", "tx_id", tx.ID, "error", err)
	}

	// The stored transaction is now part of history
	if h.cache != nil {
		_ = h.cache.InvalidateHistory(ctx, orgID)
	}
}

// publishResult emits the completed event, plus the alert event when the
// check raised signals.
func (h *Handler) publishResult(r *http.Request, result *domain.FraudCheckResult) {
	if h.bus == nil {
		return
	}
	ctx := r.Context()

	if err := bus.PublishCheckCompleted(ctx, h.bus, GetTraceID(ctx), result); err != nil {
		slog.Error("failed to publish check result", "tx_id", result.TransactionID, "error", err)
	}

	if result.HasFraudSignals {
		if err := bus.PublishAlertRaised(ctx, h.bus, result); err != nil {
			slog.Error("failed to publish alert", "tx_id", result.TransactionID, "error", err)
		}
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetCheckResult retrieves a stored check result by transaction ID.
func (h *Handler) GetCheckResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := GetOrgID(ctx)
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	result, err := h.repo.GetCheckResult(ctx, orgID, txID)
	if err != nil {
		slog.Error("failed to get check result", "id", txID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "check result not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := GetOrgID(ctx)
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	tx, err := h.repo.GetTransaction(ctx, orgID, txID)
	if err != nil {
		slog.Error("failed to get transaction", "id", txID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// ListAlerts returns the org's alerts, optionally filtered by status.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := GetOrgID(ctx)
	status := r.URL.Query().Get("status")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	alerts, err := h.repo.ListAlerts(ctx, orgID, status)
	if err != nil {
		slog.Error("failed to list alerts", "org_id", orgID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list alerts",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetAlert retrieves an alert by ID.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := GetOrgID(ctx)
	alertID := chi.URLParam(r, "id")

	if alertID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "alert id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	alert, err := h.repo.GetAlert(ctx, orgID, alertID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "alert not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

// UpdateAlertRequest is the request body for PATCH /alerts/{id}.
type UpdateAlertRequest struct {
	Status string `json:"status"`
}

var validAlertStatuses = map[string]bool{
	domain.AlertStatusPending:   true,
	domain.AlertStatusReviewed:  true,
	domain.AlertStatusDismissed: true,
	domain.AlertStatusResolved:  true,
}

// UpdateAlert handles PATCH /alerts/{id}: the reviewer workflow of
// moving an alert through its lifecycle.
func (h *Handler) UpdateAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := GetOrgID(ctx)
	alertID := chi.URLParam(r, "id")

	if alertID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "alert id is required",
		})
		return
	}

	var req UpdateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if !validAlertStatuses[req.Status] {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid status",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.UpdateAlertStatus(ctx, orgID, alertID, req.Status); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "alert not found",
		})
		return
	}

	slog.Info("alert status updated", "alert_id", alertID, "status", req.Status)
	writeJSON(w, http.StatusOK, map[string]string{
		"id":     alertID,
		"status": req.Status,
	})
}

// ListThresholds returns the threshold policies for a country.
func (h *Handler) ListThresholds(w http.ResponseWriter, r *http.Request) {
	country := chi.URLParam(r, "country")

	if country == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "country code is required",
		})
		return
	}

	configs := h.provider.ListCountry(country)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"country":    country,
		"thresholds": configs,
		"count":      len(configs),
	})
}

// PutThresholds replaces or adds threshold policies for a country.
func (h *Handler) PutThresholds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	country := chi.URLParam(r, "country")

	if country == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "country code is required",
		})
		return
	}

	var configs []domain.ThresholdConfig
	if err := json.NewDecoder(r.Body).Decode(&configs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	for i := range configs {
		if configs[i].CategoryCode == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "categoryCode is required on every threshold",
			})
			return
		}
		configs[i].CountryCode = country

		h.provider.Set(configs[i])

		if h.repo != nil {
			if err := h.repo.SaveThresholdConfig(ctx, &configs[i]); err != nil {
				slog.Error("failed to save threshold config",
					"country", country,
					"category", configs[i].CategoryCode,
					"error", err,
				)
			}
		}
	}

	slog.Info("thresholds updated", "country", country, "count", len(configs))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"country": country,
		"count":   len(configs),
	})
}

// ListRules returns all loaded custom rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	if h.custom == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "custom rule engine not available",
		})
		return
	}

	loaded := h.custom.LoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": loaded,
		"count": len(loaded),
	})
}

// CreateRuleRequest is the request body for creating a custom rule.
type CreateRuleRequest struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Expression  string          `json:"expression"`
	Severity    domain.Severity `json:"severity"`
	Enabled     bool            `json:"enabled"`
}

// CreateRule creates an org-scoped custom rule and saves it to the
// database. After saving, call POST /rules/reload to apply changes.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := GetOrgID(ctx)

	if h.custom == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "custom rule engine not available",
		})
		return
	}

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	if req.Severity == "" {
		req.Severity = domain.SeverityWarning
	}
	if req.Severity.Rank() == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid severity",
		})
		return
	}

	ruleConfig := &domain.CustomRuleConfig{
		ID:          req.ID,
		OrgID:       orgID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Severity:    req.Severity,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.custom.LoadRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveRuleConfig(ctx, orgID, ruleConfig); err != nil {
			slog.Error("failed to save rule config", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("custom rule created", "id", ruleConfig.ID, "name", ruleConfig.Name, "org_id", orgID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all custom rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := GetOrgID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}
	if h.custom == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "custom rule engine not available",
		})
		return
	}

	dbRules, err := h.repo.ListRuleConfigs(ctx, orgID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	globalRules, err := h.repo.ListRuleConfigs(ctx, domain.GlobalOrgID)
	if err == nil {
		dbRules = append(dbRules, globalRules...)
	}

	if err := h.custom.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("custom rules reloaded", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
