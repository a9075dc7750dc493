package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/openlearn/kestrel/internal/domain"
	"github.com/openlearn/kestrel/internal/repository"
	"github.com/openlearn/kestrel/internal/rules"
	"github.com/openlearn/kestrel/internal/runner"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	engine  *rules.Engine
	service *runner.Service
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, service *runner.Service, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		engine:  engine,
		service: service,
		version: version,
	}
}

// ValidateRequest is the request body for POST /validate.
type ValidateRequest struct {
	Learners []*domain.Learner `json:"learners"`

	// Async requests are queued on the event bus and return a batch ID
	// immediately instead of a completed run.
	Async bool `json:"async,omitempty"`
}

// AsyncResponse is returned for queued batch submissions.
type AsyncResponse struct {
	BatchID  string `json:"batchId"`
	Learners int    `json:"learners"`
	Status   string `json:"status"`
}

// Validate handles POST /validate requests.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Learners) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "learners is required and must not be empty",
		})
		return
	}
	for _, l := range req.Learners {
		if l == nil || l.LearnRefNumber == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "every learner requires a learnRefNumber",
			})
			return
		}
	}

	if req.Async {
		h.submitAsync(w, r, &req, traceID)
		return
	}

	run, err := h.service.ValidateBatch(ctx, req.Learners, traceID)
	if err != nil {
		slog.Error("batch validation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "batch validation failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, run.ToResponse())
}

// submitAsync queues the batch on the event bus for the worker.
func (h *Handler) submitAsync(w http.ResponseWriter, r *http.Request, req *ValidateRequest, traceID string) {
	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	batchID := uuid.New().String()
	payload, err := json.Marshal(map[string]any{
		"batchId":  batchID,
		"traceId":  traceID,
		"learners": req.Learners,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode batch",
		})
		return
	}

	if err := h.bus.Publish(r.Context(), domain.TopicBatchSubmitted, payload); err != nil {
		slog.Error("failed to publish batch", "batch_id", batchID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to queue batch",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, AsyncResponse{
		BatchID:  batchID,
		Learners: len(req.Learners),
		Status:   "queued",
	})
}

// GetRun retrieves a validation run by ID.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")

	if runID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "run id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	run, err := h.repo.GetRun(ctx, runID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get run", "id", runID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "run not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
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

// ListRules returns the expression rules currently loaded in the engine.
// Rules are loaded from the database at startup and can be reloaded via
// POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "expression rule engine not available",
		})
		return
	}

	loadedRules := h.engine.LoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves an expression rule by name from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule name is required",
		})
		return
	}

	if h.engine != nil {
		for _, rule := range h.engine.LoadedRules() {
			if rule.Name == name {
				writeJSON(w, http.StatusOK, rule)
				return
			}
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating an expression rule.
type CreateRuleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Severity    string `json:"severity,omitempty"`
	Message     string `json:"message,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// CreateRule creates a new expression rule and saves it to the database.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate
	if req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name and expression are required",
		})
		return
	}

	severity := req.Severity
	if severity == "" {
		severity = domain.SeverityError
	}
	if severity != domain.SeverityError && severity != domain.SeverityWarning {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "severity must be E or W",
		})
		return
	}

	ruleConfig := &domain.ExprRuleConfig{
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Severity:    severity,
		Message:     req.Message,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression before persisting
	if h.engine != nil {
		if err := h.engine.ValidateRule(ruleConfig); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid CEL expression: " + err.Error(),
			})
			return
		}
	}

	if h.repo != nil {
		if err := h.repo.SaveExprRule(ctx, ruleConfig); err != nil {
			slog.Error("failed to save rule", "name", ruleConfig.Name, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("rule created", "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all expression rules from the database into the
// engine. This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.ReloadExprRules(r.Context())
	if err != nil {
		slog.Error("failed to reload rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", count)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   count,
	})
}

// ReloadRefdata reloads every reference source and rebuilds the indices.
// Index diagnostics are returned in the response, never treated as errors.
func (h *Handler) ReloadRefdata(w http.ResponseWriter, r *http.Request) {
	diags, err := h.service.LoadReferenceData(r.Context())
	if err != nil {
		slog.Error("failed to reload reference data", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload reference data",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "reference data reloaded successfully",
		"diagnostics": diags,
	})
}

// RefdataDiagnostics returns the diagnostics from the last index build.
func (h *Handler) RefdataDiagnostics(w http.ResponseWriter, r *http.Request) {
	diags := h.service.Diagnostics()
	writeJSON(w, http.StatusOK, map[string]any{
		"diagnostics": diags,
		"count":       len(diags),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
