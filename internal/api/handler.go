package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/smartcover/heron/internal/chat"
	"github.com/smartcover/heron/internal/domain"
	"github.com/smartcover/heron/internal/recommend"
	"github.com/smartcover/heron/internal/risk"
	"github.com/smartcover/heron/internal/rules"
)

// recommendationTTL is how long computed recommendation lists stay
// cached. The catalog is immutable per process, so the TTL only bounds
// staleness across boost rule reloads.
const recommendationTTL = 5 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	catalog   domain.Catalog
	engine    *recommend.Engine
	rules     *rules.Engine
	responder *chat.Responder
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	artifacts domain.ArtifactConfig
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(catalog domain.Catalog, engine *recommend.Engine, ruleEngine *rules.Engine, responder *chat.Responder, repo domain.Repository, cache domain.Cache, bus domain.EventBus, artifacts domain.ArtifactConfig, version string) *Handler {
	return &Handler{
		catalog:   catalog,
		engine:    engine,
		rules:     ruleEngine,
		responder: responder,
		repo:      repo,
		cache:     cache,
		bus:       bus,
		artifacts: artifacts,
		version:   version,
	}
}

// Health returns service health and catalog size.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	message := "智能保險顧問系統運行中"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			message = "degraded: repository unreachable"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			message = "degraded: cache unreachable"
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"message":        message,
		"products_count": h.catalog.Count(),
		"version":        h.version,
	})
}

// ListProducts returns the full catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products := h.catalog.All()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    products,
		"count":   len(products),
	})
}

// Recommend handles POST /api/recommend requests.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var profile domain.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if profile.Age < 0 || profile.Budget < 0 || profile.Income < 0 {
		writeFailure(w, http.StatusBadRequest, "age, budget, and income must not be negative")
		return
	}

	profile = profile.Normalize()
	fingerprint := profile.Fingerprint()

	// Serve cached results for an identical profile
	if h.cache != nil {
		cached, err := h.cache.GetRecommendations(ctx, fingerprint)
		if err != nil {
			slog.Warn("recommendation cache read failed", "error", err)
		}
		if cached != nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"success":      true,
				"data":         cached,
				"count":        len(cached),
				"user_profile": profile,
				"cached":       true,
			})
			return
		}
	}

	results := h.engine.Recommend(ctx, profile)

	record := &domain.RecommendationRecord{
		ID:        uuid.New().String(),
		Profile:   profile,
		Results:   results,
		CreatedAt: time.Now().UTC(),
	}

	if h.repo != nil {
		if err := h.repo.SaveRecommendation(ctx, record); err != nil {
			slog.Error("failed to save recommendation record", "id", record.ID, "error", err)
		}
	}

	if h.cache != nil {
		if err := h.cache.SetRecommendations(ctx, fingerprint, results, recommendationTTL); err != nil {
			slog.Warn("recommendation cache write failed", "error", err)
		}
	}

	if h.bus != nil {
		payload, _ := json.Marshal(record)
		if err := h.bus.Publish(ctx, domain.TopicRecommendationCreated, payload); err != nil {
			slog.Error("failed to publish recommendation", "id", record.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":           true,
		"data":              results,
		"count":             len(results),
		"user_profile":      profile,
		"recommendation_id": record.ID,
	})
}

// AssessRisk handles POST /api/risk-assessment requests.
func (h *Handler) AssessRisk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var profile domain.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if profile.Age < 0 || profile.Income < 0 {
		writeFailure(w, http.StatusBadRequest, "age and income must not be negative")
		return
	}

	profile = profile.Normalize()
	assessment := risk.Assess(profile)

	record := &domain.AssessmentRecord{
		ID:         uuid.New().String(),
		Profile:    profile,
		Assessment: assessment,
		CreatedAt:  time.Now().UTC(),
	}

	if h.repo != nil {
		if err := h.repo.SaveAssessment(ctx, record); err != nil {
			slog.Error("failed to save assessment record", "id", record.ID, "error", err)
		}
	}

	if h.bus != nil {
		payload, _ := json.Marshal(record)
		if err := h.bus.Publish(ctx, domain.TopicRiskAssessed, payload); err != nil {
			slog.Error("failed to publish assessment", "id", record.ID, "error", err)
		}
		if assessment.AnyHigh() {
			if err := h.bus.Publish(ctx, domain.TopicRiskAlert, payload); err != nil {
				slog.Error("failed to publish risk alert", "id", record.ID, "error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"data":          assessment,
		"user_profile":  profile,
		"assessment_id": record.ID,
	})
}

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// Chat handles POST /api/chat requests.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if req.Message == "" {
		writeFailure(w, http.StatusBadRequest, "message is required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"response": h.responder.Reply(req.Message),
	})
}

// CustomerAnalysis serves the offline customer analysis artifact.
func (h *Handler) CustomerAnalysis(w http.ResponseWriter, r *http.Request) {
	h.serveArtifact(w, h.artifacts.CustomerAnalysisPath, "customer analysis not available")
}

// DataSummary serves the offline data summary artifact.
func (h *Handler) DataSummary(w http.ResponseWriter, r *http.Request) {
	h.serveArtifact(w, h.artifacts.DataSummaryPath, "data summary not available")
}

// serveArtifact streams an offline-generated JSON blob verbatim inside
// the response envelope. The blobs are produced by heron-convert and
// never reshaped by the server.
func (h *Handler) serveArtifact(w http.ResponseWriter, path, missingMsg string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("failed to read artifact", "path", path, "error", err)
		}
		writeFailure(w, http.StatusNotFound, missingMsg)
		return
	}

	if !json.Valid(data) {
		slog.Error("artifact is not valid JSON", "path", path)
		writeFailure(w, http.StatusInternalServerError, "artifact is corrupted")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    json.RawMessage(data),
	})
}

// GetRecommendation retrieves a stored recommendation record by ID.
func (h *Handler) GetRecommendation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if h.repo == nil {
		writeFailure(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	record, err := h.repo.GetRecommendation(ctx, id)
	if err != nil {
		slog.Error("failed to get recommendation record", "id", id, "error", err)
		writeFailure(w, http.StatusNotFound, "recommendation not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    record,
	})
}

// GetAssessment retrieves a stored assessment record by ID.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if h.repo == nil {
		writeFailure(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	record, err := h.repo.GetAssessment(ctx, id)
	if err != nil {
		slog.Error("failed to get assessment record", "id", id, "error", err)
		writeFailure(w, http.StatusNotFound, "assessment not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    record,
	})
}

// ListRules returns all boost rules loaded in the engine.
// Rules are loaded from the database at startup and can be reloaded via
// POST /api/rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.rules.LoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    loaded,
		"count":   len(loaded),
		"source":  "database",
	})
}

// CreateRuleRequest is the request body for creating a boost rule.
type CreateRuleRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Weight      float64 `json:"weight"`
	Enabled     bool    `json:"enabled"`
}

// CreateRule validates and saves a boost rule to the database.
// After saving, call POST /api/rules/reload to hot-reload the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeFailure(w, http.StatusBadRequest, "id, name, and expression are required")
		return
	}

	rule := &domain.BoostRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Weight:      req.Weight,
		Enabled:     req.Enabled,
	}

	// Validate the CEL expression before persisting
	if err := h.rules.ValidateRule(rule); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid CEL expression: "+err.Error())
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveBoostRule(ctx, rule); err != nil {
			slog.Error("failed to save boost rule", "id", rule.ID, "error", err)
			writeFailure(w, http.StatusInternalServerError, "failed to save rule")
			return
		}
	}

	slog.Info("boost rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"data":    rule,
		"message": "Rule created. Call POST /api/rules/reload to apply changes.",
	})
}

// ReloadRules reloads all boost rules from the database into the engine.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeFailure(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	dbRules, err := h.repo.ListBoostRules(ctx)
	if err != nil {
		slog.Error("failed to list boost rules from database", "error", err)
		writeFailure(w, http.StatusInternalServerError, "failed to load rules from database")
		return
	}

	if err := h.rules.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload boost rules", "error", err)
		writeFailure(w, http.StatusInternalServerError, "failed to reload rules: "+err.Error())
		return
	}

	slog.Info("boost rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"message": message,
	})
}
