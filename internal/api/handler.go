package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/SaiAnoop/aqua-harvestPro/internal/assessment"
	"github.com/SaiAnoop/aqua-harvestPro/internal/domain"
	"github.com/SaiAnoop/aqua-harvestPro/internal/feasibility"
	"github.com/SaiAnoop/aqua-harvestPro/internal/regions"
	"github.com/SaiAnoop/aqua-harvestPro/internal/repository"
	"github.com/SaiAnoop/aqua-harvestPro/internal/subsidies"
	"github.com/SaiAnoop/aqua-harvestPro/internal/validation"
	"github.com/SaiAnoop/aqua-harvestPro/internal/worker"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds request bodies; an intake record is well under 1 KiB.
const maxBodyBytes = 1 << 20

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	validator  *validation.Validator
	regions    *regions.Service
	subsidies  *subsidies.Engine
	assessment *assessment.Service
	worker     *worker.Worker
	metrics    *Metrics
	version    string
}

// NewHandler creates a new API handler.
func NewHandler(svc Services, metrics *Metrics, version string) *Handler {
	return &Handler{
		repo:       svc.Repo,
		cache:      svc.Cache,
		bus:        svc.Bus,
		validator:  svc.Validator,
		regions:    svc.Regions,
		subsidies:  svc.Subsidies,
		assessment: svc.Assessment,
		worker:     svc.Worker,
		metrics:    metrics,
		version:    version,
	}
}

// Assess handles POST /assessments.
func (h *Handler) Assess(w http.ResponseWriter, r *http.Request) {
	var input domain.WizardInput
	if !decodeBody(w, r, &input) {
		return
	}
	h.respondAssessment(w, r, input)
}

// DemoAssessment assesses the built-in sample record.
func (h *Handler) DemoAssessment(w http.ResponseWriter, r *http.Request) {
	h.respondAssessment(w, r, feasibility.DemoInput())
}

func (h *Handler) respondAssessment(w http.ResponseWriter, r *http.Request, input domain.WizardInput) {
	ctx := r.Context()

	a, err := h.assessment.Assess(ctx, input)

	var fieldErrs validation.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		h.metrics.observeRejected()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"errors": fieldErrs,
		})
		return

	case err != nil:
		slog.Error("assessment failed", "error", err, "trace_id", GetTraceID(ctx))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "assessment failed",
		})
		return
	}

	if a.Metadata.TraceID == "" {
		a.Metadata.TraceID = GetTraceID(ctx)
	}
	h.metrics.observeAssessment(string(a.Result.Grade))

	writeJSON(w, http.StatusOK, a)
}

// DemoInput returns the sample intake record used by the demo loader.
func (h *Handler) DemoInput(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, feasibility.DemoInput())
}

// ValidateStep checks one wizard step before the user moves on.
func (h *Handler) ValidateStep(w http.ResponseWriter, r *http.Request) {
	step, err := validation.ParseStep(chi.URLParam(r, "step"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": err.Error(),
		})
		return
	}

	var input domain.WizardInput
	if !decodeBody(w, r, &input) {
		return
	}

	if errs := h.validator.ValidateStep(step, input); errs != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"step":   step,
			"errors": errs,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"step":  step,
		"valid": true,
	})
}

// Health reports the state of each backend. It always answers 200.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	checks, ok := h.checkBackends(r)

	status := "healthy"
	if !ok {
		status = "degraded"
	}

	body := map[string]any{
		"status":  status,
		"version": h.version,
		"checks":  checks,
		"schemes": h.subsidies.SchemesCount(),
	}
	if sc, ok := h.cache.(sizedCache); ok {
		size, capacity := sc.Stats()
		body["cache"] = map[string]int{"size": size, "capacity": capacity}
	}
	if h.worker != nil {
		body["worker"] = h.worker.GetStats()
	}
	writeJSON(w, http.StatusOK, body)
}

// sizedCache is implemented by caches with a bounded local tier.
type sizedCache interface {
	Stats() (size int, capacity int)
}

// Ready answers 503 until every configured backend responds.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks, ok := h.checkBackends(r)
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ready":  false,
			"checks": checks,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ready":  true,
		"checks": checks,
	})
}

func (h *Handler) checkBackends(r *http.Request) (map[string]string, bool) {
	checks := make(map[string]string, 3)
	ok := true

	check := func(name string, ping func() error) {
		if err := ping(); err != nil {
			slog.Warn("health check failed", "component", name, "error", err)
			checks[name] = "unavailable"
			ok = false
			return
		}
		checks[name] = "ok"
	}

	ctx := r.Context()
	if h.repo != nil {
		check("repository", func() error { return h.repo.Ping(ctx) })
	}
	if h.cache != nil {
		check("cache", func() error { return h.cache.Ping(ctx) })
	}
	if h.bus != nil {
		check("bus", func() error { return h.bus.Ping(ctx) })
	}
	return checks, ok
}

// ListRegions returns every known region with overrides applied.
func (h *Handler) ListRegions(w http.ResponseWriter, r *http.Request) {
	list, err := h.regions.List(r.Context())
	if err != nil {
		slog.Error("failed to list regions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list regions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"regions": list,
		"count":   len(list),
	})
}

// GetRegion returns the effective reference values for a region. Unknown
// codes answer with the fallback values and known=false.
func (h *Handler) GetRegion(w http.ResponseWriter, r *http.Request) {
	region, err := h.regions.Resolve(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		slog.Error("failed to resolve region", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to resolve region",
		})
		return
	}
	writeJSON(w, http.StatusOK, region)
}

// RegionRequest is the request body for PUT /regions/{code}.
type RegionRequest struct {
	Name           string  `json:"name,omitempty"`
	RainfallMM     float64 `json:"rainfallMm"`
	TariffPer1000L float64 `json:"tariffPer1000L"`
}

// OverrideRegion stores operator-supplied reference values.
func (h *Handler) OverrideRegion(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	var req RegionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	code := chi.URLParam(r, "code")
	region, err := h.regions.Override(r.Context(), domain.Region{
		Code:           code,
		Name:           req.Name,
		RainfallMM:     req.RainfallMM,
		TariffPer1000L: req.TariffPer1000L,
	})
	if errors.Is(err, regions.ErrInvalidRegion) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	if err != nil {
		slog.Error("failed to override region", "region", code, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save region",
		})
		return
	}

	slog.Info("region overridden",
		"region", code,
		"rainfall_mm", region.RainfallMM,
		"tariff", region.TariffPer1000L,
	)
	writeJSON(w, http.StatusOK, region)
}

// ResetRegion removes an override.
func (h *Handler) ResetRegion(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	code := chi.URLParam(r, "code")
	region, err := h.regions.Reset(r.Context(), code)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "region override not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to reset region", "region", code, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reset region",
		})
		return
	}

	slog.Info("region override removed", "region", code)
	writeJSON(w, http.StatusOK, region)
}

// RegionSources describes the provenance of a region's reference values.
func (h *Handler) RegionSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.regions.Sources(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		slog.Error("failed to describe region sources", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to describe region sources",
		})
		return
	}
	writeJSON(w, http.StatusOK, sources)
}

// ListSubsidies returns the schemes currently loaded in the engine.
func (h *Handler) ListSubsidies(w http.ResponseWriter, r *http.Request) {
	schemes := h.subsidies.Schemes()
	writeJSON(w, http.StatusOK, map[string]any{
		"schemes": schemes,
		"count":   len(schemes),
	})
}

// SubsidyRequest is the request body for POST /subsidies. Enabled defaults
// to true.
type SubsidyRequest struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Authority       string  `json:"authority"`
	Description     string  `json:"description,omitempty"`
	Percent         float64 `json:"percent"`
	MaxAmount       int64   `json:"maxAmount"`
	Eligibility     string  `json:"eligibility"`
	EligibilityText string  `json:"eligibilityText,omitempty"`
	Deadline        string  `json:"deadline,omitempty"`
	Status          string  `json:"status,omitempty"`
	Enabled         *bool   `json:"enabled,omitempty"`
}

// CreateSubsidy validates a scheme's eligibility expression, stores it and
// loads it into the engine.
func (h *Handler) CreateSubsidy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SubsidyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	scheme := &domain.SubsidyScheme{
		ID:              req.ID,
		Name:            req.Name,
		Authority:       req.Authority,
		Description:     req.Description,
		Percent:         req.Percent,
		MaxAmount:       req.MaxAmount,
		Eligibility:     req.Eligibility,
		EligibilityText: req.EligibilityText,
		Deadline:        req.Deadline,
		Status:          req.Status,
		Enabled:         req.Enabled == nil || *req.Enabled,
	}
	if scheme.Status == "" {
		scheme.Status = domain.SchemeAvailable
	}

	if err := h.subsidies.ValidateScheme(scheme); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveSubsidyScheme(ctx, scheme); err != nil {
			slog.Error("failed to save subsidy scheme", "id", scheme.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save subsidy scheme",
			})
			return
		}
	}

	if !scheme.Enabled {
		h.subsidies.UnloadScheme(scheme.ID)
	} else if err := h.subsidies.LoadScheme(scheme); err != nil {
		slog.Error("failed to load subsidy scheme", "id", scheme.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load subsidy scheme",
		})
		return
	}

	slog.Info("subsidy scheme saved", "id", scheme.ID, "enabled", scheme.Enabled)
	writeJSON(w, http.StatusCreated, scheme)
}

// GetSubsidy returns one scheme. The stored row is authoritative when a
// repository is configured; otherwise the loaded scheme is returned.
func (h *Handler) GetSubsidy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h.repo == nil {
		scheme, ok := h.subsidies.Scheme(id)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "subsidy scheme not found"})
			return
		}
		writeJSON(w, http.StatusOK, scheme)
		return
	}

	scheme, err := h.repo.GetSubsidyScheme(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "subsidy scheme not found"})
		return
	}
	if err != nil {
		slog.Error("failed to get subsidy scheme", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get subsidy scheme",
		})
		return
	}
	writeJSON(w, http.StatusOK, scheme)
}

// DeleteSubsidy disables a scheme in the store and stops matching it.
func (h *Handler) DeleteSubsidy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	stored := false
	if h.repo != nil {
		err := h.repo.DeleteSubsidyScheme(r.Context(), id)
		switch {
		case err == nil:
			stored = true
		case !errors.Is(err, repository.ErrNotFound):
			slog.Error("failed to delete subsidy scheme", "id", id, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to delete subsidy scheme",
			})
			return
		}
	}

	loaded := h.subsidies.UnloadScheme(id)
	if !stored && !loaded {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "subsidy scheme not found"})
		return
	}

	slog.Info("subsidy scheme disabled", "id", id)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"enabled": false,
	})
}

// ReloadSubsidies replaces the engine's schemes with the stored set.
func (h *Handler) ReloadSubsidies(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	stored, err := h.repo.ListSubsidySchemes(r.Context())
	if err != nil {
		slog.Error("failed to list subsidy schemes", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load subsidy schemes",
		})
		return
	}

	if err := h.subsidies.ReloadSchemes(stored); err != nil {
		slog.Error("failed to reload subsidy schemes", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload subsidy schemes: " + err.Error(),
		})
		return
	}

	slog.Info("subsidy schemes reloaded", "count", h.subsidies.SchemesCount())
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "subsidy schemes reloaded",
		"count":   h.subsidies.SchemesCount(),
	})
}

// decodeBody reads a JSON body into v, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
