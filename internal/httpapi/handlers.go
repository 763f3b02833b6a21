package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/thedatagata/control-plane/internal/tenants"
)

// onboardRequest is the POST /onboard body: the operator-facing tenant
// onboarding form, already parsed from YAML or JSON upstream of this
// handler into the same shape the Tenants Manifest Store persists.
type onboardRequest struct {
	TenantSlug   string                          `json:"tenant_slug"`
	BusinessName string                          `json:"business_name"`
	Sources      map[string]tenants.SourceConfig `json:"sources"`
	SourceOrder  []string                        `json:"source_order"`
	Days         int                             `json:"days"`
	FailFast     bool                            `json:"fail_fast"`
}

type onboardResponse struct {
	TenantSlug        string `json:"tenant_slug"`
	Status            string `json:"status"`
	ProvisioningToken string `json:"provisioning_token"`
	CorrelationID     string `json:"correlation_id"`
}

func (s *Server) handleOnboard(w http.ResponseWriter, r *http.Request) {
	var req onboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.TenantSlug == "" {
		writeError(w, http.StatusBadRequest, "tenant_slug is required")
		return
	}
	if req.Days <= 0 {
		req.Days = s.defaultDays
	}

	order := req.SourceOrder
	if len(order) == 0 {
		for name := range req.Sources {
			order = append(order, name)
		}
	}

	cfg := tenants.TenantConfig{
		Slug: req.TenantSlug, BusinessName: req.BusinessName,
		Status: tenants.StatusOnboarding, Sources: req.Sources, SourceOrder: order,
	}
	if err := s.store.Upsert(r.Context(), cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "recording tenant manifest: "+err.Error())
		return
	}

	correlationID := uuid.NewString()
	token, err := s.tokens.Issue(req.TenantSlug, correlationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "issuing provisioning token: "+err.Error())
		return
	}

	// Onboarding is long-running (ingestion, scaffolding, two materialize
	// passes); the handler hands back 202 immediately and runs the pipeline
	// on a detached context so it survives the request's lifetime.
	go s.runOnboardingAsync(req.TenantSlug, req.Days, req.FailFast, correlationID)

	writeJSON(w, http.StatusAccepted, onboardResponse{
		TenantSlug: req.TenantSlug, Status: string(tenants.StatusOnboarding),
		ProvisioningToken: token, CorrelationID: correlationID,
	})
}

func (s *Server) runOnboardingAsync(tenantSlug string, days int, failFast bool, correlationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	run, err := s.runner.Onboard(ctx, tenantSlug, days, failFast, nil)
	logger := log.WithFields(log.Fields{"tenant_slug": tenantSlug, "correlation_id": correlationID})
	if err != nil {
		logger.WithError(err).Error("onboarding run failed")
		return
	}
	logger.WithField("success", run.Success()).Info("onboarding run finished")
}

type readinessResponse struct {
	TenantSlug string `json:"tenant_slug"`
	Status     string `json:"status"`
	Cached     bool   `json:"cached"`
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	tenantSlug := chi.URLParam(r, "tenant_slug")
	ctx := r.Context()

	if status, hit, err := s.cache.Get(ctx, tenantSlug); err != nil {
		log.WithError(err).Warn("readiness cache read failed, falling back to manifest store")
	} else if hit {
		writeJSON(w, http.StatusOK, readinessResponse{TenantSlug: tenantSlug, Status: status, Cached: true})
		return
	}

	cfg, ok, err := s.store.Get(ctx, tenantSlug)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reading tenant manifest: "+err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}

	if err := s.cache.Set(ctx, tenantSlug, string(cfg.Status)); err != nil {
		log.WithError(err).Warn("readiness cache write failed")
	}
	writeJSON(w, http.StatusOK, readinessResponse{TenantSlug: tenantSlug, Status: string(cfg.Status), Cached: false})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
