// Package httpapi is the thin onboarding/readiness HTTP surface: POST
// /onboard kicks off an onboarding run and hands back a provisioning
// token, GET /readiness/{tenant_slug} reports the tenant's current
// lifecycle status through a Redis read-through cache in front of the
// Tenants Manifest Store.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/thedatagata/control-plane/internal/orchestrator"
	"github.com/thedatagata/control-plane/internal/tenants"
)

// OnboardRunner drives one tenant's onboarding pipeline. Satisfied by
// *orchestrator.Orchestrator; an interface here keeps this package's tests
// independent of a real warehouse.
type OnboardRunner interface {
	Onboard(ctx context.Context, tenantSlug string, days int, failFast bool, cancel *orchestrator.CancelToken) (*orchestrator.RunResult, error)
}

// Server wires the Tenants Manifest Store, the onboarding pipeline, a
// provisioning-token issuer, and the readiness cache behind one chi router.
type Server struct {
	router *chi.Mux
	store  *tenants.Store
	runner OnboardRunner
	tokens *TokenIssuer
	cache  *ReadinessCache

	// defaultDays bounds how much ingestion history an onboard request
	// backfills when the request body doesn't specify it.
	defaultDays int
}

// New builds a Server and registers its routes.
func New(store *tenants.Store, runner OnboardRunner, tokens *TokenIssuer, cache *ReadinessCache, defaultDays int) *Server {
	s := &Server{store: store, runner: runner, tokens: tokens, cache: cache, defaultDays: defaultDays}
	s.router = chi.NewRouter()
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Post("/onboard", s.handleOnboard)
	s.router.Get("/readiness/{tenant_slug}", s.handleReadiness)
}

// ServeHTTP satisfies http.Handler, so *Server can be passed straight to
// http.ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"method": r.Method, "path": r.URL.Path,
			"status": ww.Status(), "duration_ms": time.Since(started).Milliseconds(),
		}).Info("http request")
	})
}
