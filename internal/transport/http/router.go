// Package http assembles the request surface: public intake and login,
// authenticated evidence and case operations, and operational endpoints.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	admissionhandler "custodia/internal/admission/handler"
	casehandler "custodia/internal/casefile/handler"
	evidencehandler "custodia/internal/evidence/handler"
	identityhandler "custodia/internal/identity/handler"
	"custodia/internal/platform/middleware"
)

// Deps are the assembled handlers and cross-cutting pieces the router mounts.
type Deps struct {
	Logger    *slog.Logger
	Validator middleware.TokenValidator
	Limiter   middleware.Limiter

	Admission *admissionhandler.Handler
	Cases     *casehandler.Handler
	Evidence  *evidencehandler.Handler
	Identity  *identityhandler.Handler

	Health func() error
}

// New builds the router with the full middleware chain.
func New(deps Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))

	// Public surface: intake submissions are throttled per source address,
	// login is not (lockout policy is a separate concern).
	r.Group(func(r chi.Router) {
		if deps.Limiter != nil {
			r.Use(middleware.Throttle(deps.Limiter, deps.Logger))
		}
		deps.Admission.PublicRoutes(r)
	})
	r.Group(deps.Identity.Routes)

	// Authenticated surface.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Validator, deps.Logger))
		deps.Admission.ReviewRoutes(r)
		deps.Cases.Routes(r)
		deps.Evidence.Routes(r)
	})

	r.Get("/healthz", healthHandler(deps.Health))
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func healthHandler(check func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
