package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/platform/middleware"
)

// NewRouter wires the HTTP surface. Everything under /v1 requires a resolved
// tenant identity; health and metrics do not.
func NewRouter(h *Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.ResolveIdentity(logger))

		r.Route("/claims", func(r chi.Router) {
			r.Post("/", h.CreateClaim)
			r.Get("/", h.ListClaims)
			r.Get("/{claimID}", h.GetClaim)
			r.Put("/{claimID}", h.UpdateClaim)
			r.Delete("/{claimID}", h.DeleteClaim)
		})

		r.Post("/remittances", h.IngestRemittance)
		r.Get("/audit", h.ListAudit)
	})

	return r
}
