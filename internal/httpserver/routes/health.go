package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/appvault/internal/httpserver/deps"
	"github.com/MrSnakeDoc/appvault/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/appvault/internal/httpserver/mw"
)

func init() {
	Register(registerHealth)
}

func registerHealth(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))

	ops := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	ops.Get("/readyz", handlers.Readyz(d))
	ops.Get("/infra", handlers.Infra(d))
}
