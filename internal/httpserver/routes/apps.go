package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/appvault/internal/httpserver/deps"
	"github.com/MrSnakeDoc/appvault/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/appvault/internal/httpserver/mw"
)

func init() {
	Register(registerApps)
}

func registerApps(r chi.Router, d deps.Deps) {
	limit := mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.RateBurst,
		RefillPerIPPerMin: d.RatePerMin,
		MaxEntries:        10000,
		TrustProxy:        d.TrustProxy,
	})

	r.Route("/api", func(api chi.Router) {
		api.Get("/categories", handlers.Categories(d))

		api.Get("/apps", handlers.ListApps(d))
		api.Get("/apps/{id}", handlers.GetApp(d))

		writes := api.With(limit)
		writes.Post("/apps", handlers.CreateApp(d))
		writes.Patch("/apps/{id}", handlers.UpdateApp(d))
		writes.Delete("/apps/{id}", handlers.DeleteApp(d))
		writes.Post("/screenshot", handlers.Screenshot(d))
	})
}
