package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/appvault/internal/domain"
	"github.com/MrSnakeDoc/appvault/internal/httpserver/deps"
)

type categoryCount struct {
	Name  domain.Category `json:"name"`
	Count int             `json:"count"`
}

// Categories lists the filter tabs with the number of apps in each,
// "All" first.
func Categories(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts := domain.CountByCategory(d.Catalog.Apps())

		out := make([]categoryCount, 0, len(domain.Categories)+1)
		out = append(out, categoryCount{Name: domain.CategoryAll, Count: counts[domain.CategoryAll]})
		for _, c := range domain.Categories {
			out = append(out, categoryCount{Name: c, Count: counts[c]})
		}
		writeJSON(w, http.StatusOK, out)
	}
}
