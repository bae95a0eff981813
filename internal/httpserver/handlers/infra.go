package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/appvault/internal/collection"
	"github.com/MrSnakeDoc/appvault/internal/httpserver/deps"
)

type componentStatus struct {
	OK         bool   `json:"ok"`
	AppsLoaded *int   `json:"apps_loaded,omitempty"`
	State      string `json:"state,omitempty"`
	Mode       string `json:"mode,omitempty"`
	Impact     string `json:"impact,omitempty"`
	Error      string `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"collection": checkCollection(d),
			"uploads":    checkUploads(d),
			"probe": {
				OK:   d.Prober != nil,
				Mode: "single-attempt",
			},
		}
		if d.RedisClient != nil {
			components["redis"] = checkRedis(r.Context(), d)
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Status:     determineStatus(components),
			Components: components,
		})
	}
}

func checkCollection(d deps.Deps) componentStatus {
	state := d.Catalog.State()
	count := len(d.Catalog.Apps())
	st := componentStatus{
		OK:         state == collection.StateReady,
		AppsLoaded: &count,
		State:      state.String(),
		Mode:       d.StoreBackend,
	}
	if err := d.Catalog.Err(); err != nil {
		st.Error = err.Error()
		st.Impact = "serving-last-snapshot"
	}
	return st
}

func checkUploads(d deps.Deps) componentStatus {
	if !d.UploadsEnabled {
		return componentStatus{
			OK:     true,
			Mode:   "disabled",
			Impact: "screenshots-only",
		}
	}
	return componentStatus{OK: true, Mode: "minio"}
}

// determineStatus is critical when the collection is not serving,
// degraded when a secondary component is down.
func determineStatus(components map[string]componentStatus) string {
	if c, ok := components["collection"]; ok && !c.OK {
		if c.State == collection.StateLoading.String() {
			return "starting"
		}
		return "critical"
	}
	for _, c := range components {
		if !c.OK {
			return "degraded"
		}
	}
	return "operational"
}

func checkRedis(parent context.Context, d deps.Deps) componentStatus {
	ctx, cancel := context.WithTimeout(parent, 2*time.Second)
	defer cancel()

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "writes-failing",
			Error:  "timeout",
		}
	}

	return componentStatus{
		OK:   true,
		Mode: "optimal",
	}
}
