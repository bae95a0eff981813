package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/appvault/internal/collection"
	"github.com/MrSnakeDoc/appvault/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready bool   `json:"ready"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// Readyz is 200 once the collection has mirrored its first snapshot and
// 503 while loading or after a listener failure.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := d.Catalog.State()
		resp := readyzResponse{Ready: state == collection.StateReady, State: state.String()}
		if err := d.Catalog.Err(); err != nil {
			resp.Error = err.Error()
		}

		status := http.StatusOK
		if !resp.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}
