package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/appvault/internal/httpserver/deps"
)

type screenshotRequest struct {
	URL string `json:"url"`
}

type screenshotResponse struct {
	Image string `json:"image"`
}

// Screenshot previews the screenshot for a URL. A probe failure is a 422
// so the client can fall back to a manual upload.
func Screenshot(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req screenshotRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}

		image, err := d.Prober.FetchScreenshot(r.Context(), req.URL)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, screenshotResponse{Image: image})
	}
}
