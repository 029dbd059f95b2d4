package handlers

import (
	"net/http"

	"screencast/internal/startup"
)

type versionResponse struct {
	startup.BuildInfo
	Persistence string `json:"persistence"`
}

// GetVersion returns the build information and the active catalog strategy
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, versionResponse{BuildInfo: startup.GetBuildInfo(), Persistence: h.persistence})
}
