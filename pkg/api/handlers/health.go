package handlers

import (
	"net/http"

	"github.com/nimbusfs/nimbus/pkg/store/blob"
	"github.com/nimbusfs/nimbus/pkg/store/metadata"
	"github.com/nimbusfs/nimbus/pkg/store/users"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	entries metadata.Store
	blobs   blob.Store
	users   users.Store
}

// NewHealthHandler creates a health handler backed by the given stores.
func NewHealthHandler(entries metadata.Store, blobs blob.Store, userStore users.Store) *HealthHandler {
	return &HealthHandler{entries: entries, blobs: blobs, users: userStore}
}

// Live reports that the process is up.
//
// GET /health
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, map[string]string{"status": "ok"})
}

// Ready reports whether every backing store can serve requests.
//
// GET /health/ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]error{
		"metadata": h.entries.Healthcheck(ctx),
		"blob":     h.blobs.Healthcheck(ctx),
		"users":    h.users.Healthcheck(ctx),
	}

	status := map[string]string{}
	healthy := true
	for name, err := range checks {
		if err != nil {
			status[name] = err.Error()
			healthy = false
		} else {
			status[name] = "ok"
		}
	}

	if !healthy {
		WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	WriteJSONOK(w, status)
}
