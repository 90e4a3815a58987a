package api

import (
	"net/http"
	"time"

	"ariahub/internal/logger"
	"ariahub/internal/protocol/aria"
	"ariahub/internal/store"
)

// managementHandler serves the JSON management API.
type managementHandler struct {
	store *store.Store
	unit  aria.WeightUnit
}

// Health reports liveness plus database reachability. The database check
// carries its own short deadline so a wedged pool cannot hang the probe.
func (h *managementHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"db":     "error",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"db":     "ok",
	})
}

// ListScales returns every registered scale, most recently seen first.
func (h *managementHandler) ListScales(w http.ResponseWriter, r *http.Request) {
	scales, err := h.store.ListScales(r.Context())
	if err != nil {
		storeUnavailable(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, scales)
}
