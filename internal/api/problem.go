// Package api serves both faces of the ariahub HTTP surface: the binary
// endpoints the scale firmware calls and the JSON management API.
package api

import (
	"encoding/json"
	"net/http"
)

// apiError is the JSON error envelope for management endpoints.
type apiError struct {
	// Error is a stable machine-readable kind.
	Error string `json:"error"`

	// Detail is a human-readable explanation for this occurrence.
	Detail string `json:"detail,omitempty"`
}

// Error kinds returned by the management API.
const (
	errBadRequest       = "bad_request"
	errNotFound         = "not_found"
	errNoFreeSlot       = "no_free_slot"
	errStoreUnavailable = "store_unavailable"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes the JSON error envelope.
func writeError(w http.ResponseWriter, status int, kind, detail string) {
	writeJSON(w, status, apiError{Error: kind, Detail: detail})
}

func badRequest(w http.ResponseWriter, detail string) {
	writeError(w, http.StatusBadRequest, errBadRequest, detail)
}

func notFound(w http.ResponseWriter, detail string) {
	writeError(w, http.StatusNotFound, errNotFound, detail)
}

func noFreeSlot(w http.ResponseWriter, detail string) {
	writeError(w, http.StatusBadRequest, errNoFreeSlot, detail)
}

func storeUnavailable(w http.ResponseWriter, detail string) {
	writeError(w, http.StatusServiceUnavailable, errStoreUnavailable, detail)
}
