package api

import (
	"net/http"

	"ariahub/internal/store"
)

// rawUploadView adds blob sizes to the audit record; the blobs themselves
// stay out of JSON.
type rawUploadView struct {
	store.RawUpload

	RequestBytes  int `json:"request_bytes"`
	ResponseBytes int `json:"response_bytes"`
}

// ListRawUploads returns raw upload audit records newest first.
//
// Query parameters:
//   - limit, offset: paging (limit defaults to 100, capped at 1000)
//   - errors_only: "true" restricts to uploads that failed to parse
func (h *managementHandler) ListRawUploads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, ok := parseBoundedInt(w, q.Get("limit"), defaultListLimit, maxListLimit, "limit")
	if !ok {
		return
	}
	offset, ok := parseBoundedInt(w, q.Get("offset"), 0, 1<<30, "offset")
	if !ok {
		return
	}
	errorsOnly := q.Get("errors_only") == "true"

	raws, err := h.store.ListRawUploads(r.Context(), limit, offset, errorsOnly)
	if err != nil {
		storeUnavailable(w, err.Error())
		return
	}

	views := make([]rawUploadView, 0, len(raws))
	for i := range raws {
		views = append(views, rawUploadView{
			RawUpload:     raws[i],
			RequestBytes:  len(raws[i].RequestData),
			ResponseBytes: len(raws[i].ResponseData),
		})
	}
	writeJSON(w, http.StatusOK, views)
}
