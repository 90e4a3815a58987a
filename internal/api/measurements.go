package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"ariahub/internal/protocol/aria"
	"ariahub/internal/store"
)

// Listing bounds.
const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// measurementView augments the stored measurement with derived weights:
// canonical kg and lbs plus the configured display unit.
type measurementView struct {
	store.Measurement

	WeightKg  float64 `json:"weight_kg"`
	WeightLbs float64 `json:"weight_lbs"`

	// Weight is the value in Unit, matching what the scale displays.
	Weight float64 `json:"weight"`
	Unit   string  `json:"unit"`
}

func (h *managementHandler) measurementView(m *store.Measurement) measurementView {
	v := measurementView{
		Measurement: *m,
		WeightKg:    m.WeightKg(),
		WeightLbs:   m.WeightLbs(),
		Unit:        h.unit.String(),
	}
	switch h.unit {
	case aria.UnitPounds:
		v.Weight = m.WeightLbs()
	case aria.UnitStones:
		v.Weight = m.WeightLbs() / 14.0
	default:
		v.Weight = m.WeightKg()
	}
	return v
}

// ListMeasurements returns measurements newest first.
//
// Query parameters:
//   - limit, offset: paging (limit defaults to 100, capped at 1000)
//   - user_id: filter by scale slot 0..7
//   - scale_mac: filter by canonical MAC
func (h *managementHandler) ListMeasurements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.MeasurementFilter{ScaleMAC: q.Get("scale_mac")}

	var ok bool
	if filter.Limit, ok = parseBoundedInt(w, q.Get("limit"), defaultListLimit, maxListLimit, "limit"); !ok {
		return
	}
	if filter.Offset, ok = parseBoundedInt(w, q.Get("offset"), 0, 1<<30, "offset"); !ok {
		return
	}
	if filter.UserID, ok = parseUserID(w, q.Get("user_id")); !ok {
		return
	}

	ms, err := h.store.ListMeasurements(r.Context(), filter)
	if err != nil {
		storeUnavailable(w, err.Error())
		return
	}

	views := make([]measurementView, 0, len(ms))
	for i := range ms {
		views = append(views, h.measurementView(&ms[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

// LatestMeasurement returns the single most recent measurement, optionally
// filtered by user_id. 404 when nothing has been recorded yet.
func (h *managementHandler) LatestMeasurement(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r.URL.Query().Get("user_id"))
	if !ok {
		return
	}

	m, err := h.store.LatestMeasurement(r.Context(), userID)
	if errors.Is(err, store.ErrMeasurementNotFound) {
		notFound(w, "no measurements recorded")
		return
	}
	if err != nil {
		storeUnavailable(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.measurementView(m))
}

// parseBoundedInt parses a non-negative integer query parameter, applying
// a default for the empty string and a hard cap. A false return means the
// error response has been written.
func parseBoundedInt(w http.ResponseWriter, raw string, def, max int, name string) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(w, name+" must be a non-negative integer")
		return 0, false
	}
	if n > max {
		n = max
	}
	return n, true
}

// parseUserID parses the optional user_id filter. Empty string means no
// filter (nil).
func parseUserID(w http.ResponseWriter, raw string) (*uint8, bool) {
	if raw == "" {
		return nil, true
	}
	n, err := strconv.ParseUint(raw, 10, 8)
	if err != nil || n >= aria.UserSlots {
		badRequest(w, "user_id must be a slot number 0..7")
		return nil, false
	}
	id := uint8(n)
	return &id, true
}

// contextWithTimeout derives a request context with its own deadline.
func contextWithTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}
