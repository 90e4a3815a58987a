package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ariahub/internal/logger"
	"ariahub/internal/store"
)

// Default weight bracket assigned to new profiles when the request does
// not narrow it. The scale only uses the bracket to pick which profile a
// reading belongs to.
const (
	defaultMinWeightKg = 30
	defaultMaxWeightKg = 150
)

// ListUsers returns all user profiles in slot order.
func (h *managementHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUserProfiles(r.Context())
	if err != nil {
		storeUnavailable(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// CreateUser creates a profile in the lowest free slot.
//
// Query parameters:
//   - name (required, at most 20 characters)
//   - height_cm (required, 50..250)
//   - age (required, 1..120)
//   - gender (required, "female" or "male")
//   - min_weight_kg, max_weight_kg (optional bracket, defaults 30/150)
//
// 400 with kind no_free_slot when all eight slots are occupied.
func (h *managementHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	name := q.Get("name")
	if name == "" || len(name) > 20 {
		badRequest(w, "name is required and must be at most 20 characters")
		return
	}

	heightCM, err := strconv.ParseUint(q.Get("height_cm"), 10, 16)
	if err != nil || heightCM < 50 || heightCM > 250 {
		badRequest(w, "height_cm must be between 50 and 250")
		return
	}

	age, err := strconv.ParseUint(q.Get("age"), 10, 8)
	if err != nil || age < 1 || age > 120 {
		badRequest(w, "age must be between 1 and 120")
		return
	}

	var gender uint8
	switch q.Get("gender") {
	case "female":
		gender = 0
	case "male":
		gender = 1
	default:
		badRequest(w, `gender must be "female" or "male"`)
		return
	}

	minKg, ok := parseWeightKg(w, q.Get("min_weight_kg"), defaultMinWeightKg, "min_weight_kg")
	if !ok {
		return
	}
	maxKg, ok := parseWeightKg(w, q.Get("max_weight_kg"), defaultMaxWeightKg, "max_weight_kg")
	if !ok {
		return
	}
	if minKg >= maxKg {
		badRequest(w, "min_weight_kg must be below max_weight_kg")
		return
	}

	user := &store.UserProfile{
		Name:           name,
		HeightMM:       uint16(heightCM * 10),
		Age:            uint8(age),
		Gender:         gender,
		MinWeightGrams: uint32(minKg * 1000),
		MaxWeightGrams: uint32(maxKg * 1000),
	}

	err = h.store.CreateUserProfile(r.Context(), user)
	if errors.Is(err, store.ErrNoFreeSlot) {
		noFreeSlot(w, "all eight scale slots are occupied")
		return
	}
	if err != nil {
		storeUnavailable(w, err.Error())
		return
	}

	logger.Info("user profile created",
		"id", user.ID, "name", user.Name, "slot", user.ScaleSlot)
	writeJSON(w, http.StatusCreated, user)
}

// DeleteUser removes a profile by row id, freeing its slot for the next
// create. Existing measurements for the slot are kept.
func (h *managementHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, "id must be an integer")
		return
	}

	err = h.store.DeleteUserProfile(r.Context(), uint(id))
	if errors.Is(err, store.ErrUserNotFound) {
		notFound(w, "no user profile with that id")
		return
	}
	if err != nil {
		storeUnavailable(w, err.Error())
		return
	}

	logger.Info("user profile deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// parseWeightKg parses an optional weight bracket bound in kilograms.
func parseWeightKg(w http.ResponseWriter, raw string, def float64, name string) (float64, bool) {
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 || v > 400 {
		badRequest(w, name+" must be a weight in kilograms between 0 and 400")
		return 0, false
	}
	return v, true
}
