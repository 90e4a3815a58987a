package api

import (
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ariahub/internal/ingest"
	"ariahub/internal/logger"
	"ariahub/internal/protocol/aria"
	"ariahub/internal/store"
)

// maxUploadBytes caps the upload body. The largest legal frame is well
// under 4 KiB; anything near the cap is not a scale.
const maxUploadBytes = 1 << 20

// firmwareHandler serves the endpoints the scale firmware calls. These
// speak fixed strings or the binary frame format, never JSON.
type firmwareHandler struct {
	pipeline *ingest.Pipeline
	store    *store.Store
}

// Validate answers the firmware update check. "T" tells the scale its
// firmware is current; no update is ever offered.
func (h *firmwareHandler) Validate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("T"))
}

// Register answers the setup-mode registration call. The scale sends its
// serial number (the MAC in hex), an auth token, and the joined SSID as
// query parameters; "S\n" acknowledges. Recording the scale is best
// effort: registration must succeed even when the database is down, or
// setup mode never completes.
func (h *firmwareHandler) Register(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	serial := strings.ToLower(q.Get("serialNumber"))

	if mac, ok := macFromSerial(serial); ok {
		var ssid, token *string
		if s := q.Get("ssid"); s != "" {
			ssid = &s
		}
		if t := q.Get("token"); t != "" {
			token = &t
		}
		if _, err := h.store.RegisterScale(r.Context(), mac, serial, ssid, token, time.Now().UTC()); err != nil {
			logger.Warn("scale registration not recorded", "serial", serial, "error", err)
		} else {
			logger.Info("scale registered", "mac", mac, "ssid", q.Get("ssid"))
		}
	} else if serial != "" {
		logger.Warn("registration with malformed serial", "serial", serial)
	}

	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("S\n"))
}

// Upload ingests one binary measurement batch and replies with the
// binary response frame. 503 with an empty body signals the scale to
// retry later; it is returned only when the store fails.
func (h *firmwareHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("upload body over limit", "limit", maxUploadBytes)
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		logger.Warn("upload body read failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	resp, err := h.pipeline.HandleUpload(r.Context(), body)
	if err != nil {
		logger.Error("upload not persisted", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(resp)))
	_, _ = w.Write(resp)
}

// macFromSerial converts the 12-hex-digit serial reported during
// registration into the canonical MAC form.
func macFromSerial(serial string) (string, bool) {
	raw, err := hex.DecodeString(serial)
	if err != nil || len(raw) != 6 {
		return "", false
	}
	var mac [6]byte
	copy(mac[:], raw)
	return aria.FormatMAC(mac), true
}
