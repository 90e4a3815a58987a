// Package ingest orchestrates one scale upload end to end: record the raw
// bytes, decode, validate, upsert the scale, deduplicate and insert
// measurements, and build the binary response — all inside a single
// transaction so an aborted request leaves no trace.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ariahub/internal/logger"
	"ariahub/internal/metrics"
	"ariahub/internal/protocol/aria"
	"ariahub/internal/store"
)

// Decode error kinds recorded on raw upload rows.
const (
	kindShortFrame     = "short_frame"
	kindBadVersion     = "bad_protocol_version"
	kindBadCount       = "bad_measurement_count"
	kindDecodeError    = "decode_error"
	kindConflictFormat = "measurement_conflict id=%d"
)

// Pipeline ingests scale uploads against a store.
type Pipeline struct {
	store *store.Store
	unit  aria.WeightUnit

	// now is swappable for tests that pin the response timestamp.
	now func() time.Time
}

// New builds a pipeline emitting responses with the given display unit.
func New(st *store.Store, unit aria.WeightUnit) *Pipeline {
	return &Pipeline{store: st, unit: unit, now: time.Now}
}

// SetClock overrides the pipeline's time source. For tests.
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
}

// HandleUpload processes one upload body and returns the encoded binary
// response. The response is well-formed even when the body does not parse:
// the scale loops forever otherwise. A non-nil error means the store
// failed and nothing was persisted; the adapter maps that to 503 so the
// scale retries later.
func (p *Pipeline) HandleUpload(ctx context.Context, body []byte) ([]byte, error) {
	metrics.UploadsTotal.Inc()
	now := p.now().UTC()

	var response []byte
	err := p.store.Transaction(ctx, func(tx *store.Store) error {
		raw := &store.RawUpload{ReceivedAt: now, RequestData: body}
		if mac, ok := aria.ExtractMAC(body); ok {
			raw.ScaleMAC = &mac
		}
		if err := tx.CreateRawUpload(ctx, raw); err != nil {
			return err
		}

		frame, err := aria.ParseUpload(body)
		if err != nil {
			metrics.UploadParseFailures.Inc()
			logger.Warn("upload decode failed", "error", err, "bytes", len(body))
			kind := decodeErrorKind(err)
			raw.ErrorMessage = &kind
			response = p.fallbackResponse(now)
			raw.ResponseData = response
			return tx.SaveRawUpload(ctx, raw)
		}

		raw.ProtocolVersion = &frame.ProtocolVersion
		raw.FirmwareVersion = &frame.FirmwareVersion
		raw.BatteryPercent = &frame.BatteryPercent
		raw.ScaleTimestamp = &frame.ScaleTimestamp
		raw.MeasurementCount = &frame.MeasurementCount

		result := aria.ValidateUpload(frame, now)
		if result.BatteryClamped {
			logger.Warn("battery reading clamped",
				"mac", frame.MACString(), "raw", frame.BatteryPercent)
		}

		if result.BadMAC {
			logger.Warn("upload with unusable MAC", "mac", frame.MACString())
			setFlags(raw, result.Flags)
			response = p.fallbackResponse(now)
			raw.ResponseData = response
			return tx.SaveRawUpload(ctx, raw)
		}

		authCode := frame.AuthCodeHex()
		if _, err := tx.UpsertScale(ctx, store.ScaleContact{
			MACAddress:      frame.MACString(),
			SerialNumber:    frame.Serial(),
			FirmwareVersion: frame.FirmwareVersion,
			ProtocolVersion: frame.ProtocolVersion,
			BatteryPercent:  result.BatteryPercent,
			AuthCode:        &authCode,
		}, now); err != nil {
			return err
		}

		flags := result.Flags
		if dropped := len(frame.Measurements) - len(result.Accepted); dropped > 0 {
			metrics.MeasurementsRejected.Add(float64(dropped))
		}

		for i := range result.Accepted {
			m := &result.Accepted[i]
			row := measurementRow(frame, m, now)

			inserted, existing, err := tx.InsertMeasurementIfAbsent(ctx, row)
			if err != nil {
				return err
			}
			switch {
			case inserted:
				metrics.MeasurementsInserted.Inc()
				logger.Info("measurement stored",
					"mac", frame.MACString(), "id", m.ID,
					"weight_kg", m.WeightKg(), "slot", m.UserSlot)

			case existing != nil && row.SameReading(existing):
				metrics.MeasurementsDuplicate.Inc()
				logger.Debug("duplicate measurement ignored",
					"mac", frame.MACString(), "id", m.ID)

			default:
				metrics.MeasurementsConflict.Inc()
				flags = append(flags, fmt.Sprintf(kindConflictFormat, m.ID))
				logger.Warn("conflicting re-upload, keeping original row",
					"mac", frame.MACString(), "id", m.ID)
			}
		}

		raw.ParseOK = true
		setFlags(raw, flags)

		users, err := tx.UserSlotTable(ctx)
		if err != nil {
			return err
		}
		response = aria.EncodeResponse(&aria.Response{
			Timestamp: uint32(now.Unix()),
			Unit:      p.unit,
			Status:    0,
			Users:     users,
		})
		raw.ResponseData = response
		return tx.SaveRawUpload(ctx, raw)
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

// fallbackResponse is the envelope returned when a frame cannot be
// attributed: status 0 and an empty user list. The scale accepts it and
// stops retrying.
func (p *Pipeline) fallbackResponse(now time.Time) []byte {
	return aria.EncodeResponse(&aria.Response{
		Timestamp: uint32(now.Unix()),
		Unit:      p.unit,
		Status:    0,
	})
}

func measurementRow(f *aria.UploadFrame, m *aria.Measurement, received time.Time) *store.Measurement {
	row := &store.Measurement{
		ScaleMAC:      f.MACString(),
		MeasurementID: m.ID,
		WeightGrams:   m.WeightGrams,
		Impedance:     m.Impedance,
		FatRaw1:       m.FatRaw1,
		FatRaw2:       m.FatRaw2,
		Covariance:    m.Covariance,
		Timestamp:     time.Unix(int64(m.Timestamp), 0).UTC(),
		TimestampRaw:  m.Timestamp,
		UserSlot:      m.UserSlot,
		IsGuest:       m.IsGuest(),
		ReceivedAt:    received,
	}
	if pct, ok := m.BodyFatPercent(); ok {
		row.BodyFatPercent = &pct
	}
	return row
}

func setFlags(raw *store.RawUpload, flags []string) {
	if len(flags) == 0 {
		return
	}
	msg := strings.Join(flags, "; ")
	if len(msg) > 512 {
		msg = msg[:512]
	}
	raw.ErrorMessage = &msg
}

func decodeErrorKind(err error) string {
	switch {
	case errors.Is(err, aria.ErrShortFrame):
		return kindShortFrame
	case errors.Is(err, aria.ErrBadProtocolVersion):
		return kindBadVersion
	case errors.Is(err, aria.ErrBadMeasurementCount):
		return kindBadCount
	default:
		return kindDecodeError
	}
}
