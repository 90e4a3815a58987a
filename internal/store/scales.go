package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ScaleContact carries the fields a scale reports when it phones home.
// Nil pointer fields leave the stored value untouched.
type ScaleContact struct {
	MACAddress      string
	SerialNumber    string
	FirmwareVersion uint8
	ProtocolVersion uint8
	BatteryPercent  uint8
	SSID            *string
	AuthCode        *string
}

// UpsertScale creates the scale row on first sight and refreshes
// firmware, battery, last-seen, and any provided optional fields on every
// subsequent contact. Idempotent; concurrent upserts for the same MAC
// resolve through the unique index on mac_address.
func (s *Store) UpsertScale(ctx context.Context, c ScaleContact, now time.Time) (*Scale, error) {
	scale, err := s.upsertScale(ctx, c, now)
	if isUniqueConstraintError(err) {
		// Lost a create race for this MAC; the row exists now, update it.
		return s.upsertScale(ctx, c, now)
	}
	return scale, err
}

func (s *Store) upsertScale(ctx context.Context, c ScaleContact, now time.Time) (*Scale, error) {
	var scale Scale
	err := s.db.WithContext(ctx).Where("mac_address = ?", c.MACAddress).First(&scale).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		scale = Scale{
			MACAddress:      c.MACAddress,
			SerialNumber:    c.SerialNumber,
			FirmwareVersion: c.FirmwareVersion,
			ProtocolVersion: c.ProtocolVersion,
			BatteryPercent:  c.BatteryPercent,
			SSID:            c.SSID,
			AuthCode:        c.AuthCode,
			FirstSeen:       now,
			LastSeen:        now,
		}
		if err := s.db.WithContext(ctx).Create(&scale).Error; err != nil {
			return nil, err
		}
		return &scale, nil

	case err != nil:
		return nil, err
	}

	updates := map[string]any{
		"firmware_version": c.FirmwareVersion,
		"protocol_version": c.ProtocolVersion,
		"battery_percent":  c.BatteryPercent,
		"last_seen":        now,
	}
	if c.SSID != nil {
		updates["ssid"] = *c.SSID
	}
	if c.AuthCode != nil {
		updates["auth_code"] = *c.AuthCode
	}
	if err := s.db.WithContext(ctx).Model(&scale).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &scale, nil
}

// RegisterScale records a provisioning contact. Registration carries no
// firmware or battery data, so unlike UpsertScale it only touches the
// serial, network fields, and last-seen.
func (s *Store) RegisterScale(ctx context.Context, mac, serial string, ssid, authCode *string, now time.Time) (*Scale, error) {
	var scale Scale
	err := s.db.WithContext(ctx).Where("mac_address = ?", mac).First(&scale).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		scale = Scale{
			MACAddress:   mac,
			SerialNumber: serial,
			SSID:         ssid,
			AuthCode:     authCode,
			FirstSeen:    now,
			LastSeen:     now,
		}
		if createErr := s.db.WithContext(ctx).Create(&scale).Error; createErr != nil {
			if isUniqueConstraintError(createErr) {
				return s.RegisterScale(ctx, mac, serial, ssid, authCode, now)
			}
			return nil, createErr
		}
		return &scale, nil

	case err != nil:
		return nil, err
	}

	updates := map[string]any{
		"serial_number": serial,
		"last_seen":     now,
	}
	if ssid != nil {
		updates["ssid"] = *ssid
	}
	if authCode != nil {
		updates["auth_code"] = *authCode
	}
	if err := s.db.WithContext(ctx).Model(&scale).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &scale, nil
}

// GetScale looks a scale up by canonical MAC address.
func (s *Store) GetScale(ctx context.Context, mac string) (*Scale, error) {
	var scale Scale
	err := s.db.WithContext(ctx).Where("mac_address = ?", mac).First(&scale).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrScaleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &scale, nil
}

// ListScales returns every registered scale, most recently seen first.
func (s *Store) ListScales(ctx context.Context) ([]Scale, error) {
	var scales []Scale
	err := s.db.WithContext(ctx).Order("last_seen DESC").Find(&scales).Error
	return scales, err
}
