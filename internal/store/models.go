package store

import (
	"errors"
	"time"
)

// Domain errors surfaced by the store.
var (
	ErrScaleNotFound       = errors.New("scale not found")
	ErrUserNotFound        = errors.New("user profile not found")
	ErrMeasurementNotFound = errors.New("measurement not found")
	ErrNoFreeSlot          = errors.New("no free user slot")
)

// Scale is a registered scale device, keyed by its MAC address. A row is
// created on first upload or registration and updated on every contact;
// rows are never deleted.
type Scale struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// MACAddress is canonical colon-separated hex (AA:BB:CC:DD:EE:FF).
	MACAddress string `gorm:"size:17;uniqueIndex" json:"mac_address"`

	// SerialNumber is the MAC lowercased with no separators.
	SerialNumber string `gorm:"size:12;index" json:"serial_number"`

	FirmwareVersion uint8 `json:"firmware_version"`
	ProtocolVersion uint8 `json:"protocol_version"`
	BatteryPercent  uint8 `json:"battery_percent"`

	// SSID is the WiFi network the scale last reported, when known.
	SSID *string `gorm:"column:ssid;size:64" json:"ssid"`

	// AuthCode is the 16-byte authorization code as lowercase hex.
	AuthCode *string `gorm:"size:32" json:"auth_code"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Measurement is one weight reading, unique per (scale MAC, scale-assigned
// measurement ID). Immutable after insert; re-uploads are deduplicated on
// the composite unique index.
type Measurement struct {
	ID uint `gorm:"primaryKey" json:"id"`

	ScaleMAC      string `gorm:"size:17;index;uniqueIndex:idx_measurements_scale_mac_measurement_id" json:"scale_mac"`
	MeasurementID uint32 `gorm:"uniqueIndex:idx_measurements_scale_mac_measurement_id" json:"measurement_id"`

	// WeightGrams is canonical; kg/lbs are derived at read time.
	WeightGrams uint32 `json:"weight_grams"`

	// Impedance in ohms; zero means no body-composition estimate.
	Impedance  uint16 `json:"impedance"`
	FatRaw1    uint16 `json:"fat_percent_raw_1"`
	FatRaw2    uint16 `json:"fat_percent_raw_2"`
	Covariance uint16 `json:"covariance"`

	BodyFatPercent *float64 `json:"body_fat_percent"`

	// Timestamp is the scale clock decoded to UTC; TimestampRaw is the u32
	// exactly as received.
	Timestamp    time.Time `gorm:"index" json:"timestamp"`
	TimestampRaw uint32    `json:"timestamp_raw"`

	UserSlot uint8 `json:"user_id"`
	IsGuest  bool  `json:"is_guest"`

	ReceivedAt time.Time `json:"received_at"`
}

// WeightKg returns the weight in kilograms.
func (m *Measurement) WeightKg() float64 {
	return float64(m.WeightGrams) / 1000.0
}

// WeightLbs returns the weight in pounds.
func (m *Measurement) WeightLbs() float64 {
	return m.WeightKg() * 2.20462
}

// SameReading reports whether another measurement carries identical decoded
// fields. Used to tell a harmless re-upload from a conflicting one.
func (m *Measurement) SameReading(o *Measurement) bool {
	return m.WeightGrams == o.WeightGrams &&
		m.Impedance == o.Impedance &&
		m.FatRaw1 == o.FatRaw1 &&
		m.FatRaw2 == o.FatRaw2 &&
		m.Covariance == o.Covariance &&
		m.TimestampRaw == o.TimestampRaw &&
		m.UserSlot == o.UserSlot
}

// UserProfile is an operator-created profile delivered to the scale in
// every response. At most one active profile per slot 0..7.
type UserProfile struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Name      string `gorm:"size:20" json:"name"`
	ScaleSlot uint8  `gorm:"uniqueIndex" json:"scale_slot"`

	HeightMM uint16 `json:"height_mm"`
	Age      uint8  `json:"age"`

	// Gender uses the observed wire encoding: 0 = female, 1 = male.
	Gender uint8 `json:"gender"`

	MinWeightGrams uint32 `json:"min_weight_grams"`
	MaxWeightGrams uint32 `json:"max_weight_grams"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName keeps the table name aligned with the deployment contract.
func (UserProfile) TableName() string { return "users" }

// RawUpload is the verbatim request and response of one inbound upload.
// A row is created for every request regardless of parse outcome and
// finalized within the same transaction; it is never amended afterwards.
type RawUpload struct {
	ID uint `gorm:"primaryKey" json:"id"`

	ReceivedAt time.Time `gorm:"index" json:"received_at"`

	// ScaleMAC is extracted best-effort before full decode.
	ScaleMAC *string `gorm:"size:17" json:"scale_mac"`

	ProtocolVersion  *uint8  `json:"protocol_version"`
	FirmwareVersion  *uint8  `json:"firmware_version"`
	BatteryPercent   *uint8  `json:"battery_percent"`
	ScaleTimestamp   *uint32 `json:"scale_timestamp"`
	MeasurementCount *uint16 `json:"measurement_count"`

	RequestData  []byte `json:"-"`
	ResponseData []byte `json:"-"`

	ParseOK      bool    `json:"parsed_ok"`
	ErrorMessage *string `gorm:"size:512" json:"error_message"`
}

// AllModels returns every model for schema migration.
func AllModels() []any {
	return []any{&Scale{}, &Measurement{}, &UserProfile{}, &RawUpload{}}
}
