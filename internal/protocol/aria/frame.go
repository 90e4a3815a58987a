// Package aria implements the binary wire protocol spoken by the scale:
// upload frame parsing, response frame construction, the CRC-16/XMODEM
// checksum both frames carry, and validation of decoded frames.
//
// # Upload frame (protocol version 3)
//
// Big-endian, packed, no alignment:
//
//	┌────────┬──────┬──────────────────────────────────────────────┐
//	│ Offset │ Size │ Field                                        │
//	├────────┼──────┼──────────────────────────────────────────────┤
//	│   0    │  1   │ Protocol version (0x03)                      │
//	│   1    │  7   │ Reserved preamble (firmware hint at byte 2)  │
//	│   8    │  1   │ Battery percent                              │
//	│   9    │  6   │ Scale MAC, network byte order                │
//	│  14    │ 16   │ Authorization code (straddles MAC tail)      │
//	│  30    │  1   │ Firmware version                             │
//	│  31    │  4   │ Scale timestamp (Unix seconds)               │
//	│  35    │  2   │ Measurement count N                          │
//	│  37    │  9   │ Reserved                                     │
//	│  46    │ 32×N │ Measurements                                 │
//	│  end   │  2   │ CRC-16/XMODEM over all preceding bytes       │
//	└────────┴──────┴──────────────────────────────────────────────┘
//
// The authorization code deliberately starts at offset 14, overlapping the
// last MAC byte: observed firmwares disagree on the header/metadata split,
// and the 16 bytes from offset 14 are the stable capture.
//
// Each 32-byte measurement block:
//
//	u32 id, u16 impedance, u32 weight grams, u32 timestamp,
//	u8 user slot, u16 fat raw 1, u16 fat raw 2, u16 covariance,
//	11 reserved bytes (retained verbatim, may be non-zero).
//
// # Response frame
//
//	u32 server timestamp, u8 unit, u8 status,
//	8 × 13-byte user profile blocks in slot order,
//	u16 CRC-16/XMODEM, trailer 0x66 0x00.
package aria

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Upload frame layout.
const (
	ProtocolVersion3 = 0x03

	HeaderSize      = 30
	MetadataSize    = 16
	MeasurementSize = 32
	ChecksumSize    = 2

	// MinUploadSize is header + metadata + checksum: the smallest frame a
	// scale can send (N = 0).
	MinUploadSize = HeaderSize + MetadataSize + ChecksumSize

	// MaxMeasurements caps the declared measurement count; scales hold at
	// most a few dozen readings, anything above this is a corrupt frame.
	MaxMeasurements = 64

	authCodeOffset = 14
	// AuthCodeSize is the length of the authorization code.
	AuthCodeSize = 16
)

// Response frame layout.
const (
	// UserSlots is the number of profile slots the scale displays. The
	// response always carries exactly this many blocks; unused slots are
	// zero-filled.
	UserSlots = 8

	// UserBlockSize is the packed size of one profile block.
	UserBlockSize = 13

	// ResponseSize is the full encoded response:
	// timestamp + unit + status + 8 blocks + CRC + trailer.
	ResponseSize = 4 + 1 + 1 + UserSlots*UserBlockSize + ChecksumSize + 2
)

// ResponseTrailer terminates every response frame. The scale checks these
// two bytes after validating the CRC.
var ResponseTrailer = [2]byte{0x66, 0x00}

// WeightUnit is the display unit pushed down to the scale.
type WeightUnit uint8

const (
	UnitKilograms WeightUnit = 0
	UnitPounds    WeightUnit = 1
	UnitStones    WeightUnit = 2
)

// String returns the configuration name of the unit.
func (u WeightUnit) String() string {
	switch u {
	case UnitKilograms:
		return "kg"
	case UnitPounds:
		return "lbs"
	case UnitStones:
		return "stones"
	default:
		return fmt.Sprintf("unit(%d)", uint8(u))
	}
}

// ParseWeightUnit maps a configuration string to a WeightUnit.
func ParseWeightUnit(s string) (WeightUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kg", "":
		return UnitKilograms, nil
	case "lbs":
		return UnitPounds, nil
	case "stones":
		return UnitStones, nil
	default:
		return UnitKilograms, fmt.Errorf("unknown weight unit %q", s)
	}
}

// Measurement is one weight reading inside an upload frame.
type Measurement struct {
	ID          uint32
	Impedance   uint16
	WeightGrams uint32
	Timestamp   uint32
	UserSlot    uint8
	FatRaw1     uint16
	FatRaw2     uint16
	Covariance  uint16

	// Reserved holds the trailing block bytes verbatim. Firmware variants
	// put non-zero data here; it round-trips but is otherwise ignored.
	Reserved [11]byte
}

// WeightKg returns the weight in kilograms. Grams are canonical; this is a
// read-time derivation.
func (m *Measurement) WeightKg() float64 {
	return float64(m.WeightGrams) / 1000.0
}

// WeightLbs returns the weight in pounds.
func (m *Measurement) WeightLbs() float64 {
	return m.WeightKg() * 2.20462
}

// BodyFatPercent returns the derived body-fat percentage and whether a
// body-composition estimate exists. Impedance zero means the scale took no
// estimate; both raws zero likewise.
func (m *Measurement) BodyFatPercent() (float64, bool) {
	if m.Impedance == 0 || (m.FatRaw1 == 0 && m.FatRaw2 == 0) {
		return 0, false
	}
	return (float64(m.FatRaw1) + float64(m.FatRaw2)) / 2.0 / 10.0, true
}

// IsGuest reports whether the reading is unassigned (slot 0).
func (m *Measurement) IsGuest() bool {
	return m.UserSlot == 0
}

// UploadFrame is a decoded upload request.
type UploadFrame struct {
	ProtocolVersion uint8
	Preamble        [7]byte
	BatteryPercent  uint8
	MAC             [6]byte
	AuthCode        [AuthCodeSize]byte
	FirmwareVersion uint8
	ScaleTimestamp  uint32
	MetaReserved    [9]byte

	// MeasurementCount is the count the frame declared; Measurements holds
	// the ones that actually fit in the payload. A shortfall is flagged by
	// the validator as truncated_measurements.
	MeasurementCount uint16
	Measurements     []Measurement

	// ChecksumOK records whether the frame CRC verified. Mismatches are
	// observed on real firmware and do not reject the frame.
	ChecksumOK bool
}

// MACString formats the scale MAC as canonical colon-separated hex.
func (f *UploadFrame) MACString() string {
	return FormatMAC(f.MAC)
}

// Serial returns the scale serial number: the MAC lowercased with no
// separators.
func (f *UploadFrame) Serial() string {
	return hex.EncodeToString(f.MAC[:])
}

// AuthCodeHex returns the authorization code as lowercase hex.
func (f *UploadFrame) AuthCodeHex() string {
	return hex.EncodeToString(f.AuthCode[:])
}

// FormatMAC formats six address bytes as AA:BB:CC:DD:EE:FF.
func FormatMAC(mac [6]byte) string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
		mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}

// UserBlock is one 13-byte profile block inside the response frame.
// A zero UserBlock encodes an empty slot.
type UserBlock struct {
	Slot           uint8
	HeightMM       uint16
	Age            uint8
	Gender         uint8
	MinWeightGrams uint32
	MaxWeightGrams uint32
}

// IsEmpty reports whether the block is a zero-filled empty slot.
func (b *UserBlock) IsEmpty() bool {
	return *b == UserBlock{}
}

// Response is the frame returned to the scale after every upload.
type Response struct {
	Timestamp uint32
	Unit      WeightUnit
	Status    uint8
	Users     [UserSlots]UserBlock
}
