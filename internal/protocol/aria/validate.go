package aria

import (
	"fmt"
	"time"
)

// Validation flag names, recorded verbatim on raw upload rows.
const (
	FlagCRCMismatch      = "crc_mismatch"
	FlagBadMAC           = "bad_mac"
	FlagWeightOutOfRange = "weight_out_of_range"
	FlagTimestampSuspect = "timestamp_suspect"
	FlagTruncated        = "truncated_measurements"
)

// Plausible weight bounds: 1 kg to 400 kg.
const (
	MinWeightGrams = 1000
	MaxWeightGrams = 400000
)

// minValidTimestamp is 2015-01-01T00:00:00Z. No supported scale existed
// before then, so anything earlier is a dead clock.
const minValidTimestamp = 1420070400

// maxClockSkew is how far ahead of server time a scale clock may run
// before its timestamps are flagged.
const maxClockSkew = 24 * time.Hour

// ValidationResult is the outcome of validating a decoded upload frame.
type ValidationResult struct {
	// Flags lists every validation finding, in the order found.
	Flags []string

	// Accepted holds the measurements that survived validation, in frame
	// order. Out-of-range weights are dropped; suspect timestamps are kept
	// and only flagged.
	Accepted []Measurement

	// BatteryPercent is the clamped battery reading.
	BatteryPercent uint8

	// BatteryClamped reports the raw reading was outside [0, 100].
	BatteryClamped bool

	// BadMAC reports an all-zero or all-0xFF MAC. The frame cannot be
	// attributed to a scale; nothing is persisted beyond the raw upload.
	BadMAC bool
}

// ValidateUpload checks a decoded frame against protocol plausibility
// rules. It never rejects the frame outright: findings accumulate as flags
// and the caller decides how much of the frame to keep.
func ValidateUpload(f *UploadFrame, now time.Time) *ValidationResult {
	res := &ValidationResult{BatteryPercent: f.BatteryPercent}

	if !f.ChecksumOK {
		res.Flags = append(res.Flags, FlagCRCMismatch)
	}

	if allBytes(f.MAC[:], 0x00) || allBytes(f.MAC[:], 0xFF) {
		res.BadMAC = true
		res.Flags = append(res.Flags, FlagBadMAC)
	}

	if f.BatteryPercent > 100 {
		res.BatteryPercent = 100
		res.BatteryClamped = true
	}

	if len(f.Measurements) < int(f.MeasurementCount) {
		res.Flags = append(res.Flags, fmt.Sprintf("%s declared=%d decoded=%d",
			FlagTruncated, f.MeasurementCount, len(f.Measurements)))
	}

	maxTimestamp := uint64(now.Add(maxClockSkew).Unix())
	for _, m := range f.Measurements {
		if m.WeightGrams < MinWeightGrams || m.WeightGrams > MaxWeightGrams {
			res.Flags = append(res.Flags, fmt.Sprintf("%s id=%d grams=%d",
				FlagWeightOutOfRange, m.ID, m.WeightGrams))
			continue
		}
		if m.Timestamp < minValidTimestamp || uint64(m.Timestamp) > maxTimestamp {
			res.Flags = append(res.Flags, fmt.Sprintf("%s id=%d ts=%d",
				FlagTimestampSuspect, m.ID, m.Timestamp))
		}
		res.Accepted = append(res.Accepted, m)
	}

	return res
}

func allBytes(b []byte, v byte) bool {
	for _, x := range b {
		if x != v {
			return false
		}
	}
	return true
}
