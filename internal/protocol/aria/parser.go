package aria

import (
	"encoding/binary"
	"errors"
)

var (
	// ErrShortFrame indicates fewer bytes than the smallest valid frame or
	// than the declared layout requires.
	ErrShortFrame = errors.New("upload frame too short")

	// ErrBadProtocolVersion indicates an unsupported protocol version byte.
	ErrBadProtocolVersion = errors.New("unsupported protocol version")

	// ErrBadMeasurementCount indicates a declared measurement count above
	// MaxMeasurements.
	ErrBadMeasurementCount = errors.New("implausible measurement count")

	// ErrBadResponseFrame indicates a response buffer that does not decode.
	ErrBadResponseFrame = errors.New("malformed response frame")
)

// ParseUpload decodes a binary upload frame.
//
// A CRC mismatch does not fail the parse: firmware variants are observed
// computing the checksum differently, so the frame is decoded anyway and
// the mismatch is reported via UploadFrame.ChecksumOK.
//
// Measurements are decoded as long as a full 32-byte block fits before the
// trailing checksum; a declared count larger than what fits is left for the
// validator to flag rather than rejected here.
func ParseUpload(data []byte) (*UploadFrame, error) {
	if len(data) < MinUploadSize {
		return nil, ErrShortFrame
	}
	if data[0] != ProtocolVersion3 {
		return nil, ErrBadProtocolVersion
	}

	f := &UploadFrame{
		ProtocolVersion: data[0],
		BatteryPercent:  data[8],
		FirmwareVersion: data[HeaderSize],
		ScaleTimestamp:  binary.BigEndian.Uint32(data[HeaderSize+1 : HeaderSize+5]),
		ChecksumOK:      VerifyChecksum(data),
	}
	copy(f.Preamble[:], data[1:8])
	copy(f.MAC[:], data[9:15])
	copy(f.AuthCode[:], data[authCodeOffset:authCodeOffset+AuthCodeSize])
	copy(f.MetaReserved[:], data[HeaderSize+7:HeaderSize+MetadataSize])

	f.MeasurementCount = binary.BigEndian.Uint16(data[HeaderSize+5 : HeaderSize+7])
	if f.MeasurementCount > MaxMeasurements {
		return nil, ErrBadMeasurementCount
	}

	payloadEnd := len(data) - ChecksumSize
	offset := HeaderSize + MetadataSize
	for i := 0; i < int(f.MeasurementCount); i++ {
		if offset+MeasurementSize > payloadEnd {
			break
		}
		f.Measurements = append(f.Measurements, parseMeasurement(data[offset:offset+MeasurementSize]))
		offset += MeasurementSize
	}

	return f, nil
}

func parseMeasurement(b []byte) Measurement {
	m := Measurement{
		ID:          binary.BigEndian.Uint32(b[0:4]),
		Impedance:   binary.BigEndian.Uint16(b[4:6]),
		WeightGrams: binary.BigEndian.Uint32(b[6:10]),
		Timestamp:   binary.BigEndian.Uint32(b[10:14]),
		UserSlot:    b[14],
		FatRaw1:     binary.BigEndian.Uint16(b[15:17]),
		FatRaw2:     binary.BigEndian.Uint16(b[17:19]),
		Covariance:  binary.BigEndian.Uint16(b[19:21]),
	}
	copy(m.Reserved[:], b[21:MeasurementSize])
	return m
}

// ExtractMAC pulls the scale MAC out of a raw buffer before full decode.
// Best-effort: used to tag raw upload records even when parsing fails.
func ExtractMAC(data []byte) (string, bool) {
	if len(data) < 15 {
		return "", false
	}
	var mac [6]byte
	copy(mac[:], data[9:15])
	return FormatMAC(mac), true
}

// ParseResponse decodes a response frame. The server never consumes
// responses in production; this is the inverse of EncodeResponse, kept for
// round-trip verification and capture analysis.
func ParseResponse(data []byte) (*Response, error) {
	if len(data) != ResponseSize {
		return nil, ErrBadResponseFrame
	}
	if data[ResponseSize-2] != ResponseTrailer[0] || data[ResponseSize-1] != ResponseTrailer[1] {
		return nil, ErrBadResponseFrame
	}
	if !VerifyChecksum(data[:ResponseSize-2]) {
		return nil, ErrBadResponseFrame
	}

	r := &Response{
		Timestamp: binary.BigEndian.Uint32(data[0:4]),
		Unit:      WeightUnit(data[4]),
		Status:    data[5],
	}
	for i := 0; i < UserSlots; i++ {
		b := data[6+i*UserBlockSize : 6+(i+1)*UserBlockSize]
		r.Users[i] = UserBlock{
			Slot:           b[0],
			HeightMM:       binary.BigEndian.Uint16(b[1:3]),
			Age:            b[3],
			Gender:         b[4],
			MinWeightGrams: binary.BigEndian.Uint32(b[5:9]),
			MaxWeightGrams: binary.BigEndian.Uint32(b[9:13]),
		}
	}
	return r, nil
}
