package aria

import "encoding/binary"

// EncodeResponse serializes a response frame: body, then CRC, then the
// 0x66 0x00 trailer. The result is always ResponseSize bytes; the scale
// rejects anything that is not bit-exact.
func EncodeResponse(r *Response) []byte {
	buf := make([]byte, 0, ResponseSize)
	buf = binary.BigEndian.AppendUint32(buf, r.Timestamp)
	buf = append(buf, uint8(r.Unit), r.Status)

	for i := range r.Users {
		u := &r.Users[i]
		buf = append(buf, u.Slot)
		buf = binary.BigEndian.AppendUint16(buf, u.HeightMM)
		buf = append(buf, u.Age, u.Gender)
		buf = binary.BigEndian.AppendUint32(buf, u.MinWeightGrams)
		buf = binary.BigEndian.AppendUint32(buf, u.MaxWeightGrams)
	}

	buf = AppendChecksum(buf)
	return append(buf, ResponseTrailer[0], ResponseTrailer[1])
}

// EncodeUpload serializes an upload frame with a valid trailing checksum.
// The scale is the only producer of upload frames on a live network; this
// encoder exists for round-trip verification and for building test frames.
//
// The measurement count written is len(f.Measurements); the authorization
// code and MAC share offset 14, and the MAC byte wins there.
func EncodeUpload(f *UploadFrame) []byte {
	size := HeaderSize + MetadataSize + len(f.Measurements)*MeasurementSize
	buf := make([]byte, size, size+ChecksumSize)

	buf[0] = f.ProtocolVersion
	copy(buf[1:8], f.Preamble[:])
	buf[8] = f.BatteryPercent
	copy(buf[9:15], f.MAC[:])
	copy(buf[15:HeaderSize], f.AuthCode[1:])

	buf[HeaderSize] = f.FirmwareVersion
	binary.BigEndian.PutUint32(buf[HeaderSize+1:], f.ScaleTimestamp)
	binary.BigEndian.PutUint16(buf[HeaderSize+5:], uint16(len(f.Measurements)))
	copy(buf[HeaderSize+7:HeaderSize+MetadataSize], f.MetaReserved[:])

	offset := HeaderSize + MetadataSize
	for i := range f.Measurements {
		encodeMeasurement(buf[offset:offset+MeasurementSize], &f.Measurements[i])
		offset += MeasurementSize
	}

	return AppendChecksum(buf)
}

func encodeMeasurement(b []byte, m *Measurement) {
	binary.BigEndian.PutUint32(b[0:4], m.ID)
	binary.BigEndian.PutUint16(b[4:6], m.Impedance)
	binary.BigEndian.PutUint32(b[6:10], m.WeightGrams)
	binary.BigEndian.PutUint32(b[10:14], m.Timestamp)
	b[14] = m.UserSlot
	binary.BigEndian.PutUint16(b[15:17], m.FatRaw1)
	binary.BigEndian.PutUint16(b[17:19], m.FatRaw2)
	binary.BigEndian.PutUint16(b[19:21], m.Covariance)
	copy(b[21:MeasurementSize], m.Reserved[:])
}
