package aria

import "encoding/binary"

// Checksum computes CRC-16/XMODEM over data: polynomial 0x1021, initial
// value 0x0000, no input/output reflection, no output xor. Both the upload
// and response frames carry this checksum as their last two payload bytes,
// big-endian.
func Checksum(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// VerifyChecksum reports whether the trailing two bytes of data match the
// checksum of everything before them.
func VerifyChecksum(data []byte) bool {
	if len(data) < ChecksumSize+1 {
		return false
	}
	want := binary.BigEndian.Uint16(data[len(data)-ChecksumSize:])
	return Checksum(data[:len(data)-ChecksumSize]) == want
}

// AppendChecksum returns data with its big-endian CRC-16/XMODEM appended.
func AppendChecksum(data []byte) []byte {
	return binary.BigEndian.AppendUint16(data, Checksum(data))
}
