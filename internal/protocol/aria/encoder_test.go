package aria

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"
)

func testResponse() *Response {
	r := &Response{
		Timestamp: 1736899260,
		Unit:      UnitKilograms,
		Status:    0,
	}
	r.Users[0] = UserBlock{
		Slot:           0,
		HeightMM:       1750,
		Age:            34,
		Gender:         1,
		MinWeightGrams: 60000,
		MaxWeightGrams: 90000,
	}
	r.Users[3] = UserBlock{
		Slot:           3,
		HeightMM:       1620,
		Age:            29,
		Gender:         0,
		MinWeightGrams: 45000,
		MaxWeightGrams: 70000,
	}
	return r
}

func TestEncodeResponseLayout(t *testing.T) {
	data := EncodeResponse(testResponse())

	if len(data) != ResponseSize {
		t.Fatalf("EncodeResponse() length = %d, want %d", len(data), ResponseSize)
	}

	if got := binary.BigEndian.Uint32(data[0:4]); got != 1736899260 {
		t.Errorf("timestamp = %d, want 1736899260", got)
	}
	if data[4] != uint8(UnitKilograms) {
		t.Errorf("unit byte = 0x%02X, want 0x00", data[4])
	}
	if data[5] != 0 {
		t.Errorf("status byte = 0x%02X, want 0x00", data[5])
	}

	// CRC covers everything before itself; trailer follows it.
	if !VerifyChecksum(data[:ResponseSize-2]) {
		t.Error("CRC over response body does not verify")
	}
	if !bytes.Equal(data[ResponseSize-2:], ResponseTrailer[:]) {
		t.Errorf("trailer = % X, want % X", data[ResponseSize-2:], ResponseTrailer[:])
	}
}

func TestEncodeResponseEmptySlots(t *testing.T) {
	data := EncodeResponse(&Response{Timestamp: 1736899260, Unit: UnitPounds})

	// All eight blocks zero-filled.
	blocks := data[6 : 6+UserSlots*UserBlockSize]
	for i, b := range blocks {
		if b != 0 {
			t.Fatalf("user block byte %d = 0x%02X, want 0x00", i, b)
		}
	}
}

func TestResponseRoundTrip(t *testing.T) {
	want := testResponse()

	got, err := ParseResponse(EncodeResponse(want))
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseResponse() = %+v, want %+v", got, want)
	}
}

func TestParseResponseErrors(t *testing.T) {
	valid := EncodeResponse(testResponse())

	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "WrongLength",
			data: valid[:ResponseSize-1],
		},
		{
			name: "BadTrailer",
			data: func() []byte {
				d := make([]byte, ResponseSize)
				copy(d, valid)
				d[ResponseSize-1] = 0x01
				return d
			}(),
		},
		{
			name: "BadChecksum",
			data: func() []byte {
				d := make([]byte, ResponseSize)
				copy(d, valid)
				d[0] ^= 0x01
				return d
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseResponse(tt.data); !errors.Is(err, ErrBadResponseFrame) {
				t.Errorf("ParseResponse() error = %v, want %v", err, ErrBadResponseFrame)
			}
		})
	}
}

func TestEncodeUploadLayout(t *testing.T) {
	f := testFrame()
	data := EncodeUpload(f)

	wantLen := HeaderSize + MetadataSize + len(f.Measurements)*MeasurementSize + ChecksumSize
	if len(data) != wantLen {
		t.Fatalf("EncodeUpload() length = %d, want %d", len(data), wantLen)
	}
	if data[0] != ProtocolVersion3 {
		t.Errorf("version byte = 0x%02X, want 0x03", data[0])
	}
	if data[8] != f.BatteryPercent {
		t.Errorf("battery byte = %d, want %d", data[8], f.BatteryPercent)
	}
	if got := binary.BigEndian.Uint16(data[HeaderSize+5 : HeaderSize+7]); got != 2 {
		t.Errorf("measurement count = %d, want 2", got)
	}
	if !VerifyChecksum(data) {
		t.Error("upload CRC does not verify")
	}
}
