package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"ariahub/internal/protocol/aria"
	"ariahub/internal/store"
)

var pipelineNow = time.Unix(1736899260, 0).UTC()

func newTestPipeline(t *testing.T) (*Pipeline, *store.Store) {
	t.Helper()
	st, err := store.New(&store.Config{URL: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	p := New(st, aria.UnitKilograms)
	p.SetClock(func() time.Time { return pipelineNow })
	return p, st
}

// uploadFrame builds a frame with one well-formed measurement.
func uploadFrame(ms ...aria.Measurement) *aria.UploadFrame {
	f := &aria.UploadFrame{
		ProtocolVersion: aria.ProtocolVersion3,
		BatteryPercent:  87,
		MAC:             [6]byte{0x20, 0xF8, 0x5E, 0xAA, 0xBB, 0xCC},
		FirmwareVersion: 39,
		ScaleTimestamp:  uint32(pipelineNow.Unix()),
		Measurements:    ms,
	}
	f.AuthCode[0] = f.MAC[5]
	for i := 1; i < aria.AuthCodeSize; i++ {
		f.AuthCode[i] = byte(i)
	}
	return f
}

func reading() aria.Measurement {
	return aria.Measurement{
		ID:          1001,
		Impedance:   512,
		WeightGrams: 75400,
		Timestamp:   uint32(pipelineNow.Add(-time.Minute).Unix()),
		UserSlot:    1,
		FatRaw1:     185,
		FatRaw2:     185,
		Covariance:  3,
	}
}

func TestHandleUploadStoresMeasurement(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	resp, err := p.HandleUpload(ctx, aria.EncodeUpload(uploadFrame(reading())))
	if err != nil {
		t.Fatalf("HandleUpload() error = %v", err)
	}

	decoded, err := aria.ParseResponse(resp)
	if err != nil {
		t.Fatalf("response does not decode: %v", err)
	}
	if decoded.Timestamp != uint32(pipelineNow.Unix()) {
		t.Errorf("response timestamp = %d, want %d", decoded.Timestamp, pipelineNow.Unix())
	}
	if decoded.Unit != aria.UnitKilograms || decoded.Status != 0 {
		t.Errorf("unit/status = %v/%d, want kg/0", decoded.Unit, decoded.Status)
	}

	ms, err := st.ListMeasurements(ctx, store.MeasurementFilter{})
	if err != nil {
		t.Fatalf("ListMeasurements() error = %v", err)
	}
	if len(ms) != 1 {
		t.Fatalf("stored %d measurements, want 1", len(ms))
	}
	m := ms[0]
	if m.WeightGrams != 75400 || m.UserSlot != 1 || m.IsGuest {
		t.Errorf("stored measurement = %+v", m)
	}
	if m.BodyFatPercent == nil || *m.BodyFatPercent != 18.5 {
		t.Errorf("body fat = %v, want 18.5", m.BodyFatPercent)
	}
	if !m.Timestamp.Equal(pipelineNow.Add(-time.Minute)) {
		t.Errorf("timestamp = %v, want %v", m.Timestamp, pipelineNow.Add(-time.Minute))
	}

	scale, err := st.GetScale(ctx, "20:F8:5E:AA:BB:CC")
	if err != nil {
		t.Fatalf("GetScale() error = %v", err)
	}
	if scale.BatteryPercent != 87 || scale.FirmwareVersion != 39 {
		t.Errorf("scale row = %+v", scale)
	}
	if scale.SerialNumber != "20f85eaabbcc" {
		t.Errorf("serial = %q", scale.SerialNumber)
	}

	raws, err := st.ListRawUploads(ctx, 0, 0, false)
	if err != nil {
		t.Fatalf("ListRawUploads() error = %v", err)
	}
	if len(raws) != 1 {
		t.Fatalf("stored %d raw uploads, want 1", len(raws))
	}
	raw := raws[0]
	if !raw.ParseOK || raw.ErrorMessage != nil {
		t.Errorf("raw upload = parse_ok=%v error=%v", raw.ParseOK, raw.ErrorMessage)
	}
	if string(raw.ResponseData) != string(resp) {
		t.Error("raw upload response bytes differ from returned response")
	}
}

func TestHandleUploadDuplicateIsNoOp(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	body := aria.EncodeUpload(uploadFrame(reading()))
	if _, err := p.HandleUpload(ctx, body); err != nil {
		t.Fatalf("first upload: %v", err)
	}
	if _, err := p.HandleUpload(ctx, body); err != nil {
		t.Fatalf("second upload: %v", err)
	}

	ms, _ := st.ListMeasurements(ctx, store.MeasurementFilter{})
	if len(ms) != 1 {
		t.Errorf("stored %d measurements after re-upload, want 1", len(ms))
	}

	raws, _ := st.ListRawUploads(ctx, 0, 0, false)
	if len(raws) != 2 {
		t.Fatalf("stored %d raw uploads, want 2", len(raws))
	}
	for _, raw := range raws {
		if raw.ErrorMessage != nil {
			t.Errorf("duplicate re-upload flagged: %s", *raw.ErrorMessage)
		}
	}
}

func TestHandleUploadConflictKeepsOriginal(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	if _, err := p.HandleUpload(ctx, aria.EncodeUpload(uploadFrame(reading()))); err != nil {
		t.Fatalf("first upload: %v", err)
	}

	changed := reading()
	changed.WeightGrams = 80000
	if _, err := p.HandleUpload(ctx, aria.EncodeUpload(uploadFrame(changed))); err != nil {
		t.Fatalf("conflicting upload: %v", err)
	}

	ms, _ := st.ListMeasurements(ctx, store.MeasurementFilter{})
	if len(ms) != 1 || ms[0].WeightGrams != 75400 {
		t.Errorf("stored measurements = %+v, want single original row", ms)
	}

	raws, _ := st.ListRawUploads(ctx, 1, 0, false)
	if len(raws) != 1 || raws[0].ErrorMessage == nil {
		t.Fatal("conflicting upload not flagged on its raw record")
	}
	if !strings.Contains(*raws[0].ErrorMessage, "measurement_conflict id=1001") {
		t.Errorf("conflict note = %q", *raws[0].ErrorMessage)
	}
}

func TestHandleUploadGarbage(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	resp, err := p.HandleUpload(ctx, []byte("GET / HTTP/1.0"))
	if err != nil {
		t.Fatalf("HandleUpload() error = %v", err)
	}

	// The scale still gets a well-formed response with an empty user table.
	decoded, err := aria.ParseResponse(resp)
	if err != nil {
		t.Fatalf("fallback response does not decode: %v", err)
	}
	for i := range decoded.Users {
		if !decoded.Users[i].IsEmpty() {
			t.Errorf("fallback response slot %d not empty", i)
		}
	}

	raws, _ := st.ListRawUploads(ctx, 0, 0, true)
	if len(raws) != 1 {
		t.Fatalf("stored %d failed raw uploads, want 1", len(raws))
	}
	if raws[0].ErrorMessage == nil || *raws[0].ErrorMessage != "short_frame" {
		t.Errorf("error kind = %v, want short_frame", raws[0].ErrorMessage)
	}

	scales, _ := st.ListScales(ctx)
	if len(scales) != 0 {
		t.Errorf("garbage upload created %d scale rows", len(scales))
	}
}

func TestHandleUploadWrongVersion(t *testing.T) {
	p, st := newTestPipeline(t)

	body := make([]byte, aria.MinUploadSize)
	body[0] = 0x02
	if _, err := p.HandleUpload(context.Background(), body); err != nil {
		t.Fatalf("HandleUpload() error = %v", err)
	}

	raws, _ := st.ListRawUploads(context.Background(), 0, 0, true)
	if len(raws) != 1 || raws[0].ErrorMessage == nil || *raws[0].ErrorMessage != "bad_protocol_version" {
		t.Fatalf("raw uploads = %+v, want one bad_protocol_version record", raws)
	}
}

func TestHandleUploadBadMAC(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	f := uploadFrame(reading())
	f.MAC = [6]byte{}
	f.AuthCode[0] = 0

	resp, err := p.HandleUpload(ctx, aria.EncodeUpload(f))
	if err != nil {
		t.Fatalf("HandleUpload() error = %v", err)
	}
	if _, err := aria.ParseResponse(resp); err != nil {
		t.Fatalf("response does not decode: %v", err)
	}

	scales, _ := st.ListScales(ctx)
	if len(scales) != 0 {
		t.Error("unattributable upload created a scale row")
	}
	ms, _ := st.ListMeasurements(ctx, store.MeasurementFilter{})
	if len(ms) != 0 {
		t.Error("unattributable upload stored measurements")
	}

	raws, _ := st.ListRawUploads(ctx, 0, 0, false)
	if len(raws) != 1 || raws[0].ErrorMessage == nil ||
		!strings.Contains(*raws[0].ErrorMessage, aria.FlagBadMAC) {
		t.Fatalf("raw uploads = %+v, want one bad_mac record", raws)
	}
}

func TestHandleUploadEmptyBatch(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	resp, err := p.HandleUpload(ctx, aria.EncodeUpload(uploadFrame()))
	if err != nil {
		t.Fatalf("HandleUpload() error = %v", err)
	}
	if _, err := aria.ParseResponse(resp); err != nil {
		t.Fatalf("response does not decode: %v", err)
	}

	// The contact still registers the scale.
	if _, err := st.GetScale(ctx, "20:F8:5E:AA:BB:CC"); err != nil {
		t.Errorf("GetScale() error = %v", err)
	}
	ms, _ := st.ListMeasurements(ctx, store.MeasurementFilter{})
	if len(ms) != 0 {
		t.Errorf("empty batch stored %d measurements", len(ms))
	}
}

func TestHandleUploadDeliversUserTable(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	profile := &store.UserProfile{
		Name:           "alice",
		HeightMM:       1620,
		Age:            29,
		Gender:         0,
		MinWeightGrams: 45000,
		MaxWeightGrams: 70000,
	}
	if err := st.CreateUserProfile(ctx, profile); err != nil {
		t.Fatalf("CreateUserProfile() error = %v", err)
	}

	resp, err := p.HandleUpload(ctx, aria.EncodeUpload(uploadFrame(reading())))
	if err != nil {
		t.Fatalf("HandleUpload() error = %v", err)
	}

	decoded, err := aria.ParseResponse(resp)
	if err != nil {
		t.Fatalf("response does not decode: %v", err)
	}
	got := decoded.Users[0]
	if got.HeightMM != 1620 || got.Age != 29 || got.MinWeightGrams != 45000 {
		t.Errorf("slot 0 block = %+v, want alice's profile", got)
	}
	for i := 1; i < len(decoded.Users); i++ {
		if !decoded.Users[i].IsEmpty() {
			t.Errorf("slot %d not empty", i)
		}
	}
}

func TestHandleUploadChecksumMismatchStillIngests(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	body := aria.EncodeUpload(uploadFrame(reading()))
	body[len(body)-1] ^= 0xFF // corrupt the trailing checksum byte

	resp, err := p.HandleUpload(ctx, body)
	if err != nil {
		t.Fatalf("HandleUpload() error = %v", err)
	}
	if _, err := aria.ParseResponse(resp); err != nil {
		t.Fatalf("response does not decode: %v", err)
	}

	// The frame decodes fine, so the measurement is kept.
	ms, _ := st.ListMeasurements(ctx, store.MeasurementFilter{})
	if len(ms) != 1 || ms[0].MeasurementID != 1001 {
		t.Fatalf("stored measurements = %+v, want the decoded reading", ms)
	}

	raws, _ := st.ListRawUploads(ctx, 0, 0, false)
	if len(raws) != 1 {
		t.Fatalf("stored %d raw uploads, want 1", len(raws))
	}
	raw := raws[0]
	if !raw.ParseOK {
		t.Error("checksum mismatch marked as parse failure")
	}
	if raw.ErrorMessage == nil || !strings.Contains(*raw.ErrorMessage, aria.FlagCRCMismatch) {
		t.Errorf("error note = %v, want %s", raw.ErrorMessage, aria.FlagCRCMismatch)
	}
}

func TestHandleUploadRejectsOutOfRangeWeight(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	bad := reading()
	bad.ID = 1002
	bad.WeightGrams = 500 // below 1 kg

	if _, err := p.HandleUpload(ctx, aria.EncodeUpload(uploadFrame(reading(), bad))); err != nil {
		t.Fatalf("HandleUpload() error = %v", err)
	}

	ms, _ := st.ListMeasurements(ctx, store.MeasurementFilter{})
	if len(ms) != 1 || ms[0].MeasurementID != 1001 {
		t.Errorf("stored measurements = %+v, want only the plausible one", ms)
	}

	raws, _ := st.ListRawUploads(ctx, 0, 0, false)
	if len(raws) != 1 || raws[0].ErrorMessage == nil ||
		!strings.Contains(*raws[0].ErrorMessage, aria.FlagWeightOutOfRange) {
		t.Fatal("out-of-range weight not flagged on the raw record")
	}
	if !raws[0].ParseOK {
		t.Error("flagged upload marked as parse failure")
	}
}
