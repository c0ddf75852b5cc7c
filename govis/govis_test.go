package govis

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestNewDeviceIDWithSerial(t *testing.T) {
	id := NewDeviceID(" Acme ", " CamX ", " SN001 ")
	if id.String() != "Acme-CamX-SN001" {
		t.Fatalf("got %q, want trimmed vendor/model/serial joined", id.String())
	}
}

func TestNewDeviceIDSynthesizesSerialWhenEmpty(t *testing.T) {
	a := NewDeviceID("Acme", "CamX", "")
	b := NewDeviceID("Acme", "CamX", "")
	if a == b {
		t.Fatal("expected distinct synthesized ids for two empty-serial calls")
	}
}

func TestNewDeviceIDFromGUID(t *testing.T) {
	g := uuid.New()
	id := NewDeviceIDFromGUID("Acme", "CamX", g)
	want := "Acme-CamX-" + g.String()
	if id.String() != want {
		t.Fatalf("got %q, want %q", id.String(), want)
	}
}

func TestNewDeviceIDFromMAC(t *testing.T) {
	mac := [6]byte{0x00, 0x1a, 0x2b, 0x3c, 0x4d, 0x5e}
	id := NewDeviceIDFromMAC("Acme", "CamX", mac)
	if id.String() != "Acme-CamX-00:1a:2b:3c:4d:5e" {
		t.Fatalf("got %q", id.String())
	}
}

func TestAckStatusAsError(t *testing.T) {
	cases := []struct {
		status AckStatus
		want   error
	}{
		{AckStatusSuccess, nil},
		{AckStatusNotImplemented, ErrNotImplemented},
		{AckStatusInvalidParameter, ErrInvalidParameter},
		{AckStatusInvalidAddress, ErrInvalidAddress},
		{AckStatusWriteProtect, ErrWriteProtect},
		{AckStatusBadAlignment, ErrBadAlignment},
		{AckStatusAccessDenied, ErrAccessDenied},
		{AckStatusBusy, ErrBusy},
		{AckStatus(0x9999), ErrProtocol},
	}
	for _, c := range cases {
		if got := c.status.AsError(); got != c.want {
			t.Errorf("status %#x: got %v, want %v", uint16(c.status), got, c.want)
		}
	}
}

func TestWrapFeatureNilPassthrough(t *testing.T) {
	if err := WrapFeature("Width", nil); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
}

func TestWrapFeatureErrorIsAndMessage(t *testing.T) {
	err := WrapFeature("Width", ErrOutOfRange)
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("errors.Is(%v, ErrOutOfRange) = false", err)
	}
	if err.Error() != "Width error: value out of range" {
		t.Fatalf("got %q", err.Error())
	}
}

func TestBufferStatusString(t *testing.T) {
	cases := map[BufferStatus]string{
		BufferStatusFilling:        "Filling",
		BufferStatusSuccess:        "Success",
		BufferStatusMissingPackets: "MissingPackets",
		BufferStatusSizeMismatch:   "SizeMismatch",
		BufferStatusAborted:        "Aborted",
		BufferStatus(99):           "Unknown",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("status %d: got %q, want %q", status, got, want)
		}
	}
}

func TestBufferResetClearsFillState(t *testing.T) {
	b := NewBuffer(16)
	b.Status = BufferStatusSuccess
	b.PayloadType = PayloadTypeImage
	b.FrameID = 42
	b.TimestampNS = 1000
	b.Parts = append(b.Parts, Part{Width: 640, Height: 480})
	b.Chunk = &ChunkRegion{Offset: 8, Length: 4}
	b.HasChunks = true
	b.BytesFilled = 16

	b.Reset()

	if b.Status != BufferStatusUnknown || b.PayloadType != PayloadTypeUnknown {
		t.Fatalf("status/payload not reset: %+v", b)
	}
	if b.FrameID != 0 || b.TimestampNS != 0 || b.BytesFilled != 0 {
		t.Fatalf("scalar fields not reset: %+v", b)
	}
	if len(b.Parts) != 0 || b.Chunk != nil || b.HasChunks {
		t.Fatalf("slice/pointer fields not reset: %+v", b)
	}
	if len(b.Data) != 16 {
		t.Fatalf("Data capacity should survive Reset, got len %d", len(b.Data))
	}
}
