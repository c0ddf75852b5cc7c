package gvsp

import "testing"

func TestHeaderRoundTripClassic(t *testing.T) {
	want := Header{Status: StatusSuccess, ContentType: ContentTypePayload, FrameID: 42, PacketID: 7, Data: []byte{1, 2, 3}}
	got, err := Decode(Encode(want))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Extended {
		t.Fatal("expected classic header")
	}
	if got.Status != want.Status || got.ContentType != want.ContentType || got.FrameID != want.FrameID || got.PacketID != want.PacketID {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if string(got.Data) != string(want.Data) {
		t.Fatalf("data: got %v, want %v", got.Data, want.Data)
	}
}

func TestHeaderRoundTripExtended(t *testing.T) {
	want := Header{
		Status:      StatusSuccess,
		Extended:    true,
		ContentType: ContentTypeLeader,
		FrameID:     0x1_0000_0001, // exceeds classic's 15-bit frame id range
		PacketID:    123,
		Data:        []byte{9, 9},
	}
	got, err := Decode(Encode(want))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.Extended {
		t.Fatal("expected extended header")
	}
	if got.FrameID != want.FrameID || got.ContentType != want.ContentType || got.PacketID != want.PacketID {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestDecodeRejectsShortClassicHeader(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err != ErrTooShort {
		t.Fatalf("got %v, want ErrTooShort", err)
	}
}

func TestDecodeRejectsShortExtendedHeader(t *testing.T) {
	buf := Encode(Header{Extended: true, ContentType: ContentTypeTrailer})
	buf = buf[:HeaderSizeClassic] // long enough to look classic-short, too short for extended
	if _, err := Decode(buf); err != ErrTooShort {
		t.Fatalf("got %v, want ErrTooShort", err)
	}
}

func TestLeaderImageInfoRoundTrip(t *testing.T) {
	want := LeaderImageInfo{
		PayloadType: LeaderPayloadImage,
		TimestampNS: 123456789,
		PixelFormat: 0x01080001,
		Width:       1920,
		Height:      1080,
		XOffset:     0,
		YOffset:     0,
		XPadding:    0,
		YPadding:    0,
	}
	got, err := DecodeLeaderImageInfo(EncodeLeaderImageInfo(want))
	if err != nil {
		t.Fatalf("DecodeLeaderImageInfo: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestDecodeLeaderImageInfoTooShort(t *testing.T) {
	if _, err := DecodeLeaderImageInfo(make([]byte, 10)); err != ErrTooShort {
		t.Fatalf("got %v, want ErrTooShort", err)
	}
}

func TestDecodeMultipartInfos(t *testing.T) {
	a := make([]byte, multipartInfoSize*2)
	infos, err := DecodeMultipartInfos(a)
	if err != nil {
		t.Fatalf("DecodeMultipartInfos: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d infos, want 2", len(infos))
	}
}

func TestDecodeMultipartInfosRejectsMisalignedBuffer(t *testing.T) {
	if _, err := DecodeMultipartInfos(make([]byte, multipartInfoSize+1)); err != ErrTooShort {
		t.Fatalf("got %v, want ErrTooShort", err)
	}
}

func TestDecodePayloadPacketHeader(t *testing.T) {
	buf := make([]byte, 16)
	buf[3] = 5  // part id = 5
	buf[11] = 64 // offset = 64
	buf[12], buf[13], buf[14], buf[15] = 0xDE, 0xAD, 0xBE, 0xEF

	hdr, rest, err := DecodePayloadPacketHeader(buf)
	if err != nil {
		t.Fatalf("DecodePayloadPacketHeader: %v", err)
	}
	if hdr.PartID != 5 || hdr.Offset != 64 {
		t.Fatalf("got %+v", hdr)
	}
	if len(rest) != 4 {
		t.Fatalf("rest len = %d, want 4", len(rest))
	}
}

func TestDecodePayloadPacketHeaderTooShort(t *testing.T) {
	if _, _, err := DecodePayloadPacketHeader(make([]byte, 4)); err != ErrTooShort {
		t.Fatalf("got %v, want ErrTooShort", err)
	}
}

func TestDecodeTrailerInfo(t *testing.T) {
	buf := make([]byte, 8)
	buf[7] = 10 // packet count = 10
	info, err := DecodeTrailerInfo(buf)
	if err != nil {
		t.Fatalf("DecodeTrailerInfo: %v", err)
	}
	if info.PacketCount != 10 {
		t.Fatalf("got %+v, want PacketCount=10", info)
	}
}

func TestDecodeTrailerInfoTooShort(t *testing.T) {
	if _, err := DecodeTrailerInfo(make([]byte, 4)); err != ErrTooShort {
		t.Fatalf("got %v, want ErrTooShort", err)
	}
}
