package uvsp

import "testing"

func TestLeaderRoundTrip(t *testing.T) {
	want := Leader{FrameID: 99, Body: []byte{1, 2, 3, 4}}
	got, err := DecodeLeader(EncodeLeader(want))
	if err != nil {
		t.Fatalf("DecodeLeader: %v", err)
	}
	if got.FrameID != want.FrameID {
		t.Fatalf("frame id: got %d, want %d", got.FrameID, want.FrameID)
	}
	if string(got.Body) != string(want.Body) {
		t.Fatalf("body: got %v, want %v", got.Body, want.Body)
	}
}

func TestDecodeLeaderTooShort(t *testing.T) {
	if _, err := DecodeLeader([]byte{1, 2}); err != ErrTooShort {
		t.Fatalf("got %v, want ErrTooShort", err)
	}
}

func TestDecodeLeaderBadMagic(t *testing.T) {
	buf := EncodeLeader(Leader{FrameID: 1})
	buf[0] = 0x00
	if _, err := DecodeLeader(buf); err == nil {
		t.Fatal("expected bad magic error")
	}
}

func TestImageInfoRoundTrip(t *testing.T) {
	want := ImageInfo{PayloadType: 1, PixelFormat: 0x01080001, Width: 640, Height: 480, XOffset: 0, YOffset: 0}
	got, err := DecodeImageInfo(EncodeImageInfo(want))
	if err != nil || got != want {
		t.Fatalf("got %+v, %v; want %+v", got, err, want)
	}
}

func TestDecodeImageInfoTooShort(t *testing.T) {
	if _, err := DecodeImageInfo(make([]byte, 4)); err != ErrTooShort {
		t.Fatalf("got %v, want ErrTooShort", err)
	}
}

func TestTrailerRoundTrip(t *testing.T) {
	want := Trailer{FrameID: 7, Body: []byte{0xAA}}
	got, err := DecodeTrailer(EncodeTrailer(want))
	if err != nil {
		t.Fatalf("DecodeTrailer: %v", err)
	}
	if got.FrameID != want.FrameID || string(got.Body) != string(want.Body) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestDecodeTrailerBadMagic(t *testing.T) {
	buf := EncodeTrailer(Trailer{FrameID: 1})
	buf[0] = 0xFF
	if _, err := DecodeTrailer(buf); err == nil {
		t.Fatal("expected bad magic error")
	}
}

func TestTrailerInfoRoundTrip(t *testing.T) {
	want := TrailerInfo{ActualSize: 123456}
	got, err := DecodeTrailerInfo(EncodeTrailerInfo(want))
	if err != nil || got != want {
		t.Fatalf("got %+v, %v; want %+v", got, err, want)
	}
}

func TestDecodeTrailerInfoTooShort(t *testing.T) {
	if _, err := DecodeTrailerInfo(make([]byte, 2)); err != ErrTooShort {
		t.Fatalf("got %v, want ErrTooShort", err)
	}
}
