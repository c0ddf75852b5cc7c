package uvcp

import "testing"

func TestPacketRoundTrip(t *testing.T) {
	want := Packet{Flags: FlagAckRequired, Command: CmdReadMemory, ID: 7, Payload: []byte{0xAA, 0xBB}}
	got, err := Decode(Encode(want))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Flags != want.Flags || got.Command != want.Command || got.ID != want.ID {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if string(got.Payload) != string(want.Payload) {
		t.Fatalf("payload: got %v, want %v", got.Payload, want.Payload)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	buf := Encode(Packet{Command: CmdReadMemory})
	buf[0] = 0x00
	if _, err := Decode(buf); err != ErrBadMagic {
		t.Fatalf("got %v, want ErrBadMagic", err)
	}
}

func TestReadMemoryCmdRoundTrip(t *testing.T) {
	want := ReadMemoryCmd{Address: 0x0000011C, Count: 64}
	got, err := DecodeReadMemoryCmd(EncodeReadMemoryCmd(want))
	if err != nil || got != want {
		t.Fatalf("got %+v, %v; want %+v", got, err, want)
	}
}

func TestWriteMemoryCmdRoundTrip(t *testing.T) {
	want := WriteMemoryCmd{Address: 0x1000, Data: []byte{1, 2, 3, 4}}
	got, err := DecodeWriteMemoryCmd(EncodeWriteMemoryCmd(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Address != want.Address || string(got.Data) != string(want.Data) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestDecodeManifestEntry(t *testing.T) {
	buf := make([]byte, 24)
	// flags: schema type ZIP in the low 16 bits
	buf[0] = byte(ManifestSchemaZIP)
	buf[8] = 0x00 // address low byte
	buf[9] = 0x10
	buf[16] = 0x80 // length low byte

	entry, err := DecodeManifestEntry(buf)
	if err != nil {
		t.Fatalf("DecodeManifestEntry: %v", err)
	}
	if entry.SchemaType != ManifestSchemaZIP {
		t.Fatalf("schema type = %#x, want ZIP", entry.SchemaType)
	}
	if entry.Address != 0x1000 {
		t.Fatalf("address = %#x, want 0x1000", entry.Address)
	}
	if entry.Length != 0x80 {
		t.Fatalf("length = %#x, want 0x80", entry.Length)
	}
}

func TestDecodeManifestEntryTooShort(t *testing.T) {
	if _, err := DecodeManifestEntry(make([]byte, 4)); err != ErrTooShort {
		t.Fatalf("got %v, want ErrTooShort", err)
	}
}
