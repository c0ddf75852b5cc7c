package genicam

import (
	"context"
	"errors"
	"testing"

	"github.com/lbnl-vision/gogenicam/cache"
	"github.com/lbnl-vision/gogenicam/govis"
)

func TestEnumerationGetSetSymbolic(t *testing.T) {
	c := newTestContainer(newFakeTransport())
	backing := NewInteger(c, IntegerConfig{
		Name: "PixelFormatRaw", Value: NewLiteralProperty("0"), Access: AccessReadWrite,
	})
	c.Add(backing)
	e := NewEnumeration(c, EnumerationConfig{
		Name:  "PixelFormat",
		Value: NewRefProperty("PixelFormatRaw"),
		Entries: []EnumEntry{
			{SymbolicName: "Mono8", Value: 0},
			{SymbolicName: "Mono16", Value: 1},
		},
		Access: AccessReadWrite,
	})
	ctx := context.Background()

	sym, err := e.GetSymbolic(ctx)
	if err != nil {
		t.Fatalf("GetSymbolic: %v", err)
	}
	if sym != "Mono8" {
		t.Fatalf("got %q, want Mono8", sym)
	}

	if err := e.SetSymbolic(ctx, "Mono16"); err != nil {
		t.Fatalf("SetSymbolic: %v", err)
	}
	v, err := e.GetInteger(ctx)
	if err != nil || v != 1 {
		t.Fatalf("got %d, %v; want 1", v, err)
	}
}

func TestEnumerationSetIntegerRejectsUnknownValue(t *testing.T) {
	c := newTestContainer(newFakeTransport())
	backing := NewInteger(c, IntegerConfig{Name: "Raw", Value: NewLiteralProperty("0"), Access: AccessReadWrite})
	c.Add(backing)
	e := NewEnumeration(c, EnumerationConfig{
		Name: "Mode", Value: NewRefProperty("Raw"),
		Entries: []EnumEntry{{SymbolicName: "On", Value: 1}},
		Access:  AccessReadWrite,
	})
	if err := e.SetInteger(context.Background(), 5); err == nil {
		t.Fatal("expected error setting a value with no matching entry")
	}
}

func TestFloatGetSetWithRangeCheck(t *testing.T) {
	c := newTestContainer(newFakeTransport())
	f := NewFloat(c, FloatConfig{
		Name: "ExposureTime", Value: NewLiteralProperty("100.0"),
		Min: NewLiteralProperty("10.0"), Max: NewLiteralProperty("1000.0"),
		Access: AccessReadWrite,
	})
	ctx := context.Background()

	got, err := f.GetFloat(ctx)
	if err != nil || got != 100.0 {
		t.Fatalf("got %v, %v; want 100.0", got, err)
	}
	if err := f.SetFloat(ctx, 5.0); err == nil {
		t.Fatal("expected out-of-range error below Min")
	}
	if err := f.SetFloat(ctx, 500.0); err != nil {
		t.Fatalf("SetFloat(500): %v", err)
	}
	got, err = f.GetFloat(ctx)
	if err != nil || got != 500.0 {
		t.Fatalf("got %v, %v; want 500.0", got, err)
	}
}

func TestFloatSetDeniedWhenReadOnly(t *testing.T) {
	c := newTestContainer(newFakeTransport())
	f := NewFloat(c, FloatConfig{Name: "RO", Value: NewLiteralProperty("1.5"), Access: AccessReadOnly})
	if err := f.SetFloat(context.Background(), 2.0); !errors.Is(err, govis.ErrAccessDenied) {
		t.Fatalf("got %v, want ErrAccessDenied", err)
	}
}

func TestCommandExecuteWritesCommandValue(t *testing.T) {
	c := newTestContainer(newFakeTransport())
	target := NewInteger(c, IntegerConfig{Name: "TriggerSoftware", Value: NewLiteralProperty("0"), Access: AccessReadWrite})
	c.Add(target)
	cmd := NewCommand(c, CommandConfig{
		Name: "TriggerExecute", Value: NewRefProperty("TriggerSoftware"), CommandValue: 1, Access: AccessReadWrite,
	})
	ctx := context.Background()
	if err := cmd.Execute(ctx); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	v, err := target.GetInteger(ctx)
	if err != nil || v != 1 {
		t.Fatalf("got %d, %v; want 1", v, err)
	}
}

func TestCommandExecuteDeniedWhenReadOnly(t *testing.T) {
	c := newTestContainer(newFakeTransport())
	target := NewInteger(c, IntegerConfig{Name: "T", Value: NewLiteralProperty("0"), Access: AccessReadWrite})
	c.Add(target)
	cmd := NewCommand(c, CommandConfig{Name: "C", Value: NewRefProperty("T"), CommandValue: 1, Access: AccessReadOnly})
	if err := cmd.Execute(context.Background()); !errors.Is(err, govis.ErrAccessDenied) {
		t.Fatalf("got %v, want ErrAccessDenied", err)
	}
}

func TestPortReadWriteRoundTrip(t *testing.T) {
	c := newTestContainer(newFakeTransport())
	p := NewPort(c, "Device")
	ctx := context.Background()
	if err := p.Write(ctx, 0x7000, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := p.Read(ctx, 0x7000, 4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string([]byte{1, 2, 3, 4}) {
		t.Fatalf("got %v, want [1 2 3 4]", got)
	}
}

func TestPortReadFailsWithoutTransport(t *testing.T) {
	c := NewContainer(Binding{Cache: cache.New(nil)})
	p := NewPort(c, "Device")
	if _, err := p.Read(context.Background(), 0, 4); !errors.Is(err, govis.ErrNotConnected) {
		t.Fatalf("got %v, want ErrNotConnected", err)
	}
}

func TestStringNodeLiteral(t *testing.T) {
	c := newTestContainer(newFakeTransport())
	s := NewString(c, StringConfig{Name: "Vendor", Value: NewLiteralProperty("Acme"), Access: AccessReadOnly})
	got, err := s.GetString(context.Background())
	if err != nil || got != "Acme" {
		t.Fatalf("got %q, %v; want Acme", got, err)
	}
}

func TestStringNodeRegisterBackedRoundTrip(t *testing.T) {
	c := newTestContainer(newFakeTransport())
	reg := NewRegister(c, RegisterConfig{
		Name: "DeviceID", Addresses: []Property{NewLiteralProperty("0x8000")},
		Length: NewLiteralProperty("16"), Access: AccessReadWrite,
		Policy: cache.PolicyDisable, Endian: BigEndian, Sign: SignUnsigned,
	})
	c.Add(reg)
	s := NewString(c, StringConfig{
		Name: "SerialNumber", Value: NewRefProperty("DeviceID"), MaxLength: 16, Access: AccessReadWrite,
	})
	ctx := context.Background()
	if err := s.SetString(ctx, "SN1234"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	got, err := s.GetString(ctx)
	if err != nil || got != "SN1234" {
		t.Fatalf("got %q, %v; want SN1234", got, err)
	}
}

func TestStringNodeRejectsOverMaxLength(t *testing.T) {
	c := newTestContainer(newFakeTransport())
	reg := NewRegister(c, RegisterConfig{
		Name: "Short", Addresses: []Property{NewLiteralProperty("0x9000")},
		Length: NewLiteralProperty("4"), Access: AccessReadWrite,
		Policy: cache.PolicyDisable, Endian: BigEndian, Sign: SignUnsigned,
	})
	c.Add(reg)
	s := NewString(c, StringConfig{Name: "Short", Value: NewRefProperty("Short"), MaxLength: 4, Access: AccessReadWrite})
	if err := s.SetString(context.Background(), "toolong"); err == nil {
		t.Fatal("expected out-of-range error for a string exceeding MaxLength")
	}
}
