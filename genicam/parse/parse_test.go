package parse

import (
	"context"
	"testing"

	"github.com/lbnl-vision/gogenicam/cache"
	"github.com/lbnl-vision/gogenicam/genicam"
)

type fakeTransport struct{ mem map[uint64][]byte }

func newFakeTransport() *fakeTransport { return &fakeTransport{mem: make(map[uint64][]byte)} }

func (f *fakeTransport) ReadMemory(ctx context.Context, address uint64, size int) ([]byte, error) {
	data, ok := f.mem[address]
	if !ok {
		data = make([]byte, size)
	}
	out := make([]byte, size)
	copy(out, data)
	return out, nil
}

func (f *fakeTransport) WriteMemory(ctx context.Context, address uint64, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	f.mem[address] = buf
	return nil
}

func (f *fakeTransport) ReadRegister(ctx context.Context, address uint64) (uint32, error) {
	data, _ := f.ReadMemory(ctx, address, 4)
	return uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3]), nil
}

func (f *fakeTransport) WriteRegister(ctx context.Context, address uint64, value uint32) error {
	return f.WriteMemory(ctx, address, []byte{byte(value >> 24), byte(value >> 16), byte(value >> 8), byte(value)})
}

func (f *fakeTransport) GenICamXML(ctx context.Context) ([]byte, error) { return nil, nil }
func (f *fakeTransport) OnControlLost(fn func())                       {}
func (f *fakeTransport) Close() error                                  { return nil }

const sampleXML = `<?xml version="1.0"?>
<RegisterDescription>
  <Category Name="Root">
    <pFeature>Width</pFeature>
    <pFeature>WidthMax</pFeature>
    <pFeature>HalfWidth</pFeature>
  </Category>
  <Integer Name="Width">
    <Value>640</Value>
    <Min>0</Min>
    <Max>4096</Max>
  </Integer>
  <Register Name="WidthMax">
    <Address>0x1000</Address>
    <Length>4</Length>
    <AccessMode>RW</AccessMode>
  </Register>
  <IntSwissKnife Name="HalfWidth">
    <pVariable Name="W">Width</pVariable>
    <Formula>W / 2</Formula>
  </IntSwissKnife>
</RegisterDescription>`

func newTestContainer(t *testing.T, ft *fakeTransport) *genicam.Container {
	t.Helper()
	c, err := Parse([]byte(sampleXML), genicam.Binding{
		Transport:         ft,
		Cache:             cache.New(nil),
		RangeCheckPolicy:  genicam.RangeCheckEnable,
		AccessCheckPolicy: genicam.AccessCheckEnable,
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return c
}

func TestParseBuildsCategoryChildren(t *testing.T) {
	c := newTestContainer(t, newFakeTransport())
	n, err := c.GetNode("Root")
	if err != nil {
		t.Fatalf("GetNode(Root): %v", err)
	}
	cat, ok := n.(*genicam.Category)
	if !ok {
		t.Fatalf("Root is %T, want *genicam.Category", n)
	}
	want := []string{"Width", "WidthMax", "HalfWidth"}
	got := cat.Children()
	if len(got) != len(want) {
		t.Fatalf("children = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("children[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseIntegerNode(t *testing.T) {
	c := newTestContainer(t, newFakeTransport())
	n, err := c.GetNode("Width")
	if err != nil {
		t.Fatalf("GetNode(Width): %v", err)
	}
	iv, ok := n.(genicam.IntegerValue)
	if !ok {
		t.Fatalf("Width does not implement IntegerValue: %T", n)
	}
	v, err := iv.GetInteger(context.Background())
	if err != nil {
		t.Fatalf("GetInteger: %v", err)
	}
	if v != 640 {
		t.Fatalf("got %d, want 640", v)
	}
}

func TestParseRegisterNode(t *testing.T) {
	ft := newFakeTransport()
	c := newTestContainer(t, ft)
	n, err := c.GetNode("WidthMax")
	if err != nil {
		t.Fatalf("GetNode(WidthMax): %v", err)
	}
	wi, ok := n.(genicam.WritableInteger)
	if !ok {
		t.Fatalf("WidthMax does not implement WritableInteger: %T", n)
	}
	ctx := context.Background()
	if err := wi.SetInteger(ctx, 4096); err != nil {
		t.Fatalf("SetInteger: %v", err)
	}
	got, err := wi.GetInteger(ctx)
	if err != nil || got != 4096 {
		t.Fatalf("got %d, %v; want 4096", got, err)
	}
}

func TestParseSwissKnifeResolvesThroughPVariable(t *testing.T) {
	c := newTestContainer(t, newFakeTransport())
	n, err := c.GetNode("HalfWidth")
	if err != nil {
		t.Fatalf("GetNode(HalfWidth): %v", err)
	}
	iv, ok := n.(genicam.IntegerValue)
	if !ok {
		t.Fatalf("HalfWidth does not implement IntegerValue: %T", n)
	}
	got, err := iv.GetInteger(context.Background())
	if err != nil {
		t.Fatalf("GetInteger: %v", err)
	}
	if got != 320 {
		t.Fatalf("got %d, want 320 (640/2)", got)
	}
}
