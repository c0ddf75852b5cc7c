package cache

import (
	"context"
	"testing"
)

// fakeFetcher is an in-memory Fetcher backed by a byte-addressed map,
// counting how many times each method was actually called so tests can
// assert on cache hits vs. misses.
type fakeFetcher struct {
	mem    map[uint64][]byte
	reads  int
	writes int
}

func newFakeFetcher() *fakeFetcher { return &fakeFetcher{mem: make(map[uint64][]byte)} }

func (f *fakeFetcher) FetchRead(ctx context.Context, address uint64, length int) ([]byte, error) {
	f.reads++
	data, ok := f.mem[address]
	if !ok {
		data = make([]byte, length)
	}
	out := make([]byte, length)
	copy(out, data)
	return out, nil
}

func (f *fakeFetcher) FetchWrite(ctx context.Context, address uint64, data []byte) error {
	f.writes++
	f.mem[address] = append([]byte(nil), data...)
	return nil
}

func TestCacheReadDisablePolicyAlwaysFetches(t *testing.T) {
	c := New(nil)
	f := newFakeFetcher()
	ctx := context.Background()

	if _, err := c.Read(ctx, f, 0x1000, 4, PolicyDisable); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if _, err := c.Read(ctx, f, 0x1000, 4, PolicyDisable); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if f.reads != 2 {
		t.Fatalf("reads = %d, want 2 (no caching under PolicyDisable)", f.reads)
	}
}

func TestCacheReadEnablePolicyHitsAfterFirstFetch(t *testing.T) {
	c := New(nil)
	f := newFakeFetcher()
	f.mem[0x2000] = []byte{1, 2, 3, 4}
	ctx := context.Background()

	got1, err := c.Read(ctx, f, 0x2000, 4, PolicyEnable)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	got2, err := c.Read(ctx, f, 0x2000, 4, PolicyEnable)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if f.reads != 1 {
		t.Fatalf("reads = %d, want 1 (second Read should hit cache)", f.reads)
	}
	if string(got1) != string(got2) {
		t.Fatalf("got1=%v got2=%v, want equal", got1, got2)
	}
}

func TestCacheInvalidateForcesRefetch(t *testing.T) {
	c := New(nil)
	f := newFakeFetcher()
	f.mem[0x3000] = []byte{0xAA}
	ctx := context.Background()
	c.RegisterInvalidator("TriggerSoftware", 0x3000, 1)

	if _, err := c.Read(ctx, f, 0x3000, 1, PolicyEnable); err != nil {
		t.Fatalf("Read: %v", err)
	}
	c.Invalidate("TriggerSoftware")
	if _, err := c.Read(ctx, f, 0x3000, 1, PolicyEnable); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if f.reads != 2 {
		t.Fatalf("reads = %d, want 2 (invalidated entry must refetch)", f.reads)
	}
}

func TestCacheWriteThroughUpdatesEntry(t *testing.T) {
	c := New(nil)
	f := newFakeFetcher()
	ctx := context.Background()

	if err := c.Write(ctx, f, 0x4000, []byte{9, 9}, PolicyEnable, CachableWriteThrough); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := c.Read(ctx, f, 0x4000, 2, PolicyEnable)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string([]byte{9, 9}) {
		t.Fatalf("got %v, want [9 9]", got)
	}
	if f.reads != 0 {
		t.Fatalf("reads = %d, want 0 (write-through should populate without a fetch)", f.reads)
	}
}

func TestCacheWriteAroundInvalidatesEntry(t *testing.T) {
	c := New(nil)
	f := newFakeFetcher()
	ctx := context.Background()

	if err := c.Write(ctx, f, 0x5000, []byte{1}, PolicyEnable, CachableWriteAround); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := c.Read(ctx, f, 0x5000, 1, PolicyEnable); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if f.reads != 1 {
		t.Fatalf("reads = %d, want 1 (write-around must not populate the cache)", f.reads)
	}
}

func TestCacheBumpChangeCountIsMonotonic(t *testing.T) {
	c := New(nil)
	if c.ChangeCount() != 0 {
		t.Fatalf("initial ChangeCount = %d, want 0", c.ChangeCount())
	}
	c.BumpChangeCount()
	c.BumpChangeCount()
	if c.ChangeCount() != 2 {
		t.Fatalf("ChangeCount = %d, want 2", c.ChangeCount())
	}
}

func TestCacheWriteBumpsChangeCount(t *testing.T) {
	c := New(nil)
	f := newFakeFetcher()
	if err := c.Write(context.Background(), f, 0x6000, []byte{1}, PolicyDisable, CachableNoCache); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if c.ChangeCount() != 1 {
		t.Fatalf("ChangeCount = %d, want 1 after a write", c.ChangeCount())
	}
}
