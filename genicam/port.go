package genicam

import (
	"context"

	"github.com/lbnl-vision/gogenicam/govis"
)

// Port is spec.md §3's Port node: the root through which register I/O is
// actually performed. A Register's address ultimately resolves against a
// Port, and it is the Port, not the Register, that owns the Transport
// binding -- letting one Container describe nodes spanning more than one
// physical access path (the local device plus, e.g., a chained GenTL
// producer) even though gogenicam only ever binds one Port per device.
type Port struct {
	name string
	c    *Container
}

func NewPort(c *Container, name string) *Port {
	return &Port{name: name, c: c}
}

func (n *Port) Name() string { return n.name }

// Read performs a raw memory read through the container's bound transport.
func (n *Port) Read(ctx context.Context, address uint64, length int) ([]byte, error) {
	if n.c.binding.Transport == nil {
		return nil, govis.WrapFeature(n.name, govis.ErrNotConnected)
	}
	data, err := n.c.binding.Transport.ReadMemory(ctx, address, length)
	if err != nil {
		return nil, govis.WrapFeature(n.name, err)
	}
	return data, nil
}

// Write performs a raw memory write through the container's bound transport.
func (n *Port) Write(ctx context.Context, address uint64, data []byte) error {
	if n.c.binding.Transport == nil {
		return govis.WrapFeature(n.name, govis.ErrNotConnected)
	}
	if err := n.c.binding.Transport.WriteMemory(ctx, address, data); err != nil {
		return govis.WrapFeature(n.name, err)
	}
	return nil
}
