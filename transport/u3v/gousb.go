package u3v

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// GousbControlEndpoints implements ControlEndpoints over a pair of USB bulk
// endpoints opened through google/gousb, the control IN/OUT pipes a U3V
// device advertises in its interface descriptor (distinct from the
// USB standard control endpoint 0, despite the protocol's "control" name).
type GousbControlEndpoints struct {
	out *gousb.OutEndpoint
	in  *gousb.InEndpoint
}

// NewGousbControlEndpoints wraps already-claimed bulk endpoints.
func NewGousbControlEndpoints(out *gousb.OutEndpoint, in *gousb.InEndpoint) *GousbControlEndpoints {
	return &GousbControlEndpoints{out: out, in: in}
}

// WriteControl writes p to the bulk-OUT control endpoint. gousb's endpoint
// Write is not itself context-aware, so cancellation is best-effort: on
// ctx.Done() the call returns early but the underlying libusb transfer may
// still complete in the background.
func (g *GousbControlEndpoints) WriteControl(ctx context.Context, p []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := g.out.Write(p)
		done <- result{n, err}
	}()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return r.n, fmt.Errorf("u3v: usb bulk write: %w", r.err)
		}
		return r.n, nil
	}
}

// ReadControl reads from the bulk-IN control endpoint the same way.
func (g *GousbControlEndpoints) ReadControl(ctx context.Context, buf []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := g.in.Read(buf)
		done <- result{n, err}
	}()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return r.n, fmt.Errorf("u3v: usb bulk read: %w", r.err)
		}
		return r.n, nil
	}
}

// OpenControlEndpoints finds and claims a device's U3V control bulk
// endpoints by explicit address, as reported by its interface descriptor.
func OpenControlEndpoints(dev *gousb.Device, cfgNum, ifNum, altNum int, outAddr, inAddr gousb.EndpointAddress) (*GousbControlEndpoints, func(), error) {
	cfg, err := dev.Config(cfgNum)
	if err != nil {
		return nil, nil, fmt.Errorf("u3v: claim config %d: %w", cfgNum, err)
	}
	intf, err := cfg.Interface(ifNum, altNum)
	if err != nil {
		cfg.Close()
		return nil, nil, fmt.Errorf("u3v: claim interface %d: %w", ifNum, err)
	}
	out, err := intf.OutEndpoint(int(outAddr))
	if err != nil {
		intf.Close()
		cfg.Close()
		return nil, nil, fmt.Errorf("u3v: open out endpoint %v: %w", outAddr, err)
	}
	in, err := intf.InEndpoint(int(inAddr))
	if err != nil {
		intf.Close()
		cfg.Close()
		return nil, nil, fmt.Errorf("u3v: open in endpoint %v: %w", inAddr, err)
	}
	cleanup := func() {
		intf.Close()
		cfg.Close()
	}
	return NewGousbControlEndpoints(out, in), cleanup, nil
}
