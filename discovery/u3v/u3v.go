// Package u3v implements USB3 Vision device discovery: walking the USB bus
// via google/gousb for devices whose interface descriptors advertise the U3V
// class/subclass/protocol triplet, grounded on descriptor-driven device
// selection and on gousb's own OpenDevices idiom.
package u3v

import (
	"context"
	"fmt"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"github.com/lbnl-vision/gogenicam/discovery"
	"github.com/lbnl-vision/gogenicam/govis"
)

// USB3 Vision's registered interface class/subclass/protocol, per the USB3
// Vision specification's "Miscellaneous" application-specific class entry.
const (
	u3vClass    = gousb.ClassMiscellaneous
	u3vSubclass = 0x05
	u3vProtocol = 0x00
)

// Prober implements discovery.Prober by walking the local USB bus.
type Prober struct {
	log *zap.Logger
	ctx *gousb.Context
}

type Option func(*Prober)

func WithLogger(l *zap.Logger) Option { return func(p *Prober) { p.log = l } }

// New builds a Prober over an already-open gousb.Context. Callers own the
// context's lifetime (Close it when no longer probing).
func New(ctx *gousb.Context, opts ...Option) *Prober {
	p := &Prober{log: zap.NewNop(), ctx: ctx}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Probe enumerates attached USB devices and returns a Descriptor for every
// one exposing a U3V-class interface in any configuration.
func (p *Prober) Probe(ctx context.Context) ([]discovery.Descriptor, error) {
	devs, err := p.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return hasU3VInterface(desc)
	})
	if err != nil {
		return nil, fmt.Errorf("u3v discovery: list devices: %w", err)
	}
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()

	found := make([]discovery.Descriptor, 0, len(devs))
	for _, d := range devs {
		manufacturer, err := d.Manufacturer()
		if err != nil {
			p.log.Debug("u3v discovery: read manufacturer string failed", zap.Error(err))
		}
		product, err := d.Product()
		if err != nil {
			p.log.Debug("u3v discovery: read product string failed", zap.Error(err))
		}
		serial, err := d.SerialNumber()
		if err != nil {
			p.log.Debug("u3v discovery: read serial string failed", zap.Error(err))
		}

		found = append(found, discovery.Descriptor{
			ID:      govis.NewDeviceID(manufacturer, product, serial),
			Vendor:  manufacturer,
			Model:   product,
			Serial:  serial,
			Address: fmt.Sprintf("usb:%d:%d", d.Desc.Bus, d.Desc.Address),
		})
	}
	return found, nil
}

// hasU3VInterface reports whether desc advertises a U3V interface in any of
// its configurations, matching on class/subclass/protocol the way the
// USB3 Vision spec's "GenICam compliant" device discovery does.
func hasU3VInterface(desc *gousb.DeviceDesc) bool {
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == u3vClass && alt.SubClass == gousb.Class(u3vSubclass) && alt.Protocol == gousb.Protocol(u3vProtocol) {
					return true
				}
			}
		}
	}
	return false
}
