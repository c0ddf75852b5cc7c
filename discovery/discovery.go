// Package discovery implements spec.md §2's "Discovery / interfaces"
// component: enumerating transports, probing for devices, and opening one
// by id.
package discovery

import (
	"context"

	"github.com/lbnl-vision/gogenicam/govis"
)

// Descriptor is what a probe returns about one reachable device, before it
// is opened: enough to construct its DeviceID and dial its transport.
type Descriptor struct {
	ID           govis.DeviceID
	Vendor       string
	Model        string
	Serial       string
	UserDefined  string

	// Address is transport-specific: "host:port" for GV, "usb:BUS:ADDR"
	// (decimal USB bus number and device address) for U3V.
	Address string
}

// Prober enumerates reachable devices on one transport kind.
type Prober interface {
	Probe(ctx context.Context) ([]Descriptor, error)
}
