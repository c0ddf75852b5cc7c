package govis

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DeviceID is an opaque UTF-8 string uniquely identifying a device within a
// single discovery pass, assembled from {vendor, model, serial} or a
// transport-specific GUID/MAC per spec.md §3.
type DeviceID string

// NewDeviceID assembles an identifier from vendor, model and serial. When
// serial is empty (some GigE devices don't expose one over discovery), a
// fresh random UUID is synthesized instead so the id remains unique within
// this discovery pass; each such call yields a different id.
func NewDeviceID(vendor, model, serial string) DeviceID {
	vendor, model, serial = strings.TrimSpace(vendor), strings.TrimSpace(model), strings.TrimSpace(serial)
	if serial == "" {
		serial = uuid.NewString()
	}
	return DeviceID(fmt.Sprintf("%s-%s-%s", vendor, model, serial))
}

// NewDeviceIDFromGUID assembles an identifier from a U3V 128-bit device GUID.
func NewDeviceIDFromGUID(vendor, model string, guid uuid.UUID) DeviceID {
	return DeviceID(fmt.Sprintf("%s-%s-%s", strings.TrimSpace(vendor), strings.TrimSpace(model), guid.String()))
}

// NewDeviceIDFromMAC assembles an identifier from a GigE MAC address.
func NewDeviceIDFromMAC(vendor, model string, mac [6]byte) DeviceID {
	return DeviceID(fmt.Sprintf("%s-%s-%02x:%02x:%02x:%02x:%02x:%02x",
		strings.TrimSpace(vendor), strings.TrimSpace(model),
		mac[0], mac[1], mac[2], mac[3], mac[4], mac[5]))
}

func (id DeviceID) String() string { return string(id) }
