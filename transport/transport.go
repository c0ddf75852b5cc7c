// Package transport defines the contract shared by the GV (GVCP/UDP) and
// U3V (USB bulk) device transports, per spec.md §4.1.
package transport

import "context"

// Transport is the device-facing contract the GenICam feature tree is
// evaluated through. Implementations MUST serialize the cmd/ack exchange
// per device (spec.md §5 "a second call MUST NOT send its cmd until the
// first has completed").
type Transport interface {
	// ReadMemory reads size bytes starting at address into a newly
	// allocated buffer. Requests larger than the negotiated packet
	// maximum are split into sequential chunks; the first failing
	// sub-transfer's error is returned.
	ReadMemory(ctx context.Context, address uint64, size int) ([]byte, error)

	// WriteMemory writes data to address, chunked the same way as
	// ReadMemory.
	WriteMemory(ctx context.Context, address uint64, data []byte) error

	// ReadRegister reads a single 32-bit register.
	ReadRegister(ctx context.Context, address uint64) (uint32, error)

	// WriteRegister writes a single 32-bit register.
	WriteRegister(ctx context.Context, address uint64, value uint32) error

	// GenICamXML returns the device's self-describing XML, fetched and
	// cached at bootstrap. The returned slice is owned by the transport
	// and must not be modified.
	GenICamXML(ctx context.Context) ([]byte, error)

	// OnControlLost registers a callback invoked exactly once, the first
	// time this transport detects a permanent disconnect (spec.md §4.1.4).
	// Safe to call from any goroutine; fn is invoked either from the
	// transport's internal receive goroutine or from the goroutine of the
	// read/write call that detected the disconnect.
	OnControlLost(fn func())

	// Close releases the transport's underlying socket/USB handle.
	Close() error
}

// PacketMax is the negotiated maximum size of a single memory-access
// request/reply packet a transport will emit. Memory accessors chunk
// larger requests into packetMax-headerSize pieces per spec.md §4.1.
type PacketMax struct {
	PacketSize int
	HeaderSize int
}

// ChunkSize is the usable payload size per chunk.
func (p PacketMax) ChunkSize() int {
	n := p.PacketSize - p.HeaderSize
	if n <= 0 {
		return 1
	}
	return n
}
