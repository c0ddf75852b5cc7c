package govis

import "sync"

// BufferStatus is the lifecycle state of a Buffer, per spec.md §3.
type BufferStatus int

const (
	BufferStatusUnknown BufferStatus = iota
	BufferStatusFilling
	BufferStatusSuccess
	BufferStatusMissingPackets
	BufferStatusSizeMismatch
	BufferStatusAborted
)

func (s BufferStatus) String() string {
	switch s {
	case BufferStatusFilling:
		return "Filling"
	case BufferStatusSuccess:
		return "Success"
	case BufferStatusMissingPackets:
		return "MissingPackets"
	case BufferStatusSizeMismatch:
		return "SizeMismatch"
	case BufferStatusAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// PayloadType tags the content a Buffer carries, mirroring the leader's
// payload-type field on both GVSP and UVSP.
type PayloadType uint16

const (
	PayloadTypeUnknown   PayloadType = 0x0000
	PayloadTypeImage     PayloadType = 0x0001
	PayloadTypeRaw       PayloadType = 0x0002
	PayloadTypeFile      PayloadType = 0x0003
	PayloadTypeChunkData PayloadType = 0x0004
	PayloadTypeExtChunk  PayloadType = 0x4001
	PayloadTypeGenDC     PayloadType = 0x0005
	PayloadTypeMultipart PayloadType = 0x0006
)

// PixelFormat identifies the pixel encoding of an image Part. Values follow
// the GenICam PFNC 32-bit encoding: bit 31 set means "custom", bits
// 24-30 carry the component count/signedness class, bits 0-23 the format id.
type PixelFormat uint32

// A representative subset of PFNC mono/color formats used by the test
// fixtures and examples in this module; cameras may expose others by raw
// numeric value, which round-trips unchanged even when not named here.
const (
	PixelFormatMono8  PixelFormat = 0x01080001
	PixelFormatMono10 PixelFormat = 0x01100003
	PixelFormatMono12 PixelFormat = 0x01100005
	PixelFormatMono16 PixelFormat = 0x01100007
	PixelFormatRGB8   PixelFormat = 0x02180014
	PixelFormatBayerRG8 PixelFormat = 0x01080009
	PixelFormatBayerBG8 PixelFormat = 0x0108000B
)

// Part describes one image (or chunk/GenDC component) region within a
// Buffer's data, per spec.md §3.
type Part struct {
	PixelFormat PixelFormat
	Width       uint32
	Height      uint32
	XOffset     uint32
	YOffset     uint32
	XPadding    uint32
	YPadding    uint32
	ComponentID uint32
	DataType    uint32
	ByteOffset  uint64
	ByteSize    uint64
}

// ChunkRegion is the optional trailing chunk-data area of a Buffer, per
// spec.md §3 and SPEC_FULL.md §5.5.
type ChunkRegion struct {
	Offset uint64
	Length uint64
}

// ChunkEntry is one chunk value decoded from a ChunkRegion.
type ChunkEntry struct {
	ChunkID uint32
	Data    []byte
}

// Buffer is a contiguous byte region plus the metadata describing what was
// (or is being) written into it, per spec.md §3. A Buffer's mutable payload
// region is writable only while Status is Filling and it is owned by a
// stream's receive thread; once pushed to the output queue it is read-only
// until the application re-pushes it to the input queue (spec.md §5).
type Buffer struct {
	mu sync.Mutex

	Data []byte

	Status             BufferStatus
	PayloadType        PayloadType
	FrameID            uint64
	TimestampNS        uint64
	SystemTimestampNS  uint64
	Parts              []Part
	Chunk              *ChunkRegion
	HasChunks          bool

	// BytesFilled is how many bytes of Data have actually been written
	// by the receive thread so far; it may be less than len(Data) while
	// Status == Filling.
	BytesFilled int
}

// NewBuffer allocates a Buffer with a zeroed Data region of the given size,
// matching the stream factory pattern of spec.md §3 ("allocated via a
// stream factory").
func NewBuffer(size int) *Buffer {
	return &Buffer{Data: make([]byte, size), Status: BufferStatusUnknown}
}

// Reset restores a Buffer to its pre-fill state so it can be recycled back
// into a stream's input queue, per spec.md §3's lifecycle.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Status = BufferStatusUnknown
	b.PayloadType = PayloadTypeUnknown
	b.FrameID = 0
	b.TimestampNS = 0
	b.SystemTimestampNS = 0
	b.Parts = b.Parts[:0]
	b.Chunk = nil
	b.HasChunks = false
	b.BytesFilled = 0
}

// Lock/Unlock expose the buffer's mutex so stream packages can guard the
// status transition and payload write as one critical section without
// depending on stream-package-internal locking.
func (b *Buffer) Lock()   { b.mu.Lock() }
func (b *Buffer) Unlock() { b.mu.Unlock() }
