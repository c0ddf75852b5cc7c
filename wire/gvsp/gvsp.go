// Package gvsp encodes and decodes GigE Vision Streaming Protocol packets
// (spec.md §6, §4.4.1). All multi-byte fields are network byte order.
package gvsp

import (
	"encoding/binary"
	"errors"
)

// ContentType is the packet_infos high byte, in both classic and extended
// framing, per spec.md §6.
type ContentType uint8

const (
	ContentTypeLeader    ContentType = 0x01
	ContentTypeTrailer   ContentType = 0x02
	ContentTypePayload   ContentType = 0x03
	ContentTypeAllIn     ContentType = 0x04
	ContentTypeMultipart ContentType = 0x05
	ContentTypeMultizone ContentType = 0x06
	ContentTypeGenDC     ContentType = 0x07
)

// Status is the leading status word; 0 means "GEV_STATUS_SUCCESS".
type Status uint16

const StatusSuccess Status = 0x0000

var (
	ErrTooShort = errors.New("gvsp: packet shorter than header")
)

// extendedFlag marks an extended-id header in the classic header's would-be
// frame_id high bit position, per GigE Vision 2.x.
const extendedFlag uint16 = 0x8000

// Header is a decoded GVSP packet header (classic or extended, normalized).
// Data is a zero-copy view into the buffer Decode was called with.
type Header struct {
	Status      Status
	Extended    bool
	ContentType ContentType
	FrameID     uint64
	PacketID    uint32
	Data        []byte
}

// HeaderSizeClassic is the 8-byte classic GVSP header.
const HeaderSizeClassic = 8

// HeaderSizeExtended is the 16-byte extended GVSP header.
const HeaderSizeExtended = 16

// Decode parses a GVSP packet, auto-detecting classic vs extended framing
// from the flags field the way the Aravis source does: bit 15 of the
// 16-bit word at offset 2 signals extended IDs; in classic framing the
// other 15 bits of that word are the frame id.
func Decode(buf []byte) (Header, error) {
	if len(buf) < HeaderSizeClassic {
		return Header{}, ErrTooShort
	}
	status := Status(binary.BigEndian.Uint16(buf[0:2]))
	flagsOrFrameHi := binary.BigEndian.Uint16(buf[2:4])
	extended := flagsOrFrameHi&extendedFlag != 0

	if !extended {
		frameID := uint64(flagsOrFrameHi &^ extendedFlag)
		packetInfos := binary.BigEndian.Uint32(buf[4:8])
		return Header{
			Status:      status,
			Extended:    false,
			ContentType: ContentType(packetInfos >> 24),
			FrameID:     frameID,
			PacketID:    packetInfos & 0x00FFFFFF,
			Data:        buf[HeaderSizeClassic:],
		}, nil
	}

	if len(buf) < HeaderSizeExtended {
		return Header{}, ErrTooShort
	}
	packetInfos := binary.BigEndian.Uint32(buf[4:8])
	frameID := binary.BigEndian.Uint64(buf[8:16])
	return Header{
		Status:      status,
		Extended:    true,
		ContentType: ContentType(packetInfos >> 24),
		FrameID:     frameID,
		PacketID:    packetInfos & 0x00FFFFFF,
		Data:        buf[HeaderSizeExtended:],
	}, nil
}

// Encode serializes a Header (classic or extended, per h.Extended) and its
// Data into a newly allocated packet.
func Encode(h Header) []byte {
	packetInfos := uint32(h.ContentType)<<24 | h.PacketID&0x00FFFFFF
	if !h.Extended {
		buf := make([]byte, HeaderSizeClassic+len(h.Data))
		binary.BigEndian.PutUint16(buf[0:2], uint16(h.Status))
		binary.BigEndian.PutUint16(buf[2:4], uint16(h.FrameID))
		binary.BigEndian.PutUint32(buf[4:8], packetInfos)
		copy(buf[HeaderSizeClassic:], h.Data)
		return buf
	}
	buf := make([]byte, HeaderSizeExtended+len(h.Data))
	binary.BigEndian.PutUint16(buf[0:2], uint16(h.Status))
	binary.BigEndian.PutUint16(buf[2:4], extendedFlag)
	binary.BigEndian.PutUint32(buf[4:8], packetInfos)
	binary.BigEndian.PutUint64(buf[8:16], h.FrameID)
	copy(buf[HeaderSizeExtended:], h.Data)
	return buf
}

// LeaderPayloadType identifies what the leader's image-info block describes.
type LeaderPayloadType uint16

const (
	LeaderPayloadImage     LeaderPayloadType = 0x0001
	LeaderPayloadRaw       LeaderPayloadType = 0x0002
	LeaderPayloadChunkData LeaderPayloadType = 0x0004
	LeaderPayloadMultipart LeaderPayloadType = 0x0006
	LeaderPayloadGenDC     LeaderPayloadType = 0x0005
)

// LeaderImageInfo is the image-geometry sub-header carried by a LEADER
// packet for image/chunk/GenDC payloads, per spec.md §4.4.1 step 1.
type LeaderImageInfo struct {
	PayloadType LeaderPayloadType
	TimestampNS uint64
	PixelFormat uint32
	Width       uint32
	Height      uint32
	XOffset     uint32
	YOffset     uint32
	XPadding    uint16
	YPadding    uint16
}

// DecodeLeaderImageInfo parses the fixed 36-byte image leader body that
// follows the common leader fields.
func DecodeLeaderImageInfo(buf []byte) (LeaderImageInfo, error) {
	if len(buf) < 36 {
		return LeaderImageInfo{}, ErrTooShort
	}
	return LeaderImageInfo{
		PayloadType: LeaderPayloadType(binary.BigEndian.Uint16(buf[2:4])),
		TimestampNS: binary.BigEndian.Uint64(buf[4:12]),
		PixelFormat: binary.BigEndian.Uint32(buf[12:16]),
		Width:       binary.BigEndian.Uint32(buf[16:20]),
		Height:      binary.BigEndian.Uint32(buf[20:24]),
		XOffset:     binary.BigEndian.Uint32(buf[24:28]),
		YOffset:     binary.BigEndian.Uint32(buf[28:32]),
		XPadding:    binary.BigEndian.Uint16(buf[32:34]),
		YPadding:    binary.BigEndian.Uint16(buf[34:36]),
	}, nil
}

func EncodeLeaderImageInfo(i LeaderImageInfo) []byte {
	buf := make([]byte, 36)
	binary.BigEndian.PutUint16(buf[0:2], 0)
	binary.BigEndian.PutUint16(buf[2:4], uint16(i.PayloadType))
	binary.BigEndian.PutUint64(buf[4:12], i.TimestampNS)
	binary.BigEndian.PutUint32(buf[12:16], i.PixelFormat)
	binary.BigEndian.PutUint32(buf[16:20], i.Width)
	binary.BigEndian.PutUint32(buf[20:24], i.Height)
	binary.BigEndian.PutUint32(buf[24:28], i.XOffset)
	binary.BigEndian.PutUint32(buf[28:32], i.YOffset)
	binary.BigEndian.PutUint16(buf[32:34], i.XPadding)
	binary.BigEndian.PutUint16(buf[34:36], i.YPadding)
	return buf
}

// MultipartInfo is one per-part entry in a multipart leader's part table,
// per spec.md §4.4.1's "leader defines the set of parts and their strides".
type MultipartInfo struct {
	PartID      uint32
	DataType    uint32
	PixelFormat uint32
	Width       uint32
	Height      uint32
	XOffset     uint32
	YOffset     uint32
	ByteSize    uint64
}

const multipartInfoSize = 32

// DecodeMultipartInfos parses a trailing array of per-part info blocks.
func DecodeMultipartInfos(buf []byte) ([]MultipartInfo, error) {
	if len(buf)%multipartInfoSize != 0 {
		return nil, ErrTooShort
	}
	n := len(buf) / multipartInfoSize
	out := make([]MultipartInfo, n)
	for i := 0; i < n; i++ {
		b := buf[i*multipartInfoSize:]
		out[i] = MultipartInfo{
			PartID:      binary.BigEndian.Uint32(b[0:4]),
			DataType:    binary.BigEndian.Uint32(b[4:8]),
			PixelFormat: binary.BigEndian.Uint32(b[8:12]),
			Width:       binary.BigEndian.Uint32(b[12:16]),
			Height:      binary.BigEndian.Uint32(b[16:20]),
			XOffset:     binary.BigEndian.Uint32(b[20:24]),
			YOffset:     binary.BigEndian.Uint32(b[24:28]),
			ByteSize:    uint64(binary.BigEndian.Uint32(b[28:32])),
		}
	}
	return out, nil
}

// PayloadPacketHeader is the {part_id, offset} sub-header multipart PAYLOAD
// packets carry ahead of their image bytes.
type PayloadPacketHeader struct {
	PartID uint32
	Offset uint64
}

func DecodePayloadPacketHeader(buf []byte) (PayloadPacketHeader, []byte, error) {
	if len(buf) < 12 {
		return PayloadPacketHeader{}, nil, ErrTooShort
	}
	return PayloadPacketHeader{
		PartID: binary.BigEndian.Uint32(buf[0:4]),
		Offset: binary.BigEndian.Uint64(buf[4:12]),
	}, buf[12:], nil
}

// TrailerInfo is the fixed body of a TRAILER packet.
type TrailerInfo struct {
	PacketCount uint32
}

func DecodeTrailerInfo(buf []byte) (TrailerInfo, error) {
	if len(buf) < 8 {
		return TrailerInfo{}, ErrTooShort
	}
	return TrailerInfo{PacketCount: binary.BigEndian.Uint32(buf[4:8])}, nil
}
