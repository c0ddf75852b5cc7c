// Package uvsp encodes and decodes U3V stream protocol leader/payload/
// trailer framing (spec.md §4.4.2, §6). All multi-byte fields are little
// endian.
package uvsp

import (
	"encoding/binary"
	"errors"
)

const LeaderMagic uint32 = 0x43563355
const TrailerMagic uint32 = 0x43563355

var ErrTooShort = errors.New("uvsp: block shorter than header")

// LeaderHeaderSize is the fixed common leader prefix: magic, size, id.
const LeaderHeaderSize = 8

// Leader is the decoded fixed prefix of a leader block; GenDCFlag/image
// info follow in the same body the way gvsp.LeaderImageInfo does.
type Leader struct {
	Size    uint16
	FrameID uint64
	Body    []byte
}

func DecodeLeader(buf []byte) (Leader, error) {
	if len(buf) < LeaderHeaderSize {
		return Leader{}, ErrTooShort
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != LeaderMagic {
		return Leader{}, errors.New("uvsp: bad leader magic")
	}
	size := binary.LittleEndian.Uint16(buf[4:6])
	frameID := uint64(binary.LittleEndian.Uint16(buf[6:8]))
	return Leader{Size: size, FrameID: frameID, Body: buf[LeaderHeaderSize:]}, nil
}

func EncodeLeader(l Leader) []byte {
	buf := make([]byte, LeaderHeaderSize+len(l.Body))
	binary.LittleEndian.PutUint32(buf[0:4], LeaderMagic)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(LeaderHeaderSize+len(l.Body)))
	binary.LittleEndian.PutUint16(buf[6:8], uint16(l.FrameID))
	copy(buf[LeaderHeaderSize:], l.Body)
	return buf
}

// ImageInfo is the image-geometry body of a U3V leader for image/chunk
// payloads: the payload type, pixel format and geometry fields of
// gvsp.LeaderImageInfo, without its timestamp and padding fields.
type ImageInfo struct {
	PayloadType uint16
	PixelFormat uint32
	Width       uint32
	Height      uint32
	XOffset     uint32
	YOffset     uint32
}

func DecodeImageInfo(buf []byte) (ImageInfo, error) {
	if len(buf) < 22 {
		return ImageInfo{}, ErrTooShort
	}
	return ImageInfo{
		PayloadType: binary.LittleEndian.Uint16(buf[0:2]),
		PixelFormat: binary.LittleEndian.Uint32(buf[2:6]),
		Width:       binary.LittleEndian.Uint32(buf[6:10]),
		Height:      binary.LittleEndian.Uint32(buf[10:14]),
		XOffset:     binary.LittleEndian.Uint32(buf[14:18]),
		YOffset:     binary.LittleEndian.Uint32(buf[18:22]),
	}, nil
}

func EncodeImageInfo(i ImageInfo) []byte {
	buf := make([]byte, 22)
	binary.LittleEndian.PutUint16(buf[0:2], i.PayloadType)
	binary.LittleEndian.PutUint32(buf[2:6], i.PixelFormat)
	binary.LittleEndian.PutUint32(buf[6:10], i.Width)
	binary.LittleEndian.PutUint32(buf[10:14], i.Height)
	binary.LittleEndian.PutUint32(buf[14:18], i.XOffset)
	binary.LittleEndian.PutUint32(buf[18:22], i.YOffset)
	return buf
}

// TrailerHeaderSize mirrors LeaderHeaderSize.
const TrailerHeaderSize = 8

// Trailer is the decoded fixed prefix of a trailer block.
type Trailer struct {
	FrameID uint64
	Body    []byte
}

func DecodeTrailer(buf []byte) (Trailer, error) {
	if len(buf) < TrailerHeaderSize {
		return Trailer{}, ErrTooShort
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != TrailerMagic {
		return Trailer{}, errors.New("uvsp: bad trailer magic")
	}
	frameID := uint64(binary.LittleEndian.Uint16(buf[6:8]))
	return Trailer{FrameID: frameID, Body: buf[TrailerHeaderSize:]}, nil
}

func EncodeTrailer(t Trailer) []byte {
	buf := make([]byte, TrailerHeaderSize+len(t.Body))
	binary.LittleEndian.PutUint32(buf[0:4], TrailerMagic)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(TrailerHeaderSize+len(t.Body)))
	binary.LittleEndian.PutUint16(buf[6:8], uint16(t.FrameID))
	copy(buf[TrailerHeaderSize:], t.Body)
	return buf
}

// TrailerInfo carries the declared actual transferred size, used to
// distinguish Success from SizeMismatch per spec.md's fixed resolution of
// the U3V ambiguity (§9 "this spec fixes it to SizeMismatch").
type TrailerInfo struct {
	ActualSize uint32
}

func DecodeTrailerInfo(buf []byte) (TrailerInfo, error) {
	if len(buf) < 4 {
		return TrailerInfo{}, ErrTooShort
	}
	return TrailerInfo{ActualSize: binary.LittleEndian.Uint32(buf[0:4])}, nil
}

func EncodeTrailerInfo(t TrailerInfo) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf[0:4], t.ActualSize)
	return buf
}
