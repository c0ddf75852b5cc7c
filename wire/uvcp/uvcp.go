// Package uvcp encodes and decodes U3V control protocol packets exchanged
// over USB bulk control endpoints (spec.md §4.1.2, §6). All multi-byte
// fields are little endian.
package uvcp

import (
	"encoding/binary"
	"errors"

	"github.com/lbnl-vision/gogenicam/govis"
)

// Magic is the fixed 4-byte prefix of every UVCP packet: the bytes "U3VC"
// read as a little-endian uint32.
const Magic uint32 = 0x43563355

// Command identifies a UVCP command or ack kind.
type Command uint16

const (
	CmdReadMemory    Command = 0x0800
	AckReadMemory    Command = 0x0801
	CmdWriteMemory   Command = 0x0802
	AckWriteMemory   Command = 0x0803
	CmdPendingAck    Command = 0x0805
	CmdEvent         Command = 0x0c00
	AckEvent         Command = 0x0c01
)

const HeaderSize = 12

// FlagAckRequired is the request-flag bit asking for an acknowledgement,
// mirroring gvcp.FlagAckRequired.
const FlagAckRequired uint16 = 0x01

var (
	ErrTooShort     = errors.New("uvcp: packet shorter than header")
	ErrBadMagic     = errors.New("uvcp: bad magic")
	ErrSizeMismatch = errors.New("uvcp: declared size does not match payload length")
)

// Packet is a decoded UVCP command or ack packet.
type Packet struct {
	Flags   uint16
	Command Command
	ID      uint16
	Payload []byte
}

// AckStatus reinterprets an ack packet's flags field as a GVCP/UVCP status
// code: on a reply, U3V's 16-bit flags field carries the GenCP status
// rather than real command flags, mirroring gvcp.Packet.AckStatus.
func (p Packet) AckStatus() govis.AckStatus {
	return govis.AckStatus(p.Flags)
}

func Encode(p Packet) []byte {
	buf := make([]byte, HeaderSize+len(p.Payload))
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	binary.LittleEndian.PutUint16(buf[4:6], p.Flags)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(p.Command))
	binary.LittleEndian.PutUint16(buf[8:10], uint16(len(p.Payload)))
	binary.LittleEndian.PutUint16(buf[10:12], p.ID)
	copy(buf[12:], p.Payload)
	return buf
}

func Decode(buf []byte) (Packet, error) {
	if len(buf) < HeaderSize {
		return Packet{}, ErrTooShort
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != Magic {
		return Packet{}, ErrBadMagic
	}
	size := binary.LittleEndian.Uint16(buf[8:10])
	if int(size) != len(buf)-HeaderSize {
		return Packet{}, ErrSizeMismatch
	}
	return Packet{
		Flags:   binary.LittleEndian.Uint16(buf[4:6]),
		Command: Command(binary.LittleEndian.Uint16(buf[6:8])),
		ID:      binary.LittleEndian.Uint16(buf[10:12]),
		Payload: buf[12:],
	}, nil
}

// PendingAckPayload mirrors gvcp.PendingAckPayload for the U3V control path.
type PendingAckPayload struct {
	Reserved      uint16
	TimeoutMillis uint16
}

func DecodePendingAck(payload []byte) (PendingAckPayload, error) {
	if len(payload) < 4 {
		return PendingAckPayload{}, ErrTooShort
	}
	return PendingAckPayload{
		Reserved:      binary.LittleEndian.Uint16(payload[0:2]),
		TimeoutMillis: binary.LittleEndian.Uint16(payload[2:4]),
	}, nil
}

// ReadMemoryCmd is the payload of a CmdReadMemory packet.
type ReadMemoryCmd struct {
	Address uint64
	Count   uint16
}

func EncodeReadMemoryCmd(c ReadMemoryCmd) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint64(buf[0:8], c.Address)
	binary.LittleEndian.PutUint16(buf[8:10], c.Count)
	return buf
}

func DecodeReadMemoryCmd(payload []byte) (ReadMemoryCmd, error) {
	if len(payload) < 12 {
		return ReadMemoryCmd{}, ErrTooShort
	}
	return ReadMemoryCmd{
		Address: binary.LittleEndian.Uint64(payload[0:8]),
		Count:   binary.LittleEndian.Uint16(payload[8:10]),
	}, nil
}

// ReadMemoryAck is the payload of an AckReadMemory packet: just the bytes
// (U3V, unlike GVCP, doesn't echo the address in the ack).
type ReadMemoryAck struct {
	Data []byte
}

func DecodeReadMemoryAck(payload []byte) (ReadMemoryAck, error) {
	return ReadMemoryAck{Data: payload}, nil
}

func EncodeReadMemoryAck(a ReadMemoryAck) []byte {
	return append([]byte(nil), a.Data...)
}

// WriteMemoryCmd is the payload of a CmdWriteMemory packet: address followed
// by the bytes to write.
type WriteMemoryCmd struct {
	Address uint64
	Data    []byte
}

func EncodeWriteMemoryCmd(c WriteMemoryCmd) []byte {
	buf := make([]byte, 8+len(c.Data))
	binary.LittleEndian.PutUint64(buf[0:8], c.Address)
	copy(buf[8:], c.Data)
	return buf
}

func DecodeWriteMemoryCmd(payload []byte) (WriteMemoryCmd, error) {
	if len(payload) < 8 {
		return WriteMemoryCmd{}, ErrTooShort
	}
	return WriteMemoryCmd{Address: binary.LittleEndian.Uint64(payload[0:8]), Data: payload[8:]}, nil
}

// WriteMemoryAck is the payload of an AckWriteMemory packet: number of bytes
// actually written.
type WriteMemoryAck struct {
	BytesWritten uint16
}

func EncodeWriteMemoryAck(a WriteMemoryAck) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint16(buf[0:2], a.BytesWritten)
	return buf
}

func DecodeWriteMemoryAck(payload []byte) (WriteMemoryAck, error) {
	if len(payload) < 2 {
		return WriteMemoryAck{}, ErrTooShort
	}
	return WriteMemoryAck{BytesWritten: binary.LittleEndian.Uint16(payload[0:2])}, nil
}

// Bootstrap register addresses within the ABRM, read at device open per
// spec.md §4.1.3.
const (
	AbrmGenCPVersion       uint64 = 0x00000000
	AbrmManufacturerName   uint64 = 0x00000004
	AbrmModelName          uint64 = 0x00000044
	AbrmDeviceVersion      uint64 = 0x00000084
	AbrmSerialNumber       uint64 = 0x00000196
	AbrmSBRMAddress        uint64 = 0x0000011C
	AbrmDeviceCapability   uint64 = 0x00000128
	AbrmMaxDeviceResponseTime uint64 = 0x00000130
	AbrmManifestTableAddress  uint64 = 0x00000148
)

// SBRM offsets, read relative to the address discovered at AbrmSBRMAddress.
const (
	SbrmMaxCmdTransfer uint64 = 0x00000004
	SbrmMaxAckTransfer uint64 = 0x00000008
	SbrmSIRMOffset     uint64 = 0x0000000C
	SbrmSIRMLength     uint64 = 0x00000014
)

// SIRM offsets, relative to the address read from SbrmSIRMOffset.
const (
	SirmInfo           uint64 = 0x00000000
	SirmControl        uint64 = 0x00000004
	SirmPayloadSize    uint64 = 0x00000008
	SirmPayloadCount   uint64 = 0x0000000C
	SirmTransform1     uint64 = 0x00000010
	SirmTransform2     uint64 = 0x00000014
	SirmMaxLeaderSize  uint64 = 0x00000068
	SirmMaxTrailerSize uint64 = 0x0000006C
)

// SirmControlStreamEnable is the bit written to SirmControl to start/stop
// acquisition, per spec.md §4.4.2 "Both modes honor SIRM start/stop
// registers".
const SirmControlStreamEnable uint32 = 0x00000001

// ManifestEntry describes one entry of the device's GenICam XML manifest
// table, located via AbrmManifestTableAddress per spec.md §4.1.3.
type ManifestEntry struct {
	SchemaType uint32
	Length     uint64
	Address    uint64
}

// ManifestSchemaType values.
const (
	ManifestSchemaXML    uint32 = 0x0000
	ManifestSchemaZIP    uint32 = 0x0001
)

func DecodeManifestEntry(buf []byte) (ManifestEntry, error) {
	if len(buf) < 24 {
		return ManifestEntry{}, ErrTooShort
	}
	flags := binary.LittleEndian.Uint64(buf[0:8])
	return ManifestEntry{
		SchemaType: uint32(flags & 0xFFFF),
		Address:    binary.LittleEndian.Uint64(buf[8:16]),
		Length:     binary.LittleEndian.Uint64(buf[16:24]),
	}, nil
}
