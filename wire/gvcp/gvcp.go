// Package gvcp encodes and decodes GigE Vision Control Protocol packets
// (spec.md §6). All multi-byte fields are network byte order.
package gvcp

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/lbnl-vision/gogenicam/govis"
)

// Magic is the first byte of every GVCP packet.
const Magic byte = 0x42

// Command identifies a GVCP command or ack packet kind.
type Command uint16

const (
	CmdDiscovery        Command = 0x0002
	AckDiscovery        Command = 0x0003
	CmdForceIP          Command = 0x0004
	AckForceIP          Command = 0x0005
	CmdPacketResend     Command = 0x0040
	AckPacketResend     Command = 0x0041
	CmdReadRegister     Command = 0x0080
	AckReadRegister     Command = 0x0081
	CmdWriteRegister    Command = 0x0082
	AckWriteRegister    Command = 0x0083
	CmdReadMemory       Command = 0x0084
	AckReadMemory       Command = 0x0085
	CmdWriteMemory      Command = 0x0086
	AckWriteMemory      Command = 0x0087
	CmdPendingAck       Command = 0x0089
	CmdEvent            Command = 0x00C0
	AckEvent            Command = 0x00C1
)

// Flags bits on a command packet.
const (
	FlagAckRequired byte = 0x01
	FlagBroadcast   byte = 0x10
)

var (
	ErrTooShort    = errors.New("gvcp: packet shorter than header")
	ErrBadMagic    = errors.New("gvcp: bad magic byte")
	ErrSizeMismatch = errors.New("gvcp: declared size does not match payload length")
)

// HeaderSize is the fixed 8-byte GVCP header: magic, flags, command, size, id.
const HeaderSize = 8

// Packet is a decoded GVCP command or ack packet. Payload is a zero-copy
// view into the buffer Decode was called with.
type Packet struct {
	Flags   byte
	Command Command
	ID      uint16
	Payload []byte
}

// Encode serializes p into a newly allocated byte slice.
func Encode(p Packet) []byte {
	buf := make([]byte, HeaderSize+len(p.Payload))
	buf[0] = Magic
	buf[1] = p.Flags
	binary.BigEndian.PutUint16(buf[2:4], uint16(p.Command))
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(p.Payload)))
	binary.BigEndian.PutUint16(buf[6:8], p.ID)
	copy(buf[8:], p.Payload)
	return buf
}

// AckStatus reinterprets an ack packet's flags byte as the low byte of its
// GVCP status code, per spec.md §6's header layout `{magic=0x42 0x??, ...}`:
// on a reply, that second byte carries the status (0x00 success, high byte
// implicitly 0x80 otherwise) rather than real command flags.
func (p Packet) AckStatus() govis.AckStatus {
	if p.Flags == 0 {
		return govis.AckStatusSuccess
	}
	return govis.AckStatus(0x8000 | uint16(p.Flags))
}

// Decode parses a GVCP packet from buf without copying the payload.
func Decode(buf []byte) (Packet, error) {
	if len(buf) < HeaderSize {
		return Packet{}, ErrTooShort
	}
	if buf[0] != Magic {
		return Packet{}, ErrBadMagic
	}
	size := binary.BigEndian.Uint16(buf[4:6])
	if int(size) != len(buf)-HeaderSize {
		return Packet{}, fmt.Errorf("%w: declared %d, have %d", ErrSizeMismatch, size, len(buf)-HeaderSize)
	}
	return Packet{
		Flags:   buf[1],
		Command: Command(binary.BigEndian.Uint16(buf[2:4])),
		ID:      binary.BigEndian.Uint16(buf[6:8]),
		Payload: buf[8:],
	}, nil
}

// PendingAckPayload is the body of a CmdPendingAck packet.
type PendingAckPayload struct {
	Reserved      uint16
	TimeoutMillis uint16
}

func DecodePendingAck(payload []byte) (PendingAckPayload, error) {
	if len(payload) < 4 {
		return PendingAckPayload{}, ErrTooShort
	}
	return PendingAckPayload{
		Reserved:      binary.BigEndian.Uint16(payload[0:2]),
		TimeoutMillis: binary.BigEndian.Uint16(payload[2:4]),
	}, nil
}

// ReadMemoryCmd is the payload of a CmdReadMemory packet.
type ReadMemoryCmd struct {
	Address uint32
	Count   uint16 // byte count, must be a multiple of 4
}

func EncodeReadMemoryCmd(c ReadMemoryCmd) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], c.Address)
	binary.BigEndian.PutUint16(buf[6:8], c.Count)
	return buf
}

func DecodeReadMemoryCmd(payload []byte) (ReadMemoryCmd, error) {
	if len(payload) < 8 {
		return ReadMemoryCmd{}, ErrTooShort
	}
	return ReadMemoryCmd{
		Address: binary.BigEndian.Uint32(payload[0:4]),
		Count:   binary.BigEndian.Uint16(payload[6:8]),
	}, nil
}

// ReadMemoryAck is the payload of an AckReadMemory packet: the address
// followed immediately by the returned bytes.
type ReadMemoryAck struct {
	Address uint32
	Data    []byte
}

func EncodeReadMemoryAck(a ReadMemoryAck) []byte {
	buf := make([]byte, 4+len(a.Data))
	binary.BigEndian.PutUint32(buf[0:4], a.Address)
	copy(buf[4:], a.Data)
	return buf
}

func DecodeReadMemoryAck(payload []byte) (ReadMemoryAck, error) {
	if len(payload) < 4 {
		return ReadMemoryAck{}, ErrTooShort
	}
	return ReadMemoryAck{Address: binary.BigEndian.Uint32(payload[0:4]), Data: payload[4:]}, nil
}

// WriteMemoryCmd is the payload of a CmdWriteMemory packet: address followed
// by the bytes to write.
type WriteMemoryCmd struct {
	Address uint32
	Data    []byte
}

func EncodeWriteMemoryCmd(c WriteMemoryCmd) []byte {
	buf := make([]byte, 4+len(c.Data))
	binary.BigEndian.PutUint32(buf[0:4], c.Address)
	copy(buf[4:], c.Data)
	return buf
}

func DecodeWriteMemoryCmd(payload []byte) (WriteMemoryCmd, error) {
	if len(payload) < 4 {
		return WriteMemoryCmd{}, ErrTooShort
	}
	return WriteMemoryCmd{Address: binary.BigEndian.Uint32(payload[0:4]), Data: payload[4:]}, nil
}

// WriteMemoryAck is the payload of an AckWriteMemory packet.
type WriteMemoryAck struct {
	Address uint32
}

func EncodeWriteMemoryAck(a WriteMemoryAck) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf[0:4], a.Address)
	return buf
}

func DecodeWriteMemoryAck(payload []byte) (WriteMemoryAck, error) {
	if len(payload) < 4 {
		return WriteMemoryAck{}, ErrTooShort
	}
	return WriteMemoryAck{Address: binary.BigEndian.Uint32(payload[0:4])}, nil
}

// ReadRegisterCmd/Ack and WriteRegisterCmd/Ack deal in 32-bit values
// directly, the "specialization for efficiency" of spec.md §3.
type ReadRegisterCmd struct{ Address uint32 }

func EncodeReadRegisterCmd(c ReadRegisterCmd) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, c.Address)
	return buf
}

func DecodeReadRegisterCmd(payload []byte) (ReadRegisterCmd, error) {
	if len(payload) < 4 {
		return ReadRegisterCmd{}, ErrTooShort
	}
	return ReadRegisterCmd{Address: binary.BigEndian.Uint32(payload)}, nil
}

type ReadRegisterAck struct{ Value uint32 }

func EncodeReadRegisterAck(a ReadRegisterAck) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, a.Value)
	return buf
}

func DecodeReadRegisterAck(payload []byte) (ReadRegisterAck, error) {
	if len(payload) < 4 {
		return ReadRegisterAck{}, ErrTooShort
	}
	return ReadRegisterAck{Value: binary.BigEndian.Uint32(payload)}, nil
}

type WriteRegisterCmd struct {
	Address uint32
	Value   uint32
}

func EncodeWriteRegisterCmd(c WriteRegisterCmd) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], c.Address)
	binary.BigEndian.PutUint32(buf[4:8], c.Value)
	return buf
}

func DecodeWriteRegisterCmd(payload []byte) (WriteRegisterCmd, error) {
	if len(payload) < 8 {
		return WriteRegisterCmd{}, ErrTooShort
	}
	return WriteRegisterCmd{
		Address: binary.BigEndian.Uint32(payload[0:4]),
		Value:   binary.BigEndian.Uint32(payload[4:8]),
	}, nil
}

type WriteRegisterAck struct{ Index uint32 }

func EncodeWriteRegisterAck(a WriteRegisterAck) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, a.Index)
	return buf
}

func DecodeWriteRegisterAck(payload []byte) (WriteRegisterAck, error) {
	if len(payload) < 4 {
		return WriteRegisterAck{}, ErrTooShort
	}
	return WriteRegisterAck{Index: binary.BigEndian.Uint32(payload)}, nil
}

// PacketResendCmd requests retransmission of a packet-id range for a frame
// (SPEC_FULL.md §5.4). Not part of the original spec.md wire table; inferred
// from the Aravis source.
type PacketResendCmd struct {
	FrameID       uint16
	FirstPacketID uint16
	LastPacketID  uint16
}

func EncodePacketResendCmd(c PacketResendCmd) []byte {
	buf := make([]byte, 6)
	binary.BigEndian.PutUint16(buf[0:2], c.FrameID)
	binary.BigEndian.PutUint16(buf[2:4], c.FirstPacketID)
	binary.BigEndian.PutUint16(buf[4:6], c.LastPacketID)
	return buf
}

func DecodePacketResendCmd(payload []byte) (PacketResendCmd, error) {
	if len(payload) < 6 {
		return PacketResendCmd{}, ErrTooShort
	}
	return PacketResendCmd{
		FrameID:       binary.BigEndian.Uint16(payload[0:2]),
		FirstPacketID: binary.BigEndian.Uint16(payload[2:4]),
		LastPacketID:  binary.BigEndian.Uint16(payload[4:6]),
	}, nil
}

// DiscoveryAck is the payload of an AckDiscovery packet: the subset of
// fields a client needs to identify and address a device.
type DiscoveryAck struct {
	SpecVersionMajor uint16
	SpecVersionMinor uint16
	DeviceMode       uint32
	MAC              [6]byte
	IP               [4]byte
	Subnet           [4]byte
	Gateway          [4]byte
	Manufacturer     string
	Model            string
	Serial           string
	UserDefinedName  string
}

func fixedString(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

// DecodeDiscoveryAck parses the fixed-layout discovery ack body. Field
// offsets follow the GigE Vision 2.x DISCOVERY_ACK layout.
func DecodeDiscoveryAck(payload []byte) (DiscoveryAck, error) {
	const minLen = 248
	if len(payload) < minLen {
		return DiscoveryAck{}, ErrTooShort
	}
	var d DiscoveryAck
	d.SpecVersionMajor = binary.BigEndian.Uint16(payload[0:2])
	d.SpecVersionMinor = binary.BigEndian.Uint16(payload[2:4])
	d.DeviceMode = binary.BigEndian.Uint32(payload[4:8])
	copy(d.MAC[:], payload[10:16])
	copy(d.IP[:], payload[24:28])
	copy(d.Subnet[:], payload[36:40])
	copy(d.Gateway[:], payload[48:52])
	d.Manufacturer = fixedString(payload[52:84])
	d.Model = fixedString(payload[84:116])
	// Bytes 116-148 are the device version string; 148-164 a vendor
	// manufacturer-specific field, both skipped for brevity.
	d.Serial = fixedString(payload[184:200])
	d.UserDefinedName = fixedString(payload[200:232])
	return d, nil
}
