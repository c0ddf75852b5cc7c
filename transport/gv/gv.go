// Package gv implements the GVCP request/reply state machine of spec.md
// §4.1.1 over a UDP control socket, plus the device-facing Transport
// contract of spec.md §4.1.
package gv

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/lbnl-vision/gogenicam/govis"
	"github.com/lbnl-vision/gogenicam/transport"
	"github.com/lbnl-vision/gogenicam/wire/gvcp"
)

// Defaults from spec.md §4.1.1.
const (
	DefaultTimeout  = 32 * time.Millisecond
	DefaultTriesMax = 5 // "at least 5" per spec.md
	DefaultPacketMax = 1500
	DefaultGVCPHeaderSize = gvcp.HeaderSize
)

// Transport implements transport.Transport over GVCP/UDP.
type Transport struct {
	log  *zap.Logger
	conn *net.UDPConn

	mu         sync.Mutex // serializes the cmd/ack exchange, spec.md §5
	nextID     uint16
	timeout    time.Duration
	triesMax   int
	packetMax  transport.PacketMax

	xmlMu sync.Mutex
	xml   []byte

	disconnectOnce sync.Once
	disconnected   bool
	lostMu         sync.Mutex
	lostFn         func()

	pendingMu sync.Mutex
	pending   map[uint16]chan gvcp.Packet
}

// Option configures a Transport at construction.
type Option func(*Transport)

func WithLogger(l *zap.Logger) Option { return func(t *Transport) { t.log = l } }
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) { t.timeout = d }
}
func WithTriesMax(n int) Option { return func(t *Transport) { t.triesMax = n } }
func WithPacketMax(p transport.PacketMax) Option {
	return func(t *Transport) { t.packetMax = p }
}

// Dial opens a GVCP control connection to addr (host:port, usually port
// 3956).
func Dial(addr string, opts ...Option) (*Transport, error) {
	raddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("gv: resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("gv: dial %s: %w", addr, err)
	}
	t := &Transport{
		log:       zap.NewNop(),
		conn:      conn,
		nextID:    1,
		timeout:   DefaultTimeout,
		triesMax:  DefaultTriesMax,
		packetMax: transport.PacketMax{PacketSize: DefaultPacketMax, HeaderSize: DefaultGVCPHeaderSize},
		pending:   make(map[uint16]chan gvcp.Packet),
	}
	for _, o := range opts {
		o(t)
	}
	go t.receiveLoop()
	return t, nil
}

// nextPacketID returns the next rolling 16-bit packet id, wrapping modulo
// 2^16 and never returning 0, per spec.md §4.1.1 step 1.
func (t *Transport) nextPacketID() uint16 {
	id := t.nextID
	t.nextID++
	if t.nextID == 0 {
		t.nextID = 1
	}
	return id
}

// receiveLoop dispatches incoming packets to whichever call() is waiting on
// their packet id. Packets with no matching waiter are ignored (and logged)
// per spec.md §4.1.1 step 3 "otherwise ignore (log) and keep waiting" --
// here that waiting happens inside call()'s select, and this loop just
// drops what nobody is listening for.
func (t *Transport) receiveLoop() {
	buf := make([]byte, 65536)
	for {
		n, err := t.conn.Read(buf)
		if err != nil {
			if t.markDisconnected() {
				t.log.Warn("gvcp receive loop exiting", zap.Error(err))
			}
			return
		}
		pkt, err := gvcp.Decode(buf[:n])
		if err != nil {
			t.log.Debug("dropping malformed gvcp packet", zap.Error(err))
			continue
		}
		t.pendingMu.Lock()
		ch, ok := t.pending[pkt.ID]
		t.pendingMu.Unlock()
		if !ok {
			t.log.Debug("dropping gvcp packet with no waiter", zap.Uint16("id", pkt.ID))
			continue
		}
		select {
		case ch <- pkt:
		default:
			// Waiter already got a packet (e.g. a duplicate ack); drop.
		}
	}
}

// call performs one GVCP request/reply exchange for the given ack command,
// retrying per spec.md §4.1.1 steps 1-4.
func (t *Transport) call(ctx context.Context, cmd gvcp.Command, ackCmd gvcp.Command, payload []byte) (gvcp.Packet, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.isDisconnected() {
		return gvcp.Packet{}, govis.ErrNotConnected
	}

	for attempt := 0; attempt < t.triesMax; attempt++ {
		id := t.nextPacketID()
		pkt := gvcp.Encode(gvcp.Packet{Flags: gvcp.FlagAckRequired, Command: cmd, ID: id, Payload: payload})

		ch := make(chan gvcp.Packet, 4)
		t.pendingMu.Lock()
		t.pending[id] = ch
		t.pendingMu.Unlock()

		deadline := time.Now().Add(t.timeout)
		reply, err := t.sendAndWait(ctx, pkt, id, ackCmd, ch, deadline)

		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()

		if err == nil {
			if acErr := reply.AckStatus().AsError(); acErr != nil {
				return gvcp.Packet{}, acErr
			}
			return reply, nil
		}
		if !errors.Is(err, govis.ErrTimeout) {
			return gvcp.Packet{}, err
		}
		// fall through and retry with a fresh id, per step 4.
	}
	return gvcp.Packet{}, govis.ErrTimeout
}

func (t *Transport) sendAndWait(ctx context.Context, pkt []byte, id uint16, ackCmd gvcp.Command, ch chan gvcp.Packet, deadline time.Time) (gvcp.Packet, error) {
	if _, err := t.conn.Write(pkt); err != nil {
		t.markDisconnected()
		return gvcp.Packet{}, fmt.Errorf("gv: send: %w", govis.ErrTransfer)
	}
	for {
		wait := time.Until(deadline)
		if wait <= 0 {
			return gvcp.Packet{}, govis.ErrTimeout
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return gvcp.Packet{}, ctx.Err()
		case <-timer.C:
			return gvcp.Packet{}, govis.ErrTimeout
		case reply := <-ch:
			timer.Stop()
			if reply.Command == gvcp.CmdPendingAck {
				pa, err := gvcp.DecodePendingAck(reply.Payload)
				if err != nil {
					continue
				}
				deadline = time.Now().Add(time.Duration(pa.TimeoutMillis) * time.Millisecond)
				continue
			}
			if reply.Command != ackCmd || reply.ID != id {
				continue
			}
			return reply, nil
		}
	}
}

func (t *Transport) isDisconnected() bool {
	t.lostMu.Lock()
	defer t.lostMu.Unlock()
	return t.disconnected
}

// markDisconnected sets disconnected and invokes the control-lost callback
// exactly once, per spec.md §4.1.4.
func (t *Transport) markDisconnected() bool {
	fired := false
	t.disconnectOnce.Do(func() {
		t.lostMu.Lock()
		t.disconnected = true
		fn := t.lostFn
		t.lostMu.Unlock()
		fired = true
		if fn != nil {
			fn()
		}
	})
	return fired
}

func (t *Transport) OnControlLost(fn func()) {
	t.lostMu.Lock()
	defer t.lostMu.Unlock()
	t.lostFn = fn
}

// ReadMemory implements transport.Transport, chunking at packetMax per
// spec.md §4.1.
func (t *Transport) ReadMemory(ctx context.Context, address uint64, size int) ([]byte, error) {
	return transport.ChunkedRead(ctx, address, size, t.packetMax.ChunkSize(), func(ctx context.Context, addr uint64, n int) ([]byte, error) {
		reply, err := t.call(ctx, gvcp.CmdReadMemory, gvcp.AckReadMemory, gvcp.EncodeReadMemoryCmd(gvcp.ReadMemoryCmd{Address: uint32(addr), Count: uint16(n)}))
		if err != nil {
			return nil, err
		}
		ack, err := gvcp.DecodeReadMemoryAck(reply.Payload)
		if err != nil {
			return nil, fmt.Errorf("gv: decode read-memory ack: %w", govis.ErrTransfer)
		}
		return ack.Data, nil
	})
}

func (t *Transport) WriteMemory(ctx context.Context, address uint64, data []byte) error {
	return transport.ChunkedWrite(ctx, address, data, t.packetMax.ChunkSize(), func(ctx context.Context, addr uint64, chunk []byte) error {
		_, err := t.call(ctx, gvcp.CmdWriteMemory, gvcp.AckWriteMemory, gvcp.EncodeWriteMemoryCmd(gvcp.WriteMemoryCmd{Address: uint32(addr), Data: chunk}))
		return err
	})
}

func (t *Transport) ReadRegister(ctx context.Context, address uint64) (uint32, error) {
	reply, err := t.call(ctx, gvcp.CmdReadRegister, gvcp.AckReadRegister, gvcp.EncodeReadRegisterCmd(gvcp.ReadRegisterCmd{Address: uint32(address)}))
	if err != nil {
		return 0, err
	}
	ack, err := gvcp.DecodeReadRegisterAck(reply.Payload)
	if err != nil {
		return 0, fmt.Errorf("gv: decode read-register ack: %w", govis.ErrTransfer)
	}
	return ack.Value, nil
}

func (t *Transport) WriteRegister(ctx context.Context, address uint64, value uint32) error {
	_, err := t.call(ctx, gvcp.CmdWriteRegister, gvcp.AckWriteRegister, gvcp.EncodeWriteRegisterCmd(gvcp.WriteRegisterCmd{Address: uint32(address), Value: value}))
	return err
}

// GenICamXML fetches the device's bootstrap registers to locate the XML
// region and reads it via ReadMemory, caching the result.
func (t *Transport) GenICamXML(ctx context.Context) ([]byte, error) {
	t.xmlMu.Lock()
	defer t.xmlMu.Unlock()
	if t.xml != nil {
		return t.xml, nil
	}
	// GigE Vision bootstrap registers: XML_URL_0 at 0x0200, 512 bytes of a
	// "Local:file.xml;addr;len" URL string.
	const xmlURLAddr = 0x0200
	const xmlURLLen = 512
	urlBytes, err := t.ReadMemory(ctx, xmlURLAddr, xmlURLLen)
	if err != nil {
		return nil, fmt.Errorf("gv: read xml url: %w", govis.ErrGenicamNotLoaded)
	}
	addr, length, err := parseLocalURL(urlBytes)
	if err != nil {
		return nil, fmt.Errorf("gv: %w: %w", err, govis.ErrGenicamNotLoaded)
	}
	data, err := t.ReadMemory(ctx, addr, length)
	if err != nil {
		return nil, fmt.Errorf("gv: read xml region: %w", govis.ErrGenicamNotLoaded)
	}
	t.xml = data
	return data, nil
}

func (t *Transport) Close() error {
	return t.conn.Close()
}

// enableBroadcast sets SO_BROADCAST on the underlying UDP socket for
// discovery use via golang.org/x/sys/unix.
func enableBroadcast(conn *net.UDPConn) error {
	rc, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = rc.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// EnableBroadcast exposes enableBroadcast for discovery packages that need
// a broadcast-capable GVCP socket without a full Transport.
func EnableBroadcast(conn *net.UDPConn) error { return enableBroadcast(conn) }
