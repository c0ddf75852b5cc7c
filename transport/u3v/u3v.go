// Package u3v implements the U3V request/reply state machine of spec.md
// §4.1.2 and the bootstrap sequence of §4.1.3 over USB bulk control
// endpoints, plus the device-facing Transport contract of spec.md §4.1.
package u3v

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lbnl-vision/gogenicam/govis"
	"github.com/lbnl-vision/gogenicam/transport"
	"github.com/lbnl-vision/gogenicam/wire/uvcp"
)

// ControlEndpoints is the minimal bulk I/O surface the control state
// machine needs. *gousb.OutEndpoint/*gousb.InEndpoint satisfy an interface
// shaped like this; it is kept narrow so unit tests can supply a fake USB
// peer without a real device attached.
type ControlEndpoints interface {
	WriteControl(ctx context.Context, p []byte) (int, error)
	ReadControl(ctx context.Context, buf []byte) (int, error)
}

// Bootstrap holds the values read from ABRM/SBRM/SIRM at device open, per
// spec.md §4.1.3.
type Bootstrap struct {
	SBRMAddress           uint64
	DeviceCapability      uint64
	ManifestTableAddress  uint64
	MaxDeviceResponseTime time.Duration
	MaxCmdTransfer        int
	MaxAckTransfer        int
	SIRMAddress           uint64
	SIRMAvailable         bool
}

// Transport implements transport.Transport over U3V control endpoints.
type Transport struct {
	log *zap.Logger
	ep  ControlEndpoints

	mu       sync.Mutex // serializes cmd/ack exchange, spec.md §5
	nextID   uint16
	timeout  time.Duration
	triesMax int

	boot      Bootstrap
	bootOnce  sync.Once
	bootErr   error

	xmlMu sync.Mutex
	xml   []byte

	disconnectOnce sync.Once
	lostMu         sync.Mutex
	lostFn         func()
	disconnected   bool
}

// Option configures a Transport at construction.
type Option func(*Transport)

func WithLogger(l *zap.Logger) Option   { return func(t *Transport) { t.log = l } }
func WithTimeout(d time.Duration) Option { return func(t *Transport) { t.timeout = d } }
func WithTriesMax(n int) Option          { return func(t *Transport) { t.triesMax = n } }

// New wraps an already-opened pair of control endpoints.
func New(ep ControlEndpoints, opts ...Option) *Transport {
	t := &Transport{
		log:      zap.NewNop(),
		ep:       ep,
		nextID:   1,
		timeout:  100 * time.Millisecond,
		triesMax: 5,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Transport) nextPacketID() uint16 {
	id := t.nextID
	t.nextID++
	if t.nextID == 0 {
		t.nextID = 1
	}
	return id
}

func (t *Transport) isDisconnected() bool {
	t.lostMu.Lock()
	defer t.lostMu.Unlock()
	return t.disconnected
}

func (t *Transport) markDisconnected() {
	t.disconnectOnce.Do(func() {
		t.lostMu.Lock()
		t.disconnected = true
		fn := t.lostFn
		t.lostMu.Unlock()
		if fn != nil {
			fn()
		}
	})
}

func (t *Transport) OnControlLost(fn func()) {
	t.lostMu.Lock()
	defer t.lostMu.Unlock()
	t.lostFn = fn
}

// call performs one UVCP request/reply exchange, retrying and honoring
// pending-acks the same way gv.Transport.call does for GVCP (spec.md
// §4.1.2 "Same three-state loop ... as GVCP").
func (t *Transport) call(ctx context.Context, cmd uvcp.Command, ackCmd uvcp.Command, payload []byte) (uvcp.Packet, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.isDisconnected() {
		return uvcp.Packet{}, govis.ErrNotConnected
	}

	maxAck := 1024
	if t.boot.MaxAckTransfer > 0 {
		maxAck = t.boot.MaxAckTransfer
	}

	for attempt := 0; attempt < t.triesMax; attempt++ {
		id := t.nextPacketID()
		req := uvcp.Encode(uvcp.Packet{Command: cmd, ID: id, Payload: payload})

		if _, err := t.ep.WriteControl(ctx, req); err != nil {
			t.markDisconnected()
			return uvcp.Packet{}, fmt.Errorf("u3v: write control: %w", govis.ErrTransfer)
		}

		deadline := time.Now().Add(t.timeout)
		reply, err := t.readUntil(ctx, id, ackCmd, maxAck, deadline)
		if err == nil {
			if acErr := reply.AckStatus().AsError(); acErr != nil {
				return uvcp.Packet{}, acErr
			}
			return reply, nil
		}
		if !errors.Is(err, govis.ErrTimeout) {
			return uvcp.Packet{}, err
		}
	}
	return uvcp.Packet{}, govis.ErrTimeout
}

func (t *Transport) readUntil(ctx context.Context, id uint16, ackCmd uvcp.Command, maxAck int, deadline time.Time) (uvcp.Packet, error) {
	buf := make([]byte, maxAck)
	for {
		if time.Now().After(deadline) {
			return uvcp.Packet{}, govis.ErrTimeout
		}
		readCtx, cancel := context.WithDeadline(ctx, deadline)
		n, err := t.ep.ReadControl(readCtx, buf)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return uvcp.Packet{}, govis.ErrTimeout
			}
			t.markDisconnected()
			return uvcp.Packet{}, fmt.Errorf("u3v: read control: %w", govis.ErrTransfer)
		}
		reply, err := uvcp.Decode(buf[:n])
		if err != nil {
			continue
		}
		if reply.Command == uvcp.CmdPendingAck {
			pa, err := uvcp.DecodePendingAck(reply.Payload)
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

// Bootstrap reads ABRM/SBRM/SIRM bootstrap data per spec.md §4.1.3 and
// caches it. Safe to call more than once; only the first call touches the
// wire.
func (t *Transport) Bootstrap(ctx context.Context) (Bootstrap, error) {
	t.bootOnce.Do(func() {
		t.bootErr = t.doBootstrap(ctx)
	})
	return t.boot, t.bootErr
}

func (t *Transport) doBootstrap(ctx context.Context) error {
	sbrm, err := t.readU64(ctx, uvcp.AbrmSBRMAddress)
	if err != nil {
		return fmt.Errorf("u3v bootstrap: sbrm address: %w", err)
	}
	cap, err := t.readU64(ctx, uvcp.AbrmDeviceCapability)
	if err != nil {
		return fmt.Errorf("u3v bootstrap: capability: %w", err)
	}
	manifest, err := t.readU64(ctx, uvcp.AbrmManifestTableAddress)
	if err != nil {
		return fmt.Errorf("u3v bootstrap: manifest address: %w", err)
	}
	respTimeRaw, err := t.readU32(ctx, uvcp.AbrmMaxDeviceResponseTime)
	if err != nil {
		return fmt.Errorf("u3v bootstrap: response time: %w", err)
	}

	maxCmd, err := t.readU32(ctx, sbrm+uvcp.SbrmMaxCmdTransfer)
	if err != nil {
		return fmt.Errorf("u3v bootstrap: max cmd transfer: %w", err)
	}
	maxAck, err := t.readU32(ctx, sbrm+uvcp.SbrmMaxAckTransfer)
	if err != nil {
		return fmt.Errorf("u3v bootstrap: max ack transfer: %w", err)
	}

	t.boot = Bootstrap{
		SBRMAddress:           sbrm,
		DeviceCapability:      cap,
		ManifestTableAddress:  manifest,
		MaxDeviceResponseTime: time.Duration(respTimeRaw) * time.Millisecond,
		MaxCmdTransfer:        int(maxCmd),
		MaxAckTransfer:        int(maxAck),
	}

	sirmOffset, err := t.readU64(ctx, sbrm+uvcp.SbrmSIRMOffset)
	if err == nil && sirmOffset != 0 {
		t.boot.SIRMAddress = sirmOffset
		t.boot.SIRMAvailable = true
	}
	return nil
}

func (t *Transport) readU64(ctx context.Context, addr uint64) (uint64, error) {
	b, err := t.readMemoryRaw(ctx, addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (t *Transport) readU32(ctx context.Context, addr uint64) (uint32, error) {
	b, err := t.readMemoryRaw(ctx, addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (t *Transport) readMemoryRaw(ctx context.Context, addr uint64, n int) ([]byte, error) {
	reply, err := t.call(ctx, uvcp.CmdReadMemory, uvcp.AckReadMemory, uvcp.EncodeReadMemoryCmd(uvcp.ReadMemoryCmd{Address: addr, Count: uint16(n)}))
	if err != nil {
		return nil, err
	}
	ack, err := uvcp.DecodeReadMemoryAck(reply.Payload)
	if err != nil {
		return nil, fmt.Errorf("u3v: decode read ack: %w", govis.ErrTransfer)
	}
	if len(ack.Data) < n {
		return nil, fmt.Errorf("u3v: short read ack (%d < %d): %w", len(ack.Data), n, govis.ErrTransfer)
	}
	return ack.Data[:n], nil
}

func (t *Transport) chunkSize() int {
	if t.boot.MaxCmdTransfer > 0 {
		n := t.boot.MaxCmdTransfer - uvcp.HeaderSize
		if n > 0 {
			return n
		}
	}
	return 256
}

func (t *Transport) ReadMemory(ctx context.Context, address uint64, size int) ([]byte, error) {
	return transport.ChunkedRead(ctx, address, size, t.chunkSize(), func(ctx context.Context, addr uint64, n int) ([]byte, error) {
		return t.readMemoryRaw(ctx, addr, n)
	})
}

func (t *Transport) WriteMemory(ctx context.Context, address uint64, data []byte) error {
	return transport.ChunkedWrite(ctx, address, data, t.chunkSize(), func(ctx context.Context, addr uint64, chunk []byte) error {
		reply, err := t.call(ctx, uvcp.CmdWriteMemory, uvcp.AckWriteMemory, uvcp.EncodeWriteMemoryCmd(uvcp.WriteMemoryCmd{Address: addr, Data: chunk}))
		if err != nil {
			return err
		}
		ack, err := uvcp.DecodeWriteMemoryAck(reply.Payload)
		if err != nil {
			return fmt.Errorf("u3v: decode write ack: %w", govis.ErrTransfer)
		}
		if int(ack.BytesWritten) != len(chunk) {
			return fmt.Errorf("u3v: short write (%d of %d): %w", ack.BytesWritten, len(chunk), govis.ErrTransfer)
		}
		return nil
	})
}

func (t *Transport) ReadRegister(ctx context.Context, address uint64) (uint32, error) {
	return t.readU32(ctx, address)
}

func (t *Transport) WriteRegister(ctx context.Context, address uint64, value uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, value)
	return t.WriteMemory(ctx, address, buf)
}

// GenICamXML locates the first raw-XML or zip manifest entry and reads it,
// decompressing if necessary, per spec.md §4.1.3.
func (t *Transport) GenICamXML(ctx context.Context) ([]byte, error) {
	t.xmlMu.Lock()
	defer t.xmlMu.Unlock()
	if t.xml != nil {
		return t.xml, nil
	}
	if _, err := t.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("u3v: %w: %w", err, govis.ErrGenicamNotLoaded)
	}
	count, err := t.readU32(ctx, t.boot.ManifestTableAddress)
	if err != nil {
		return nil, fmt.Errorf("u3v: read manifest count: %w", govis.ErrGenicamNotLoaded)
	}
	for i := uint32(0); i < count; i++ {
		entryAddr := t.boot.ManifestTableAddress + 8 + uint64(i)*24
		raw, err := t.readMemoryRaw(ctx, entryAddr, 24)
		if err != nil {
			return nil, fmt.Errorf("u3v: read manifest entry %d: %w", i, govis.ErrGenicamNotLoaded)
		}
		entry, err := uvcp.DecodeManifestEntry(raw)
		if err != nil {
			continue
		}
		if entry.SchemaType != uvcp.ManifestSchemaXML && entry.SchemaType != uvcp.ManifestSchemaZIP {
			continue
		}
		data, err := t.ReadMemory(ctx, entry.Address, int(entry.Length))
		if err != nil {
			return nil, fmt.Errorf("u3v: read manifest xml: %w", govis.ErrGenicamNotLoaded)
		}
		if entry.SchemaType == uvcp.ManifestSchemaZIP {
			data, err = decompressZip(data)
			if err != nil {
				return nil, fmt.Errorf("u3v: decompress manifest xml: %w", govis.ErrGenicamNotLoaded)
			}
		}
		t.xml = data
		return data, nil
	}
	return nil, fmt.Errorf("u3v: no xml manifest entry: %w", govis.ErrGenicamNotLoaded)
}

func (t *Transport) Close() error { return nil }
