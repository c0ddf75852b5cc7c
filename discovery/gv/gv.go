// Package gv implements GVCP discovery: broadcasting (or unicasting) a
// DISCOVERY_CMD and collecting DISCOVERY_ACK replies, per SPEC_FULL.md §5.6
// ("Persistent IP / LLA fallback"), grounded on arvgvinterface.c's
// two-phase probe: a unicast discovery to a device's last-known address
// first, falling back to subnet broadcast only if that gets no reply.
package gv

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/lbnl-vision/gogenicam/discovery"
	"github.com/lbnl-vision/gogenicam/govis"
	gvtransport "github.com/lbnl-vision/gogenicam/transport/gv"
	"github.com/lbnl-vision/gogenicam/wire/gvcp"
)

const (
	DiscoveryPort    = 3956
	DefaultWindow    = 200 * time.Millisecond
	DefaultUnicastTO = 100 * time.Millisecond
)

// Prober implements discovery.Prober for GigE Vision.
type Prober struct {
	log           *zap.Logger
	broadcastAddr string // e.g. "255.255.255.255:3956"
	window        time.Duration
}

type Option func(*Prober)

func WithLogger(l *zap.Logger) Option           { return func(p *Prober) { p.log = l } }
func WithBroadcastWindow(d time.Duration) Option { return func(p *Prober) { p.window = d } }

// New builds a Prober that broadcasts to broadcastAddr (typically
// "255.255.255.255:3956" or a subnet-directed broadcast address).
func New(broadcastAddr string, opts ...Option) *Prober {
	p := &Prober{log: zap.NewNop(), broadcastAddr: broadcastAddr, window: DefaultWindow}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Probe broadcasts one DISCOVERY_CMD and collects every DISCOVERY_ACK
// received within the broadcast window, per spec.md §6's discovery command.
func (p *Prober) Probe(ctx context.Context) ([]discovery.Descriptor, error) {
	return p.probe(ctx, p.broadcastAddr, p.window, true)
}

// ProbeUnicast implements arvgvinterface.c's first phase: a directed
// discovery at a device's last-known address, with a short timeout since a
// live device answers almost immediately. Callers should fall back to
// Probe (broadcast) when this returns no descriptors.
func (p *Prober) ProbeUnicast(ctx context.Context, addr string) ([]discovery.Descriptor, error) {
	return p.probe(ctx, addr, DefaultUnicastTO, false)
}

func (p *Prober) probe(ctx context.Context, addr string, window time.Duration, broadcast bool) ([]discovery.Descriptor, error) {
	raddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("gv discovery: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, fmt.Errorf("gv discovery: listen: %w", err)
	}
	defer conn.Close()

	if broadcast {
		if err := gvtransport.EnableBroadcast(conn); err != nil {
			return nil, fmt.Errorf("gv discovery: enable broadcast: %w", err)
		}
	}

	flags := byte(gvcp.FlagAckRequired)
	if broadcast {
		flags |= gvcp.FlagBroadcast
	}
	pkt := gvcp.Encode(gvcp.Packet{Flags: flags, Command: gvcp.CmdDiscovery, ID: 1})
	if _, err := conn.WriteToUDP(pkt, raddr); err != nil {
		return nil, fmt.Errorf("gv discovery: send: %w", err)
	}

	deadline := time.Now().Add(window)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)

	var found []discovery.Descriptor
	buf := make([]byte, 1500)
	for {
		if ctx.Err() != nil {
			break
		}
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			break // timeout ends collection
		}
		reply, err := gvcp.Decode(buf[:n])
		if err != nil || reply.Command != gvcp.AckDiscovery {
			continue
		}
		ack, err := gvcp.DecodeDiscoveryAck(reply.Payload)
		if err != nil {
			p.log.Debug("gv discovery: malformed ack", zap.Error(err))
			continue
		}
		found = append(found, discovery.Descriptor{
			ID:          govis.NewDeviceIDFromMAC(ack.Manufacturer, ack.Model, ack.MAC),
			Vendor:      ack.Manufacturer,
			Model:       ack.Model,
			Serial:      ack.Serial,
			UserDefined: ack.UserDefinedName,
			Address:     fmt.Sprintf("%d.%d.%d.%d:%d", ack.IP[0], ack.IP[1], ack.IP[2], ack.IP[3], from.Port),
		})
	}
	return found, nil
}
