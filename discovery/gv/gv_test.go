package gv

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/lbnl-vision/gogenicam/wire/gvcp"
)

// buildDiscoveryAckPayload hand-encodes a minimal DISCOVERY_ACK body
// matching DecodeDiscoveryAck's field offsets.
func buildDiscoveryAckPayload(mac [6]byte, ip [4]byte, manufacturer, model, serial, userDefined string) []byte {
	buf := make([]byte, 248)
	putStr := func(off int, s string) { copy(buf[off:], s) }
	copy(buf[10:16], mac[:])
	copy(buf[24:28], ip[:])
	putStr(52, manufacturer)
	putStr(84, model)
	putStr(184, serial)
	putStr(200, userDefined)
	return buf
}

// fakePeer answers a GVCP discovery command with a scripted ack, letting
// these tests exercise Prober without a real device on the network.
type fakePeer struct {
	conn *net.UDPConn
	ack  gvcp.DiscoveryAck
}

func newFakePeer(t *testing.T, ack gvcp.DiscoveryAck) (*fakePeer, string) {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	p := &fakePeer{conn: conn, ack: ack}
	go p.serve()
	return p, conn.LocalAddr().String()
}

func (p *fakePeer) serve() {
	buf := make([]byte, 1500)
	for {
		n, raddr, err := p.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		pkt, err := gvcp.Decode(buf[:n])
		if err != nil || pkt.Command != gvcp.CmdDiscovery {
			continue
		}
		payload := buildDiscoveryAckPayload(p.ack.MAC, p.ack.IP, p.ack.Manufacturer, p.ack.Model, p.ack.Serial, p.ack.UserDefinedName)
		reply := gvcp.Encode(gvcp.Packet{Command: gvcp.AckDiscovery, ID: pkt.ID, Payload: payload})
		p.conn.WriteToUDP(reply, raddr)
	}
}

func (p *fakePeer) Close() { p.conn.Close() }

func TestProberUnicastFindsDevice(t *testing.T) {
	peer, addr := newFakePeer(t, gvcp.DiscoveryAck{
		MAC:             [6]byte{0x00, 0x1a, 0x2b, 0x3c, 0x4d, 0x5e},
		IP:              [4]byte{192, 168, 1, 50},
		Manufacturer:    "Acme",
		Model:           "CamX",
		Serial:          "SN001",
		UserDefinedName: "bench1",
	})
	defer peer.Close()

	p := New("255.255.255.255:3956")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	found, err := p.ProbeUnicast(ctx, addr)
	if err != nil {
		t.Fatalf("ProbeUnicast: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("got %d descriptors, want 1", len(found))
	}
	d := found[0]
	if d.Vendor != "Acme" || d.Model != "CamX" || d.Serial != "SN001" || d.UserDefined != "bench1" {
		t.Fatalf("descriptor = %+v", d)
	}
	if d.Address == "" {
		t.Fatal("expected non-empty Address")
	}
}

func TestProberUnicastTimesOutWithNoReply(t *testing.T) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	addr := conn.LocalAddr().String()
	conn.Close() // nothing listening, command goes unanswered

	p := New("255.255.255.255:3956")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	found, err := p.ProbeUnicast(ctx, addr)
	if err != nil {
		t.Fatalf("ProbeUnicast: %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("got %d descriptors, want 0", len(found))
	}
}

func TestProberMalformedAckIsIgnored(t *testing.T) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	addr := conn.LocalAddr().String()
	go func() {
		buf := make([]byte, 1500)
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		pkt, err := gvcp.Decode(buf[:n])
		if err != nil {
			return
		}
		// Reply with a too-short discovery ack payload.
		reply := gvcp.Encode(gvcp.Packet{Command: gvcp.AckDiscovery, ID: pkt.ID, Payload: []byte{1, 2, 3}})
		conn.WriteToUDP(reply, raddr)
	}()
	defer conn.Close()

	p := New("255.255.255.255:3956")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	found, err := p.ProbeUnicast(ctx, addr)
	if err != nil {
		t.Fatalf("ProbeUnicast: %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("got %d descriptors, want 0 for a malformed ack", len(found))
	}
}
