// Package gvsp implements the GigE Vision streaming-protocol reassembly
// state machine of spec.md §4.4.1: leader/payload/trailer packets arriving
// over UDP are reassembled into stream.Stream buffers. Packets are not
// reordered: a packet-id gap marks the frame MissingPackets, and a late
// packet for an id already passed is ignored.
package gvsp

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lbnl-vision/gogenicam/govis"
	"github.com/lbnl-vision/gogenicam/stream"
	"github.com/lbnl-vision/gogenicam/wire/gvsp"
)

// PacketSource is the receive thread's datagram reader: one UDP read
// already decoded into a gvsp.Header. Separated from the receiver so tests
// can supply packets without a real socket.
type PacketSource interface {
	ReadPacket(ctx context.Context) (gvsp.Header, error)
}

// ResendRequester schedules a GVCP PACKETRESEND_CMD for the given span,
// per SPEC_FULL.md §5.4. Nil disables resend.
type ResendRequester interface {
	RequestResend(ctx context.Context, frameID uint64, firstPacketID, lastPacketID uint32) error
}

// frameState tracks the one in-flight frame this receiver is filling, per
// spec.md §4.4.1's per-frame_id state machine. Only one frame is ever open
// at a time: a LEADER for a different frame_id preempts it.
type frameState struct {
	buf              *govis.Buffer
	frameID          uint64
	expectedPacketID uint32
	missingPackets   bool
	discarding       bool // true when no input buffer was available at LEADER time

	// multipart and partOffsets are set when the leader's payload type is
	// Multipart, per spec.md §4.4.1 step 2: each PAYLOAD packet then
	// carries a {part_id, offset} sub-header instead of writing
	// sequentially, and its destination is partOffsets[part_id]+offset.
	multipart   bool
	partOffsets map[uint32]uint64
}

// Receiver runs the GVSP reassembly loop against one stream.Stream.
type Receiver struct {
	log      *zap.Logger
	st       *stream.Stream
	src      PacketSource
	resend   ResendRequester
	inputTimeout time.Duration

	current *frameState
}

type Option func(*Receiver)

func WithLogger(l *zap.Logger) Option         { return func(r *Receiver) { r.log = l } }
func WithResendRequester(rr ResendRequester) Option { return func(r *Receiver) { r.resend = rr } }
func WithInputTimeout(d time.Duration) Option { return func(r *Receiver) { r.inputTimeout = d } }

// NewReceiver builds a Receiver draining src into st.
func NewReceiver(st *stream.Stream, src PacketSource, opts ...Option) *Receiver {
	r := &Receiver{st: st, src: src, log: zap.NewNop(), inputTimeout: 50 * time.Millisecond}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run drives the receive loop until ctx is cancelled or the stream is shut
// down, per spec.md §5's "exactly one stream receive thread".
func (r *Receiver) Run(ctx context.Context) {
	for {
		if r.st.Cancelled() || ctx.Err() != nil {
			r.abortCurrent()
			return
		}
		pkt, err := r.src.ReadPacket(ctx)
		if err != nil {
			if ctx.Err() != nil || r.st.Cancelled() {
				r.abortCurrent()
				return
			}
			r.log.Debug("gvsp: packet read error", zap.Error(err))
			continue
		}
		r.handle(ctx, pkt)
	}
}

func (r *Receiver) abortCurrent() {
	if r.current == nil || r.current.buf == nil {
		return
	}
	buf := r.current.buf
	buf.Lock()
	buf.Status = govis.BufferStatusAborted
	buf.Unlock()
	r.st.PushOutput(buf)
	r.current = nil
}

func (r *Receiver) handle(ctx context.Context, h gvsp.Header) {
	switch h.ContentType {
	case gvsp.ContentTypeLeader:
		r.onLeader(ctx, h)
	case gvsp.ContentTypePayload, gvsp.ContentTypeMultipart:
		r.onPayload(h)
	case gvsp.ContentTypeTrailer:
		r.onTrailer(h)
	default:
		r.log.Debug("gvsp: unhandled content type", zap.Uint8("type", uint8(h.ContentType)))
	}
}

// onLeader implements spec.md §4.4.1 steps 1 and 4: preemption of any open
// frame, then awaiting-leader -> filling.
func (r *Receiver) onLeader(ctx context.Context, h gvsp.Header) {
	if r.current != nil {
		r.finishFrame(govis.BufferStatusMissingPackets)
	}

	buf, ok := r.st.PopInput(r.inputTimeout)
	if !ok {
		r.st.CountUnderrun()
		r.current = &frameState{frameID: h.FrameID, discarding: true}
		return
	}

	next := &frameState{buf: buf, frameID: h.FrameID, expectedPacketID: 1}

	buf.Lock()
	buf.Status = govis.BufferStatusFilling
	buf.FrameID = h.FrameID
	buf.SystemTimestampNS = uint64(time.Now().UnixNano())
	if info, err := gvsp.DecodeLeaderImageInfo(h.Data); err == nil {
		buf.TimestampNS = info.TimestampNS
		buf.PayloadType = leaderPayloadType(info.PayloadType)
		if info.PayloadType == gvsp.LeaderPayloadMultipart {
			if parts, err := gvsp.DecodeMultipartInfos(h.Data[36:]); err == nil {
				buf.Parts = buf.Parts[:0]
				offsets := make(map[uint32]uint64, len(parts))
				var cum uint64
				for _, p := range parts {
					buf.Parts = append(buf.Parts, govis.Part{
						PixelFormat: govis.PixelFormat(p.PixelFormat),
						Width:       p.Width,
						Height:      p.Height,
						XOffset:     p.XOffset,
						YOffset:     p.YOffset,
						ComponentID: p.PartID,
						DataType:    p.DataType,
						ByteOffset:  cum,
						ByteSize:    p.ByteSize,
					})
					offsets[p.PartID] = cum
					cum += p.ByteSize
				}
				next.multipart = true
				next.partOffsets = offsets
			} else {
				r.log.Debug("gvsp: malformed multipart part table", zap.Error(err))
			}
		} else {
			buf.Parts = append(buf.Parts[:0], govis.Part{
				PixelFormat: govis.PixelFormat(info.PixelFormat),
				Width:       info.Width,
				Height:      info.Height,
				XOffset:     info.XOffset,
				YOffset:     info.YOffset,
				XPadding:    uint32(info.XPadding),
				YPadding:    uint32(info.YPadding),
			})
		}
	}
	buf.Unlock()

	r.current = next
}

func leaderPayloadType(t uint16) govis.PayloadType {
	switch gvsp.LeaderPayloadType(t) {
	case gvsp.LeaderPayloadImage:
		return govis.PayloadTypeImage
	case gvsp.LeaderPayloadRaw:
		return govis.PayloadTypeRaw
	case gvsp.LeaderPayloadChunkData:
		return govis.PayloadTypeChunkData
	case gvsp.LeaderPayloadMultipart:
		return govis.PayloadTypeMultipart
	case gvsp.LeaderPayloadGenDC:
		return govis.PayloadTypeGenDC
	default:
		return govis.PayloadTypeUnknown
	}
}

// onPayload implements spec.md §4.4.1 step 2.
func (r *Receiver) onPayload(h gvsp.Header) {
	if r.current == nil || r.current.discarding {
		r.st.CountIgnoredBytes(len(h.Data))
		return
	}
	cur := r.current
	if h.PacketID != cur.expectedPacketID {
		cur.missingPackets = true
		if r.resend != nil {
			_ = r.resend.RequestResend(context.Background(), cur.frameID, cur.expectedPacketID, h.PacketID-1)
		}
		if h.PacketID < cur.expectedPacketID {
			// stale retransmit of an already-consumed packet; ignore its bytes
			r.st.CountIgnoredBytes(len(h.Data))
			return
		}
	}

	payload := h.Data
	offset := cur.buf.BytesFilled
	if cur.multipart {
		hdr, rest, err := gvsp.DecodePayloadPacketHeader(h.Data)
		if err != nil {
			r.log.Debug("gvsp: malformed multipart payload header", zap.Error(err))
			r.st.CountIgnoredBytes(len(h.Data))
			cur.expectedPacketID = h.PacketID + 1
			return
		}
		base, ok := cur.partOffsets[hdr.PartID]
		if !ok {
			r.log.Debug("gvsp: unknown multipart part id", zap.Uint32("part_id", hdr.PartID))
			r.st.CountIgnoredBytes(len(h.Data))
			cur.expectedPacketID = h.PacketID + 1
			return
		}
		payload = rest
		offset = int(base + hdr.Offset)
	}

	buf := cur.buf
	buf.Lock()
	if offset < 0 || offset+len(payload) > len(buf.Data) {
		buf.Status = govis.BufferStatusSizeMismatch
		buf.Unlock()
		r.st.CountIgnoredBytes(len(h.Data))
		return
	}
	copy(buf.Data[offset:], payload)
	if !cur.multipart {
		buf.BytesFilled += len(payload)
	} else if offset+len(payload) > buf.BytesFilled {
		buf.BytesFilled = offset + len(payload)
	}
	buf.Unlock()

	r.st.CountTransferredBytes(len(h.Data))
	cur.expectedPacketID = h.PacketID + 1
}

// onTrailer implements spec.md §4.4.1 step 3.
func (r *Receiver) onTrailer(h gvsp.Header) {
	if r.current == nil || r.current.discarding {
		r.st.CountIgnoredBytes(len(h.Data))
		r.current = nil
		return
	}
	if r.current.missingPackets {
		r.finishFrame(govis.BufferStatusMissingPackets)
		return
	}
	buf := r.current.buf
	buf.Lock()
	complete := buf.BytesFilled == len(buf.Data)
	buf.Unlock()
	if complete {
		r.finishFrame(govis.BufferStatusSuccess)
	} else {
		r.finishFrame(govis.BufferStatusSizeMismatch)
	}
}

func (r *Receiver) finishFrame(status govis.BufferStatus) {
	cur := r.current
	r.current = nil
	if cur == nil || cur.buf == nil {
		return
	}
	cur.buf.Lock()
	cur.buf.Status = status
	cur.buf.Unlock()
	r.st.PushOutput(cur.buf)
}
