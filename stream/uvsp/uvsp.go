// Package uvsp implements the U3V stream-protocol reassembly state machine
// of spec.md §4.4.2: synchronous sequential bulk reads and asynchronous
// transfer-based submission share the same await-leader/filling/
// await-trailer logic as the GVSP receiver in stream/gvsp.
package uvsp

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lbnl-vision/gogenicam/govis"
	"github.com/lbnl-vision/gogenicam/stream"
	"github.com/lbnl-vision/gogenicam/wire/uvsp"
)

// SegmentReader is the synchronous bulk-read primitive: one blocking read
// of up to size bytes from the stream endpoint.
type SegmentReader interface {
	ReadSegment(ctx context.Context, size int) ([]byte, error)
}

// Sizes are the transport-negotiated leader/payload/trailer sizes read
// from SIRM, per spec.md §4.1.3.
type Sizes struct {
	LeaderSize  int
	PayloadSize int
	TrailerSize int
}

// SyncReceiver implements spec.md §4.4.2's synchronous submission mode.
type SyncReceiver struct {
	log          *zap.Logger
	st           *stream.Stream
	src          SegmentReader
	sizes        Sizes
	inputTimeout time.Duration
}

type SyncOption func(*SyncReceiver)

func WithSyncLogger(l *zap.Logger) SyncOption { return func(r *SyncReceiver) { r.log = l } }
func WithSyncInputTimeout(d time.Duration) SyncOption {
	return func(r *SyncReceiver) { r.inputTimeout = d }
}

func NewSyncReceiver(st *stream.Stream, src SegmentReader, sizes Sizes, opts ...SyncOption) *SyncReceiver {
	r := &SyncReceiver{st: st, src: src, sizes: sizes, log: zap.NewNop(), inputTimeout: 50 * time.Millisecond}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run drives the receive loop, one frame per iteration, until ctx is
// cancelled or the stream shuts down.
func (r *SyncReceiver) Run(ctx context.Context) {
	for {
		if r.st.Cancelled() || ctx.Err() != nil {
			return
		}
		if err := r.processFrame(ctx); err != nil {
			r.log.Debug("uvsp: frame error", zap.Error(err))
		}
	}
}

// processFrame implements spec.md §4.4.2's three-state sequential read:
// leader, then payload segments, then trailer.
func (r *SyncReceiver) processFrame(ctx context.Context) error {
	leaderBytes, err := r.src.ReadSegment(ctx, r.sizes.LeaderSize)
	if err != nil {
		return err
	}
	leader, err := uvsp.DecodeLeader(leaderBytes)
	if err != nil {
		return err
	}
	info, _ := uvsp.DecodeImageInfo(leader.Body)

	buf, ok := r.st.PopInput(r.inputTimeout)
	if !ok {
		r.st.CountUnderrun()
		return r.drainFrame(ctx)
	}

	buf.Lock()
	buf.Status = govis.BufferStatusFilling
	buf.FrameID = leader.FrameID
	buf.SystemTimestampNS = uint64(time.Now().UnixNano())
	buf.PayloadType = govis.PayloadType(info.PayloadType)
	buf.Parts = append(buf.Parts[:0], govis.Part{
		PixelFormat: govis.PixelFormat(info.PixelFormat),
		Width:       info.Width,
		Height:      info.Height,
		XOffset:     info.XOffset,
		YOffset:     info.YOffset,
	})
	buf.Unlock()

	n := int(math.Ceil(float64(len(buf.Data)) / float64(r.sizes.PayloadSize)))
	missing := false
	for i := 0; i < n; i++ {
		remaining := len(buf.Data) - buf.BytesFilled
		want := r.sizes.PayloadSize
		if remaining < want {
			want = remaining
		}
		data, err := r.src.ReadSegment(ctx, want)
		if err != nil {
			missing = true
			break
		}
		buf.Lock()
		if buf.BytesFilled+len(data) > len(buf.Data) {
			buf.Status = govis.BufferStatusSizeMismatch
			buf.Unlock()
			missing = true
			break
		}
		copy(buf.Data[buf.BytesFilled:], data)
		buf.BytesFilled += len(data)
		buf.Unlock()
		r.st.CountTransferredBytes(len(data))
	}

	trailerBytes, err := r.src.ReadSegment(ctx, r.sizes.TrailerSize)
	if err != nil {
		missing = true
	}

	status := govis.BufferStatusSuccess
	if missing {
		status = govis.BufferStatusMissingPackets
	} else if trailer, terr := uvsp.DecodeTrailer(trailerBytes); terr == nil {
		if info, ierr := uvsp.DecodeTrailerInfo(trailer.Body); ierr == nil {
			if int(info.ActualSize) != buf.BytesFilled {
				status = govis.BufferStatusSizeMismatch
			}
		}
	}

	buf.Lock()
	if buf.Status != govis.BufferStatusSizeMismatch {
		buf.Status = status
	}
	buf.Unlock()
	r.st.PushOutput(buf)
	return nil
}

// drainFrame implements spec.md §4.4.3's U3V sync-mode backpressure: reads
// still drain the pipe when no input buffer is available, counting their
// bytes as ignored rather than stalling the endpoint.
func (r *SyncReceiver) drainFrame(ctx context.Context) error {
	total := r.sizes.PayloadSize + r.sizes.TrailerSize
	for total > 0 {
		chunk := r.sizes.PayloadSize
		if chunk == 0 || chunk > total {
			chunk = total
		}
		data, err := r.src.ReadSegment(ctx, chunk)
		if err != nil {
			return err
		}
		r.st.CountIgnoredBytes(len(data))
		total -= chunk
	}
	return nil
}

// byteBudget is a condvar-gated counter capping outstanding asynchronous
// transfer submissions, per spec.md §4.4.2's "global submitted bytes
// counter ... the thread blocks on a condvar until space is available".
type byteBudget struct {
	mu        sync.Mutex
	cond      *sync.Cond
	max       int64
	submitted int64
}

func newByteBudget(max int64) *byteBudget {
	b := &byteBudget{max: max}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *byteBudget) acquire(n int64) {
	b.mu.Lock()
	for b.submitted+n > b.max {
		b.cond.Wait()
	}
	b.submitted += n
	b.mu.Unlock()
}

func (b *byteBudget) release(n int64) {
	b.mu.Lock()
	b.submitted -= n
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Transfer is one outstanding asynchronous USB transfer submission.
type Transfer interface {
	// Wait blocks until the transfer's completion callback has fired,
	// returning the bytes actually transferred.
	Wait(ctx context.Context) ([]byte, error)
}

// TransferSubmitter submits one asynchronous bulk transfer of up to size
// bytes and returns immediately with a handle whose Wait blocks for
// completion, matching libusb's submit/callback model.
type TransferSubmitter interface {
	Submit(ctx context.Context, size int) (Transfer, error)
}

// DefaultMaxSubmittedBytes is spec.md §4.4.2's example cap (8 MiB).
const DefaultMaxSubmittedBytes = 8 * 1024 * 1024

// AsyncReceiver implements spec.md §4.4.2's asynchronous submission mode:
// one leader transfer, N payload transfers, one trailer transfer per
// buffer, gated by a submitted-bytes budget.
type AsyncReceiver struct {
	log    *zap.Logger
	st     *stream.Stream
	sub    TransferSubmitter
	sizes  Sizes
	budget *byteBudget

	inputTimeout time.Duration
}

type AsyncOption func(*AsyncReceiver)

func WithAsyncLogger(l *zap.Logger) AsyncOption { return func(r *AsyncReceiver) { r.log = l } }
func WithMaxSubmittedBytes(n int64) AsyncOption {
	return func(r *AsyncReceiver) { r.budget = newByteBudget(n) }
}

func NewAsyncReceiver(st *stream.Stream, sub TransferSubmitter, sizes Sizes, opts ...AsyncOption) *AsyncReceiver {
	r := &AsyncReceiver{
		st: st, sub: sub, sizes: sizes, log: zap.NewNop(),
		budget:       newByteBudget(DefaultMaxSubmittedBytes),
		inputTimeout: 50 * time.Millisecond,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run drives the asynchronous receive loop: for each input buffer, submit
// the leader/payload/trailer transfers and wait for all of them, honoring
// the submission byte budget.
func (r *AsyncReceiver) Run(ctx context.Context) {
	for {
		if r.st.Cancelled() || ctx.Err() != nil {
			return
		}
		buf, ok := r.st.PopInput(r.inputTimeout)
		if !ok {
			r.st.CountUnderrun()
			continue
		}
		r.processBuffer(ctx, buf)
	}
}

func (r *AsyncReceiver) processBuffer(ctx context.Context, buf *govis.Buffer) {
	leaderData, err := r.submitAndWait(ctx, r.sizes.LeaderSize)
	if err != nil {
		r.abort(buf)
		return
	}
	leader, err := uvsp.DecodeLeader(leaderData)
	if err != nil {
		r.abort(buf)
		return
	}
	info, _ := uvsp.DecodeImageInfo(leader.Body)

	buf.Lock()
	buf.Status = govis.BufferStatusFilling
	buf.FrameID = leader.FrameID
	buf.SystemTimestampNS = uint64(time.Now().UnixNano())
	buf.PayloadType = govis.PayloadType(info.PayloadType)
	buf.Parts = append(buf.Parts[:0], govis.Part{
		PixelFormat: govis.PixelFormat(info.PixelFormat),
		Width:       info.Width, Height: info.Height,
		XOffset: info.XOffset, YOffset: info.YOffset,
	})
	buf.Unlock()

	n := int(math.Ceil(float64(len(buf.Data)) / float64(r.sizes.PayloadSize)))
	missing := false
	for i := 0; i < n; i++ {
		if r.st.Cancelled() || ctx.Err() != nil {
			missing = true
			break
		}
		remaining := len(buf.Data) - buf.BytesFilled
		want := r.sizes.PayloadSize
		if remaining < want {
			want = remaining
		}
		data, err := r.submitAndWait(ctx, want)
		if err != nil {
			missing = true
			break
		}
		buf.Lock()
		copy(buf.Data[buf.BytesFilled:], data)
		buf.BytesFilled += len(data)
		buf.Unlock()
		r.st.CountTransferredBytes(len(data))
	}

	trailerData, err := r.submitAndWait(ctx, r.sizes.TrailerSize)
	status := govis.BufferStatusSuccess
	if missing || err != nil {
		status = govis.BufferStatusMissingPackets
	} else if trailer, terr := uvsp.DecodeTrailer(trailerData); terr == nil {
		if ti, ierr := uvsp.DecodeTrailerInfo(trailer.Body); ierr == nil && int(ti.ActualSize) != buf.BytesFilled {
			status = govis.BufferStatusSizeMismatch
		}
	}

	buf.Lock()
	buf.Status = status
	buf.Unlock()
	r.st.PushOutput(buf)
}

func (r *AsyncReceiver) submitAndWait(ctx context.Context, size int) ([]byte, error) {
	r.budget.acquire(int64(size))
	defer r.budget.release(int64(size))
	t, err := r.sub.Submit(ctx, size)
	if err != nil {
		return nil, err
	}
	return t.Wait(ctx)
}

// abort delivers buf to the output queue as Aborted, per spec.md §5's
// cancellation contract for a buffer still held by the receive thread.
func (r *AsyncReceiver) abort(buf *govis.Buffer) {
	buf.Lock()
	buf.Status = govis.BufferStatusAborted
	buf.Unlock()
	r.st.PushOutput(buf)
}
