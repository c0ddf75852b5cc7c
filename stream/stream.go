// Package stream implements the transport-agnostic half of spec.md §4.4's
// stream pipeline: the input/output buffer queues, the buffer-filling
// counter, and the statistics map shared by the GVSP and U3V reassembly
// state machines in stream/gvsp and stream/uvsp.
package stream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lbnl-vision/gogenicam/govis"
)

// Stats is the name -> counter map of spec.md §4.4.4, read as a snapshot.
type Stats struct {
	CompletedBuffers  uint64
	Failures          uint64
	Underruns         uint64
	Aborted           uint64
	TransferredBytes  uint64
	IgnoredBytes      uint64
}

// Stream is the shared pipeline contract of spec.md §4.4: a bounded input
// queue of empty buffers and output queue of filled buffers, both FIFO,
// plus a count of buffers currently owned by the receive thread (in
// neither queue). Queues are implemented as buffered channels -- Go's
// native FIFO-with-blocking-and-timeout primitive -- rather than a
// hand-rolled mutex+condvar pair; this preserves the "never in both
// queues simultaneously" and "input_queue before output_queue" ordering
// invariants of spec.md §5 without re-inventing them.
type Stream struct {
	input  chan *govis.Buffer
	output chan *govis.Buffer

	filling int64 // atomic: buffers owned by the receive thread, in neither queue

	completed, failures, underruns, aborted uint64
	transferredBytes, ignoredBytes          uint64

	cancel chan struct{}
}

// New creates a Stream whose queues hold up to depth buffers each -- the
// number of buffers the application has announced, per spec.md §4.4.
func New(depth int) *Stream {
	return &Stream{
		input:  make(chan *govis.Buffer, depth),
		output: make(chan *govis.Buffer, depth),
		cancel: make(chan struct{}),
	}
}

// PushInput is the application-side call that returns an emptied buffer to
// the stream for reuse.
func (s *Stream) PushInput(buf *govis.Buffer) {
	buf.Reset()
	s.input <- buf
}

// PopOutput is the application-side call that waits up to timeout for a
// filled buffer, per spec.md §5's "pop_output(timeout) blocks on the
// stream's output condvar".
func (s *Stream) PopOutput(ctx context.Context, timeout time.Duration) (*govis.Buffer, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	select {
	case buf := <-s.output:
		return buf, nil
	case <-deadline:
		return nil, govis.ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.cancel:
		return nil, govis.ErrNotConnected
	}
}

// PopInput is the receive-thread-side call that claims an empty buffer to
// start filling, incrementing the filling counter. ok is false when the
// stream was cancelled or the input queue was empty at deadline (an
// underrun, which the caller must count).
func (s *Stream) PopInput(timeout time.Duration) (buf *govis.Buffer, ok bool) {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	select {
	case buf := <-s.input:
		atomic.AddInt64(&s.filling, 1)
		return buf, true
	case <-deadline:
		return nil, false
	case <-s.cancel:
		return nil, false
	}
}

// PushOutput is the receive-thread-side call delivering a completed (or
// aborted) buffer to the application, decrementing the filling counter and
// bumping the matching statistic.
func (s *Stream) PushOutput(buf *govis.Buffer) {
	atomic.AddInt64(&s.filling, -1)
	switch buf.Status {
	case govis.BufferStatusSuccess:
		atomic.AddUint64(&s.completed, 1)
	case govis.BufferStatusAborted:
		atomic.AddUint64(&s.aborted, 1)
	default:
		atomic.AddUint64(&s.failures, 1)
	}
	select {
	case s.output <- buf:
	case <-s.cancel:
	}
}

// Filling reports how many buffers the receive thread currently holds.
func (s *Stream) Filling() int64 { return atomic.LoadInt64(&s.filling) }

func (s *Stream) CountUnderrun()                    { atomic.AddUint64(&s.underruns, 1) }
func (s *Stream) CountTransferredBytes(n int)        { atomic.AddUint64(&s.transferredBytes, uint64(n)) }
func (s *Stream) CountIgnoredBytes(n int)            { atomic.AddUint64(&s.ignoredBytes, uint64(n)) }

// Stats returns a point-in-time snapshot of the statistics map of spec.md
// §4.4.4.
func (s *Stream) Stats() Stats {
	return Stats{
		CompletedBuffers: atomic.LoadUint64(&s.completed),
		Failures:         atomic.LoadUint64(&s.failures),
		Underruns:        atomic.LoadUint64(&s.underruns),
		Aborted:          atomic.LoadUint64(&s.aborted),
		TransferredBytes: atomic.LoadUint64(&s.transferredBytes),
		IgnoredBytes:     atomic.LoadUint64(&s.ignoredBytes),
	}
}

// Cancelled reports whether Shutdown has been called, for receive-thread
// loops to check between blocking operations.
func (s *Stream) Cancelled() bool {
	select {
	case <-s.cancel:
		return true
	default:
		return false
	}
}

// CancelChan exposes the cancellation signal for select loops in the
// transport-specific reassembly state machines.
func (s *Stream) CancelChan() <-chan struct{} { return s.cancel }

// Shutdown sets the cancel flag and unblocks every blocked queue
// operation, per spec.md §5's cancellation contract. It does not itself
// join the receive thread or mark in-flight buffers Aborted -- the
// transport-specific stream (stream/gvsp, stream/uvsp) owns the receive
// thread and must do that before or after calling Shutdown.
func (s *Stream) Shutdown() {
	select {
	case <-s.cancel:
		// already shut down
	default:
		close(s.cancel)
	}
}
