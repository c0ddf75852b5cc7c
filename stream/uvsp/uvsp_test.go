package uvsp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lbnl-vision/gogenicam/govis"
	"github.com/lbnl-vision/gogenicam/stream"
	"github.com/lbnl-vision/gogenicam/wire/uvsp"
)

var errNoMoreSegments = errors.New("uvsp test: no more segments")

type fakeSegmentReader struct {
	segments [][]byte
	i        int
}

func (f *fakeSegmentReader) ReadSegment(ctx context.Context, size int) ([]byte, error) {
	if f.i >= len(f.segments) {
		return nil, errNoMoreSegments
	}
	seg := f.segments[f.i]
	f.i++
	return seg, nil
}

func buildLeader(frameID uint64, width, height uint32) []byte {
	return uvsp.EncodeLeader(uvsp.Leader{
		FrameID: frameID,
		Body: uvsp.EncodeImageInfo(uvsp.ImageInfo{
			PayloadType: 1,
			PixelFormat: uint32(govis.PixelFormatMono8),
			Width:       width,
			Height:      height,
		}),
	})
}

func buildTrailer(frameID uint64, actualSize uint32) []byte {
	return uvsp.EncodeTrailer(uvsp.Trailer{
		FrameID: frameID,
		Body:    uvsp.EncodeTrailerInfo(uvsp.TrailerInfo{ActualSize: actualSize}),
	})
}

func TestSyncReceiverCompleteFrame(t *testing.T) {
	st := stream.New(2)
	st.PushInput(govis.NewBuffer(8))

	src := &fakeSegmentReader{segments: [][]byte{
		buildLeader(1, 4, 2),
		{1, 2, 3, 4},
		{5, 6, 7, 8},
		buildTrailer(1, 8),
	}}
	r := NewSyncReceiver(st, src, Sizes{LeaderSize: 30, PayloadSize: 4, TrailerSize: 12})
	if err := r.processFrame(context.Background()); err != nil {
		t.Fatalf("processFrame: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	buf, err := st.PopOutput(ctx, time.Second)
	if err != nil {
		t.Fatalf("PopOutput: %v", err)
	}
	if buf.Status != govis.BufferStatusSuccess {
		t.Fatalf("status = %v, want Success", buf.Status)
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if string(buf.Data) != string(want) {
		t.Fatalf("data = %v, want %v", buf.Data, want)
	}
}

func TestSyncReceiverSizeMismatchFromTrailerInfo(t *testing.T) {
	st := stream.New(2)
	st.PushInput(govis.NewBuffer(8))

	src := &fakeSegmentReader{segments: [][]byte{
		buildLeader(1, 4, 2),
		{1, 2, 3, 4},
		{5, 6, 7, 8},
		buildTrailer(1, 4), // device reports only 4 bytes actually sent
	}}
	r := NewSyncReceiver(st, src, Sizes{LeaderSize: 30, PayloadSize: 4, TrailerSize: 12})
	if err := r.processFrame(context.Background()); err != nil {
		t.Fatalf("processFrame: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	buf, err := st.PopOutput(ctx, time.Second)
	if err != nil {
		t.Fatalf("PopOutput: %v", err)
	}
	if buf.Status != govis.BufferStatusSizeMismatch {
		t.Fatalf("status = %v, want SizeMismatch", buf.Status)
	}
}

func TestSyncReceiverMissingPacketsWhenPayloadReadFails(t *testing.T) {
	st := stream.New(2)
	st.PushInput(govis.NewBuffer(8))

	src := &fakeSegmentReader{segments: [][]byte{
		buildLeader(1, 4, 2),
		{1, 2, 3, 4},
		// second payload segment and trailer never arrive
	}}
	r := NewSyncReceiver(st, src, Sizes{LeaderSize: 30, PayloadSize: 4, TrailerSize: 12})
	if err := r.processFrame(context.Background()); err != nil {
		t.Fatalf("processFrame: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	buf, err := st.PopOutput(ctx, time.Second)
	if err != nil {
		t.Fatalf("PopOutput: %v", err)
	}
	if buf.Status != govis.BufferStatusMissingPackets {
		t.Fatalf("status = %v, want MissingPackets", buf.Status)
	}
}

func TestSyncReceiverDrainsWhenNoInputBuffer(t *testing.T) {
	st := stream.New(2) // empty input queue

	src := &fakeSegmentReader{segments: [][]byte{
		buildLeader(1, 4, 2),
		{1, 2, 3, 4},
		buildTrailer(1, 4),
	}}
	r := NewSyncReceiver(st, src, Sizes{LeaderSize: 30, PayloadSize: 4, TrailerSize: 4}, WithSyncInputTimeout(time.Millisecond))
	if err := r.processFrame(context.Background()); err != nil {
		t.Fatalf("processFrame: %v", err)
	}
	if st.Stats().Underruns == 0 {
		t.Fatal("expected an underrun to be counted")
	}
	if st.Stats().IgnoredBytes == 0 {
		t.Fatal("expected drained bytes to count as ignored")
	}
}

// fakeTransfer is a completed Transfer returning a fixed payload.
type fakeTransfer struct{ data []byte }

func (f fakeTransfer) Wait(ctx context.Context) ([]byte, error) { return f.data, nil }

// fakeSubmitter hands out fakeTransfers from a fixed queue, matching
// fakeSegmentReader's sequencing for the async path.
type fakeSubmitter struct {
	segments [][]byte
	i        int
}

func (f *fakeSubmitter) Submit(ctx context.Context, size int) (Transfer, error) {
	if f.i >= len(f.segments) {
		return nil, errNoMoreSegments
	}
	seg := f.segments[f.i]
	f.i++
	return fakeTransfer{data: seg}, nil
}

func TestAsyncReceiverCompleteFrame(t *testing.T) {
	st := stream.New(2)
	st.PushInput(govis.NewBuffer(8))

	sub := &fakeSubmitter{segments: [][]byte{
		buildLeader(1, 4, 2),
		{1, 2, 3, 4},
		{5, 6, 7, 8},
		buildTrailer(1, 8),
	}}
	r := NewAsyncReceiver(st, sub, Sizes{LeaderSize: 30, PayloadSize: 4, TrailerSize: 12})
	buf, _ := st.PopInput(time.Second)
	r.processBuffer(context.Background(), buf)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out, err := st.PopOutput(ctx, time.Second)
	if err != nil {
		t.Fatalf("PopOutput: %v", err)
	}
	if out.Status != govis.BufferStatusSuccess {
		t.Fatalf("status = %v, want Success", out.Status)
	}
}

func TestAsyncReceiverAbortsOnSubmitFailure(t *testing.T) {
	st := stream.New(2)

	sub := &fakeSubmitter{segments: nil} // every Submit fails immediately
	r := NewAsyncReceiver(st, sub, Sizes{LeaderSize: 30, PayloadSize: 4, TrailerSize: 12})
	buf := govis.NewBuffer(8)
	r.processBuffer(context.Background(), buf)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out, err := st.PopOutput(ctx, time.Second)
	if err != nil {
		t.Fatalf("PopOutput: %v", err)
	}
	if out.Status != govis.BufferStatusAborted {
		t.Fatalf("status = %v, want Aborted", out.Status)
	}
}
