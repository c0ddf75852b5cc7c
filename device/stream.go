package device

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lbnl-vision/gogenicam/govis"
	"github.com/lbnl-vision/gogenicam/stream"
)

// EnableStream creates the device's stream.Stream with the given queue
// depth and primes it with depth freshly allocated buffers of bufferSize
// bytes, per spec.md §4.4. The transport-specific receiver (stream/gvsp or
// stream/uvsp) is started separately by callers that know which wire
// protocol this device speaks.
func (d *Device) EnableStream(depth, bufferSize int) *stream.Stream {
	d.st = stream.New(depth)
	for i := 0; i < depth; i++ {
		d.st.PushInput(govis.NewBuffer(bufferSize))
	}
	return d.st
}

// Stream returns the device's stream, or nil if EnableStream was never
// called.
func (d *Device) Stream() *stream.Stream { return d.st }

// StartHeartbeat pokes the control-channel-privilege register at address on
// every tick until ctx is cancelled, per SPEC_FULL.md §5's control-channel
// heartbeat requirement (not in spec.md, read from arvdevice.c). A write
// failure is treated the same as a transport-detected disconnect: it stops
// the heartbeat and fires the device's control-lost signal, which fires at
// most once whichever of the two detects the loss first. Cancelling ctx
// stops the heartbeat without firing it.
func (d *Device) StartHeartbeat(ctx context.Context, address uint64, value uint32, interval time.Duration) {
	hbCtx, cancel := context.WithCancel(ctx)
	d.heartbeatCancel = cancel
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if err := d.transport.WriteRegister(hbCtx, address, value); err != nil {
					d.log.Warn("heartbeat write failed", zap.Error(err))
					if hbCtx.Err() == nil {
						d.fireControlLost()
					}
					return
				}
			}
		}
	}()
}
