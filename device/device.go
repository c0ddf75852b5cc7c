// Package device implements the Device Façade of spec.md §4.5: it composes
// a transport.Transport, a genicam.Container loaded from that transport's
// GenICam XML, and (once EnableStream is called) a stream.Stream, exposing
// typed feature access and the feature-assignment string parser as one
// surface over the lower-level transport/genicam/stream packages.
package device

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/lbnl-vision/gogenicam/cache"
	"github.com/lbnl-vision/gogenicam/genicam"
	"github.com/lbnl-vision/gogenicam/genicam/parse"
	"github.com/lbnl-vision/gogenicam/govis"
	"github.com/lbnl-vision/gogenicam/stream"
	"github.com/lbnl-vision/gogenicam/transport"
)

// Device is the open handle to one camera: its id, transport, feature tree,
// and (optionally) its stream pipeline.
type Device struct {
	log *zap.Logger

	id        govis.DeviceID
	transport transport.Transport
	container *genicam.Container
	cache     *cache.Cache

	st *stream.Stream

	controlLostOnce sync.Once
	controlLostFns  []func()
	controlLostMu   sync.Mutex

	heartbeatCancel context.CancelFunc
}

// Option configures a Device at Open time.
type Option func(*options)

type options struct {
	log               *zap.Logger
	rangeCheckPolicy  genicam.RangeCheckPolicy
	accessCheckPolicy genicam.AccessCheckPolicy
	cachePolicy       cache.Policy
}

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }
func WithRangeCheckPolicy(p genicam.RangeCheckPolicy) Option {
	return func(o *options) { o.rangeCheckPolicy = p }
}
func WithAccessCheckPolicy(p genicam.AccessCheckPolicy) Option {
	return func(o *options) { o.accessCheckPolicy = p }
}

// Open fetches t's GenICam XML, parses it into a feature tree, and returns
// a Device ready for typed feature access, per spec.md §4.5.
func Open(ctx context.Context, id govis.DeviceID, t transport.Transport, opts ...Option) (*Device, error) {
	o := &options{log: zap.NewNop(), rangeCheckPolicy: genicam.RangeCheckEnable, accessCheckPolicy: genicam.AccessCheckEnable}
	for _, fn := range opts {
		fn(o)
	}

	xml, err := t.GenICamXML(ctx)
	if err != nil {
		return nil, err
	}

	c := cache.New(o.log)
	binding := genicam.Binding{
		Transport:         t,
		Cache:             c,
		RangeCheckPolicy:  o.rangeCheckPolicy,
		AccessCheckPolicy: o.accessCheckPolicy,
	}
	container, err := parse.Parse(xml, binding)
	if err != nil {
		return nil, fmt.Errorf("device: parse genicam xml: %w", govis.ErrGenicamNotLoaded)
	}

	d := &Device{log: o.log, id: id, transport: t, container: container, cache: c}
	t.OnControlLost(d.fireControlLost)
	return d, nil
}

func (d *Device) ID() govis.DeviceID { return d.id }

// Container exposes the underlying feature tree for callers that need node
// kinds beyond the typed accessors below (e.g. walking Category trees).
func (d *Device) Container() *genicam.Container { return d.container }

// Close stops any heartbeat and releases the transport.
func (d *Device) Close() error {
	if d.heartbeatCancel != nil {
		d.heartbeatCancel()
	}
	if d.st != nil {
		d.st.Shutdown()
	}
	return d.transport.Close()
}

// OnControlLost registers fn to run the first time the underlying transport
// reports a permanent disconnect. Per spec.md §4.5, the signal fires at
// most once even if multiple callbacks are registered or the transport's
// own callback fires more than once internally.
func (d *Device) OnControlLost(fn func()) {
	d.controlLostMu.Lock()
	d.controlLostFns = append(d.controlLostFns, fn)
	d.controlLostMu.Unlock()
}

func (d *Device) fireControlLost() {
	d.controlLostOnce.Do(func() {
		d.controlLostMu.Lock()
		fns := append([]func(){}, d.controlLostFns...)
		d.controlLostMu.Unlock()
		for _, fn := range fns {
			fn()
		}
	})
}

func (d *Device) node(name string) (genicam.Node, error) {
	return d.container.GetNode(name)
}

func (d *Device) GetInteger(ctx context.Context, name string) (int64, error) {
	n, err := d.node(name)
	if err != nil {
		return 0, err
	}
	v, ok := n.(genicam.IntegerValue)
	if !ok {
		return 0, govis.WrapFeature(name, govis.ErrWrongFeatureKind)
	}
	return v.GetInteger(ctx)
}

func (d *Device) SetInteger(ctx context.Context, name string, val int64) error {
	n, err := d.node(name)
	if err != nil {
		return err
	}
	v, ok := n.(genicam.WritableInteger)
	if !ok {
		return govis.WrapFeature(name, govis.ErrWrongFeatureKind)
	}
	return v.SetInteger(ctx, val)
}

func (d *Device) GetFloat(ctx context.Context, name string) (float64, error) {
	n, err := d.node(name)
	if err != nil {
		return 0, err
	}
	v, ok := n.(genicam.FloatValue)
	if !ok {
		return 0, govis.WrapFeature(name, govis.ErrWrongFeatureKind)
	}
	return v.GetFloat(ctx)
}

func (d *Device) SetFloat(ctx context.Context, name string, val float64) error {
	n, err := d.node(name)
	if err != nil {
		return err
	}
	v, ok := n.(genicam.WritableFloat)
	if !ok {
		return govis.WrapFeature(name, govis.ErrWrongFeatureKind)
	}
	return v.SetFloat(ctx, val)
}

func (d *Device) GetBoolean(ctx context.Context, name string) (bool, error) {
	n, err := d.node(name)
	if err != nil {
		return false, err
	}
	v, ok := n.(genicam.BooleanValue)
	if !ok {
		return false, govis.WrapFeature(name, govis.ErrWrongFeatureKind)
	}
	return v.GetBoolean(ctx)
}

func (d *Device) SetBoolean(ctx context.Context, name string, val bool) error {
	n, err := d.node(name)
	if err != nil {
		return err
	}
	v, ok := n.(genicam.BooleanValue)
	if !ok {
		return govis.WrapFeature(name, govis.ErrWrongFeatureKind)
	}
	return v.SetBoolean(ctx, val)
}

func (d *Device) GetString(ctx context.Context, name string) (string, error) {
	n, err := d.node(name)
	if err != nil {
		return "", err
	}
	v, ok := n.(genicam.StringValue)
	if !ok {
		return "", govis.WrapFeature(name, govis.ErrWrongFeatureKind)
	}
	return v.GetString(ctx)
}

func (d *Device) SetString(ctx context.Context, name string, val string) error {
	n, err := d.node(name)
	if err != nil {
		return err
	}
	v, ok := n.(genicam.StringValue)
	if !ok {
		return govis.WrapFeature(name, govis.ErrWrongFeatureKind)
	}
	return v.SetString(ctx, val)
}

// Execute invokes a Command node by name.
func (d *Device) Execute(ctx context.Context, name string) error {
	n, err := d.node(name)
	if err != nil {
		return err
	}
	v, ok := n.(genicam.Executable)
	if !ok {
		return govis.WrapFeature(name, govis.ErrWrongFeatureKind)
	}
	return v.Execute(ctx)
}

// EnumEntries returns the symbolic entries of an Enumeration node by name.
func (d *Device) EnumEntries(name string) ([]genicam.EnumEntry, error) {
	n, err := d.node(name)
	if err != nil {
		return nil, err
	}
	e, ok := n.(*genicam.Enumeration)
	if !ok {
		return nil, govis.WrapFeature(name, govis.ErrWrongFeatureKind)
	}
	return e.Entries(), nil
}

// GetEnumSymbolic returns the symbolic name of an Enumeration node's current
// value.
func (d *Device) GetEnumSymbolic(ctx context.Context, name string) (string, error) {
	n, err := d.node(name)
	if err != nil {
		return "", err
	}
	e, ok := n.(*genicam.Enumeration)
	if !ok {
		return "", govis.WrapFeature(name, govis.ErrWrongFeatureKind)
	}
	return e.GetSymbolic(ctx)
}

// SetEnumSymbolic sets an Enumeration node's value by its symbolic name.
func (d *Device) SetEnumSymbolic(ctx context.Context, name, symbolic string) error {
	n, err := d.node(name)
	if err != nil {
		return err
	}
	e, ok := n.(*genicam.Enumeration)
	if !ok {
		return govis.WrapFeature(name, govis.ErrWrongFeatureKind)
	}
	return e.SetSymbolic(ctx, symbolic)
}

// ReadRegister/WriteRegister bypass the feature tree entirely, for the
// R[0xADDR]=VALUE tokens of ApplyAssignments.
func (d *Device) ReadRegister(ctx context.Context, address uint64) (uint32, error) {
	return d.transport.ReadRegister(ctx, address)
}

func (d *Device) WriteRegister(ctx context.Context, address uint64, value uint32) error {
	return d.transport.WriteRegister(ctx, address, value)
}
