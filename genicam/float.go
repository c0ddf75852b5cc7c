package genicam

import (
	"sync"

	"context"

	"github.com/lbnl-vision/gogenicam/govis"
)

// Float is spec.md §3's Float node: same shape as Integer but 32/64-bit
// floating point, value in [min,max].
type Float struct {
	name   string
	c      *Container
	value  Property
	min    Property
	max    Property
	unit   string
	access AccessMode

	mu        sync.Mutex
	local     float64
	localInit bool
}

type FloatConfig struct {
	Name        string
	Value, Min, Max Property
	Unit        string
	Access      AccessMode
}

func NewFloat(c *Container, cfg FloatConfig) *Float {
	return &Float{name: cfg.Name, c: c, value: cfg.Value, min: cfg.Min, max: cfg.Max, unit: cfg.Unit, access: cfg.Access}
}

func (n *Float) Name() string { return n.name }

func (n *Float) ImposedAccessMode(ctx context.Context) (AccessMode, error) {
	if !n.value.IsPointer() {
		return n.access, nil
	}
	target, err := n.c.GetNode(n.value.Ref)
	if err != nil {
		return AccessUndefined, err
	}
	if am, ok := target.(AccessModer); ok {
		imposed, err := am.ImposedAccessMode(ctx)
		if err != nil {
			return AccessUndefined, err
		}
		return n.access.Intersect(imposed), nil
	}
	return n.access, nil
}

func (n *Float) GetFloat(ctx context.Context) (float64, error) {
	if n.value.IsPointer() {
		v, err := n.c.resolveFloat(ctx, n.value)
		return v, govis.WrapFeature(n.name, err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.localInit {
		v, err := n.c.resolveFloat(ctx, n.value)
		if err != nil {
			return 0, govis.WrapFeature(n.name, err)
		}
		n.local, n.localInit = v, true
	}
	return n.local, nil
}

func (n *Float) Min(ctx context.Context) (float64, bool, error) {
	v, ok, err := n.c.resolveFloatPtr(ctx, n.min)
	return v, ok, govis.WrapFeature(n.name, err)
}

func (n *Float) Max(ctx context.Context) (float64, bool, error) {
	v, ok, err := n.c.resolveFloatPtr(ctx, n.max)
	return v, ok, govis.WrapFeature(n.name, err)
}

func (n *Float) SetFloat(ctx context.Context, v float64) error {
	if n.c.binding.AccessCheckPolicy == AccessCheckEnable && !n.access.writable() {
		return govis.WrapFeature(n.name, govis.ErrAccessDenied)
	}
	if n.c.binding.RangeCheckPolicy == RangeCheckEnable {
		if lo, ok, err := n.Min(ctx); err != nil {
			return err
		} else if ok && v < lo {
			return govis.WrapFeature(n.name, govis.ErrOutOfRange)
		}
		if hi, ok, err := n.Max(ctx); err != nil {
			return err
		} else if ok && v > hi {
			return govis.WrapFeature(n.name, govis.ErrOutOfRange)
		}
	}
	if n.value.IsPointer() {
		target, err := n.c.GetNode(n.value.Ref)
		if err != nil {
			return err
		}
		w, ok := target.(WritableFloat)
		if !ok {
			return govis.WrapFeature(n.name, govis.ErrWrongFeatureKind)
		}
		return govis.WrapFeature(n.name, w.SetFloat(ctx, v))
	}
	n.mu.Lock()
	n.local, n.localInit = v, true
	n.mu.Unlock()
	n.c.binding.Cache.BumpChangeCount()
	return nil
}
