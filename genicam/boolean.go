package genicam

import (
	"context"

	"github.com/lbnl-vision/gogenicam/govis"
)

// Boolean is spec.md §3's Boolean node: value in {true,false}, which may
// resolve via an integer compared against OnValue/OffValue.
type Boolean struct {
	name    string
	c       *Container
	value   Property // pValue pointing at an Integer, typically
	onValue  int64
	offValue int64
	access  AccessMode
}

type BooleanConfig struct {
	Name              string
	Value             Property
	OnValue, OffValue int64
	Access            AccessMode
}

// NewBoolean constructs a Boolean. OnValue defaults to 1 and OffValue to 0
// when both are left zero, matching the GenICam schema default.
func NewBoolean(c *Container, cfg BooleanConfig) *Boolean {
	on, off := cfg.OnValue, cfg.OffValue
	if on == 0 && off == 0 {
		on, off = 1, 0
	}
	return &Boolean{name: cfg.Name, c: c, value: cfg.Value, onValue: on, offValue: off, access: cfg.Access}
}

func (n *Boolean) Name() string { return n.name }

func (n *Boolean) ImposedAccessMode(context.Context) (AccessMode, error) { return n.access, nil }

func (n *Boolean) GetBoolean(ctx context.Context) (bool, error) {
	v, err := n.c.resolveInt(ctx, n.value)
	if err != nil {
		return false, govis.WrapFeature(n.name, err)
	}
	return v == n.onValue, nil
}

func (n *Boolean) SetBoolean(ctx context.Context, v bool) error {
	if n.c.binding.AccessCheckPolicy == AccessCheckEnable && !n.access.writable() {
		return govis.WrapFeature(n.name, govis.ErrAccessDenied)
	}
	target := n.offValue
	if v {
		target = n.onValue
	}
	if !n.value.IsPointer() {
		return govis.WrapFeature(n.name, govis.ErrWrongFeatureKind)
	}
	node, err := n.c.GetNode(n.value.Ref)
	if err != nil {
		return err
	}
	w, ok := node.(WritableInteger)
	if !ok {
		return govis.WrapFeature(n.name, govis.ErrWrongFeatureKind)
	}
	return govis.WrapFeature(n.name, w.SetInteger(ctx, target))
}
