package genicam

import (
	"bytes"
	"context"

	"github.com/lbnl-vision/gogenicam/govis"
)

// StringNode is spec.md §3's String node: UTF-8 text, often backed by a
// register of known max length.
type StringNode struct {
	name      string
	c         *Container
	value     Property // pValue pointing at a Register, or a literal default
	maxLength int
	access    AccessMode
}

type StringConfig struct {
	Name      string
	Value     Property
	MaxLength int
	Access    AccessMode
}

func NewString(c *Container, cfg StringConfig) *StringNode {
	return &StringNode{name: cfg.Name, c: c, value: cfg.Value, maxLength: cfg.MaxLength, access: cfg.Access}
}

func (n *StringNode) Name() string { return n.name }

func (n *StringNode) ImposedAccessMode(context.Context) (AccessMode, error) { return n.access, nil }

func (n *StringNode) GetString(ctx context.Context) (string, error) {
	if !n.value.IsPointer() {
		return n.value.Text(), nil
	}
	node, err := n.c.GetNode(n.value.Ref)
	if err != nil {
		return "", err
	}
	reg, ok := node.(*Register)
	if !ok {
		return "", govis.WrapFeature(n.name, govis.ErrWrongFeatureKind)
	}
	data, err := reg.raw(ctx)
	if err != nil {
		return "", govis.WrapFeature(n.name, err)
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data), nil
}

func (n *StringNode) SetString(ctx context.Context, v string) error {
	if n.c.binding.AccessCheckPolicy == AccessCheckEnable && !n.access.writable() {
		return govis.WrapFeature(n.name, govis.ErrAccessDenied)
	}
	if n.maxLength > 0 && len(v) > n.maxLength {
		return govis.WrapFeature(n.name, govis.ErrOutOfRange)
	}
	if !n.value.IsPointer() {
		return govis.WrapFeature(n.name, govis.ErrWrongFeatureKind)
	}
	node, err := n.c.GetNode(n.value.Ref)
	if err != nil {
		return err
	}
	reg, ok := node.(*Register)
	if !ok {
		return govis.WrapFeature(n.name, govis.ErrWrongFeatureKind)
	}
	length, err := reg.Length(ctx)
	if err != nil {
		return err
	}
	data := make([]byte, length)
	copy(data, v)
	return govis.WrapFeature(n.name, reg.writeRaw(ctx, data))
}
