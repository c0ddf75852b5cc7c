package genicam

import (
	"context"
	"fmt"

	"github.com/lbnl-vision/gogenicam/govis"
)

// EnumEntry is one entry of an Enumeration node, per spec.md §3.
type EnumEntry struct {
	DisplayName string
	SymbolicName string
	Value       int64
}

// Enumeration is spec.md §3's Enumeration node: a finite list of entries,
// itself a pointer to a backing integer.
type Enumeration struct {
	name    string
	c       *Container
	value   Property // pValue pointing at the backing Integer
	entries []EnumEntry
	access  AccessMode
}

type EnumerationConfig struct {
	Name    string
	Value   Property
	Entries []EnumEntry
	Access  AccessMode
}

func NewEnumeration(c *Container, cfg EnumerationConfig) *Enumeration {
	return &Enumeration{name: cfg.Name, c: c, value: cfg.Value, entries: append([]EnumEntry(nil), cfg.Entries...), access: cfg.Access}
}

func (n *Enumeration) Name() string { return n.name }

func (n *Enumeration) ImposedAccessMode(context.Context) (AccessMode, error) { return n.access, nil }

func (n *Enumeration) Entries() []EnumEntry { return append([]EnumEntry(nil), n.entries...) }

// GetInteger satisfies IntegerValue so an Enumeration can itself be pointed
// at by another node's pValue, per spec.md §3.
func (n *Enumeration) GetInteger(ctx context.Context) (int64, error) {
	v, err := n.c.resolveInt(ctx, n.value)
	return v, govis.WrapFeature(n.name, err)
}

// GetSymbolic returns the symbolic name of the entry matching the current
// value.
func (n *Enumeration) GetSymbolic(ctx context.Context) (string, error) {
	v, err := n.GetInteger(ctx)
	if err != nil {
		return "", err
	}
	for _, e := range n.entries {
		if e.Value == v {
			return e.SymbolicName, nil
		}
	}
	return "", govis.WrapFeature(n.name, fmt.Errorf("current value %d matches no enum entry", v))
}

// SetInteger sets the backing value directly, validating it names a known
// entry.
func (n *Enumeration) SetInteger(ctx context.Context, v int64) error {
	if n.c.binding.AccessCheckPolicy == AccessCheckEnable && !n.access.writable() {
		return govis.WrapFeature(n.name, govis.ErrAccessDenied)
	}
	found := false
	for _, e := range n.entries {
		if e.Value == v {
			found = true
			break
		}
	}
	if !found {
		return govis.WrapFeature(n.name, govis.ErrOutOfRange)
	}
	target, err := n.c.GetNode(n.value.Ref)
	if err != nil {
		return err
	}
	w, ok := target.(WritableInteger)
	if !ok {
		return govis.WrapFeature(n.name, govis.ErrWrongFeatureKind)
	}
	return govis.WrapFeature(n.name, w.SetInteger(ctx, v))
}

// SetSymbolic sets the backing value by symbolic entry name.
func (n *Enumeration) SetSymbolic(ctx context.Context, symbolic string) error {
	for _, e := range n.entries {
		if e.SymbolicName == symbolic {
			return n.SetInteger(ctx, e.Value)
		}
	}
	return govis.WrapFeature(n.name, fmt.Errorf("unknown enum entry %q", symbolic))
}
