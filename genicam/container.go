// Package genicam implements the GenICam feature-tree runtime of spec.md
// §4.2: a cached, polymorphic node graph loaded from a device's
// self-describing XML, whose nodes resolve to reads and writes through the
// transport layer.
//
// Node kinds are modeled as a family of concrete types behind the Node
// interface (the Go expression of spec.md §9's "tagged variants"), with
// small behavioral interfaces (IntegerValue, FloatValue, ...) standing in
// for the "trait per behavioral axis" spec.md §9 asks for.
package genicam

import (
	"context"
	"fmt"
	"sync"

	"github.com/lbnl-vision/gogenicam/cache"
	"github.com/lbnl-vision/gogenicam/govis"
	"github.com/lbnl-vision/gogenicam/transport"
)

// Node is the minimal contract every feature-tree node satisfies. The
// arena (Container) stores nodes by name in a map; parent -> child
// ownership is expressed by Category's child-name list, and non-owning
// name references (pValue, pMin, pInvalidator, ...) resolve through
// Container.GetNode on demand -- "late-parsed forward references are
// resolved on first evaluation" per spec.md §4.2.
type Node interface {
	Name() string
}

// IntegerValue is implemented by nodes that resolve to a 64-bit integer:
// Integer, Enumeration (via its backing integer), Register, and
// SwissKnife/IntSwissKnife. Boolean does not implement it; integer
// resolution maps a Boolean to 0/1 through BooleanValue instead.
type IntegerValue interface {
	Node
	GetInteger(ctx context.Context) (int64, error)
}

// WritableInteger is implemented by integer-valued nodes that accept
// writes.
type WritableInteger interface {
	IntegerValue
	SetInteger(ctx context.Context, v int64) error
}

// FloatValue is implemented by nodes that resolve to a float64.
type FloatValue interface {
	Node
	GetFloat(ctx context.Context) (float64, error)
}

// WritableFloat is the float write counterpart of WritableInteger.
type WritableFloat interface {
	FloatValue
	SetFloat(ctx context.Context, v float64) error
}

// BooleanValue is implemented by Boolean nodes.
type BooleanValue interface {
	Node
	GetBoolean(ctx context.Context) (bool, error)
	SetBoolean(ctx context.Context, v bool) error
}

// StringValue is implemented by String nodes.
type StringValue interface {
	Node
	GetString(ctx context.Context) (string, error)
	SetString(ctx context.Context, v string) error
}

// Executable is implemented by Command nodes.
type Executable interface {
	Node
	Execute(ctx context.Context) error
}

// AccessModer is implemented by any node that carries an access mode,
// letting callers compute ImposedAccessMode generically.
type AccessModer interface {
	Node
	ImposedAccessMode(ctx context.Context) (AccessMode, error)
}

// Binding is the subset of device context a container needs to evaluate
// register-backed nodes: the transport to read/write through, the shared
// register cache, and the two policy knobs of spec.md §4.2.
type Binding struct {
	Transport         transport.Transport
	Cache             *cache.Cache
	RangeCheckPolicy  RangeCheckPolicy
	AccessCheckPolicy AccessCheckPolicy
}

// Container is the arena of nodes for one device's GenICam description: a
// name -> Node map standing in for spec.md §9's "HashMap<String, NodeId>
// maintained by the enclosing container".
type Container struct {
	mu    sync.RWMutex
	nodes map[string]Node

	binding Binding
}

// NewContainer creates an empty Container bound to the given device
// context.
func NewContainer(binding Binding) *Container {
	return &Container{nodes: make(map[string]Node), binding: binding}
}

// Add registers a node under its own name. A later node with the same name
// replaces the earlier one; duplicate names are not reported.
func (c *Container) Add(n Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[n.Name()] = n
}

// GetNode resolves name to its Node, or ErrFeatureNotFound per spec.md §3's
// invariant that "every p* property... resolves at lookup time to an
// existing node; dangling references surface as a feature-lookup error,
// never as silent zero."
func (c *Container) GetNode(name string) (Node, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.nodes[name]
	if !ok {
		return nil, govis.WrapFeature(name, govis.ErrFeatureNotFound)
	}
	return n, nil
}

// Names returns every registered node name, for enumeration/diagnostics.
func (c *Container) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.nodes))
	for n := range c.nodes {
		out = append(out, n)
	}
	return out
}

// resolveInt evaluates p as an integer: a literal parsed per spec.md §4.2's
// C-locale rule, or the resolved value of the node it points to, with
// Float->Integer truncation and Boolean->Integer {false,true}->{0,1}
// mapping, per spec.md §4.2's "Value resolution rules".
func (c *Container) resolveInt(ctx context.Context, p Property) (int64, error) {
	if !p.IsPointer() {
		if p.IsZero() {
			return 0, nil
		}
		return ParseInt(p.Text())
	}
	n, err := c.GetNode(p.Ref)
	if err != nil {
		return 0, err
	}
	return c.nodeAsInt(ctx, n)
}

func (c *Container) nodeAsInt(ctx context.Context, n Node) (int64, error) {
	switch v := n.(type) {
	case IntegerValue:
		return v.GetInteger(ctx)
	case FloatValue:
		f, err := v.GetFloat(ctx)
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	case BooleanValue:
		b, err := v.GetBoolean(ctx)
		if err != nil {
			return 0, err
		}
		if b {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, govis.WrapFeature(n.Name(), govis.ErrWrongFeatureKind)
	}
}

// resolveFloat mirrors resolveInt for float-valued properties, with
// Integer->Float widening.
func (c *Container) resolveFloat(ctx context.Context, p Property) (float64, error) {
	if !p.IsPointer() {
		if p.IsZero() {
			return 0, nil
		}
		return ParseFloat(p.Text())
	}
	n, err := c.GetNode(p.Ref)
	if err != nil {
		return 0, err
	}
	switch v := n.(type) {
	case FloatValue:
		return v.GetFloat(ctx)
	case IntegerValue:
		i, err := v.GetInteger(ctx)
		if err != nil {
			return 0, err
		}
		return float64(i), nil
	default:
		return 0, govis.WrapFeature(n.Name(), govis.ErrWrongFeatureKind)
	}
}

// resolveIntPtr evaluates an optional integer property, returning ok=false
// when the property was never set (so callers can distinguish "no Min" from
// "Min is 0").
func (c *Container) resolveIntPtr(ctx context.Context, p Property) (v int64, ok bool, err error) {
	if p.IsZero() {
		return 0, false, nil
	}
	v, err = c.resolveInt(ctx, p)
	return v, err == nil, err
}

func (c *Container) resolveFloatPtr(ctx context.Context, p Property) (v float64, ok bool, err error) {
	if p.IsZero() {
		return 0, false, nil
	}
	v, err = c.resolveFloat(ctx, p)
	return v, err == nil, err
}

// resolveLocked resolves an optional pIsLocked-style boolean reference,
// used by SPEC_FULL.md §5.3's locking feature.
func (c *Container) resolveLocked(ctx context.Context, p Property) (bool, error) {
	if p.IsZero() {
		return false, nil
	}
	n, err := c.GetNode(p.Ref)
	if err != nil {
		return false, err
	}
	b, ok := n.(BooleanValue)
	if !ok {
		return false, fmt.Errorf("genicam: %s: %w", n.Name(), govis.ErrWrongFeatureKind)
	}
	return b.GetBoolean(ctx)
}
