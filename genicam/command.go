package genicam

import (
	"context"

	"github.com/lbnl-vision/gogenicam/govis"
)

// Command is spec.md §3's Command node: write-only, executes by writing
// CommandValue to its pValue when invoked.
type Command struct {
	name         string
	c            *Container
	value        Property // pValue, the target integer/register node
	commandValue int64
	access       AccessMode
}

type CommandConfig struct {
	Name         string
	Value        Property
	CommandValue int64
	Access       AccessMode
}

func NewCommand(c *Container, cfg CommandConfig) *Command {
	return &Command{name: cfg.Name, c: c, value: cfg.Value, commandValue: cfg.CommandValue, access: cfg.Access}
}

func (n *Command) Name() string { return n.name }

func (n *Command) ImposedAccessMode(context.Context) (AccessMode, error) { return n.access, nil }

// Execute writes CommandValue to the node pValue points at, per spec.md §3.
func (n *Command) Execute(ctx context.Context) error {
	if n.c.binding.AccessCheckPolicy == AccessCheckEnable && !n.access.writable() {
		return govis.WrapFeature(n.name, govis.ErrAccessDenied)
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
	return govis.WrapFeature(n.name, w.SetInteger(ctx, n.commandValue))
}
