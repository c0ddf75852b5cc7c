package genicam

import (
	"context"

	"github.com/lbnl-vision/gogenicam/genicam/formula"
	"github.com/lbnl-vision/gogenicam/govis"
)

// SwissKnife is spec.md §3's SwissKnife/IntSwissKnife/Converter family:
// computes a value from a formula over named variables that are pointers
// to other nodes. asInteger selects IntSwissKnife truncation semantics;
// a non-empty reverseFormula with at least one pVariable also writable
// makes this node behave like a Converter, propagating SetInteger/SetFloat
// back through the inverse formula.
type SwissKnife struct {
	name          string
	c             *Container
	formula       string
	reverseFormula string
	variables     map[string]Property
	asInteger     bool
	access        AccessMode
}

type SwissKnifeConfig struct {
	Name           string
	Formula        string
	ReverseFormula string
	Variables      map[string]Property
	AsInteger      bool
	Access         AccessMode
}

func NewSwissKnife(c *Container, cfg SwissKnifeConfig) *SwissKnife {
	vars := make(map[string]Property, len(cfg.Variables))
	for k, v := range cfg.Variables {
		vars[k] = v
	}
	return &SwissKnife{
		name:           cfg.Name,
		c:              c,
		formula:        cfg.Formula,
		reverseFormula: cfg.ReverseFormula,
		variables:      vars,
		asInteger:      cfg.AsInteger,
		access:         cfg.Access,
	}
}

func (n *SwissKnife) Name() string { return n.name }

func (n *SwissKnife) ImposedAccessMode(context.Context) (AccessMode, error) { return n.access, nil }

func (n *SwissKnife) resolveVariables(ctx context.Context) (map[string]float64, error) {
	values := make(map[string]float64, len(n.variables))
	for varName, p := range n.variables {
		v, err := n.c.resolveFloat(ctx, p)
		if err != nil {
			return nil, govis.WrapFeature(n.name, err)
		}
		values[varName] = v
	}
	return values, nil
}

// GetFloat evaluates the forward formula, satisfying FloatValue.
func (n *SwissKnife) GetFloat(ctx context.Context) (float64, error) {
	values, err := n.resolveVariables(ctx)
	if err != nil {
		return 0, err
	}
	result, err := formula.Eval(n.formula, values)
	if err != nil {
		return 0, govis.WrapFeature(n.name, err)
	}
	return result, nil
}

// GetInteger evaluates the forward formula truncated to an integer,
// satisfying IntegerValue for IntSwissKnife use.
func (n *SwissKnife) GetInteger(ctx context.Context) (int64, error) {
	v, err := n.GetFloat(ctx)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// SetFloat implements Converter semantics: it evaluates the reverse formula
// with VALUE bound to v and the other named variables at their current
// resolved values, then writes the result to whichever single variable is
// writable.
func (n *SwissKnife) SetFloat(ctx context.Context, v float64) error {
	if n.c.binding.AccessCheckPolicy == AccessCheckEnable && !n.access.writable() {
		return govis.WrapFeature(n.name, govis.ErrAccessDenied)
	}
	if n.reverseFormula == "" {
		return govis.WrapFeature(n.name, govis.ErrAccessDenied)
	}
	values, err := n.resolveVariables(ctx)
	if err != nil {
		return err
	}
	values["VALUE"] = v
	result, err := formula.Eval(n.reverseFormula, values)
	if err != nil {
		return govis.WrapFeature(n.name, err)
	}
	return n.writeBackPrimaryVariable(ctx, result)
}

// SetInteger is the IntSwissKnife/Converter analogue of SetFloat.
func (n *SwissKnife) SetInteger(ctx context.Context, v int64) error {
	return n.SetFloat(ctx, float64(v))
}

// writeBackPrimaryVariable writes result to the lone pVariable target, per
// the Converter contract of spec.md §3: exactly one variable is writable
// and receives the reverse-formula output.
func (n *SwissKnife) writeBackPrimaryVariable(ctx context.Context, result float64) error {
	for _, p := range n.variables {
		if !p.IsPointer() {
			continue
		}
		target, err := n.c.GetNode(p.Ref)
		if err != nil {
			continue
		}
		if w, ok := target.(WritableFloat); ok {
			return govis.WrapFeature(n.name, w.SetFloat(ctx, result))
		}
		if w, ok := target.(WritableInteger); ok {
			return govis.WrapFeature(n.name, w.SetInteger(ctx, int64(result)))
		}
	}
	return govis.WrapFeature(n.name, govis.ErrWrongFeatureKind)
}
