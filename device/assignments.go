package device

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lbnl-vision/gogenicam/genicam"
	"github.com/lbnl-vision/gogenicam/govis"
)

// ApplyAssignments applies a space-separated assignment string of the form
// `Feature=Value Feature2 R[0xADDR]=VALUE ...`, per spec.md §4.5. A
// `R[addr]=value` token bypasses the feature tree and calls WriteRegister
// directly; a bare feature name invokes Execute on a Command node; any
// other `Name=Value` token sets the named feature according to its kind.
func (d *Device) ApplyAssignments(ctx context.Context, assignments string) error {
	var first error
	for _, tok := range strings.Fields(assignments) {
		if err := d.applyOne(ctx, tok); err != nil && first == nil {
			first = fmt.Errorf("device: assignment %q: %w", tok, err)
		}
	}
	return first
}

func (d *Device) applyOne(ctx context.Context, tok string) error {
	if strings.HasPrefix(tok, "R[") {
		return d.applyRegisterToken(ctx, tok)
	}
	name, value, hasValue := strings.Cut(tok, "=")
	if !hasValue {
		return d.Execute(ctx, name)
	}
	return d.setByKind(ctx, name, value)
}

// applyRegisterToken parses R[0xADDR]=VALUE, failing with
// ErrInvalidParameter on malformed syntax per spec.md §7.
func (d *Device) applyRegisterToken(ctx context.Context, tok string) error {
	name, value, hasValue := strings.Cut(tok, "=")
	if !hasValue || !strings.HasSuffix(name, "]") {
		return fmt.Errorf("%w: expected R[addr]=value", govis.ErrInvalidParameter)
	}
	addrText := strings.TrimSuffix(strings.TrimPrefix(name, "R["), "]")
	addr, err := strconv.ParseUint(strings.TrimSpace(addrText), 0, 64)
	if err != nil {
		return fmt.Errorf("%w: bad register address %q", govis.ErrInvalidParameter, addrText)
	}
	val, err := strconv.ParseUint(strings.TrimSpace(value), 0, 32)
	if err != nil {
		return fmt.Errorf("%w: bad register value %q", govis.ErrInvalidParameter, value)
	}
	return d.WriteRegister(ctx, addr, uint32(val))
}

// setByKind dispatches a Name=Value token to the typed setter matching the
// node's actual kind.
func (d *Device) setByKind(ctx context.Context, name, value string) error {
	n, err := d.node(name)
	if err != nil {
		return err
	}
	value = unquote(value)
	switch v := n.(type) {
	case *genicam.Enumeration:
		return v.SetSymbolic(ctx, value)
	case genicam.BooleanValue:
		b, err := genicam.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %v", govis.ErrInvalidParameter, err)
		}
		return v.SetBoolean(ctx, b)
	case genicam.StringValue:
		return v.SetString(ctx, value)
	case genicam.WritableFloat:
		f, err := genicam.ParseFloat(value)
		if err != nil {
			return fmt.Errorf("%w: %v", govis.ErrInvalidParameter, err)
		}
		return v.SetFloat(ctx, f)
	case genicam.WritableInteger:
		i, err := genicam.ParseInt(value)
		if err != nil {
			return fmt.Errorf("%w: %v", govis.ErrInvalidParameter, err)
		}
		return v.SetInteger(ctx, i)
	default:
		return govis.WrapFeature(name, govis.ErrWrongFeatureKind)
	}
}

// unquote strips one matching layer of leading/trailing ' or " from a
// literal value token, so `PixelFormat='Mono8'` resolves the same as
// `PixelFormat=Mono8`.
func unquote(value string) string {
	if len(value) < 2 {
		return value
	}
	first, last := value[0], value[len(value)-1]
	if (first == '\'' || first == '"') && first == last {
		return value[1 : len(value)-1]
	}
	return value
}
