package genicam

import (
	"fmt"
	"strconv"
	"strings"
)

// Property is a leaf attribute of a feature node (spec.md §3's
// PropertyNode): either a literal text value or, when p-prefixed in the
// XML, a pointer by name to another node. Properties do not pre-link;
// resolution happens at lookup time (spec.md §4.2 "Name resolution").
type Property struct {
	// Ref is the referenced node's name, set when this property came from
	// a p-prefixed element (pValue, pMin, pInvalidator, ...).
	Ref string

	// text is the raw concatenated text content of a literal property,
	// lazily parsed per spec.md §4.2's value-resolution rules. Modifying a
	// node's child text invalidates this field's caller-visible
	// interpretation, but since Property is immutable once parsed here we
	// simply re-parse each call -- the cost is negligible next to a wire
	// round trip.
	text string
}

// NewLiteralProperty builds a Property from literal XML text content.
func NewLiteralProperty(text string) Property { return Property{text: strings.TrimSpace(text)} }

// NewRefProperty builds a Property that points at another node by name.
func NewRefProperty(name string) Property { return Property{Ref: strings.TrimSpace(name)} }

// IsZero reports whether the property was never set in the XML.
func (p Property) IsZero() bool { return p.Ref == "" && p.text == "" }

// IsPointer reports whether this property is a p-prefixed reference.
func (p Property) IsPointer() bool { return p.Ref != "" }

// ParseInt parses the literal text as a C-locale integer literal: optional
// sign, optional 0x prefix, per spec.md §4.2.
func ParseInt(text string) (int64, error) {
	s := strings.TrimSpace(text)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		s = s[2:]
	}
	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("genicam: bad integer literal %q: %w", text, err)
	}
	n := int64(v)
	if neg {
		n = -n
	}
	return n, nil
}

// ParseFloat parses the literal text as a C-locale float literal (ASCII
// decimal point), per spec.md §4.2.
func ParseFloat(text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, fmt.Errorf("genicam: bad float literal %q: %w", text, err)
	}
	return v, nil
}

// ParseBool parses "true"/"false"/"1"/"0".
func ParseBool(text string) (bool, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	switch s {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("genicam: bad boolean literal %q", text)
	}
}

// Text returns the raw literal text, ignoring whether this is a pointer
// property.
func (p Property) Text() string { return p.text }
