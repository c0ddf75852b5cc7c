// Package parse builds a genicam.Container from a device's GenICam XML
// description, per spec.md §4.2's "Parsing" and "Name resolution" sections.
//
// encoding/xml has no DOM type of its own, so we stream tokens into a small
// generic element tree first, then walk that tree constructing concrete
// genicam.Node values by element name. This mirrors how a dynamically
// typed, schema-driven node graph has to be built: the node kind is only
// known once the element name is read, not before.
package parse

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/lbnl-vision/gogenicam/cache"
	"github.com/lbnl-vision/gogenicam/genicam"
)

// element is a generic parsed XML element.
type element struct {
	Name     string
	Attrs    map[string]string
	Children []*element
	text     strings.Builder
}

func (e *element) Text() string { return strings.TrimSpace(e.text.String()) }

func (e *element) child(name string) *element {
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (e *element) childrenNamed(name string) []*element {
	var out []*element
	for _, c := range e.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func (e *element) attr(name string) string { return e.Attrs[name] }

// parseTree streams r into a single root element.
func parseTree(r io.Reader) (*element, error) {
	dec := xml.NewDecoder(r)
	var stack []*element
	var root *element
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{Name: t.Name.Local, Attrs: map[string]string{}}
			for _, a := range t.Attr {
				el.Attrs[a.Name.Local] = a.Value
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			el := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				root = el
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("parse: empty document")
	}
	return root, nil
}

// Parse builds a genicam.Container bound to binding from a device's raw
// GenICam XML description.
func Parse(data []byte, binding genicam.Binding) (*genicam.Container, error) {
	root, err := parseTree(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	c := genicam.NewContainer(binding)
	walk(c, root)
	return c, nil
}

func walk(c *genicam.Container, e *element) {
	switch e.Name {
	case "Category":
		buildCategory(c, e)
	case "Integer", "MaskedIntReg":
		buildIntegerLike(c, e)
	case "IntReg":
		buildIntReg(c, e)
	case "Float", "FloatReg":
		buildFloat(c, e)
	case "Boolean":
		buildBoolean(c, e)
	case "Enumeration":
		buildEnumeration(c, e)
	case "String", "StringReg":
		buildString(c, e)
	case "Command":
		buildCommand(c, e)
	case "Register":
		buildRegister(c, e)
	case "SwissKnife", "Converter":
		buildSwissKnife(c, e, false)
	case "IntSwissKnife", "IntConverter":
		buildSwissKnife(c, e, true)
	case "Port":
		c.Add(genicam.NewPort(c, e.attr("Name")))
	}
	for _, child := range e.Children {
		walk(c, child)
	}
}

func propertyOf(e *element, literalName, pointerName string) genicam.Property {
	if p := e.child(pointerName); p != nil {
		return genicam.NewRefProperty(p.Text())
	}
	if lit := e.child(literalName); lit != nil {
		return genicam.NewLiteralProperty(lit.Text())
	}
	return genicam.Property{}
}

func addressesOf(e *element) []genicam.Property {
	var props []genicam.Property
	for _, c := range e.Children {
		switch c.Name {
		case "Address":
			props = append(props, genicam.NewLiteralProperty(c.Text()))
		case "pAddress":
			props = append(props, genicam.NewRefProperty(c.Text()))
		}
	}
	return props
}

func invalidatorsOf(e *element) []string {
	var names []string
	for _, inv := range e.childrenNamed("pInvalidator") {
		names = append(names, inv.Text())
	}
	return names
}

func accessModeOf(e *element) genicam.AccessMode {
	am := e.child("AccessMode")
	if am == nil {
		return genicam.AccessUndefined
	}
	switch strings.ToUpper(am.Text()) {
	case "RO":
		return genicam.AccessReadOnly
	case "WO":
		return genicam.AccessWriteOnly
	case "RW":
		return genicam.AccessReadWrite
	case "NA", "NI":
		return genicam.AccessNotAvailable
	default:
		return genicam.AccessUndefined
	}
}

func signOf(e *element) genicam.Sign {
	s := e.child("Sign")
	if s != nil && strings.EqualFold(s.Text(), "Signed") {
		return genicam.SignSigned
	}
	return genicam.SignUnsigned
}

// endianOf reads the schema's own (nonstandard) "Endianess" spelling,
// falling back to the corrected spelling some tools emit.
func endianOf(e *element) genicam.Endianness {
	s := e.child("Endianess")
	if s == nil {
		s = e.child("Endianness")
	}
	if s != nil && strings.EqualFold(s.Text(), "BigEndian") {
		return genicam.BigEndian
	}
	return genicam.LittleEndian
}

func cachableOf(e *element) cache.Cachable {
	cm := e.child("CachingMode")
	if cm == nil {
		return cache.CachableWriteThrough
	}
	switch strings.ToUpper(cm.Text()) {
	case "NOCACHE":
		return cache.CachableNoCache
	case "WRITEAROUND":
		return cache.CachableWriteAround
	default:
		return cache.CachableWriteThrough
	}
}

func buildCategory(c *genicam.Container, e *element) {
	var children []string
	for _, f := range e.childrenNamed("pFeature") {
		children = append(children, f.Text())
	}
	c.Add(genicam.NewCategory(e.attr("Name"), children))
}

func buildIntegerLike(c *genicam.Container, e *element) {
	c.Add(genicam.NewInteger(c, genicam.IntegerConfig{
		Name:           e.attr("Name"),
		Value:          propertyOf(e, "Value", "pValue"),
		Min:            propertyOf(e, "Min", "pMin"),
		Max:            propertyOf(e, "Max", "pMax"),
		Inc:            propertyOf(e, "Inc", "pInc"),
		Representation: textOr(e.child("Representation"), ""),
		Unit:           textOr(e.child("Unit"), ""),
		Access:         accessModeOf(e),
	}))
}

// buildIntReg builds an IntReg element (a bare register viewed as an
// integer with no bitfield/sign overrides of its own) as a Register --
// IntReg is the GenICam schema's thin sibling of Register for this case.
func buildIntReg(c *genicam.Container, e *element) {
	buildRegister(c, e)
}

func buildFloat(c *genicam.Container, e *element) {
	c.Add(genicam.NewFloat(c, genicam.FloatConfig{
		Name:   e.attr("Name"),
		Value:  propertyOf(e, "Value", "pValue"),
		Min:    propertyOf(e, "Min", "pMin"),
		Max:    propertyOf(e, "Max", "pMax"),
		Unit:   textOr(e.child("Unit"), ""),
		Access: accessModeOf(e),
	}))
}

func buildBoolean(c *genicam.Container, e *element) {
	var on, off int64
	if v := e.child("OnValue"); v != nil {
		on, _ = genicam.ParseInt(v.Text())
	}
	if v := e.child("OffValue"); v != nil {
		off, _ = genicam.ParseInt(v.Text())
	}
	c.Add(genicam.NewBoolean(c, genicam.BooleanConfig{
		Name:     e.attr("Name"),
		Value:    propertyOf(e, "Value", "pValue"),
		OnValue:  on,
		OffValue: off,
		Access:   accessModeOf(e),
	}))
}

func buildEnumeration(c *genicam.Container, e *element) {
	var entries []genicam.EnumEntry
	for _, ee := range e.childrenNamed("EnumEntry") {
		var v int64
		if vc := ee.child("Value"); vc != nil {
			v, _ = genicam.ParseInt(vc.Text())
		}
		entries = append(entries, genicam.EnumEntry{
			SymbolicName: ee.attr("Name"),
			DisplayName:  textOr(ee.child("DisplayName"), ee.attr("Name")),
			Value:        v,
		})
	}
	c.Add(genicam.NewEnumeration(c, genicam.EnumerationConfig{
		Name:    e.attr("Name"),
		Value:   propertyOf(e, "Value", "pValue"),
		Entries: entries,
		Access:  accessModeOf(e),
	}))
}

func buildString(c *genicam.Container, e *element) {
	maxLen := 0
	if ml := e.child("MaxLength"); ml != nil {
		if n, err := genicam.ParseInt(ml.Text()); err == nil {
			maxLen = int(n)
		}
	}
	c.Add(genicam.NewString(c, genicam.StringConfig{
		Name:      e.attr("Name"),
		Value:     propertyOf(e, "Value", "pValue"),
		MaxLength: maxLen,
		Access:    accessModeOf(e),
	}))
}

func buildCommand(c *genicam.Container, e *element) {
	var cv int64
	if v := e.child("CommandValue"); v != nil {
		cv, _ = genicam.ParseInt(v.Text())
	}
	c.Add(genicam.NewCommand(c, genicam.CommandConfig{
		Name:         e.attr("Name"),
		Value:        propertyOf(e, "Value", "pValue"),
		CommandValue: cv,
		Access:       accessModeOf(e),
	}))
}

func buildRegister(c *genicam.Container, e *element) {
	hasBits := false
	lsb, msb := 0, 0
	if b := e.child("Bit"); b != nil {
		hasBits = true
		if n, err := genicam.ParseInt(b.Text()); err == nil {
			lsb, msb = int(n), int(n)
		}
	}
	if lsbEl, msbEl := e.child("LSB"), e.child("MSB"); lsbEl != nil && msbEl != nil {
		hasBits = true
		if n, err := genicam.ParseInt(lsbEl.Text()); err == nil {
			lsb = int(n)
		}
		if n, err := genicam.ParseInt(msbEl.Text()); err == nil {
			msb = int(n)
		}
	}
	c.Add(genicam.NewRegister(c, genicam.RegisterConfig{
		Name:         e.attr("Name"),
		Addresses:    addressesOf(e),
		Length:       propertyOf(e, "Length", "pLength"),
		Access:       accessModeOf(e),
		Policy:       cache.PolicyEnable,
		Cachable:     cachableOf(e),
		Endian:       endianOf(e),
		Sign:         signOf(e),
		HasBits:      hasBits,
		LSB:          lsb,
		MSB:          msb,
		Invalidators: invalidatorsOf(e),
		Locked:       propertyOf(e, "IsLocked", "pIsLocked"),
	}))
}

func buildSwissKnife(c *genicam.Container, e *element, asInteger bool) {
	vars := map[string]genicam.Property{}
	for _, v := range e.childrenNamed("pVariable") {
		vars[v.attr("Name")] = genicam.NewRefProperty(v.Text())
	}
	formulaText := textOr(e.child("Formula"), "")
	reverse := textOr(e.child("FormulaTo"), "")
	c.Add(genicam.NewSwissKnife(c, genicam.SwissKnifeConfig{
		Name:           e.attr("Name"),
		Formula:        formulaText,
		ReverseFormula: reverse,
		Variables:      vars,
		AsInteger:      asInteger,
		Access:         accessModeOf(e),
	}))
}

func textOr(e *element, fallback string) string {
	if e == nil {
		return fallback
	}
	return e.Text()
}
