package graph

import (
	"fmt"
	"math"
	"slices"

	"github.com/roach88/synthnet/internal/ir"
)

// PropKind is the value type of a property.
type PropKind int

const (
	PropBool PropKind = iota + 1
	PropInt
	PropReal
	PropEnum
	PropString
)

// String returns the lower-case kind name.
func (k PropKind) String() string {
	switch k {
	case PropBool:
		return "bool"
	case PropInt:
		return "int"
	case PropReal:
		return "real"
	case PropEnum:
		return "enum"
	case PropString:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Hint is a set of presentation and semantic hints on a property.
type Hint uint

const (
	// HintScale asks editors for a slider or dial rather than a spin box.
	HintScale Hint = 1 << iota
	// HintLog marks a logarithmic range.
	HintLog
	// HintFreq marks a frequency in Hz.
	HintFreq
	// HintNote marks a MIDI note number aliasing a frequency property.
	HintNote
)

// Property is one named, typed, bounded parameter of a Source.
//
// Min and Max bound numeric kinds (bool is 0..1, enum is the option index).
// The current value is the control-side cache; the realtime side sees it
// only through Access jobs.
type Property struct {
	Name    string
	Label   string
	Kind    PropKind
	Min     float64
	Max     float64
	Default ir.Value
	Options []string
	Hints   Hint

	value ir.Value
}

// BoolProperty returns a toggle.
func BoolProperty(name, label string, def bool) *Property {
	return &Property{Name: name, Label: label, Kind: PropBool, Min: 0, Max: 1, Default: ir.Bool(def), value: ir.Bool(def)}
}

// IntProperty returns an integer in [min, max].
func IntProperty(name, label string, min, max, def int64) *Property {
	return &Property{Name: name, Label: label, Kind: PropInt, Min: float64(min), Max: float64(max), Default: ir.Int(def), value: ir.Int(def)}
}

// RealProperty returns a real in [min, max].
func RealProperty(name, label string, min, max, def float64) *Property {
	return &Property{Name: name, Label: label, Kind: PropReal, Min: min, Max: max, Default: ir.Real(def), value: ir.Real(def)}
}

// EnumProperty returns a choice among options.
func EnumProperty(name, label string, options []string, def string) *Property {
	return &Property{Name: name, Label: label, Kind: PropEnum, Min: 0, Max: float64(len(options) - 1), Options: options, Default: ir.Str(def), value: ir.Str(def)}
}

// StringProperty returns a free-form string.
func StringProperty(name, label, def string) *Property {
	return &Property{Name: name, Label: label, Kind: PropString, Default: ir.Str(def), value: ir.Str(def)}
}

// WithHints sets hints and returns p, for chaining at declaration time.
func (p *Property) WithHints(h Hint) *Property {
	p.Hints |= h
	return p
}

// Value returns the cached value.
func (p *Property) Value() ir.Value { return p.value }

// Numeric reports whether the property can be driven by a continuous signal.
func (p *Property) Numeric() bool {
	return p.Kind == PropBool || p.Kind == PropInt || p.Kind == PropReal
}

// Coerce converts v to the property's kind and clamps it to the bounds.
// Integral reals are accepted for int properties and numbers for bools.
func (p *Property) Coerce(v ir.Value) (ir.Value, error) {
	switch p.Kind {
	case PropBool:
		switch b := v.(type) {
		case ir.Bool:
			return b, nil
		default:
			if f, ok := ir.AsFloat(v); ok {
				return ir.Bool(f >= 0.5), nil
			}
		}
	case PropInt:
		if f, ok := ir.AsFloat(v); ok {
			return ir.Int(int64(math.Round(p.clamp(f)))), nil
		}
	case PropReal:
		if f, ok := ir.AsFloat(v); ok {
			return ir.Real(p.clamp(f)), nil
		}
	case PropEnum:
		switch e := v.(type) {
		case ir.Str:
			if slices.Contains(p.Options, string(e)) {
				return e, nil
			}
			return nil, fmt.Errorf("%w: %q is not one of %v", ErrPropertyType, string(e), p.Options)
		case ir.Int:
			if e >= 0 && int(e) < len(p.Options) {
				return ir.Str(p.Options[e]), nil
			}
		}
	case PropString:
		if s, ok := v.(ir.Str); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s wants %s, got %T", ErrPropertyType, p.Name, p.Kind, v)
}

func (p *Property) clamp(f float64) float64 {
	return math.Max(p.Min, math.Min(p.Max, f))
}

// Float returns the cached value as a number: bools are 0 or 1, enums are
// the option index, strings are 0.
func (p *Property) Float() float64 {
	return p.FloatOf(p.value)
}

// FloatOf converts v, a value of this property, the way Float does.
func (p *Property) FloatOf(v ir.Value) float64 {
	switch x := v.(type) {
	case ir.Bool:
		if x {
			return 1
		}
		return 0
	case ir.Str:
		if p.Kind == PropEnum {
			return float64(slices.Index(p.Options, string(x)))
		}
		return 0
	}
	f, _ := ir.AsFloat(v)
	return f
}

// FromFloat maps a number onto the property: bools quantize at 0.5, ints
// round, everything is clamped to the bounds.
func (p *Property) FromFloat(f float64) ir.Value {
	f = p.clamp(f)
	switch p.Kind {
	case PropBool:
		return ir.Bool(f >= 0.5)
	case PropInt:
		return ir.Int(int64(math.Round(f)))
	case PropEnum:
		if len(p.Options) == 0 {
			return ir.Str("")
		}
		return ir.Str(p.Options[int(math.Round(f))])
	default:
		return ir.Real(f)
	}
}

// PropertySet is the ordered set of a Source's properties.
type PropertySet struct {
	list   []*Property
	byName map[string]*Property
}

func newPropertySet() *PropertySet {
	return &PropertySet{byName: make(map[string]*Property)}
}

// Add appends p. Names are unique within a set; a duplicate is a
// programming error in the declaring kind.
func (ps *PropertySet) Add(p *Property) *Property {
	if _, dup := ps.byName[p.Name]; dup {
		consistency("add-property", "", "duplicate property %q", p.Name)
	}
	ps.list = append(ps.list, p)
	ps.byName[p.Name] = p
	return p
}

// Lookup returns the property called name.
func (ps *PropertySet) Lookup(name string) (*Property, bool) {
	p, ok := ps.byName[name]
	return p, ok
}

// All returns the properties in declaration order.
func (ps *PropertySet) All() []*Property { return ps.list }

// Len returns the number of properties.
func (ps *PropertySet) Len() int { return len(ps.list) }
