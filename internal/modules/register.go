package modules

import (
	"errors"

	"github.com/roach88/synthnet/internal/graph"
)

// Type names of the built-in kinds.
const (
	TypeConst  = "const"
	TypeOsc    = "osc"
	TypeAmp    = "amp"
	TypeMixer  = "mixer"
	TypeSink   = "sink"
	TypeIPort  = "iport"
	TypeOPort  = "oport"
	TypeSubNet = "subnet"
)

// Types returns the built-in source types.
func Types() []*graph.Type {
	return []*graph.Type{
		{Name: TypeConst, Blurb: "Constant value", New: func() graph.Kind { return &Constant{} }},
		{Name: TypeOsc, Blurb: "Oscillator", New: func() graph.Kind { return &Oscillator{} }},
		{Name: TypeAmp, Blurb: "Amplifier", New: func() graph.Kind { return &Amplifier{} }},
		{Name: TypeMixer, Blurb: "Mixer summing any number of inputs", New: func() graph.Kind { return &Mixer{} }},
		{Name: TypeSink, Blurb: "Master output", New: func() graph.Kind { return &Sink{} }},
		{Name: TypeIPort, Blurb: "Virtual input port", New: func() graph.Kind { return &SubIPort{} }},
		{Name: TypeOPort, Blurb: "Virtual output port", New: func() graph.Kind { return &SubOPort{} }},
		{Name: TypeSubNet, Blurb: "Sub-network", New: func() graph.Kind { return &SubNet{} }},
	}
}

// Register adds every built-in type to r. Types already registered under
// the same name are kept and reported in the joined error.
func Register(r *graph.TypeRegistry) error {
	var errs []error
	for _, t := range Types() {
		if err := r.Register(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewRegistry returns a registry holding the built-in types.
func NewRegistry() *graph.TypeRegistry {
	r := graph.NewTypeRegistry()
	_ = Register(r) // empty registry, cannot collide
	return r
}

func mustProperty(src *graph.Source, name string) *graph.Property {
	p, ok := src.Properties().Lookup(name)
	if !ok {
		panic("modules: " + src.TypeName() + " has no property " + name)
	}
	return p
}
