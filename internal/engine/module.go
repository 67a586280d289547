package engine

import "fmt"

// inputLink is one connection into a module input: the producing module
// and its output stream index.
type inputLink struct {
	src    *Module
	stream int
}

// Module is the realtime counterpart of one Source in one context.
//
// A Module is created on the control side with Engine.NewModule and becomes
// visible to the realtime side only through an Integrate job. From then on
// its streams and User data belong to the realtime side: the control path
// reaches them exclusively through Access jobs.
type Module struct {
	id     uint64
	label  string
	class  *Class
	engine *Engine

	// User is the opaque per-instance state owned by the realtime side.
	User any

	outputs   [][]float32
	inputs    []inputLink
	jinputs   [][]inputLink
	jsum      [][]float32
	consumers []int

	integrated bool
	discarded  bool
	level      int
	flows      []*Job
}

// ID returns the engine-unique module id.
func (m *Module) ID() uint64 { return m.id }

// Label returns the human-readable name given at creation, falling back to
// "<class>/<id>".
func (m *Module) Label() string {
	if m.label != "" {
		return m.label
	}
	return fmt.Sprintf("%s/%d", m.class.Name, m.id)
}

// Class returns the module class.
func (m *Module) Class() *Class { return m.class }

// Integrated reports whether an Integrate job for this module has been applied.
// Realtime side only.
func (m *Module) Integrated() bool { return m.integrated }

// Input returns the values of input stream i. Unconnected inputs read zeros.
func (m *Module) Input(i int) []float32 {
	l := m.inputs[i]
	if l.src == nil {
		return m.engine.zero
	}
	return l.src.outputs[l.stream]
}

// InputConnected reports whether input stream i has a producer.
func (m *Module) InputConnected(i int) bool {
	return m.inputs[i].src != nil
}

// JInput returns the sum of every connection on joint stream j.
func (m *Module) JInput(j int) []float32 {
	return m.jsum[j]
}

// JInputCount returns the number of connections on joint stream j.
func (m *Module) JInputCount(j int) int {
	return len(m.jinputs[j])
}

// Output returns the writable buffer of output stream i.
func (m *Module) Output(i int) []float32 {
	return m.outputs[i]
}

// OutputUnset fills output stream i with zeros.
func (m *Module) OutputUnset(i int) {
	clear(m.outputs[i])
}

// OutputConnected reports whether any module consumes output stream i.
func (m *Module) OutputConnected(i int) bool {
	return m.consumers[i] > 0
}

// Engine returns the engine that owns the module.
func (m *Module) Engine() *Engine { return m.engine }

// hasConsumers reports whether any output still feeds another module.
func (m *Module) hasConsumers() bool {
	for _, n := range m.consumers {
		if n > 0 {
			return true
		}
	}
	return false
}

// sumJoint refreshes the joint input sums for this block.
func (m *Module) sumJoint(n int) {
	for j, links := range m.jinputs {
		buf := m.jsum[j][:n]
		clear(buf)
		for _, l := range links {
			src := l.src.outputs[l.stream][:n]
			for k := range buf {
				buf[k] += src[k]
			}
		}
	}
}
