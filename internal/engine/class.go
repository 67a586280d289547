package engine

import "fmt"

// Cost classifies how expensive a module class is to process.
// The scheduler batches modules of equal cost inside a dependency level.
type Cost int

const (
	// CostCheap marks trivial modules (pass-through, constants).
	CostCheap Cost = iota
	// CostNormal is the default for DSP modules.
	CostNormal
	// CostExpensive marks modules that dominate a block (native plugins, FFTs).
	CostExpensive
)

// String returns the lower-case cost name.
func (c Cost) String() string {
	switch c {
	case CostCheap:
		return "cheap"
	case CostNormal:
		return "normal"
	case CostExpensive:
		return "expensive"
	default:
		return fmt.Sprintf("cost(%d)", int(c))
	}
}

// Class is the static descriptor of a realtime processing unit.
//
// A Class is shared by every Module created from it and must not be mutated
// after the first module exists. Process, ProcessDefer and Reset run on the
// realtime side; Free runs on the control side once the module has been
// discarded and its transaction collected.
type Class struct {
	// Name identifies the class in traces and consistency errors.
	Name string

	// NIStreams is the number of single-connection input streams.
	NIStreams int
	// NJStreams is the number of joint (summing, multi-connection) input streams.
	NJStreams int
	// NOStreams is the number of output streams.
	NOStreams int

	// Process renders n values into the module's output streams.
	Process func(m *Module, n int)

	// ProcessDefer, if set, runs after every module of the block has been
	// processed. Used by modules that publish into engine-wide buffers.
	ProcessDefer func(m *Module, n int)

	// Reset, if set, clears runtime state when the module is integrated.
	Reset func(m *Module)

	// Free, if set, releases user data after the module is gone.
	Free func(user any, class *Class)

	// Cost is the scheduling classification.
	Cost Cost
}

// PassThrough returns a cheap class with n inputs copied to n outputs.
// Sub-network boundaries and virtual ports are built from it.
func PassThrough(name string, n int) *Class {
	return &Class{
		Name:      name,
		NIStreams: n,
		NOStreams: n,
		Cost:      CostCheap,
		Process: func(m *Module, values int) {
			for i := 0; i < n; i++ {
				if !m.InputConnected(i) {
					m.OutputUnset(i)
					continue
				}
				copy(m.Output(i)[:values], m.Input(i)[:values])
			}
		},
	}
}
