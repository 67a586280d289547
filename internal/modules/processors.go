package modules

import (
	"github.com/roach88/synthnet/internal/engine"
	"github.com/roach88/synthnet/internal/graph"
	"github.com/roach88/synthnet/internal/ir"
)

type gainState struct {
	gain float32
}

func setGain(v ir.Value) engine.AccessFunc {
	f, _ := ir.AsFloat(v)
	return func(m *engine.Module) { m.User.(*gainState).gain = float32(f) }
}

// Amplifier scales its input by the "volume" property.
type Amplifier struct{}

var ampClass = &engine.Class{
	Name:      "amp",
	NIStreams: 1,
	NOStreams: 1,
	Cost:      engine.CostCheap,
	Process: func(m *engine.Module, n int) {
		if !m.InputConnected(0) {
			m.OutputUnset(0)
			return
		}
		g := m.User.(*gainState).gain
		in, out := m.Input(0)[:n], m.Output(0)[:n]
		for i := range out {
			out[i] = in[i] * g
		}
	},
}

func (*Amplifier) Setup(src *graph.Source) error {
	src.AddIChannel("in", "Input", false)
	src.AddOChannel("out", "Output")
	src.Properties().Add(graph.RealProperty("volume", "Volume", 0, 1, 1).WithHints(graph.HintScale))
	return nil
}

func (*Amplifier) CreateContext(src *graph.Source, ctx graph.ContextID, trans *engine.Trans) error {
	st := &gainState{gain: float32(mustProperty(src, "volume").Float())}
	integrate(src, ctx, src.Engine().NewModule(ampClass, st, moduleLabel(src, ctx)), trans)
	return nil
}

func (*Amplifier) UpdateProperty(_ *graph.Source, _ *graph.Property, v ir.Value, _ *engine.Trans) engine.AccessFunc {
	return setGain(v)
}

// Mixer sums any number of connections on its joint input.
type Mixer struct{}

var mixerClass = &engine.Class{
	Name:      "mixer",
	NJStreams: 1,
	NOStreams: 1,
	Cost:      engine.CostCheap,
	Process: func(m *engine.Module, n int) {
		g := m.User.(*gainState).gain
		in, out := m.JInput(0)[:n], m.Output(0)[:n]
		for i := range out {
			out[i] = in[i] * g
		}
	},
}

func (*Mixer) Setup(src *graph.Source) error {
	src.AddIChannel("in", "Inputs", true)
	src.AddOChannel("out", "Output")
	src.Properties().Add(graph.RealProperty("gain", "Gain", 0, 2, 1).WithHints(graph.HintScale))
	return nil
}

func (*Mixer) CreateContext(src *graph.Source, ctx graph.ContextID, trans *engine.Trans) error {
	st := &gainState{gain: float32(mustProperty(src, "gain").Float())}
	integrate(src, ctx, src.Engine().NewModule(mixerClass, st, moduleLabel(src, ctx)), trans)
	return nil
}

func (*Mixer) UpdateProperty(_ *graph.Source, _ *graph.Property, v ir.Value, _ *engine.Trans) engine.AccessFunc {
	return setGain(v)
}

// Sink mixes its "left" and "right" inputs into the engine master bus.
// With only "left" connected the signal goes to both channels. Every
// context adds into the bus, so voices sum.
type Sink struct{}

var sinkClass = &engine.Class{
	Name:      "sink",
	NIStreams: 2,
	Cost:      engine.CostCheap,
	Process:   func(*engine.Module, int) {},
	ProcessDefer: func(m *engine.Module, n int) {
		e := m.Engine()
		left := m.Input(0)[:n]
		right := left
		if m.InputConnected(1) {
			right = m.Input(1)[:n]
		}
		l, r := e.MasterBus(0)[:n], e.MasterBus(1)[:n]
		for i := range l {
			l[i] += left[i]
			r[i] += right[i]
		}
	},
}

func (*Sink) Setup(src *graph.Source) error {
	src.AddIChannel("left", "Left", false)
	src.AddIChannel("right", "Right", false)
	return nil
}

func (*Sink) CreateContext(src *graph.Source, ctx graph.ContextID, trans *engine.Trans) error {
	integrate(src, ctx, src.Engine().NewModule(sinkClass, nil, moduleLabel(src, ctx)), trans)
	return nil
}
