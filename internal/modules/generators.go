package modules

import (
	"fmt"
	"math"

	"github.com/roach88/synthnet/internal/engine"
	"github.com/roach88/synthnet/internal/graph"
	"github.com/roach88/synthnet/internal/ir"
)

func moduleLabel(src *graph.Source, ctx graph.ContextID) string {
	return fmt.Sprintf("%s#%d", src.Name(), ctx)
}

// integrate registers a single-module context and queues its Integrate job.
func integrate(src *graph.Source, ctx graph.ContextID, m *engine.Module, trans *engine.Trans) {
	c := &graph.Context{ID: ctx, Out: m}
	if m.Class().NIStreams+m.Class().NJStreams > 0 {
		c.In = m
	}
	src.RegisterContext(c)
	trans.Add(engine.Integrate(m))
}

// Constant emits its "value" property on every sample.
type Constant struct{}

type constState struct {
	value float32
}

var constClass = &engine.Class{
	Name:      "const",
	NOStreams: 1,
	Cost:      engine.CostCheap,
	Process: func(m *engine.Module, n int) {
		v := m.User.(*constState).value
		out := m.Output(0)[:n]
		for i := range out {
			out[i] = v
		}
	},
}

func (*Constant) Setup(src *graph.Source) error {
	src.AddOChannel("out", "Output")
	src.Properties().Add(graph.RealProperty("value", "Value", -1000, 1000, 1))
	return nil
}

func (*Constant) CreateContext(src *graph.Source, ctx graph.ContextID, trans *engine.Trans) error {
	st := &constState{value: float32(mustProperty(src, "value").Float())}
	integrate(src, ctx, src.Engine().NewModule(constClass, st, moduleLabel(src, ctx)), trans)
	return nil
}

func (*Constant) UpdateProperty(_ *graph.Source, _ *graph.Property, v ir.Value, _ *engine.Trans) engine.AccessFunc {
	f, _ := ir.AsFloat(v)
	return func(m *engine.Module) { m.User.(*constState).value = float32(f) }
}

// Waveforms of the oscillator "wave" property.
var Waveforms = []string{"sine", "saw", "square", "triangle"}

const (
	waveSine = iota
	waveSaw
	waveSquare
	waveTriangle
)

// Oscillator generates a periodic waveform. Its optional "freq" input adds
// to the frequency property in Hz.
type Oscillator struct{}

type oscState struct {
	wave  int
	freq  float64
	level float64
	rate  float64
	phase float64 // [0, 1)
}

func (s *oscState) sample() float64 {
	switch s.wave {
	case waveSaw:
		return 1 - 2*s.phase
	case waveSquare:
		if s.phase < 0.5 {
			return 1
		}
		return -1
	case waveTriangle:
		if s.phase < 0.5 {
			return 4*s.phase - 1
		}
		return 3 - 4*s.phase
	default:
		return math.Sin(2 * math.Pi * s.phase)
	}
}

var oscClass = &engine.Class{
	Name:      "osc",
	NIStreams: 1,
	NOStreams: 1,
	Cost:      engine.CostNormal,
	Process: func(m *engine.Module, n int) {
		s := m.User.(*oscState)
		mod := m.Input(0)[:n]
		out := m.Output(0)[:n]
		for i := range out {
			out[i] = float32(s.sample() * s.level)
			s.phase += (s.freq + float64(mod[i])) / s.rate
			s.phase -= math.Floor(s.phase)
		}
	},
	Reset: func(m *engine.Module) {
		m.User.(*oscState).phase = 0
	},
}

func (*Oscillator) Setup(src *graph.Source) error {
	src.AddIChannel("freq", "Frequency", false)
	src.AddOChannel("out", "Output")
	props := src.Properties()
	props.Add(graph.EnumProperty("wave", "Waveform", Waveforms, "sine"))
	props.Add(graph.RealProperty("freq", "Frequency", 0.1, 20000, 440).WithHints(graph.HintFreq | graph.HintLog | graph.HintScale))
	props.Add(graph.RealProperty("level", "Level", 0, 1, 0.5).WithHints(graph.HintScale))
	return nil
}

func (*Oscillator) CreateContext(src *graph.Source, ctx graph.ContextID, trans *engine.Trans) error {
	st := &oscState{
		wave:  int(mustProperty(src, "wave").Float()),
		freq:  mustProperty(src, "freq").Float(),
		level: mustProperty(src, "level").Float(),
		rate:  float64(src.Engine().SampleRate()),
	}
	integrate(src, ctx, src.Engine().NewModule(oscClass, st, moduleLabel(src, ctx)), trans)
	return nil
}

func (*Oscillator) UpdateProperty(_ *graph.Source, p *graph.Property, v ir.Value, _ *engine.Trans) engine.AccessFunc {
	switch p.Name {
	case "wave":
		wave := int(p.FloatOf(v))
		return func(m *engine.Module) { m.User.(*oscState).wave = wave }
	case "freq":
		f, _ := ir.AsFloat(v)
		return func(m *engine.Module) { m.User.(*oscState).freq = f }
	case "level":
		f, _ := ir.AsFloat(v)
		return func(m *engine.Module) { m.User.(*oscState).level = f }
	}
	return nil
}
