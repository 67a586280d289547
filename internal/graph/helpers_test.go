package graph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/synthnet/internal/engine"
	"github.com/roach88/synthnet/internal/ir"
)

// level is the realtime user data of the test kinds.
type level struct {
	v float32
}

func setLevel(v ir.Value) engine.AccessFunc {
	f, _ := ir.AsFloat(v)
	return func(m *engine.Module) { m.User.(*level).v = float32(f) }
}

var constClass = &engine.Class{
	Name:      "const",
	NOStreams: 1,
	Cost:      engine.CostCheap,
	Process: func(m *engine.Module, n int) {
		v := m.User.(*level).v
		out := m.Output(0)[:n]
		for i := range out {
			out[i] = v
		}
	},
}

var gainClass = &engine.Class{
	Name:      "gain",
	NIStreams: 1,
	NOStreams: 1,
	Process: func(m *engine.Module, n int) {
		g := m.User.(*level).v
		in, out := m.Input(0)[:n], m.Output(0)[:n]
		for i := range out {
			out[i] = in[i] * g
		}
	},
}

var mixClass = &engine.Class{
	Name:      "mix",
	NJStreams: 1,
	NOStreams: 1,
	Process: func(m *engine.Module, n int) {
		copy(m.Output(0)[:n], m.JInput(0)[:n])
	},
}

func label(src *Source, ctx ContextID) string {
	return fmt.Sprintf("%s#%d", src.Name(), ctx)
}

// constKind emits its "value" property.
type constKind struct{}

func (constKind) Setup(src *Source) error {
	src.AddOChannel("out", "Output")
	src.Properties().Add(RealProperty("value", "Value", -10, 10, 1))
	return nil
}

func (constKind) CreateContext(src *Source, ctx ContextID, trans *engine.Trans) error {
	p, _ := src.Properties().Lookup("value")
	m := src.Engine().NewModule(constClass, &level{v: float32(p.Float())}, label(src, ctx))
	src.RegisterContext(&Context{ID: ctx, Out: m})
	trans.Add(engine.Integrate(m))
	return nil
}

func (constKind) UpdateProperty(_ *Source, _ *Property, v ir.Value, _ *engine.Trans) engine.AccessFunc {
	return setLevel(v)
}

// gainKind scales its input by the "gain" property.
type gainKind struct{}

func (gainKind) Setup(src *Source) error {
	src.AddIChannel("in", "Input", false)
	src.AddOChannel("out", "Output")
	src.Properties().Add(RealProperty("gain", "Gain", 0, 2, 1))
	return nil
}

func (gainKind) CreateContext(src *Source, ctx ContextID, trans *engine.Trans) error {
	p, _ := src.Properties().Lookup("gain")
	m := src.Engine().NewModule(gainClass, &level{v: float32(p.Float())}, label(src, ctx))
	src.RegisterContext(&Context{ID: ctx, In: m, Out: m})
	trans.Add(engine.Integrate(m))
	return nil
}

func (gainKind) UpdateProperty(_ *Source, _ *Property, v ir.Value, _ *engine.Trans) engine.AccessFunc {
	return setLevel(v)
}

// mixKind sums a joint input.
type mixKind struct{}

func (mixKind) Setup(src *Source) error {
	src.AddIChannel("in", "Input", true)
	src.AddOChannel("out", "Output")
	return nil
}

func (mixKind) CreateContext(src *Source, ctx ContextID, trans *engine.Trans) error {
	m := src.Engine().NewModule(mixClass, nil, label(src, ctx))
	src.RegisterContext(&Context{ID: ctx, In: m, Out: m})
	trans.Add(engine.Integrate(m))
	return nil
}

var errBoom = errors.New("boom")

// faultyKind fails in Prepare or CreateContext on demand and counts calls.
type faultyKind struct {
	failPrepare bool
	failCreate  bool
	prepared    int
	resets      int
}

func (k *faultyKind) Setup(src *Source) error {
	src.AddOChannel("out", "Output")
	return nil
}

func (k *faultyKind) Prepare(*Source) error {
	if k.failPrepare {
		return errBoom
	}
	k.prepared++
	return nil
}

func (k *faultyKind) Reset(*Source) { k.resets++ }

func (k *faultyKind) CreateContext(src *Source, ctx ContextID, trans *engine.Trans) error {
	if k.failCreate {
		return errBoom
	}
	m := src.Engine().NewModule(constClass, &level{}, label(src, ctx))
	src.RegisterContext(&Context{ID: ctx, Out: m})
	trans.Add(engine.Integrate(m))
	return nil
}

// watchKind observes property writes on its own source until removed.
type watchKind struct {
	seen   int
	cancel func()
}

func (k *watchKind) Setup(src *Source) error {
	src.AddOChannel("out", "Output")
	src.Properties().Add(RealProperty("value", "Value", 0, 1, 0))
	k.cancel = src.Network().ObserveProperties(func(s *Source, _ *Property, _ int64) {
		if s == src {
			k.seen++
		}
	})
	return nil
}

func (k *watchKind) Remove(*Source) { k.cancel() }

func (k *watchKind) CreateContext(src *Source, ctx ContextID, trans *engine.Trans) error {
	m := src.Engine().NewModule(constClass, &level{}, label(src, ctx))
	src.RegisterContext(&Context{ID: ctx, Out: m})
	trans.Add(engine.Integrate(m))
	return nil
}

func testTypes(t *testing.T) *TypeRegistry {
	t.Helper()
	types := NewTypeRegistry()
	require.NoError(t, types.Register(&Type{Name: "const", New: func() Kind { return constKind{} }}))
	require.NoError(t, types.Register(&Type{Name: "gain", New: func() Kind { return gainKind{} }}))
	require.NoError(t, types.Register(&Type{Name: "mix", New: func() Kind { return mixKind{} }}))
	require.NoError(t, types.Register(&Type{Name: "faulty", New: func() Kind { return &faultyKind{} }}))
	require.NoError(t, types.Register(&Type{Name: "watch", New: func() Kind { return &watchKind{} }}))
	return types
}

func newTestNetwork(t *testing.T) (*Network, *engine.Engine) {
	t.Helper()
	eng := engine.New(engine.WithBlockSize(4))
	return NewNetwork("test", eng, testTypes(t)), eng
}

func mustAdd(t *testing.T, n *Network, typeName, name string) *Source {
	t.Helper()
	s, err := n.AddSource(typeName, name)
	require.NoError(t, err)
	return s
}

// drain renders blocks until every committed transaction is applied and
// collects them.
func drain(eng *engine.Engine) {
	for eng.Pending() > 0 {
		eng.ProcessBlock()
	}
	eng.ProcessBlock()
	eng.CollectGarbage()
}

func out(src *Source, ctx ContextID) []float32 {
	c, _ := src.Context(ctx)
	return c.Out.Output(0)
}
