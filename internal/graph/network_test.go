package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/synthnet/internal/engine"
	"github.com/roach88/synthnet/internal/ir"
)

func TestTypeRegistry_DuplicateGuard(t *testing.T) {
	types := NewTypeRegistry()
	first := &Type{Name: "const", New: func() Kind { return constKind{} }}

	require.NoError(t, types.Register(first))
	err := types.Register(&Type{Name: "const", New: func() Kind { return gainKind{} }})

	assert.ErrorIs(t, err, ErrDuplicateType)
	got, ok := types.Lookup("const")
	require.True(t, ok)
	assert.Same(t, first, got)
	assert.Equal(t, []string{"const"}, types.Names())
}

func TestTypeRegistry_RejectsIncompleteType(t *testing.T) {
	assert.Error(t, NewTypeRegistry().Register(&Type{Name: "x"}))
}

func TestNetwork_AddSource(t *testing.T) {
	n, _ := newTestNetwork(t)

	s := mustAdd(t, n, "gain", "amp")
	assert.Equal(t, "amp", s.Name())
	assert.Equal(t, "gain", s.TypeName())
	assert.Equal(t, 1, s.NIStreams())
	assert.Equal(t, 1, s.NOStreams())

	_, err := n.AddSource("gain", "amp")
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = n.AddSource("nope", "x")
	assert.ErrorIs(t, err, ErrUnknownType)

	auto := mustAdd(t, n, "gain", "")
	assert.Equal(t, "gain-1", auto.Name())
}

func TestNetwork_StructureFrozenWhilePrepared(t *testing.T) {
	n, _ := newTestNetwork(t)
	mustAdd(t, n, "const", "c")
	require.NoError(t, n.Prepare())

	_, err := n.AddSource("const", "d")
	assert.ErrorIs(t, err, ErrPrepared)
	assert.ErrorIs(t, n.RemoveSource("c"), ErrPrepared)
	assert.ErrorIs(t, n.Prepare(), ErrPrepared)
}

func TestNetwork_ConnectValidation(t *testing.T) {
	n, _ := newTestNetwork(t)
	c1 := mustAdd(t, n, "const", "c1")
	c2 := mustAdd(t, n, "const", "c2")
	a := mustAdd(t, n, "gain", "a")
	b := mustAdd(t, n, "gain", "b")
	mix := mustAdd(t, n, "mix", "mix")

	require.NoError(t, n.Connect(a, "in", c1, "out"))
	assert.ErrorIs(t, n.Connect(a, "in", c2, "out"), ErrChannelBusy)
	assert.ErrorIs(t, n.Connect(a, "nope", c2, "out"), ErrNoChannel)

	require.NoError(t, n.Connect(b, "in", a, "out"))

	// Joint inputs take many connections but not the same one twice.
	require.NoError(t, n.Connect(mix, "in", c1, "out"))
	require.NoError(t, n.Connect(mix, "in", c2, "out"))
	assert.ErrorIs(t, n.Connect(mix, "in", c2, "out"), ErrChannelBusy)
	assert.Len(t, mix.InputLinks(0), 2)

	assert.ErrorIs(t, n.Disconnect(b, "in", c1, "out"), ErrNotConnected)

	other, _ := newTestNetwork(t)
	foreign := mustAdd(t, other, "const", "f")
	assert.ErrorIs(t, n.Connect(b, "in", foreign, "out"), ErrForeignNetwork)
}

func TestNetwork_ConnectRejectsCycle(t *testing.T) {
	n, _ := newTestNetwork(t)
	a := mustAdd(t, n, "gain", "a")
	b := mustAdd(t, n, "gain", "b")
	mix := mustAdd(t, n, "mix", "mix")

	require.NoError(t, n.Connect(b, "in", a, "out"))
	require.NoError(t, n.Connect(mix, "in", b, "out"))

	assert.ErrorIs(t, n.Connect(a, "in", mix, "out"), ErrCycle)
	assert.ErrorIs(t, n.Connect(mix, "in", mix, "out"), ErrCycle)
}

func TestNetwork_RemoveSourceDropsConnections(t *testing.T) {
	n, _ := newTestNetwork(t)
	c := mustAdd(t, n, "const", "c")
	a := mustAdd(t, n, "gain", "a")
	require.NoError(t, n.Connect(a, "in", c, "out"))

	require.NoError(t, n.RemoveSource("c"))

	assert.Empty(t, a.InputLinks(0))
	_, ok := n.Source("c")
	assert.False(t, ok)
	assert.ErrorIs(t, n.RemoveSource("c"), ErrNoSource)
}

func TestNetwork_RemoveSourceRunsRemover(t *testing.T) {
	n, _ := newTestNetwork(t)
	w := mustAdd(t, n, "watch", "w")
	k := w.kind.(*watchKind)
	_, err := w.Set("value", ir.Real(0.5))
	require.NoError(t, err)
	require.Equal(t, 1, k.seen)
	require.Len(t, n.observers, 1)

	require.NoError(t, n.RemoveSource("w"))

	assert.Empty(t, n.observers)
	_, err = w.Set("value", ir.Real(0.25))
	require.NoError(t, err)
	assert.Equal(t, 1, k.seen)
}

func TestNetwork_SpawnRendersChain(t *testing.T) {
	n, eng := newTestNetwork(t)
	c := mustAdd(t, n, "const", "c")
	a := mustAdd(t, n, "gain", "a")
	require.NoError(t, n.Connect(a, "in", c, "out"))
	_, err := c.Set("value", ir.Real(2))
	require.NoError(t, err)
	_, err = a.Set("gain", ir.Real(0.5))
	require.NoError(t, err)
	require.NoError(t, n.Prepare())

	ctx, stamp, err := n.Spawn()
	require.NoError(t, err)
	assert.Greater(t, stamp, int64(0))
	drain(eng)

	assert.Equal(t, []ContextID{ctx}, n.Contexts())
	assert.Equal(t, []ContextID{ctx}, c.Contexts())
	assert.Equal(t, []float32{1, 1, 1, 1}, out(a, ctx))
	assert.Equal(t, stamp, eng.AppliedStamp())
}

func TestNetwork_ContextsArePolyphonic(t *testing.T) {
	n, eng := newTestNetwork(t)
	c := mustAdd(t, n, "const", "c")
	a := mustAdd(t, n, "gain", "a")
	require.NoError(t, n.Connect(a, "in", c, "out"))
	require.NoError(t, n.Prepare())

	ctx1, _, err := n.Spawn()
	require.NoError(t, err)
	ctx2, _, err := n.Spawn()
	require.NoError(t, err)
	drain(eng)

	assert.NotEqual(t, ctx1, ctx2)
	c1, _ := a.Context(ctx1)
	c2, _ := a.Context(ctx2)
	assert.NotSame(t, c1.Out, c2.Out, "each context owns its own modules")
	assert.True(t, c1.Out.Integrated())
	assert.True(t, c2.Out.Integrated())
}

func TestNetwork_CreateDismissRoundTrip(t *testing.T) {
	n, eng := newTestNetwork(t)
	c := mustAdd(t, n, "const", "c")
	a := mustAdd(t, n, "gain", "a")
	mix := mustAdd(t, n, "mix", "mix")
	require.NoError(t, n.Connect(a, "in", c, "out"))
	require.NoError(t, n.Connect(mix, "in", a, "out"))
	require.NoError(t, n.Connect(mix, "in", c, "out"))
	require.NoError(t, n.Prepare())

	ctx, _, err := n.Spawn()
	require.NoError(t, err)
	ac, _ := a.Context(ctx)
	n.Release(ctx)
	drain(eng)

	for _, s := range n.Sources() {
		assert.Empty(t, s.Contexts(), "registry of %s", s.Name())
	}
	assert.Empty(t, n.Contexts())
	assert.Empty(t, n.Ports().Bindings(PortIn))
	assert.Empty(t, n.Ports().Bindings(PortOut))
	assert.False(t, ac.Out.Integrated())
}

func TestNetwork_DismissIsGuarded(t *testing.T) {
	n, eng := newTestNetwork(t)
	mustAdd(t, n, "const", "c")
	require.NoError(t, n.Prepare())
	ctx, _, err := n.Spawn()
	require.NoError(t, err)
	drain(eng)

	n.Release(ctx)
	pending := eng.Pending()
	stamp := n.Release(ctx)

	assert.Equal(t, pending, eng.Pending(), "second dismiss queues nothing")
	assert.NotZero(t, stamp)
	drain(eng)

	src, _ := n.Source("c")
	trans := eng.Open()
	DefaultDismissContext(src, ctx, trans)
	assert.Zero(t, trans.Len())
}

func TestNetwork_LiveConnectWhilePrepared(t *testing.T) {
	n, eng := newTestNetwork(t)
	c := mustAdd(t, n, "const", "c")
	a := mustAdd(t, n, "gain", "a")
	require.NoError(t, n.Prepare())
	ctx, _, err := n.Spawn()
	require.NoError(t, err)
	drain(eng)
	assert.Equal(t, []float32{0, 0, 0, 0}, out(a, ctx))

	require.NoError(t, n.Connect(a, "in", c, "out"))
	drain(eng)
	assert.Equal(t, []float32{1, 1, 1, 1}, out(a, ctx))

	require.NoError(t, n.Disconnect(a, "in", c, "out"))
	drain(eng)
	assert.Equal(t, []float32{0, 0, 0, 0}, out(a, ctx))
}

func TestNetwork_PrepareFailureResetsPrepared(t *testing.T) {
	n, _ := newTestNetwork(t)
	ok := mustAdd(t, n, "faulty", "ok")
	bad := mustAdd(t, n, "faulty", "bad")
	bad.Kind().(*faultyKind).failPrepare = true

	err := n.Prepare()

	assert.ErrorIs(t, err, errBoom)
	assert.False(t, n.Prepared())
	assert.Equal(t, 1, ok.Kind().(*faultyKind).resets)
}

func TestNetwork_CreateFailureRollsBack(t *testing.T) {
	n, eng := newTestNetwork(t)
	good := mustAdd(t, n, "const", "good")
	bad := mustAdd(t, n, "faulty", "bad")
	bad.Kind().(*faultyKind).failCreate = true
	require.NoError(t, n.Prepare())

	_, _, err := n.Spawn()

	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, good.Contexts())
	assert.Empty(t, n.Contexts())
	assert.Zero(t, eng.Pending())
}

func TestNetwork_UnprepareDismissesAndRunsHooks(t *testing.T) {
	n, eng := newTestNetwork(t)
	f := mustAdd(t, n, "faulty", "f")
	require.NoError(t, n.Prepare())
	_, _, err := n.Spawn()
	require.NoError(t, err)
	drain(eng)

	var hooks []string
	f.OnReset(func() { hooks = append(hooks, "first") })
	cancel := f.OnReset(func() { hooks = append(hooks, "cancelled") })
	f.OnReset(func() { hooks = append(hooks, "second") })
	cancel()

	stamp := n.Unprepare()
	drain(eng)

	assert.NotZero(t, stamp)
	assert.False(t, n.Prepared())
	assert.Empty(t, f.Contexts())
	assert.Equal(t, []string{"first", "second"}, hooks)
	assert.Equal(t, 1, f.Kind().(*faultyKind).resets)
	assert.Zero(t, n.Unprepare(), "unprepare twice is a no-op")
}

func TestNetwork_CreateContextRequiresPrepared(t *testing.T) {
	n, eng := newTestNetwork(t)

	_, err := n.CreateContext(eng.Open())

	assert.ErrorIs(t, err, ErrNotPrepared)
}

func TestSource_RegisterContextTwicePanics(t *testing.T) {
	n, eng := newTestNetwork(t)
	c := mustAdd(t, n, "const", "c")
	m := eng.NewModule(constClass, &level{}, "m")
	c.RegisterContext(&Context{ID: 7, Out: m})

	defer func() {
		r := recover()
		assert.True(t, engine.IsConsistencyError(r), "unexpected panic %v", r)
	}()
	c.RegisterContext(&Context{ID: 7, Out: m})
}

func TestSource_RegisterContextDefaults(t *testing.T) {
	n, eng := newTestNetwork(t)
	a := mustAdd(t, n, "gain", "a")
	in := eng.NewModule(gainClass, &level{}, "in")
	outm := eng.NewModule(gainClass, &level{}, "out")

	a.RegisterContext(&Context{ID: 1, In: in, Out: outm})
	c, ok := a.Context(1)
	require.True(t, ok)

	assert.Equal(t, []*engine.Module{in, outm}, c.Modules)
	assert.Same(t, outm, c.Control)

	a.UnregisterContext(1)
	_, ok = a.Context(1)
	assert.False(t, ok)
}
