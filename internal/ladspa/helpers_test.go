package ladspa_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/synthnet/internal/engine"
	"github.com/roach88/synthnet/internal/graph"
	"github.com/roach88/synthnet/internal/ir"
	"github.com/roach88/synthnet/internal/ladspa"
	"github.com/roach88/synthnet/internal/modules"
	"github.com/roach88/synthnet/internal/testutil"
)

const libPath = "/usr/lib/ladspa/test_plugins.so"

// fixture is a host over a fake loader plus a network on a small engine.
type fixture struct {
	loader *testutil.FakeLoader
	host   *ladspa.Host
	types  *graph.TypeRegistry
	eng    *engine.Engine
	net    *graph.Network
}

func newFixture(t *testing.T, plugins ...*testutil.FakePlugin) *fixture {
	t.Helper()
	f := &fixture{
		loader: testutil.NewFakeLoader(),
		types:  modules.NewRegistry(),
		eng:    engine.New(engine.WithBlockSize(4)),
	}
	f.loader.Put(libPath, plugins...)
	f.host = ladspa.NewHost(f.types, ladspa.WithLoader(f.loader))
	_, err := f.host.Scan(libPath)
	require.NoError(t, err)
	f.net = graph.NewNetwork("test", f.eng, f.types)
	return f
}

func (f *fixture) add(t *testing.T, typeName, name string) *graph.Source {
	t.Helper()
	s, err := f.net.AddSource(typeName, name)
	require.NoError(t, err)
	return s
}

func (f *fixture) connect(t *testing.T, dst *graph.Source, in string, src *graph.Source, out string) {
	t.Helper()
	require.NoError(t, f.net.Connect(dst, in, src, out))
}

// drain renders until every committed transaction is applied and
// collected.
func (f *fixture) drain() {
	for f.eng.Pending() > 0 {
		f.eng.ProcessBlock()
	}
	f.eng.ProcessBlock()
	f.eng.CollectGarbage()
}

func output(src *graph.Source, ctx graph.ContextID, i int) []float32 {
	c, _ := src.Context(ctx)
	return c.Out.Output(i)
}

func constant(t *testing.T, f *fixture, name string, v float64) *graph.Source {
	t.Helper()
	s := f.add(t, modules.TypeConst, name)
	_, err := s.Set("value", ir.Real(v))
	require.NoError(t, err)
	return s
}
