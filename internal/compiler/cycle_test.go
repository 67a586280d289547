package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/synthnet/internal/ir"
)

func chain(names []string, links ...[2]string) ir.NetworkSpec {
	spec := ir.NetworkSpec{Name: "n"}
	for _, name := range names {
		spec.Sources = append(spec.Sources, ir.SourceSpec{Name: name, Type: "amp"})
	}
	for _, l := range links {
		spec.Connections = append(spec.Connections, ir.ConnectionSpec{
			From: l[0], FromChannel: "out", To: l[1], ToChannel: "in",
		})
	}
	return spec
}

func TestFindCycles_Empty(t *testing.T) {
	assert.Empty(t, FindCycles(ir.NetworkSpec{}))
	assert.NotNil(t, FindCycles(ir.NetworkSpec{}))
}

func TestFindCycles_DAG(t *testing.T) {
	spec := chain([]string{"a", "b", "c", "d"},
		[2]string{"a", "b"}, [2]string{"a", "c"}, [2]string{"b", "d"}, [2]string{"c", "d"})

	assert.Empty(t, FindCycles(spec))
}

func TestFindCycles_SelfLoop(t *testing.T) {
	cycles := FindCycles(chain([]string{"a"}, [2]string{"a", "a"}))

	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "a"}, cycles[0].Path)
	assert.Equal(t, "source a feeds itself", cycles[0].Message)
}

func TestFindCycles_ThreeNodeLoop(t *testing.T) {
	spec := chain([]string{"a", "b", "c", "out"},
		[2]string{"a", "b"}, [2]string{"b", "c"}, [2]string{"c", "a"}, [2]string{"c", "out"})

	cycles := FindCycles(spec)

	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "b", "c", "a"}, cycles[0].Path)
	assert.Equal(t, "feedback loop: a -> b -> c -> a", cycles[0].Message)
}

func TestFindCycles_IndependentLoops(t *testing.T) {
	spec := chain([]string{"a", "b", "x", "y"},
		[2]string{"a", "b"}, [2]string{"b", "a"}, [2]string{"x", "y"}, [2]string{"y", "x"})

	cycles := FindCycles(spec)

	require.Len(t, cycles, 2)
	assert.Equal(t, []string{"a", "b", "a"}, cycles[0].Path)
	assert.Equal(t, []string{"x", "y", "x"}, cycles[1].Path)
}

func TestFindCycles_Deterministic(t *testing.T) {
	spec := chain([]string{"a", "b", "c"},
		[2]string{"a", "b"}, [2]string{"b", "c"}, [2]string{"c", "a"})
	first := FindCycles(spec)

	for i := 0; i < 20; i++ {
		assert.Equal(t, first, FindCycles(spec))
	}
}

func TestBuildDependencyGraph_DedupsParallelLinks(t *testing.T) {
	spec := chain([]string{"a", "b"}, [2]string{"a", "b"})
	spec.Connections = append(spec.Connections, ir.ConnectionSpec{From: "a", FromChannel: "out", To: "b", ToChannel: "side"})

	graph, order := buildDependencyGraph(spec)

	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, []string{"b"}, graph["a"])
}

func TestReconstructCyclePath_Empty(t *testing.T) {
	assert.Equal(t, []string{}, reconstructCyclePath(nil, dependencyGraph{}))
}
