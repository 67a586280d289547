package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func integrateAll(e *Engine, jobs ...*Job) {
	tr := e.Open()
	tr.Add(jobs...)
	tr.Commit()
	e.ProcessBlock()
}

func labels(ms []*Module) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Label()
	}
	return out
}

func TestSchedule_ProducersBeforeConsumers(t *testing.T) {
	e := New(WithBlockSize(2))
	// Created consumer-first so ids alone would give the wrong order.
	amp2 := e.NewModule(gainClass, &gainState{gain: 2}, "amp2")
	amp1 := e.NewModule(gainClass, &gainState{gain: 2}, "amp1")
	src := e.NewModule(constClass(1), nil, "src")

	integrateAll(e,
		Integrate(amp2), Integrate(amp1), Integrate(src),
		Connect(src, 0, amp1, 0), Connect(amp1, 0, amp2, 0),
	)

	assert.Equal(t, []string{"src", "amp1", "amp2"}, labels(e.schedule))
	assert.Equal(t, []float32{4, 4}, amp2.Output(0))
}

func TestSchedule_CostBatchingWithinLevel(t *testing.T) {
	e := New(WithBlockSize(2))
	heavy := &Class{Name: "heavy", NOStreams: 1, Cost: CostExpensive, Process: func(*Module, int) {}}
	cheap := e.NewModule(constClass(1), nil, "cheap")
	normal := e.NewModule(&Class{Name: "n", NOStreams: 1, Cost: CostNormal, Process: func(*Module, int) {}}, nil, "normal")
	expensive := e.NewModule(heavy, nil, "expensive")

	integrateAll(e, Integrate(cheap), Integrate(normal), Integrate(expensive))

	assert.Equal(t, []string{"expensive", "normal", "cheap"}, labels(e.schedule))
}

func TestSchedule_DeferredModulesListedSeparately(t *testing.T) {
	e := New(WithBlockSize(2))
	src := e.NewModule(constClass(1), nil, "src")
	out := e.NewModule(sinkClass, nil, "out")

	integrateAll(e, Integrate(src), Integrate(out), Connect(src, 0, out, 0))

	assert.Equal(t, []string{"out"}, labels(e.deferred))
	assert.Equal(t, []float32{1, 1}, e.MasterBus(0))
	assert.Equal(t, []float32{0, 0}, e.MasterBus(1))
}

func TestSchedule_CyclePanics(t *testing.T) {
	e := New(WithBlockSize(2))
	a := e.NewModule(gainClass, &gainState{gain: 1}, "a")
	b := e.NewModule(gainClass, &gainState{gain: 1}, "b")

	tr := e.Open()
	tr.Add(Integrate(a), Integrate(b), Connect(a, 0, b, 0), Connect(b, 0, a, 0))
	tr.Commit()

	requireConsistencyPanic(t, e.ProcessBlock)
}

func TestCost_String(t *testing.T) {
	assert.Equal(t, "cheap", CostCheap.String())
	assert.Equal(t, "normal", CostNormal.String())
	assert.Equal(t, "expensive", CostExpensive.String())
}

func TestPassThrough_CopiesConnectedInputs(t *testing.T) {
	e := New(WithBlockSize(2))
	src := e.NewModule(constClass(7), nil, "src")
	pass := e.NewModule(PassThrough("pass", 2), nil, "pass")

	integrateAll(e, Integrate(src), Integrate(pass), Connect(src, 0, pass, 1))

	assert.Equal(t, []float32{0, 0}, pass.Output(0))
	assert.Equal(t, []float32{7, 7}, pass.Output(1))
}
