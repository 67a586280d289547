package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/synthnet/internal/ir"
)

func sampleTrace() []TraceEvent {
	r := NewResult()
	r.AddTransactionTrace(1, []string{"integrate osc#1", "integrate out#1", "connect osc#1[0] -> out#1[0]"})
	r.AddPropertyTrace("osc", "freq", ir.Real(880), 2)
	r.AddTransactionTrace(2, []string{"access osc#1"})
	r.AddTransactionTrace(3, []string{"disconnect out#1[0]", "discard out#1", "discard osc#1"})
	return r.Trace
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Job: "access osc#1"}))

	err := assertTraceContains(trace, Assertion{Job: "access out#1"})
	require.Error(t, err)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertTraceContains, aerr.Type)
	assert.Contains(t, err.Error(), "Full trace:")
	assert.Contains(t, err.Error(), "@2 osc.freq = 880")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name string
		jobs []string
		ok   bool
	}{
		{"in order", []string{"integrate osc#1", "access osc#1", "discard osc#1"}, true},
		{"gaps allowed", []string{"integrate out#1", "discard osc#1"}, true},
		{"reversed", []string{"discard osc#1", "integrate osc#1"}, false},
		{"missing", []string{"integrate osc#1", "access out#1"}, false},
		{"repeated needs two", []string{"access osc#1", "access osc#1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceOrder(trace, Assertion{Jobs: tt.jobs})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Kind: "integrate", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Kind: "discard", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Kind: "jconnect", Count: 0}))

	err := assertTraceCount(trace, Assertion{Kind: "access", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 access jobs")
}

func TestCompareSamples(t *testing.T) {
	got := []float32{0.5, 0.25, 0}

	assert.NoError(t, compareSamples(AssertMaster, got, Assertion{Samples: []float64{0.5, 0.25}}))
	assert.NoError(t, compareSamples(AssertMaster, got, Assertion{Samples: []float64{0.51}, Tolerance: 0.02}))

	err := compareSamples(AssertMaster, got, Assertion{Samples: []float64{0.5, 0.3}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample[1]")

	err = compareSamples(AssertMaster, got, Assertion{Samples: []float64{0, 0, 0, 0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 4 samples")
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(ir.Real(1), ir.Int(1), 0))
	assert.True(t, valuesEqual(ir.Int(3), ir.Int(3), 0))
	assert.True(t, valuesEqual(ir.Str("saw"), ir.Str("saw"), 0))
	assert.True(t, valuesEqual(ir.Bool(true), ir.Bool(true), 0))
	assert.False(t, valuesEqual(ir.Str("saw"), ir.Str("sine"), 0))
	assert.False(t, valuesEqual(ir.Real(0.5), ir.Real(0.6), 0))
	assert.False(t, valuesEqual(ir.Str("1"), ir.Int(1), 0))
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	h := &Harness{result: NewResult()}

	errs := EvaluateAssertions(h, []Assertion{{Type: "final_state"}})

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "final_state"`)
}
