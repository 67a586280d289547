package harness

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/roach88/synthnet/internal/ir"
)

// defaultTolerance is the allowed absolute sample error when an assertion
// sets none.
const defaultTolerance = 1e-6

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context; nil for state assertions
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) == 0 {
		return buf.String()
	}

	// Full trace for context
	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		switch event.Type {
		case EventTransaction:
			fmt.Fprintf(&buf, "  [%d] @%d %s\n", i+1, event.Stamp, strings.Join(event.Jobs, ", "))
		case EventProperty:
			fmt.Fprintf(&buf, "  [%d] @%d %s.%s = %v\n", i+1, event.Stamp, event.Source, event.Property, event.Value)
		}
	}

	return buf.String()
}

// assertTraceContains checks that some transaction carries the job.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Type != EventTransaction {
			continue
		}
		for _, job := range event.Jobs {
			if job == assertion.Job {
				return nil
			}
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("job %q", assertion.Job),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the jobs appear in the specified order.
// Jobs don't need to be consecutive (intervening jobs are allowed), and a
// repeated job matches a later occurrence.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	var jobs []string
	for _, event := range trace {
		if event.Type == EventTransaction {
			jobs = append(jobs, event.Jobs...)
		}
	}

	next := 0
	for _, job := range jobs {
		if next < len(assertion.Jobs) && job == assertion.Jobs[next] {
			next++
		}
	}
	if next == len(assertion.Jobs) {
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("jobs in order: %v", assertion.Jobs),
		Actual:   fmt.Sprintf("%q not found after %v", assertion.Jobs[next], assertion.Jobs[:next]),
		Trace:    trace,
	}
}

// assertTraceCount checks that jobs of the kind appear exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type != EventTransaction {
			continue
		}
		for _, job := range event.Jobs {
			if kind, _, _ := strings.Cut(job, " "); kind == assertion.Kind {
				count++
			}
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s jobs", assertion.Count, assertion.Kind),
			Actual:   fmt.Sprintf("%d %s jobs", count, assertion.Kind),
			Trace:    trace,
		}
	}

	return nil
}

// assertOutput compares the leading samples of a module output with the
// expected samples.
func (h *Harness) assertOutput(assertion Assertion) error {
	src, err := h.source(assertion.Source)
	if err != nil {
		return err
	}
	ctx, ok := h.contexts[assertion.Context]
	if !ok {
		return fmt.Errorf("unknown context alias %q", assertion.Context)
	}
	c, ok := src.Context(ctx)
	if !ok || c.Out == nil {
		return &AssertionError{
			Type:     AssertOutput,
			Expected: fmt.Sprintf("%s to produce output in context %s", assertion.Source, assertion.Context),
			Actual:   "no output module",
		}
	}
	channel := assertion.Channel
	if channel == "" {
		channel = "out"
	}
	idx, err := src.OChannel(channel)
	if err != nil {
		return err
	}
	return compareSamples(AssertOutput, c.Out.Output(idx), assertion)
}

// assertMaster compares the leading samples of the last rendered master
// bus block with the expected samples.
func (h *Harness) assertMaster(assertion Assertion) error {
	c := 0
	if assertion.Channel == "right" {
		c = 1
	}
	return compareSamples(AssertMaster, h.eng.MasterBus(c), assertion)
}

func compareSamples(kind string, got []float32, assertion Assertion) error {
	tol := assertion.Tolerance
	if tol == 0 {
		tol = defaultTolerance
	}
	if len(got) < len(assertion.Samples) {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("at least %d samples", len(assertion.Samples)),
			Actual:   fmt.Sprintf("%d samples", len(got)),
		}
	}
	for i, want := range assertion.Samples {
		if math.Abs(float64(got[i])-want) > tol {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("sample[%d] = %g (±%g)", i, want, tol),
				Actual:   fmt.Sprintf("sample[%d] = %g", i, got[i]),
			}
		}
	}
	return nil
}

// assertProperty compares the control-side value of a property.
// Numeric values compare as reals, so 1 matches 1.0.
func (h *Harness) assertProperty(assertion Assertion) error {
	src, err := h.source(assertion.Source)
	if err != nil {
		return err
	}
	got, err := src.Get(assertion.Property)
	if err != nil {
		return err
	}
	want, err := ir.FromAny(assertion.Value)
	if err != nil {
		return fmt.Errorf("property %s.%s: %w", assertion.Source, assertion.Property, err)
	}
	if valuesEqual(got, want, assertion.Tolerance) {
		return nil
	}
	return &AssertionError{
		Type:     AssertProperty,
		Expected: fmt.Sprintf("%s.%s = %v", assertion.Source, assertion.Property, want),
		Actual:   fmt.Sprintf("%s.%s = %v", assertion.Source, assertion.Property, got),
	}
}

func valuesEqual(got, want ir.Value, tol float64) bool {
	gf, gok := ir.AsFloat(got)
	wf, wok := ir.AsFloat(want)
	if gok && wok {
		if tol == 0 {
			tol = defaultTolerance
		}
		return math.Abs(gf-wf) <= tol
	}
	return reflect.DeepEqual(got, want)
}

// assertContexts counts the live contexts of a source, or of the network
// when no source is named.
func (h *Harness) assertContexts(assertion Assertion) error {
	n := len(h.net.Contexts())
	what := "network " + h.net.Name()
	if assertion.Source != "" {
		src, err := h.source(assertion.Source)
		if err != nil {
			return err
		}
		n = len(src.Contexts())
		what = "source " + assertion.Source
	}
	if n != assertion.Count {
		return &AssertionError{
			Type:     AssertContexts,
			Expected: fmt.Sprintf("%s to have %d contexts", what, assertion.Count),
			Actual:   fmt.Sprintf("%d contexts", n),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the harness state
// and the trace recorded so far.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(h *Harness, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(h.result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(h.result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(h.result.Trace, assertion)
		case AssertOutput:
			err = h.assertOutput(assertion)
		case AssertMaster:
			err = h.assertMaster(assertion)
		case AssertProperty:
			err = h.assertProperty(assertion)
		case AssertContexts:
			err = h.assertContexts(assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
