package harness

import "github.com/roach88/synthnet/internal/ir"

// Trace event types.
const (
	EventTransaction = "transaction"
	EventProperty    = "property"
)

// TraceEvent is either a drained transaction or a property notification.
type TraceEvent struct {
	Type  string `json:"type"` // "transaction" or "property"
	Stamp int64  `json:"stamp"`

	// Jobs of a transaction, rendered as in engine.Job.String.
	Jobs []string `json:"jobs,omitempty"`

	// Property notification fields.
	Source   string   `json:"source,omitempty"`
	Property string   `json:"property,omitempty"`
	Value    ir.Value `json:"value,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step and assertion succeeded.
	Pass bool `json:"pass"`

	// Trace contains transactions and property notifications in the
	// order the control side observed them.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed steps and assertions.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTransactionTrace adds a drained transaction to the trace.
func (r *Result) AddTransactionTrace(stamp int64, jobs []string) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:  EventTransaction,
		Stamp: stamp,
		Jobs:  jobs,
	})
}

// AddPropertyTrace adds a property notification to the trace.
func (r *Result) AddPropertyTrace(source, property string, v ir.Value, stamp int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:     EventProperty,
		Stamp:    stamp,
		Source:   source,
		Property: property,
		Value:    v,
	})
}

// Jobs returns every job of every transaction in the trace, in order.
func (r *Result) Jobs() []string {
	var jobs []string
	for _, e := range r.Trace {
		if e.Type == EventTransaction {
			jobs = append(jobs, e.Jobs...)
		}
	}
	return jobs
}
