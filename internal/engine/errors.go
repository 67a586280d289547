package engine

import (
	"errors"
	"fmt"
)

// ErrRunning is returned by Run when another goroutine is already driving
// the engine's blocks.
var ErrRunning = errors.New("engine already running")

// ConsistencyError reports a violated graph invariant: an out-of-range
// stream, a double connect, a discard with live consumers, a job against a
// module that is not integrated.
//
// These originate only from internal logic, never from external input, and
// there is no safe way to roll back a half-applied transaction in the middle
// of rendering. The engine therefore panics with a *ConsistencyError instead
// of returning it.
type ConsistencyError struct {
	// Op is the job kind (or phase) that detected the violation.
	Op string

	// Module is the label of the offending module, if any.
	Module string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	if e.Module != "" {
		return fmt.Sprintf("graph consistency: %s %s: %s", e.Op, e.Module, e.Message)
	}
	return fmt.Sprintf("graph consistency: %s: %s", e.Op, e.Message)
}

// IsConsistencyError returns true if err (or a recovered panic value) is a
// *ConsistencyError. Uses errors.As to handle wrapped errors.
func IsConsistencyError(v any) bool {
	err, ok := v.(error)
	if !ok {
		return false
	}
	var ce *ConsistencyError
	return errors.As(err, &ce)
}

// assertf panics with a *ConsistencyError.
func assertf(op string, m *Module, format string, args ...any) {
	label := ""
	if m != nil {
		label = m.Label()
	}
	panic(&ConsistencyError{Op: op, Module: label, Message: fmt.Sprintf(format, args...)})
}
