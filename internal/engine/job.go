package engine

import "fmt"

// JobKind distinguishes the job variants a transaction can carry.
type JobKind int

const (
	// JobIntegrate adds a module to the realtime graph.
	JobIntegrate JobKind = iota + 1
	// JobDiscard removes a module from the realtime graph.
	JobDiscard
	// JobConnect connects an output stream to a single-connection input.
	JobConnect
	// JobDisconnect clears a single-connection input.
	JobDisconnect
	// JobJConnect adds a connection to a joint input stream.
	JobJConnect
	// JobJDisconnect removes a connection from a joint input stream.
	JobJDisconnect
	// JobAccess runs a closure against a module's realtime state.
	JobAccess
	// JobFlowAccess runs a closure at the first block boundary at or after Tick.
	JobFlowAccess
)

// String returns the lower-case job kind name used in traces.
func (k JobKind) String() string {
	switch k {
	case JobIntegrate:
		return "integrate"
	case JobDiscard:
		return "discard"
	case JobConnect:
		return "connect"
	case JobDisconnect:
		return "disconnect"
	case JobJConnect:
		return "jconnect"
	case JobJDisconnect:
		return "jdisconnect"
	case JobAccess:
		return "access"
	case JobFlowAccess:
		return "flow-access"
	default:
		return fmt.Sprintf("job(%d)", int(k))
	}
}

// AccessFunc mutates a module's realtime state. It runs on the realtime side.
type AccessFunc func(m *Module)

// Job is one graph mutation request. Build jobs with the constructors below;
// the zero value is invalid.
type Job struct {
	Kind JobKind

	// Module is the target module (the consumer for connection jobs).
	Module *Module
	// Stream is the target input (or joint input) stream.
	Stream int

	// Src and SrcStream name the producer for connection jobs.
	Src       *Module
	SrcStream int

	// Tick is the frame tick for flow jobs.
	Tick int64

	// Access runs on the realtime side for access and flow jobs.
	Access AccessFunc
	// Free runs on the control side after the job has been applied.
	Free func()
}

// Integrate returns a job that adds m to the realtime graph.
func Integrate(m *Module) *Job {
	return &Job{Kind: JobIntegrate, Module: m}
}

// Discard returns a job that removes m from the realtime graph.
// The module's outputs must not feed any other module when it is applied.
func Discard(m *Module) *Job {
	return &Job{Kind: JobDiscard, Module: m}
}

// Connect returns a job that feeds src's output srcStream into dst's input dstStream.
func Connect(src *Module, srcStream int, dst *Module, dstStream int) *Job {
	return &Job{Kind: JobConnect, Src: src, SrcStream: srcStream, Module: dst, Stream: dstStream}
}

// Disconnect returns a job that clears dst's input dstStream.
func Disconnect(dst *Module, dstStream int) *Job {
	return &Job{Kind: JobDisconnect, Module: dst, Stream: dstStream}
}

// JConnect returns a job that adds src's output srcStream to dst's joint stream jstream.
func JConnect(src *Module, srcStream int, dst *Module, jstream int) *Job {
	return &Job{Kind: JobJConnect, Src: src, SrcStream: srcStream, Module: dst, Stream: jstream}
}

// JDisconnect returns a job that removes src's output srcStream from dst's joint stream jstream.
func JDisconnect(src *Module, srcStream int, dst *Module, jstream int) *Job {
	return &Job{Kind: JobJDisconnect, Src: src, SrcStream: srcStream, Module: dst, Stream: jstream}
}

// Access returns a job that runs fn against m. If free is non-nil it runs on
// the control side once the job has been applied; a fan-out over several
// modules tags only the last job with free to sequence cleanup after all of them.
func Access(m *Module, fn AccessFunc, free func()) *Job {
	return &Job{Kind: JobAccess, Module: m, Access: fn, Free: free}
}

// FlowAccess returns a job that runs fn against m at the first block boundary
// whose frame tick is at or after tick.
func FlowAccess(m *Module, tick int64, fn AccessFunc, free func()) *Job {
	return &Job{Kind: JobFlowAccess, Module: m, Tick: tick, Access: fn, Free: free}
}

// String renders the job for traces, e.g. "connect osc#1[0] -> amp#1[0]".
func (j *Job) String() string {
	switch j.Kind {
	case JobConnect, JobJConnect, JobJDisconnect:
		return fmt.Sprintf("%s %s[%d] -> %s[%d]", j.Kind, j.Src.Label(), j.SrcStream, j.Module.Label(), j.Stream)
	case JobDisconnect:
		return fmt.Sprintf("%s %s[%d]", j.Kind, j.Module.Label(), j.Stream)
	case JobFlowAccess:
		return fmt.Sprintf("%s %s @%d", j.Kind, j.Module.Label(), j.Tick)
	default:
		return fmt.Sprintf("%s %s", j.Kind, j.Module.Label())
	}
}
