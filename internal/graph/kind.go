package graph

import (
	"github.com/roach88/synthnet/internal/engine"
	"github.com/roach88/synthnet/internal/ir"
)

// Kind is the per-source behavior of a source type: the vtable plus
// whatever payload the type needs (a plugin handle, a child network).
//
// Setup declares channels and properties once, right after the source is
// created. CreateContext must build exactly the modules one context needs,
// register them with src.RegisterContext and append their Integrate jobs to
// trans. It runs on the control path and must not touch realtime state.
type Kind interface {
	Setup(src *Source) error
	CreateContext(src *Source, ctx ContextID, trans *engine.Trans) error
}

// Preparer is implemented by kinds that acquire resources for the prepared
// lifetime of a network (native libraries, port names).
// Reset runs after every context has been dismissed.
type Preparer interface {
	Prepare(src *Source) error
	Reset(src *Source)
}

// Remover is implemented by kinds that registered network-wide hooks in
// Setup. Remove runs when the source leaves its network.
type Remover interface {
	Remove(src *Source)
}

// ContextConnector overrides DefaultConnectContext.
type ContextConnector interface {
	ConnectContext(src *Source, ctx ContextID, trans *engine.Trans)
}

// ContextDismisser overrides DefaultDismissContext. Implementations must
// keep the guard: dismissing an unregistered context is a no-op.
type ContextDismisser interface {
	DismissContext(src *Source, ctx ContextID, trans *engine.Trans)
}

// ContextAborter is implemented by kinds that hold bookkeeping outside the
// context registry. AbortContext undoes a CreateContext whose transaction
// will be dismissed, without emitting jobs.
type ContextAborter interface {
	AbortContext(src *Source, ctx ContextID)
}

// PropertyUpdater is implemented by kinds whose modules follow property
// changes while prepared. UpdateProperty returns the closure applied to
// every context's control module, or nil when nothing needs to reach the
// realtime side. It may append its own jobs to trans.
type PropertyUpdater interface {
	UpdateProperty(src *Source, p *Property, v ir.Value, trans *engine.Trans) engine.AccessFunc
}

// DefaultConnectContext connects every input channel of src in context ctx
// to the output module of the upstream source for the same context.
func DefaultConnectContext(src *Source, ctx ContextID, trans *engine.Trans) {
	c := src.mustContext("connect-context", ctx)
	for i := range src.inputs {
		for _, l := range src.inputs[i].links {
			trans.Add(src.linkJob(c, i, l, ctx, true))
		}
	}
}

// DefaultDismissContext disconnects every input stream src connected in
// context ctx, then discards the context's modules and drops the registry
// entry. It is a no-op when ctx is not registered.
func DefaultDismissContext(src *Source, ctx ContextID, trans *engine.Trans) {
	c, ok := src.contexts[ctx]
	if !ok {
		return
	}
	for i := range src.inputs {
		for _, l := range src.inputs[i].links {
			trans.Add(src.linkJob(c, i, l, ctx, false))
		}
	}
	for _, m := range c.Modules {
		trans.Add(engine.Discard(m))
	}
	delete(src.contexts, ctx)
}
