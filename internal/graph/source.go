package graph

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/synthnet/internal/engine"
	"github.com/roach88/synthnet/internal/ir"
)

// ContextID identifies one instantiation of a network: a polyphonic voice
// or one cloned branch of a sub-network. IDs are allocated per network.
type ContextID int

// Channel is one input or output channel of a source.
type Channel struct {
	Ident string
	Label string

	// Joint input channels accept any number of connections and sum them.
	Joint bool

	// stream is the module stream index: the input or joint stream for
	// inputs (counted separately), the output stream for outputs.
	stream int
}

// Stream returns the module stream index the channel maps to.
func (c Channel) Stream() int { return c.stream }

// Link is one connection into an input channel.
type Link struct {
	Source   *Source
	OChannel int
}

type inputChannel struct {
	Channel
	links []Link
}

// Context is one entry of a source's context registry: the modules that
// represent the source in one context.
type Context struct {
	ID ContextID

	// In receives the input channels; Out produces the output channels.
	// Either is nil when the source has no channels on that side.
	In  *engine.Module
	Out *engine.Module

	// Control receives property Access jobs. Defaults to Out, else In.
	Control *engine.Module

	// Modules lists every module of the context in discard order.
	// Defaults to In and Out.
	Modules []*engine.Module

	// Data is kind-specific per-context state.
	Data any
}

// Source is a declarative audio node: ordered input and output channels,
// a property set, and a context registry mapping each live context to the
// modules representing the source in it.
//
// Sources are owned by a Network and mutated only by its control path.
type Source struct {
	name     string
	typeName string
	kind     Kind
	net      *Network

	inputs   []inputChannel
	outputs  []Channel
	nistream int
	njstream int

	props    *PropertySet
	contexts map[ContextID]*Context

	resetHooks map[int]func()
	nextHook   int
}

// Name returns the source name, unique within its network.
func (s *Source) Name() string { return s.name }

// TypeName returns the registered type the source was created from.
func (s *Source) TypeName() string { return s.typeName }

// Kind returns the source's type behavior.
func (s *Source) Kind() Kind { return s.kind }

// Network returns the owning network.
func (s *Source) Network() *Network { return s.net }

// Engine returns the engine of the owning network.
func (s *Source) Engine() *engine.Engine { return s.net.engine }

// Prepared reports whether the owning network is prepared.
func (s *Source) Prepared() bool { return s.net.prepared }

// Properties returns the property set.
func (s *Source) Properties() *PropertySet { return s.props }

// AddIChannel declares an input channel and returns its index.
// Only valid during Kind.Setup.
func (s *Source) AddIChannel(ident, label string, joint bool) int {
	ch := Channel{Ident: ident, Label: label, Joint: joint}
	if joint {
		ch.stream = s.njstream
		s.njstream++
	} else {
		ch.stream = s.nistream
		s.nistream++
	}
	s.inputs = append(s.inputs, inputChannel{Channel: ch})
	return len(s.inputs) - 1
}

// AddOChannel declares an output channel and returns its index.
// Only valid during Kind.Setup.
func (s *Source) AddOChannel(ident, label string) int {
	s.outputs = append(s.outputs, Channel{Ident: ident, Label: label, stream: len(s.outputs)})
	return len(s.outputs) - 1
}

// IChannels returns the input channels in order.
func (s *Source) IChannels() []Channel {
	out := make([]Channel, len(s.inputs))
	for i, in := range s.inputs {
		out[i] = in.Channel
	}
	return out
}

// OChannels returns the output channels in order.
func (s *Source) OChannels() []Channel { return slices.Clone(s.outputs) }

// NIStreams returns the number of single-connection input streams.
func (s *Source) NIStreams() int { return s.nistream }

// NJStreams returns the number of joint input streams.
func (s *Source) NJStreams() int { return s.njstream }

// NOStreams returns the number of output streams.
func (s *Source) NOStreams() int { return len(s.outputs) }

// IChannel returns the index of the input channel called ident.
func (s *Source) IChannel(ident string) (int, error) {
	for i, in := range s.inputs {
		if in.Ident == ident {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%s: input %q: %w", s.name, ident, ErrNoChannel)
}

// OChannel returns the index of the output channel called ident.
func (s *Source) OChannel(ident string) (int, error) {
	for i, out := range s.outputs {
		if out.Ident == ident {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%s: output %q: %w", s.name, ident, ErrNoChannel)
}

// InputLinks returns the connections into input channel i.
func (s *Source) InputLinks(i int) []Link { return slices.Clone(s.inputs[i].links) }

// Get returns the cached value of a property.
func (s *Source) Get(name string) (ir.Value, error) {
	p, ok := s.props.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", s.name, name, ErrNoProperty)
	}
	return p.value, nil
}

// Set writes a property. The value is coerced and clamped to the
// property's kind and bounds. While the network is prepared the change
// reaches every context's module through Access jobs in one transaction;
// the returned stamp is that transaction's commit stamp (0 when nothing
// was committed).
func (s *Source) Set(name string, v ir.Value) (int64, error) {
	p, ok := s.props.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("%s.%s: %w", s.name, name, ErrNoProperty)
	}
	nv, err := p.Coerce(v)
	if err != nil {
		return 0, fmt.Errorf("%s.%s: %w", s.name, name, err)
	}
	if nv == p.value {
		return 0, nil
	}
	if !s.net.prepared {
		s.UpdateCache(p, nv, 0)
		return 0, nil
	}
	trans := s.net.engine.Open()
	s.QueueUpdate(trans, p, nv, nil)
	stamp := trans.Commit()
	s.UpdateCache(p, nv, stamp)
	return stamp, nil
}

// QueueUpdate appends one Access job per context carrying v to the modules
// of the source. free, if set, is attached to the last job only, so it
// runs once after every context has seen the value. Returns the number of
// jobs added; with zero jobs free is not retained.
func (s *Source) QueueUpdate(trans *engine.Trans, p *Property, v ir.Value, free func()) int {
	upd, ok := s.kind.(PropertyUpdater)
	if !ok {
		return 0
	}
	fn := upd.UpdateProperty(s, p, v, trans)
	if fn == nil {
		return 0
	}
	ids := s.Contexts()
	for i, id := range ids {
		var f func()
		if i == len(ids)-1 {
			f = free
		}
		trans.Add(engine.Access(s.contexts[id].Control, fn, f))
	}
	return len(ids)
}

// UpdateCache stores v as the control-side value of p and notifies the
// network's property observers with the stamp that made it visible.
func (s *Source) UpdateCache(p *Property, v ir.Value, stamp int64) {
	p.value = v
	s.net.notifyProperty(s, p, stamp)
}

// RegisterContext adds c to the context registry. Called from
// Kind.CreateContext; registering a context twice is a consistency error.
func (s *Source) RegisterContext(c *Context) {
	if _, dup := s.contexts[c.ID]; dup {
		consistency("register-context", s.name, "context %d registered twice", c.ID)
	}
	if len(c.Modules) == 0 {
		if c.In != nil {
			c.Modules = append(c.Modules, c.In)
		}
		if c.Out != nil && c.Out != c.In {
			c.Modules = append(c.Modules, c.Out)
		}
	}
	if c.Control == nil {
		c.Control = c.Out
		if c.Control == nil {
			c.Control = c.In
		}
	}
	if len(c.Modules) == 0 {
		consistency("register-context", s.name, "context %d has no modules", c.ID)
	}
	s.contexts[c.ID] = c
}

// UnregisterContext drops ctx from the registry without emitting jobs.
func (s *Source) UnregisterContext(ctx ContextID) {
	delete(s.contexts, ctx)
}

// Context returns the registry entry for ctx.
func (s *Source) Context(ctx ContextID) (*Context, bool) {
	c, ok := s.contexts[ctx]
	return c, ok
}

// Contexts returns the registered context ids in ascending order.
func (s *Source) Contexts() []ContextID {
	return slices.Sorted(maps.Keys(s.contexts))
}

func (s *Source) mustContext(op string, ctx ContextID) *Context {
	c, ok := s.contexts[ctx]
	if !ok {
		consistency(op, s.name, "context %d is not registered", ctx)
	}
	return c
}

// linkJob builds the job that makes (connect) or breaks the connection l
// into input channel i in context ctx.
func (s *Source) linkJob(c *Context, i int, l Link, ctx ContextID, connect bool) *engine.Job {
	up := l.Source.mustContext("link", ctx)
	ch := s.inputs[i].Channel
	switch {
	case ch.Joint && connect:
		return engine.JConnect(up.Out, l.OChannel, c.In, ch.stream)
	case ch.Joint:
		return engine.JDisconnect(up.Out, l.OChannel, c.In, ch.stream)
	case connect:
		return engine.Connect(up.Out, l.OChannel, c.In, ch.stream)
	default:
		return engine.Disconnect(c.In, ch.stream)
	}
}

// OnReset registers fn to run once when the network is unprepared, before
// the kind's own Reset. The returned cancel removes fn.
func (s *Source) OnReset(fn func()) (cancel func()) {
	id := s.nextHook
	s.nextHook++
	s.resetHooks[id] = fn
	return func() { delete(s.resetHooks, id) }
}

func (s *Source) runResetHooks() {
	for _, id := range slices.Sorted(maps.Keys(s.resetHooks)) {
		fn := s.resetHooks[id]
		delete(s.resetHooks, id)
		fn()
	}
}
