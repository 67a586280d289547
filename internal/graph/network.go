package graph

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/synthnet/internal/engine"
)

// PropertyObserver is notified after a property's control-side value
// changed. stamp is the commit stamp of the transaction that carried the
// value to the realtime side, or 0 when the network was not prepared.
type PropertyObserver func(src *Source, p *Property, stamp int64)

// Option configures a Network.
type Option func(*Network)

// WithLogger sets the network logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(n *Network) {
		n.log = l
	}
}

// Network is a set of sources and the connections between their channels.
//
// The network scopes everything that would otherwise be process-global:
// its virtual port registry, its context ids and its observers live and
// die with it.
//
// Lifecycle:
//   - unprepared: sources can be added, removed and connected freely
//   - prepared (Prepare): structure is frozen (ErrPrepared), contexts can be
//     created and dismissed, connections and properties change live through
//     transactions
//   - Unprepare dismisses every context and releases prepared resources
//
// A Network is not safe for concurrent use: one control-path mutator at a time.
type Network struct {
	name   string
	engine *engine.Engine
	types  *TypeRegistry
	log    *slog.Logger

	sources []*Source
	byName  map[string]*Source
	ports   *PortRegistry

	prepared bool
	contexts map[ContextID]struct{}
	nextCtx  ContextID

	observers map[int]PropertyObserver
	nextObs   int
}

// NewNetwork creates an empty, unprepared network rendering on eng.
func NewNetwork(name string, eng *engine.Engine, types *TypeRegistry, opts ...Option) *Network {
	n := &Network{
		name:      name,
		engine:    eng,
		types:     types,
		log:       slog.Default(),
		byName:    make(map[string]*Source),
		ports:     NewPortRegistry(),
		contexts:  make(map[ContextID]struct{}),
		nextCtx:   1,
		observers: make(map[int]PropertyObserver),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Name returns the network name.
func (n *Network) Name() string { return n.name }

// Engine returns the engine the network renders on.
func (n *Network) Engine() *engine.Engine { return n.engine }

// Types returns the type registry sources are created from.
func (n *Network) Types() *TypeRegistry { return n.types }

// Logger returns the network logger.
func (n *Network) Logger() *slog.Logger { return n.log }

// Ports returns the network's virtual port registry.
func (n *Network) Ports() *PortRegistry { return n.ports }

// Prepared reports whether the network is prepared.
func (n *Network) Prepared() bool { return n.prepared }

// Sources returns the sources in insertion order.
func (n *Network) Sources() []*Source { return slices.Clone(n.sources) }

// Source returns the source called name.
func (n *Network) Source(name string) (*Source, bool) {
	s, ok := n.byName[name]
	return s, ok
}

// Contexts returns the live context ids in ascending order.
func (n *Network) Contexts() []ContextID {
	return slices.Sorted(maps.Keys(n.contexts))
}

// AddSource creates a source of the registered type typeName. An empty name
// is replaced by "<type>-<k>" with the first free k.
func (n *Network) AddSource(typeName, name string) (*Source, error) {
	if n.prepared {
		return nil, fmt.Errorf("add source %q: %w", name, ErrPrepared)
	}
	t, ok := n.types.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("add source %q: %q: %w", name, typeName, ErrUnknownType)
	}
	if name == "" {
		for k := 1; ; k++ {
			name = fmt.Sprintf("%s-%d", typeName, k)
			if _, taken := n.byName[name]; !taken {
				break
			}
		}
	}
	if _, dup := n.byName[name]; dup {
		return nil, fmt.Errorf("add source %q: %w", name, ErrDuplicateName)
	}
	s := &Source{
		name:       name,
		typeName:   typeName,
		kind:       t.New(),
		net:        n,
		props:      newPropertySet(),
		contexts:   make(map[ContextID]*Context),
		resetHooks: make(map[int]func()),
	}
	if err := s.kind.Setup(s); err != nil {
		return nil, fmt.Errorf("add source %q: setup %s: %w", name, typeName, err)
	}
	n.sources = append(n.sources, s)
	n.byName[name] = s
	n.log.Debug("source added", "network", n.name, "source", name, "type", typeName)
	return s, nil
}

// RemoveSource deletes a source and every connection from or to it.
func (n *Network) RemoveSource(name string) error {
	if n.prepared {
		return fmt.Errorf("remove source %q: %w", name, ErrPrepared)
	}
	s, ok := n.byName[name]
	if !ok {
		return fmt.Errorf("remove source %q: %w", name, ErrNoSource)
	}
	for _, other := range n.sources {
		for i := range other.inputs {
			other.inputs[i].links = slices.DeleteFunc(other.inputs[i].links, func(l Link) bool {
				return l.Source == s
			})
		}
	}
	if r, ok := s.kind.(Remover); ok {
		r.Remove(s)
	}
	n.sources = slices.DeleteFunc(n.sources, func(x *Source) bool { return x == s })
	delete(n.byName, name)
	n.log.Debug("source removed", "network", n.name, "source", name)
	return nil
}

// Connect feeds output channel ochannel of src into input channel ichannel
// of dst. Non-joint inputs take one connection. While prepared, every live
// context is connected in one transaction.
func (n *Network) Connect(dst *Source, ichannel string, src *Source, ochannel string) error {
	i, o, err := n.resolve(dst, ichannel, src, ochannel)
	if err != nil {
		return err
	}
	in := &dst.inputs[i]
	l := Link{Source: src, OChannel: o}
	if (!in.Joint && len(in.links) > 0) || slices.Contains(in.links, l) {
		return fmt.Errorf("connect %s.%s: %w", dst.name, ichannel, ErrChannelBusy)
	}
	if n.dependsOn(src, dst) {
		return fmt.Errorf("connect %s.%s -> %s.%s: %w", src.name, ochannel, dst.name, ichannel, ErrCycle)
	}
	in.links = append(in.links, l)

	if n.prepared {
		trans := n.engine.Open()
		for _, ctx := range n.Contexts() {
			trans.Add(dst.linkJob(dst.mustContext("connect", ctx), i, l, ctx, true))
		}
		trans.Commit()
	}
	n.log.Debug("sources connected", "network", n.name, "from", src.name+"."+ochannel, "to", dst.name+"."+ichannel)
	return nil
}

// Disconnect removes a connection made by Connect.
func (n *Network) Disconnect(dst *Source, ichannel string, src *Source, ochannel string) error {
	i, o, err := n.resolve(dst, ichannel, src, ochannel)
	if err != nil {
		return err
	}
	in := &dst.inputs[i]
	l := Link{Source: src, OChannel: o}
	k := slices.Index(in.links, l)
	if k < 0 {
		return fmt.Errorf("disconnect %s.%s: %w", dst.name, ichannel, ErrNotConnected)
	}
	if n.prepared {
		trans := n.engine.Open()
		for _, ctx := range n.Contexts() {
			trans.Add(dst.linkJob(dst.mustContext("disconnect", ctx), i, l, ctx, false))
		}
		trans.Commit()
	}
	in.links = slices.Delete(in.links, k, k+1)
	return nil
}

func (n *Network) resolve(dst *Source, ichannel string, src *Source, ochannel string) (int, int, error) {
	if dst.net != n || src.net != n {
		return 0, 0, ErrForeignNetwork
	}
	i, err := dst.IChannel(ichannel)
	if err != nil {
		return 0, 0, err
	}
	o, err := src.OChannel(ochannel)
	if err != nil {
		return 0, 0, err
	}
	return i, o, nil
}

// dependsOn reports whether s (transitively) consumes the output of target.
func (n *Network) dependsOn(s, target *Source) bool {
	seen := make(map[*Source]bool)
	var walk func(*Source) bool
	walk = func(x *Source) bool {
		if x == target {
			return true
		}
		if seen[x] {
			return false
		}
		seen[x] = true
		for _, in := range x.inputs {
			for _, l := range in.links {
				if walk(l.Source) {
					return true
				}
			}
		}
		return false
	}
	return walk(s)
}

// order returns the sources producers first; ties keep insertion order.
func (n *Network) order() []*Source {
	indeg := make(map[*Source]int, len(n.sources))
	consumers := make(map[*Source][]*Source)
	for _, s := range n.sources {
		for _, in := range s.inputs {
			for _, l := range in.links {
				indeg[s]++
				consumers[l.Source] = append(consumers[l.Source], s)
			}
		}
	}
	out := make([]*Source, 0, len(n.sources))
	done := make(map[*Source]bool, len(n.sources))
	for len(out) < len(n.sources) {
		progressed := false
		for _, s := range n.sources {
			if done[s] || indeg[s] > 0 {
				continue
			}
			done[s] = true
			out = append(out, s)
			for _, c := range consumers[s] {
				indeg[c]--
			}
			progressed = true
		}
		if !progressed {
			consistency("order", n.name, "source graph has a cycle")
		}
	}
	return out
}

// Prepare acquires the resources of every source, producers first, and
// freezes the network structure. If a source fails, the ones already
// prepared are reset.
func (n *Network) Prepare() error {
	if n.prepared {
		return fmt.Errorf("prepare %s: %w", n.name, ErrPrepared)
	}
	order := n.order()
	for i, s := range order {
		p, ok := s.kind.(Preparer)
		if !ok {
			continue
		}
		if err := p.Prepare(s); err != nil {
			for j := i - 1; j >= 0; j-- {
				if r, ok := order[j].kind.(Preparer); ok {
					r.Reset(order[j])
				}
			}
			return fmt.Errorf("prepare %s: source %s: %w", n.name, s.name, err)
		}
	}
	n.prepared = true
	n.log.Debug("network prepared", "network", n.name, "sources", len(n.sources))
	return nil
}

// Unprepare dismisses every live context in one transaction, then runs
// the sources' reset hooks and Reset. Returns the dismissal commit stamp.
func (n *Network) Unprepare() int64 {
	if !n.prepared {
		return 0
	}
	trans := n.engine.Open()
	for _, ctx := range n.Contexts() {
		n.DismissContext(ctx, trans)
	}
	stamp := trans.Commit()
	for _, s := range n.order() {
		s.runResetHooks()
		if r, ok := s.kind.(Preparer); ok {
			r.Reset(s)
		}
	}
	n.prepared = false
	n.log.Debug("network reset", "network", n.name, "stamp", stamp)
	return stamp
}

// CreateContext instantiates every source for a new context and wires
// them, appending all jobs to trans. On error the registries are rolled
// back and the caller must Dismiss trans.
func (n *Network) CreateContext(trans *engine.Trans) (ContextID, error) {
	if !n.prepared {
		return 0, fmt.Errorf("create context in %s: %w", n.name, ErrNotPrepared)
	}
	ctx := n.nextCtx
	n.nextCtx++
	order := n.order()
	for _, s := range order {
		if err := s.kind.CreateContext(s, ctx, trans); err != nil {
			n.AbortContext(ctx)
			return 0, fmt.Errorf("create context %d: source %s: %w", ctx, s.name, err)
		}
		if _, ok := s.contexts[ctx]; !ok {
			consistency("create-context", s.name, "context %d was not registered", ctx)
		}
	}
	for _, s := range order {
		if c, ok := s.kind.(ContextConnector); ok {
			c.ConnectContext(s, ctx, trans)
		} else {
			DefaultConnectContext(s, ctx, trans)
		}
	}
	n.contexts[ctx] = struct{}{}
	n.log.Debug("context created", "network", n.name, "context", int(ctx))
	return ctx, nil
}

// AbortContext rolls back the bookkeeping of a context whose creating
// transaction will be dismissed. No jobs are emitted.
func (n *Network) AbortContext(ctx ContextID) {
	delete(n.contexts, ctx)
	for _, s := range n.sources {
		if a, ok := s.kind.(ContextAborter); ok {
			a.AbortContext(s, ctx)
		}
		s.UnregisterContext(ctx)
	}
	n.ports.forget(ctx)
}

// DismissContext unwires and discards every source's modules for ctx,
// consumers first, appending the jobs to trans. Dismissing an unknown
// context is a no-op.
func (n *Network) DismissContext(ctx ContextID, trans *engine.Trans) {
	if _, ok := n.contexts[ctx]; !ok {
		return
	}
	order := n.order()
	for i := len(order) - 1; i >= 0; i-- {
		s := order[i]
		if d, ok := s.kind.(ContextDismisser); ok {
			d.DismissContext(s, ctx, trans)
		} else {
			DefaultDismissContext(s, ctx, trans)
		}
	}
	delete(n.contexts, ctx)
	n.log.Debug("context dismissed", "network", n.name, "context", int(ctx))
}

// Spawn creates a context in its own transaction and commits it.
func (n *Network) Spawn() (ContextID, int64, error) {
	trans := n.engine.Open()
	ctx, err := n.CreateContext(trans)
	if err != nil {
		trans.Dismiss()
		return 0, 0, err
	}
	return ctx, trans.Commit(), nil
}

// Release dismisses ctx in its own transaction and commits it.
func (n *Network) Release(ctx ContextID) int64 {
	trans := n.engine.Open()
	n.DismissContext(ctx, trans)
	return trans.Commit()
}

// ObserveProperties registers fn for every property change of every source
// in the network. The returned cancel removes it.
func (n *Network) ObserveProperties(fn PropertyObserver) (cancel func()) {
	id := n.nextObs
	n.nextObs++
	n.observers[id] = fn
	return func() { delete(n.observers, id) }
}

func (n *Network) notifyProperty(s *Source, p *Property, stamp int64) {
	for _, id := range slices.Sorted(maps.Keys(n.observers)) {
		n.observers[id](s, p, stamp)
	}
}
