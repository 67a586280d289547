package graph

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/synthnet/internal/engine"
)

// PortDir selects the input or output port namespace.
type PortDir int

const (
	// PortIn carries signal from a parent network into a sub-network.
	PortIn PortDir = iota
	// PortOut carries signal from a sub-network out to its parent.
	PortOut
)

// String returns "in" or "out".
func (d PortDir) String() string {
	if d == PortIn {
		return "in"
	}
	return "out"
}

// Endpoint is one side of a virtual port binding.
type Endpoint struct {
	Module *engine.Module
	Stream int
}

func (e Endpoint) set() bool { return e.Module != nil }

// PortBinding is a snapshot of one (name, context) binding.
type PortBinding struct {
	Name    string
	Context ContextID
	Src     Endpoint
	Dest    Endpoint
	Linked  bool
}

// PortObserver is notified after a registered port was renamed.
type PortObserver func(dir PortDir, oldName, newName string)

type portKey struct {
	name string
	ctx  ContextID
}

type portLink struct {
	src, dest Endpoint
}

func (l *portLink) linked() bool { return l.src.set() && l.dest.set() }

type portName struct {
	owner any
	refs  int
}

// PortRegistry maps symbolic port names to module streams, per context.
//
// Each binding has a source side (the module producing the signal) and a
// destination side (the module input consuming it), set independently by
// the two parties. Whenever both sides are set, the registry keeps exactly
// one Connect alive between them; rebinding either side retargets that
// connection through Disconnect/Connect jobs, and binding the same
// endpoint again emits nothing.
//
// Names are registered by owners. A name registered again by its owner
// is reference counted; a name held by a different owner is disambiguated
// by appending "-2", "-3", … to the request.
type PortRegistry struct {
	names     [2]map[string]*portName
	links     [2]map[portKey]*portLink
	observers []PortObserver
}

// NewPortRegistry returns an empty registry.
func NewPortRegistry() *PortRegistry {
	r := &PortRegistry{}
	for d := range r.names {
		r.names[d] = make(map[string]*portName)
		r.links[d] = make(map[portKey]*portLink)
	}
	return r
}

// Register claims name for owner in direction dir and returns the accepted
// name.
func (r *PortRegistry) Register(dir PortDir, name string, owner any) string {
	if name == "" {
		name = "port"
	}
	accepted := name
	for k := 2; ; k++ {
		e, taken := r.names[dir][accepted]
		if !taken {
			r.names[dir][accepted] = &portName{owner: owner, refs: 1}
			return accepted
		}
		if e.owner == owner {
			e.refs++
			return accepted
		}
		accepted = fmt.Sprintf("%s-%d", name, k)
	}
}

// Unregister releases one reference of owner on name; the name is freed
// at zero.
func (r *PortRegistry) Unregister(dir PortDir, name string, owner any) error {
	e, ok := r.names[dir][name]
	if !ok || e.owner != owner {
		return fmt.Errorf("unregister %s port %q: %w", dir, name, ErrPortNotOwned)
	}
	e.refs--
	if e.refs == 0 {
		delete(r.names[dir], name)
	}
	return nil
}

// Registered reports whether name is registered in dir.
func (r *PortRegistry) Registered(dir PortDir, name string) bool {
	_, ok := r.names[dir][name]
	return ok
}

// Names returns the registered names of dir, sorted.
func (r *PortRegistry) Names(dir PortDir) []string {
	return slices.Sorted(maps.Keys(r.names[dir]))
}

// RegisterIPort is Register(PortIn, ...).
func (r *PortRegistry) RegisterIPort(name string, owner any) string {
	return r.Register(PortIn, name, owner)
}

// RegisterOPort is Register(PortOut, ...).
func (r *PortRegistry) RegisterOPort(name string, owner any) string {
	return r.Register(PortOut, name, owner)
}

// UnregisterIPort is Unregister(PortIn, ...).
func (r *PortRegistry) UnregisterIPort(name string, owner any) error {
	return r.Unregister(PortIn, name, owner)
}

// UnregisterOPort is Unregister(PortOut, ...).
func (r *PortRegistry) UnregisterOPort(name string, owner any) error {
	return r.Unregister(PortOut, name, owner)
}

// SetIPortSrc binds the producer of input port name in ctx. A nil module
// clears the side.
func (r *PortRegistry) SetIPortSrc(name string, ctx ContextID, m *engine.Module, ostream int, trans *engine.Trans) {
	r.bind(PortIn, name, ctx, true, Endpoint{m, ostream}, trans)
}

// SetIPortDest binds the consumer of input port name in ctx.
func (r *PortRegistry) SetIPortDest(name string, ctx ContextID, m *engine.Module, istream int, trans *engine.Trans) {
	r.bind(PortIn, name, ctx, false, Endpoint{m, istream}, trans)
}

// SetOPortSrc binds the producer of output port name in ctx.
func (r *PortRegistry) SetOPortSrc(name string, ctx ContextID, m *engine.Module, ostream int, trans *engine.Trans) {
	r.bind(PortOut, name, ctx, true, Endpoint{m, ostream}, trans)
}

// SetOPortDest binds the consumer of output port name in ctx.
func (r *PortRegistry) SetOPortDest(name string, ctx ContextID, m *engine.Module, istream int, trans *engine.Trans) {
	r.bind(PortOut, name, ctx, false, Endpoint{m, istream}, trans)
}

func (r *PortRegistry) bind(dir PortDir, name string, ctx ContextID, src bool, ep Endpoint, trans *engine.Trans) {
	if !ep.set() {
		ep = Endpoint{}
	}
	key := portKey{name, ctx}
	l, ok := r.links[dir][key]
	if !ok {
		if !ep.set() {
			return
		}
		l = &portLink{}
		r.links[dir][key] = l
	}
	next := *l
	if src {
		next.src = ep
	} else {
		next.dest = ep
	}
	retarget(*l, next, trans)
	*l = next
	if !l.src.set() && !l.dest.set() {
		delete(r.links[dir], key)
	}
}

// retarget emits the jobs that turn the live connection of prev into the
// one of next, if they differ.
func retarget(prev, next portLink, trans *engine.Trans) {
	if prev == next {
		return
	}
	if prev.linked() {
		trans.Add(engine.Disconnect(prev.dest.Module, prev.dest.Stream))
	}
	if next.linked() {
		trans.Add(engine.Connect(next.src.Module, next.src.Stream, next.dest.Module, next.dest.Stream))
	}
}

// Rename moves owner's registration of oldName to newName and returns the
// accepted new name. The order is register new, rebind every context, then
// unregister old, so a live connection is carried over unchanged and no
// block renders without it. Observers are notified afterwards.
func (r *PortRegistry) Rename(dir PortDir, owner any, oldName, newName string, trans *engine.Trans) (string, error) {
	old, ok := r.names[dir][oldName]
	if !ok || old.owner != owner {
		return "", fmt.Errorf("rename %s port %q: %w", dir, oldName, ErrPortNotOwned)
	}
	if newName == oldName {
		return oldName, nil
	}
	accepted := r.Register(dir, newName, owner)
	if accepted == oldName {
		// The request collided back onto the current name.
		old.refs--
		return oldName, nil
	}

	for _, key := range r.keys(dir, oldName) {
		moved := r.links[dir][key]
		delete(r.links[dir], key)
		nkey := portKey{accepted, key.ctx}
		existing, ok := r.links[dir][nkey]
		if !ok {
			r.links[dir][nkey] = moved
			continue
		}
		// Merge: the owner's side follows the rename, the other side
		// keeps whatever is already bound under the new name.
		next := *existing
		if dir == PortIn {
			next.dest = moved.dest
			if !next.src.set() {
				next.src = moved.src
			}
		} else {
			next.src = moved.src
			if !next.dest.set() {
				next.dest = moved.dest
			}
		}
		kept := false
		for _, prior := range []portLink{*moved, *existing} {
			if !prior.linked() {
				continue
			}
			if prior == next {
				kept = true
				continue
			}
			trans.Add(engine.Disconnect(prior.dest.Module, prior.dest.Stream))
		}
		if next.linked() && !kept {
			trans.Add(engine.Connect(next.src.Module, next.src.Stream, next.dest.Module, next.dest.Stream))
		}
		*existing = next
	}

	r.names[dir][accepted].refs += old.refs - 1
	delete(r.names[dir], oldName)
	for _, fn := range r.observers {
		fn(dir, oldName, accepted)
	}
	return accepted, nil
}

// RenameIPort is Rename(PortIn, ...).
func (r *PortRegistry) RenameIPort(owner any, oldName, newName string, trans *engine.Trans) (string, error) {
	return r.Rename(PortIn, owner, oldName, newName, trans)
}

// RenameOPort is Rename(PortOut, ...).
func (r *PortRegistry) RenameOPort(owner any, oldName, newName string, trans *engine.Trans) (string, error) {
	return r.Rename(PortOut, owner, oldName, newName, trans)
}

// Observe registers fn for rename notifications.
func (r *PortRegistry) Observe(fn PortObserver) {
	r.observers = append(r.observers, fn)
}

// Bindings returns a snapshot of every binding of dir, ordered by name and
// context.
func (r *PortRegistry) Bindings(dir PortDir) []PortBinding {
	out := make([]PortBinding, 0, len(r.links[dir]))
	for k, l := range r.links[dir] {
		out = append(out, PortBinding{Name: k.name, Context: k.ctx, Src: l.src, Dest: l.dest, Linked: l.linked()})
	}
	slices.SortFunc(out, func(a, b PortBinding) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Context, b.Context))
	})
	return out
}

func (r *PortRegistry) keys(dir PortDir, name string) []portKey {
	var keys []portKey
	for k := range r.links[dir] {
		if k.name == name {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, func(a, b portKey) int { return cmp.Compare(a.ctx, b.ctx) })
	return keys
}

// forget drops every binding of ctx without emitting jobs. Used when the
// transaction that would have carried them is dismissed.
func (r *PortRegistry) forget(ctx ContextID) {
	for d := range r.links {
		for k := range r.links[d] {
			if k.ctx == ctx {
				delete(r.links[d], k)
			}
		}
	}
}
