package midi

import (
	"errors"
	"fmt"

	"github.com/roach88/synthnet/internal/graph"
	"github.com/roach88/synthnet/internal/ir"
)

// ErrNotAutomatable is returned when binding a string property.
var ErrNotAutomatable = errors.New("property cannot follow a controller")

// Binding connects one controller target to one source property.
// Bindings are unbound explicitly or when the source's network is
// unprepared; an unbound binding ignores events.
type Binding struct {
	src    *graph.Source
	prop   *graph.Property
	target Target

	cancel      func()
	cancelReset func()
	last        ir.Value // last value sent
	inflight    int      // sends whose cache update has not run yet
}

// Bind registers a binding of src's property on recv.
func Bind(recv *Receiver, src *graph.Source, property string, t Target) (*Binding, error) {
	p, ok := src.Properties().Lookup(property)
	if !ok {
		return nil, fmt.Errorf("bind %s.%s: %w", src.Name(), property, graph.ErrNoProperty)
	}
	if !p.Numeric() && p.Kind != graph.PropEnum {
		return nil, fmt.Errorf("bind %s.%s (%s): %w", src.Name(), property, p.Kind, ErrNotAutomatable)
	}
	b := &Binding{src: src, prop: p, target: t}
	b.cancel = recv.Register(t, b.handle)
	b.cancelReset = src.OnReset(b.Unbind)
	src.Network().Logger().Debug("MIDI binding added", "source", src.Name(), "property", property, "target", t.String())
	return b, nil
}

// Target returns the controller target.
func (b *Binding) Target() Target { return b.target }

// Bound reports whether the binding still receives events.
func (b *Binding) Bound() bool { return b.cancel != nil }

// Unbind removes the binding from its receiver. Access jobs already
// committed still run; the modules they address are discarded only by a
// later transaction.
func (b *Binding) Unbind() {
	if b.cancel == nil {
		return
	}
	b.cancel()
	b.cancelReset()
	b.cancel, b.cancelReset = nil, nil
	b.src.Network().Logger().Debug("MIDI binding removed", "source", b.src.Name(), "property", b.prop.Name)
}

// Scale maps a normalized event value onto the property: the unit range
// covers [Min, Max], bools quantize at 0.5 and ints round.
func (b *Binding) Scale(v float64, bipolar bool) ir.Value {
	if bipolar {
		v = (v + 1) / 2
	}
	v = max(0, min(1, v))
	return b.prop.FromFloat(b.prop.Min*(1-v) + b.prop.Max*v)
}

func (b *Binding) handle(ev Event) {
	if b.cancel == nil {
		return
	}
	v := b.Scale(ev.Value, ev.Signal.Bipolar())
	// Compare with what the property will hold: the cache, or the value
	// still travelling to the realtime side. Manual writes to the
	// property are seen through the cache.
	cur := b.prop.Value()
	if b.inflight > 0 {
		cur = b.last
	}
	if v == cur {
		return
	}
	b.last = v
	b.apply(v)
}

// apply sends v to every context. The control-side cache follows once the
// realtime side has applied the value.
func (b *Binding) apply(v ir.Value) {
	src, p := b.src, b.prop
	if !src.Prepared() {
		src.UpdateCache(p, v, 0)
		return
	}
	trans := src.Engine().Open()
	n := src.QueueUpdate(trans, p, v, func() {
		b.inflight--
		src.UpdateCache(p, v, trans.Stamp())
	})
	if trans.Len() == 0 {
		trans.Dismiss()
		src.UpdateCache(p, v, 0)
		return
	}
	stamp := trans.Commit()
	if n == 0 {
		src.UpdateCache(p, v, stamp)
		return
	}
	b.inflight++
}
