package graph

import (
	"fmt"

	"github.com/roach88/synthnet/internal/engine"
	"github.com/roach88/synthnet/internal/ir"
)

// NetworkHolder is implemented by kinds that embed a child network.
type NetworkHolder interface {
	Child() *Network
	AttachChild(src *Source, child *Network) error
}

// Build constructs an unprepared network from its description. Child
// networks of holder sources are built recursively on the same engine.
func Build(spec ir.NetworkSpec, eng *engine.Engine, types *TypeRegistry, opts ...Option) (*Network, error) {
	n := NewNetwork(spec.Name, eng, types, opts...)
	for _, ss := range spec.Sources {
		src, err := n.AddSource(ss.Type, ss.Name)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", spec.Name, err)
		}
		if ss.Network != nil {
			holder, ok := src.kind.(NetworkHolder)
			if !ok {
				return nil, fmt.Errorf("build %s: source %s of type %s cannot hold a network", spec.Name, ss.Name, ss.Type)
			}
			child, err := Build(*ss.Network, eng, types, opts...)
			if err != nil {
				return nil, fmt.Errorf("build %s: %w", spec.Name, err)
			}
			if err := holder.AttachChild(src, child); err != nil {
				return nil, fmt.Errorf("build %s: attach %s: %w", spec.Name, ss.Name, err)
			}
		}
		// Note aliases go first so an explicit frequency wins.
		keys := ss.Properties.SortedKeys()
		for _, notes := range []bool{true, false} {
			for _, k := range keys {
				p, ok := src.props.Lookup(k)
				if isNote := ok && p.Hints&HintNote != 0; isNote != notes {
					continue
				}
				if _, err := src.Set(k, ss.Properties[k]); err != nil {
					return nil, fmt.Errorf("build %s: %w", spec.Name, err)
				}
			}
		}
	}
	for _, c := range spec.Connections {
		dst, ok := n.Source(c.To)
		if !ok {
			return nil, fmt.Errorf("build %s: connection to %q: %w", spec.Name, c.To, ErrNoSource)
		}
		src, ok := n.Source(c.From)
		if !ok {
			return nil, fmt.Errorf("build %s: connection from %q: %w", spec.Name, c.From, ErrNoSource)
		}
		if err := n.Connect(dst, c.ToChannel, src, c.FromChannel); err != nil {
			return nil, fmt.Errorf("build %s: %w", spec.Name, err)
		}
	}
	return n, nil
}

// Spec describes the network: every source with its current property
// values and every connection, in insertion order.
func (n *Network) Spec() ir.NetworkSpec {
	spec := ir.NetworkSpec{
		Name:        n.name,
		Sources:     make([]ir.SourceSpec, 0, len(n.sources)),
		Connections: []ir.ConnectionSpec{},
	}
	for _, s := range n.sources {
		ss := ir.SourceSpec{Name: s.name, Type: s.typeName}
		if s.props.Len() > 0 {
			ss.Properties = make(ir.Object, s.props.Len())
			for _, p := range s.props.All() {
				if p.Hints&HintNote == 0 {
					ss.Properties[p.Name] = p.value
				}
			}
		}
		if h, ok := s.kind.(NetworkHolder); ok && h.Child() != nil {
			child := h.Child().Spec()
			ss.Network = &child
		}
		spec.Sources = append(spec.Sources, ss)

		for i, in := range s.inputs {
			for _, l := range in.links {
				spec.Connections = append(spec.Connections, ir.ConnectionSpec{
					From:        l.Source.name,
					FromChannel: l.Source.outputs[l.OChannel].Ident,
					To:          s.name,
					ToChannel:   s.inputs[i].Ident,
				})
			}
		}
	}
	return spec
}
