package modules

import (
	"errors"
	"fmt"

	"github.com/roach88/synthnet/internal/engine"
	"github.com/roach88/synthnet/internal/graph"
	"github.com/roach88/synthnet/internal/ir"
)

// SubNetChannels is the number of input and output channels of a SubNet.
const SubNetChannels = 4

// ErrNoChild is returned when a SubNet without a child network is prepared.
var ErrNoChild = errors.New("sub-network has no child network")

var (
	subnetInClass  = engine.PassThrough("subnet-in", SubNetChannels)
	subnetOutClass = engine.PassThrough("subnet-out", SubNetChannels)
)

// SubNet embeds a child network. Input channel "in<n>" feeds the child's
// input port named by property "in<n>-port", and the child's output port
// named by "out<n>-port" comes out of channel "out<n>".
//
// Every parent context owns one child context. The boundary is a pair of
// pass-through modules bound into the child's port registry; port renames
// inside the child are followed by the port properties.
type SubNet struct {
	child *graph.Network
}

type subnetContext struct {
	child graph.ContextID
}

func inPortProp(i int) string  { return fmt.Sprintf("in%d-port", i+1) }
func outPortProp(i int) string { return fmt.Sprintf("out%d-port", i+1) }

func (k *SubNet) Setup(src *graph.Source) error {
	for i := range SubNetChannels {
		src.AddIChannel(fmt.Sprintf("in%d", i+1), fmt.Sprintf("Input %d", i+1), false)
	}
	for i := range SubNetChannels {
		src.AddOChannel(fmt.Sprintf("out%d", i+1), fmt.Sprintf("Output %d", i+1))
	}
	for i := range SubNetChannels {
		src.Properties().Add(graph.StringProperty(inPortProp(i), fmt.Sprintf("Input %d port", i+1), fmt.Sprintf("synth_in_%d", i+1)))
		src.Properties().Add(graph.StringProperty(outPortProp(i), fmt.Sprintf("Output %d port", i+1), fmt.Sprintf("synth_out_%d", i+1)))
	}
	return nil
}

// Child returns the embedded network, nil until attached.
func (k *SubNet) Child() *graph.Network { return k.child }

// AttachChild embeds child. It must render on the same engine and can be
// attached once, while the parent is unprepared.
func (k *SubNet) AttachChild(src *graph.Source, child *graph.Network) error {
	switch {
	case k.child != nil:
		return fmt.Errorf("subnet %s: child network already attached", src.Name())
	case src.Prepared():
		return fmt.Errorf("subnet %s: %w", src.Name(), graph.ErrPrepared)
	case child.Engine() != src.Engine():
		return fmt.Errorf("subnet %s: child network renders on another engine", src.Name())
	}
	k.child = child
	child.Ports().Observe(func(dir graph.PortDir, oldName, newName string) {
		k.followRename(src, dir, oldName, newName)
	})
	return nil
}

func (k *SubNet) followRename(src *graph.Source, dir graph.PortDir, oldName, newName string) {
	for i := range SubNetChannels {
		name := inPortProp(i)
		if dir == graph.PortOut {
			name = outPortProp(i)
		}
		p := mustProperty(src, name)
		if p.Value() == ir.Str(oldName) {
			src.UpdateCache(p, ir.Str(newName), 0)
		}
	}
}

func (k *SubNet) portName(src *graph.Source, prop string) string {
	s, _ := mustProperty(src, prop).Value().(ir.Str)
	return string(s)
}

func (k *SubNet) Prepare(src *graph.Source) error {
	if k.child == nil {
		return fmt.Errorf("subnet %s: %w", src.Name(), ErrNoChild)
	}
	return k.child.Prepare()
}

func (k *SubNet) Reset(*graph.Source) {
	k.child.Unprepare()
}

func (k *SubNet) CreateContext(src *graph.Source, ctx graph.ContextID, trans *engine.Trans) error {
	eng := src.Engine()
	label := moduleLabel(src, ctx)
	in := eng.NewModule(subnetInClass, nil, label+"/in")
	out := eng.NewModule(subnetOutClass, nil, label+"/out")
	trans.Add(engine.Integrate(in), engine.Integrate(out))

	cctx, err := k.child.CreateContext(trans)
	if err != nil {
		return fmt.Errorf("subnet %s: %w", src.Name(), err)
	}
	src.RegisterContext(&graph.Context{
		ID:      ctx,
		In:      in,
		Out:     out,
		Modules: []*engine.Module{out, in},
		Data:    subnetContext{child: cctx},
	})
	return nil
}

func (k *SubNet) ConnectContext(src *graph.Source, ctx graph.ContextID, trans *engine.Trans) {
	graph.DefaultConnectContext(src, ctx, trans)
	c, _ := src.Context(ctx)
	cctx := c.Data.(subnetContext).child
	ports := k.child.Ports()
	for i := range SubNetChannels {
		ports.SetIPortSrc(k.portName(src, inPortProp(i)), cctx, c.In, i, trans)
		ports.SetOPortDest(k.portName(src, outPortProp(i)), cctx, c.Out, i, trans)
	}
}

// DismissContext unbinds the boundary modules, dismisses the child context
// and then the boundary itself.
func (k *SubNet) DismissContext(src *graph.Source, ctx graph.ContextID, trans *engine.Trans) {
	c, ok := src.Context(ctx)
	if !ok {
		return
	}
	cctx := c.Data.(subnetContext).child
	ports := k.child.Ports()
	for i := range SubNetChannels {
		ports.SetIPortSrc(k.portName(src, inPortProp(i)), cctx, nil, 0, trans)
		ports.SetOPortDest(k.portName(src, outPortProp(i)), cctx, nil, 0, trans)
	}
	k.child.DismissContext(cctx, trans)
	graph.DefaultDismissContext(src, ctx, trans)
}

func (k *SubNet) AbortContext(src *graph.Source, ctx graph.ContextID) {
	if c, ok := src.Context(ctx); ok {
		k.child.AbortContext(c.Data.(subnetContext).child)
	}
}

// UpdateProperty rebinds every context from the old port name to the new
// one.
func (k *SubNet) UpdateProperty(src *graph.Source, p *graph.Property, v ir.Value, trans *engine.Trans) engine.AccessFunc {
	oldName := k.portName(src, p.Name)
	newName, _ := v.(ir.Str)
	ports := k.child.Ports()
	for i := range SubNetChannels {
		in, out := p.Name == inPortProp(i), p.Name == outPortProp(i)
		if !in && !out {
			continue
		}
		for _, id := range src.Contexts() {
			c, _ := src.Context(id)
			cctx := c.Data.(subnetContext).child
			if in {
				ports.SetIPortSrc(oldName, cctx, nil, 0, trans)
				ports.SetIPortSrc(string(newName), cctx, c.In, i, trans)
			} else {
				ports.SetOPortDest(oldName, cctx, nil, 0, trans)
				ports.SetOPortDest(string(newName), cctx, c.Out, i, trans)
			}
		}
	}
	return nil
}
