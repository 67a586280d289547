package modules

import (
	"github.com/roach88/synthnet/internal/engine"
	"github.com/roach88/synthnet/internal/graph"
	"github.com/roach88/synthnet/internal/ir"
)

// Default virtual port names. A sub-network's n-th channel pair binds to
// "synth_in_<n>" and "synth_out_<n>" unless renamed.
const (
	DefaultIPortName = "synth_in_1"
	DefaultOPortName = "synth_out_1"
)

var portClass = engine.PassThrough("port", 1)

func portName(src *graph.Source) string {
	s, _ := mustProperty(src, "port").Value().(ir.Str)
	return string(s)
}

// SubIPort is the inside end of a sub-network input. While its network is
// prepared it owns a name in the network's input port namespace; whatever
// the enclosing SubNet binds to that name comes out of its "out" channel.
type SubIPort struct {
	registered string
}

// Registered returns the accepted port name, empty while unprepared.
func (k *SubIPort) Registered() string { return k.registered }

func (k *SubIPort) Setup(src *graph.Source) error {
	src.AddOChannel("out", "Output")
	src.Properties().Add(graph.StringProperty("port", "Port name", DefaultIPortName))
	return nil
}

func (k *SubIPort) Prepare(src *graph.Source) error {
	k.registered = src.Network().Ports().RegisterIPort(portName(src), src)
	return nil
}

func (k *SubIPort) Reset(src *graph.Source) {
	if err := src.Network().Ports().UnregisterIPort(k.registered, src); err != nil {
		src.Network().Logger().Warn("input port unregister failed", "source", src.Name(), "error", err)
	}
	k.registered = ""
}

func (k *SubIPort) CreateContext(src *graph.Source, ctx graph.ContextID, trans *engine.Trans) error {
	m := src.Engine().NewModule(portClass, nil, moduleLabel(src, ctx))
	src.RegisterContext(&graph.Context{ID: ctx, In: m, Out: m})
	trans.Add(engine.Integrate(m))
	return nil
}

func (k *SubIPort) ConnectContext(src *graph.Source, ctx graph.ContextID, trans *engine.Trans) {
	c, _ := src.Context(ctx)
	src.Network().Ports().SetIPortDest(k.registered, ctx, c.In, 0, trans)
}

func (k *SubIPort) DismissContext(src *graph.Source, ctx graph.ContextID, trans *engine.Trans) {
	if _, ok := src.Context(ctx); !ok {
		return
	}
	src.Network().Ports().SetIPortDest(k.registered, ctx, nil, 0, trans)
	graph.DefaultDismissContext(src, ctx, trans)
}

// UpdateProperty renames the registered port. Live links move to the new
// name without being broken.
func (k *SubIPort) UpdateProperty(src *graph.Source, p *graph.Property, v ir.Value, trans *engine.Trans) engine.AccessFunc {
	s, _ := v.(ir.Str)
	accepted, err := src.Network().Ports().RenameIPort(src, k.registered, string(s), trans)
	if err != nil {
		src.Network().Logger().Warn("input port rename failed", "source", src.Name(), "error", err)
		return nil
	}
	k.registered = accepted
	return nil
}

// SubOPort is the inside end of a sub-network output: its "in" channel is
// published under a name in the network's output port namespace.
type SubOPort struct {
	registered string
}

// Registered returns the accepted port name, empty while unprepared.
func (k *SubOPort) Registered() string { return k.registered }

func (k *SubOPort) Setup(src *graph.Source) error {
	src.AddIChannel("in", "Input", false)
	src.Properties().Add(graph.StringProperty("port", "Port name", DefaultOPortName))
	return nil
}

func (k *SubOPort) Prepare(src *graph.Source) error {
	k.registered = src.Network().Ports().RegisterOPort(portName(src), src)
	return nil
}

func (k *SubOPort) Reset(src *graph.Source) {
	if err := src.Network().Ports().UnregisterOPort(k.registered, src); err != nil {
		src.Network().Logger().Warn("output port unregister failed", "source", src.Name(), "error", err)
	}
	k.registered = ""
}

func (k *SubOPort) CreateContext(src *graph.Source, ctx graph.ContextID, trans *engine.Trans) error {
	m := src.Engine().NewModule(portClass, nil, moduleLabel(src, ctx))
	src.RegisterContext(&graph.Context{ID: ctx, In: m, Out: m})
	trans.Add(engine.Integrate(m))
	return nil
}

func (k *SubOPort) ConnectContext(src *graph.Source, ctx graph.ContextID, trans *engine.Trans) {
	graph.DefaultConnectContext(src, ctx, trans)
	c, _ := src.Context(ctx)
	src.Network().Ports().SetOPortSrc(k.registered, ctx, c.Out, 0, trans)
}

func (k *SubOPort) DismissContext(src *graph.Source, ctx graph.ContextID, trans *engine.Trans) {
	if _, ok := src.Context(ctx); !ok {
		return
	}
	src.Network().Ports().SetOPortSrc(k.registered, ctx, nil, 0, trans)
	graph.DefaultDismissContext(src, ctx, trans)
}

func (k *SubOPort) UpdateProperty(src *graph.Source, p *graph.Property, v ir.Value, trans *engine.Trans) engine.AccessFunc {
	s, _ := v.(ir.Str)
	accepted, err := src.Network().Ports().RenameOPort(src, k.registered, string(s), trans)
	if err != nil {
		src.Network().Logger().Warn("output port rename failed", "source", src.Name(), "error", err)
		return nil
	}
	k.registered = accepted
	return nil
}
