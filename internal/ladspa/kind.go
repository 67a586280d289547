package ladspa

import (
	"fmt"
	"math"

	"github.com/roach88/synthnet/internal/engine"
	"github.com/roach88/synthnet/internal/graph"
	"github.com/roach88/synthnet/internal/ir"
)

// FrequencyScale is the frequency in Hz that a value of 1.0 on a
// frequency-carrying stream stands for. Rate-relative audio ports are
// converted between this scale and fractions of the sample rate.
const FrequencyScale = 24000

// pluginKind is the graph behavior shared by every plugin type; the
// harvested info is its payload.
type pluginKind struct {
	info  *PluginInfo
	file  *pluginFile
	class *engine.Class

	audioIn  []PortInfo
	audioOut []PortInfo
	byIdent  map[string]int // property name -> port index
	noteOf   map[string]int // note alias name -> port index
	unwatch  func()
}

// instanceState is the realtime user data of one plugin module.
type instanceState struct {
	inst     Instance
	mem      Memory
	bufs     [][]float32 // by port index
	audioIn  []PortInfo
	audioOut []PortInfo
	toNative float32
	toStream float32
	file     *pluginFile
}

// Info returns the harvested metadata the type was created from.
func (k *pluginKind) Info() *PluginInfo { return k.info }

func (k *pluginKind) Setup(src *graph.Source) error {
	k.audioIn = k.info.AudioInputs()
	k.audioOut = k.info.AudioOutputs()
	k.byIdent = make(map[string]int)
	k.noteOf = make(map[string]int)
	for _, p := range k.audioIn {
		src.AddIChannel(p.Ident, p.Name, false)
	}
	for _, p := range k.audioOut {
		src.AddOChannel(p.Ident, p.Name)
	}
	for _, p := range k.info.ControlInputs() {
		src.Properties().Add(p.Property())
		k.byIdent[p.Ident] = p.Index
		if note := p.NoteProperty(); note != nil {
			src.Properties().Add(note)
			k.noteOf[note.Name] = p.Index
		}
	}
	if len(k.noteOf) > 0 {
		// While prepared, note writes travel through UpdateProperty.
		k.unwatch = src.Network().ObserveProperties(func(s *graph.Source, p *graph.Property, _ int64) {
			if s != src || s.Prepared() {
				return
			}
			if port, ok := k.noteOf[p.Name]; ok {
				fp, _ := src.Properties().Lookup(k.info.Ports[port].Ident)
				src.UpdateCache(fp, k.noteFreq(port, p.Float()), 0)
			}
		})
	}
	// Free is the only owner of an instance: it runs after Discard, or on
	// Dismiss when the Integrate job never ran.
	k.class = &engine.Class{
		Name:      k.info.TypeName,
		NIStreams: len(k.audioIn),
		NOStreams: len(k.audioOut),
		Cost:      engine.CostExpensive,
		Process:   processPlugin,
		Reset:     func(m *engine.Module) { m.User.(*instanceState).inst.Activate() },
		Free:      func(user any, _ *engine.Class) { user.(*instanceState).release() },
	}
	return nil
}

// Remove drops the note alias observer.
func (k *pluginKind) Remove(*graph.Source) {
	if k.unwatch != nil {
		k.unwatch()
		k.unwatch = nil
	}
}

// Prepare loads the library for the prepared lifetime of the network,
// failing if the file changed since it was scanned.
func (k *pluginKind) Prepare(*graph.Source) error {
	return k.file.Use()
}

func (k *pluginKind) Reset(*graph.Source) {
	k.file.Unuse()
}

func (k *pluginKind) CreateContext(src *graph.Source, ctx graph.ContextID, trans *engine.Trans) error {
	st, err := k.instantiate(src)
	if err != nil {
		return err
	}
	m := src.Engine().NewModule(k.class, st, fmt.Sprintf("%s#%d", src.Name(), ctx))
	c := &graph.Context{ID: ctx, Out: m}
	if len(k.audioIn) > 0 {
		c.In = m
	}
	src.RegisterContext(c)
	trans.Add(engine.Integrate(m))
	return nil
}

func (k *pluginKind) instantiate(src *graph.Source) (*instanceState, error) {
	if err := k.file.Use(); err != nil {
		return nil, err
	}
	d, lib := k.file.descriptor(k.info.Index)
	if d == nil {
		k.file.Unuse()
		return nil, &PluginError{Code: ErrCodeBrokenPlugin, Path: k.info.Path, Index: k.info.Index, Label: k.info.Label, Message: "descriptor not loaded"}
	}
	eng := src.Engine()
	rate, block := eng.SampleRate(), eng.BlockSize()
	inst, err := d.Instantiate(uint64(rate))
	if err != nil || inst == nil {
		k.file.Unuse()
		msg := "instantiate returned no handle"
		if err != nil {
			msg = err.Error()
		}
		return nil, &PluginError{Code: ErrCodeInstantiateFailed, Path: k.info.Path, Index: k.info.Index, Label: k.info.Label, Message: msg}
	}

	size := 0
	for _, p := range k.info.Ports {
		size += portFloats(p, block)
	}
	mem, err := allocate(lib, size)
	if err != nil {
		inst.Cleanup()
		k.file.Unuse()
		return nil, fmt.Errorf("%s: port memory: %w", k.info.TypeName, err)
	}
	st := &instanceState{
		inst:     inst,
		mem:      mem,
		bufs:     make([][]float32, len(k.info.Ports)),
		audioIn:  k.audioIn,
		audioOut: k.audioOut,
		toNative: float32(FrequencyScale / float64(rate)),
		toStream: float32(float64(rate) / FrequencyScale),
		file:     k.file,
	}
	floats := mem.Floats()
	for _, p := range k.info.Ports {
		n := portFloats(p, block)
		buf := floats[:n:n]
		floats = floats[n:]
		if !p.Audio && p.Input {
			prop, _ := src.Properties().Lookup(p.Ident)
			buf[0] = float32(prop.Float())
		}
		st.bufs[p.Index] = buf
		inst.ConnectPort(p.Index, buf)
	}
	return st, nil
}

func portFloats(p PortInfo, block int) int {
	if p.Audio {
		return block
	}
	return 1
}

// UpdateProperty writes the new value into the control port scratch of
// every instance. A note alias is converted to Hz and travels as an update
// of its frequency property.
func (k *pluginKind) UpdateProperty(src *graph.Source, p *graph.Property, v ir.Value, trans *engine.Trans) engine.AccessFunc {
	if port, ok := k.noteOf[p.Name]; ok {
		fp, _ := src.Properties().Lookup(k.info.Ports[port].Ident)
		fv := k.noteFreq(port, p.FloatOf(v))
		if src.QueueUpdate(trans, fp, fv, func() { src.UpdateCache(fp, fv, trans.Stamp()) }) == 0 {
			src.UpdateCache(fp, fv, 0)
		}
		return nil
	}
	port, ok := k.byIdent[p.Name]
	if !ok {
		return nil
	}
	val := float32(p.FloatOf(v))
	return func(m *engine.Module) {
		m.User.(*instanceState).bufs[port][0] = val
	}
}

// noteFreq converts a note of the alias of port to its clamped frequency.
func (k *pluginKind) noteFreq(port int, note float64) ir.Value {
	info := k.info.Ports[port]
	return ir.Real(math.Max(info.Min, math.Min(info.Max, noteToFreq(note))))
}

func processPlugin(m *engine.Module, n int) {
	st := m.User.(*instanceState)
	for i, p := range st.audioIn {
		buf, in := st.bufs[p.Index][:n], m.Input(i)[:n]
		if p.RateRelative {
			for j := range buf {
				buf[j] = in[j] * st.toNative
			}
		} else {
			copy(buf, in)
		}
	}
	st.inst.Run(n)
	for i, p := range st.audioOut {
		buf, out := st.bufs[p.Index][:n], m.Output(i)[:n]
		if p.RateRelative {
			for j := range out {
				out[j] = buf[j] * st.toStream
			}
		} else {
			copy(out, buf)
		}
	}
}

// release tears an instance down on the control side.
func (st *instanceState) release() {
	st.inst.Deactivate()
	st.inst.Cleanup()
	if err := st.mem.Release(); err != nil {
		st.file.log.Warn("port memory release failed", "path", st.file.path, "error", err)
	}
	st.file.Unuse()
}
