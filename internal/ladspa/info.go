package ladspa

import (
	"fmt"
	"math"
	"strconv"

	"github.com/roach88/synthnet/internal/graph"
	"github.com/roach88/synthnet/internal/ir"
)

// Unbounded sides of a control port are placed this far from the known
// bound or default.
const unboundedSpan = 1000

// PortInfo is the harvested metadata of one port. It never references
// native memory and outlives every load of the library.
type PortInfo struct {
	Index      int
	Ident      string
	Name       string
	Descriptor PortDescriptor
	Hint       PortRangeHint

	Input   bool
	Audio   bool
	Toggled bool
	Integer bool
	Log     bool
	// RateRelative ports carry bounds (control) or values (audio) relative
	// to the sample rate.
	RateRelative bool
	// Frequency control ports are real properties in Hz.
	Frequency bool

	// Derived property shape of control inputs.
	Kind    graph.PropKind
	Min     float64
	Max     float64
	Default float64
	// NoteAlias is set when a "<ident>-note" property mirrors this
	// frequency port.
	NoteAlias bool
	NoteMin   int64
	NoteMax   int64
}

// PluginInfo is the harvested metadata of one descriptor index.
type PluginInfo struct {
	Path      string
	Index     int
	UniqueID  uint64
	Label     string
	Name      string
	Maker     string
	Copyright string
	TypeName  string

	Realtime      bool
	InplaceBroken bool
	HardRTCapable bool

	Ports []PortInfo

	// Broken plugins cannot be registered; Reason says why.
	Broken bool
	Reason string

	// Signature hashes the port shapes (ir.PortSignature).
	Signature string
}

// AudioInputs returns the audio input ports in order.
func (p *PluginInfo) AudioInputs() []PortInfo { return p.ports(true, true) }

// AudioOutputs returns the audio output ports in order.
func (p *PluginInfo) AudioOutputs() []PortInfo { return p.ports(true, false) }

// ControlInputs returns the control input ports in order.
func (p *PluginInfo) ControlInputs() []PortInfo { return p.ports(false, true) }

func (p *PluginInfo) ports(audio, input bool) []PortInfo {
	var out []PortInfo
	for _, port := range p.Ports {
		if port.Audio == audio && port.Input == input {
			out = append(out, port)
		}
	}
	return out
}

// Record converts the info to its persisted form.
func (p *PluginInfo) Record() ir.PluginRecord {
	return ir.PluginRecord{
		Path:      p.Path,
		Index:     p.Index,
		UniqueID:  int64(p.UniqueID),
		Label:     p.Label,
		Name:      p.Name,
		Maker:     p.Maker,
		Copyright: p.Copyright,
		TypeName:  p.TypeName,
		Broken:    p.Broken,
		Reason:    p.Reason,
		Signature: p.Signature,
		Ports:     shapesOf(p.Ports),
	}
}

func shapesOf(ports []PortInfo) []ir.PortShape {
	shapes := make([]ir.PortShape, len(ports))
	for i, port := range ports {
		shapes[i] = ir.PortShape{
			Name:  port.Name,
			Flags: int64(port.Descriptor),
			Hints: int64(port.Hint.Hints),
			Lower: float64(port.Hint.Lower),
			Upper: float64(port.Hint.Upper),
		}
	}
	return shapes
}

// descriptorShapes is shapesOf for a freshly resolved descriptor.
func descriptorShapes(d *Descriptor) []ir.PortShape {
	shapes := make([]ir.PortShape, len(d.PortDescriptors))
	for i := range d.PortDescriptors {
		var hint PortRangeHint
		if i < len(d.PortRangeHints) {
			hint = d.PortRangeHints[i]
		}
		var name string
		if i < len(d.PortNames) {
			name = d.PortNames[i]
		}
		shapes[i] = ir.PortShape{
			Name:  name,
			Flags: int64(d.PortDescriptors[i]),
			Hints: int64(hint.Hints),
			Lower: float64(hint.Lower),
			Upper: float64(hint.Upper),
		}
	}
	return shapes
}

// harvest builds the PluginInfo of descriptor index. rate is the nominal
// sample rate rate-relative bounds are scaled with.
func harvest(path string, index int, d *Descriptor, rate float64) *PluginInfo {
	info := &PluginInfo{
		Path:          path,
		Index:         index,
		UniqueID:      d.UniqueID,
		Label:         d.Label,
		Name:          d.Name,
		Maker:         d.Maker,
		Copyright:     d.Copyright,
		TypeName:      TypeName(d.Label),
		Realtime:      d.Properties&PropertyRealtime != 0,
		InplaceBroken: d.Properties&PropertyInplaceBroken != 0,
		HardRTCapable: d.Properties&PropertyHardRTCapable != 0,
	}
	if reason := validate(d); reason != "" {
		info.Broken, info.Reason = true, reason
		return info
	}

	used := make(map[string]bool)
	for i, flags := range d.PortDescriptors {
		var hint PortRangeHint
		if d.PortRangeHints != nil {
			hint = d.PortRangeHints[i]
		}
		port := PortInfo{
			Index:      i,
			Name:       d.PortNames[i],
			Ident:      uniqueIdent(canonify(d.PortNames[i]), used),
			Descriptor: flags,
			Hint:       hint,
			Input:      flags.has(PortInput),
			Audio:      flags.has(PortAudio),
		}
		if !port.Audio && port.Input {
			derive(&port, rate)
		} else {
			port.RateRelative = hint.Hints.has(HintSampleRate)
		}
		info.Ports = append(info.Ports, port)
	}
	sig, err := ir.PortSignature(shapesOf(info.Ports))
	if err != nil {
		info.Broken, info.Reason = true, "port signature: "+err.Error()
		return info
	}
	info.Signature = sig
	return info
}

// validate returns why d cannot be hosted, or "".
func validate(d *Descriptor) string {
	switch {
	case d.Label == "":
		return "missing label"
	case len(d.PortDescriptors) == 0:
		return "no ports"
	case d.PortNames == nil || len(d.PortNames) != len(d.PortDescriptors):
		return "missing port names"
	case d.PortRangeHints != nil && len(d.PortRangeHints) != len(d.PortDescriptors):
		return "port range hints do not match port count"
	case d.Instantiate == nil:
		return "missing entry point instantiate"
	case !d.Entry.ConnectPort:
		return "missing entry point connect_port"
	case !d.Entry.Run:
		return "missing entry point run"
	case !d.Entry.Cleanup:
		return "missing entry point cleanup"
	}
	audioOut := false
	for i, f := range d.PortDescriptors {
		if f.has(PortInput) == f.has(PortOutput) {
			return fmt.Sprintf("port %d (%s) must be exactly one of input and output", i, d.PortNames[i])
		}
		if f.has(PortControl) == f.has(PortAudio) {
			return fmt.Sprintf("port %d (%s) must be exactly one of control and audio", i, d.PortNames[i])
		}
		if f.has(PortAudio) && f.has(PortOutput) {
			audioOut = true
		}
	}
	if !audioOut {
		return "no audio output port"
	}
	return ""
}

func uniqueIdent(ident string, used map[string]bool) string {
	name := ident
	for k := 2; used[name]; k++ {
		name = ident + "_" + strconv.Itoa(k)
	}
	used[name] = true
	return name
}

// derive fills the property shape of a control input port from its hints.
func derive(p *PortInfo, rate float64) {
	h := p.Hint.Hints
	p.Toggled = h.has(HintToggled)
	p.Integer = h.has(HintInteger)
	p.Log = h.has(HintLogarithmic)
	p.RateRelative = h.has(HintSampleRate)

	if p.Toggled {
		p.Kind, p.Min, p.Max = graph.PropBool, 0, 1
		switch h.defaultHint() {
		case HintDefault1, HintDefaultMaximum:
			p.Default = 1
		default:
			p.Default = 0
		}
		return
	}

	lower, upper := float64(p.Hint.Lower), float64(p.Hint.Upper)
	below, above := h.has(HintBoundedBelow), h.has(HintBoundedAbove)
	if p.RateRelative {
		lower *= rate
		upper *= rate
	}
	def, hasDef := literalDefault(h)
	switch {
	case !below && !above:
		center := 0.0
		if hasDef {
			center = def
		}
		lower, upper = center-unboundedSpan, center+unboundedSpan
	case !below:
		lower = upper - unboundedSpan
	case !above:
		upper = lower + unboundedSpan
	}
	if lower > upper {
		lower, upper = upper, lower
	}
	if !hasDef {
		def = rangeDefault(h.defaultHint(), lower, upper, p.Log)
	}
	def = math.Max(lower, math.Min(upper, def))

	switch {
	case p.Integer:
		p.Kind = graph.PropInt
		p.Min, p.Max, p.Default = math.Round(lower), math.Round(upper), math.Round(def)
	case p.RateRelative:
		p.Kind = graph.PropReal
		p.Frequency = true
		p.Min, p.Max, p.Default = lower, upper, def
		if def == 440 && lower > 0 && upper/lower >= 2 {
			p.NoteAlias = true
			p.NoteMin = max(0, int64(math.Ceil(freqToNote(lower))))
			p.NoteMax = min(127, int64(math.Floor(freqToNote(upper))))
		}
	default:
		p.Kind = graph.PropReal
		p.Min, p.Max, p.Default = lower, upper, def
	}
}

// literalDefault returns the fixed-value defaults 0, 1, 100 and 440.
func literalDefault(h HintDescriptor) (float64, bool) {
	switch h.defaultHint() {
	case HintDefault0:
		return 0, true
	case HintDefault1:
		return 1, true
	case HintDefault100:
		return 100, true
	case HintDefault440:
		return 440, true
	}
	return 0, false
}

// rangeDefault interpolates the bound-relative defaults, geometrically for
// logarithmic ports with positive bounds.
func rangeDefault(d HintDescriptor, lower, upper float64, log bool) float64 {
	w := 0.0
	switch d {
	case HintDefaultMinimum:
		return lower
	case HintDefaultMaximum:
		return upper
	case HintDefaultLow:
		w = 0.25
	case HintDefaultMiddle:
		w = 0.5
	case HintDefaultHigh:
		w = 0.75
	default:
		return math.Max(lower, math.Min(upper, 0))
	}
	if log && lower > 0 && upper > 0 {
		return math.Exp(math.Log(lower)*(1-w) + math.Log(upper)*w)
	}
	return lower*(1-w) + upper*w
}

func freqToNote(f float64) float64 { return 69 + 12*math.Log2(f/440) }

func noteToFreq(n float64) float64 { return 440 * math.Pow(2, (n-69)/12) }

// Property returns the property a control input port is exposed as.
func (p *PortInfo) Property() *graph.Property {
	var prop *graph.Property
	switch p.Kind {
	case graph.PropBool:
		prop = graph.BoolProperty(p.Ident, p.Name, p.Default >= 0.5)
	case graph.PropInt:
		prop = graph.IntProperty(p.Ident, p.Name, int64(p.Min), int64(p.Max), int64(p.Default))
		if p.Max-p.Min > 10 {
			prop.WithHints(graph.HintScale)
		}
	default:
		prop = graph.RealProperty(p.Ident, p.Name, p.Min, p.Max, p.Default).WithHints(graph.HintScale)
		if p.Log {
			prop.WithHints(graph.HintLog)
		}
		if p.Frequency {
			prop.WithHints(graph.HintFreq)
		}
	}
	return prop
}

// NoteProperty returns the note alias of a frequency port, nil without one.
func (p *PortInfo) NoteProperty() *graph.Property {
	if !p.NoteAlias {
		return nil
	}
	return graph.IntProperty(p.Ident+"-note", p.Name+" (note)", p.NoteMin, p.NoteMax, 69).WithHints(graph.HintNote | graph.HintScale)
}
