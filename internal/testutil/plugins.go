package testutil

import "github.com/roach88/synthnet/internal/ladspa"

const (
	controlIn = ladspa.PortInput | ladspa.PortControl
	audioIn   = ladspa.PortInput | ladspa.PortAudio
	audioOut  = ladspa.PortOutput | ladspa.PortAudio
)

// AmpPlugin scales its input by a "Gain" control bounded to [0, 10],
// defaulting to 1.
func AmpPlugin() *FakePlugin {
	return &FakePlugin{
		UniqueID: 1048,
		Label:    "amp_mono",
		Name:     "Mono Amplifier",
		Ports: []FakePort{
			{Name: "Gain", Flags: controlIn, Hint: ladspa.PortRangeHint{
				Hints: ladspa.HintBoundedBelow | ladspa.HintBoundedAbove | ladspa.HintDefault1,
				Lower: 0, Upper: 10,
			}},
			{Name: "Input", Flags: audioIn},
			{Name: "Output", Flags: audioOut},
		},
		Process: func(ports [][]float32, n int) {
			g := ports[0][0]
			for i := range n {
				ports[2][i] = ports[1][i] * g
			}
		},
	}
}

// BypassPlugin passes its input through when "Bypass" is on and halves it
// otherwise. Bypass is a toggle defaulting to off.
func BypassPlugin() *FakePlugin {
	return &FakePlugin{
		UniqueID: 2001,
		Label:    "bypass",
		Name:     "Bypass Switch",
		Ports: []FakePort{
			{Name: "Bypass", Flags: controlIn, Hint: ladspa.PortRangeHint{
				Hints: ladspa.HintToggled | ladspa.HintDefault0,
			}},
			{Name: "In", Flags: audioIn},
			{Name: "Out", Flags: audioOut},
		},
		Process: func(ports [][]float32, n int) {
			g := float32(0.5)
			if ports[0][0] >= 0.5 {
				g = 1
			}
			for i := range n {
				ports[2][i] = ports[1][i] * g
			}
		},
	}
}

// ProbePlugin writes the raw value of its rate-relative "Frequency"
// control into its output, so tests can observe what reached the native
// port. Frequency spans [0.0001, 0.5] times the sample rate and defaults
// to 440 Hz.
func ProbePlugin() *FakePlugin {
	return &FakePlugin{
		UniqueID: 3003,
		Label:    "freq_probe",
		Name:     "Frequency Probe",
		Ports: []FakePort{
			{Name: "Frequency (Hz)", Flags: controlIn, Hint: ladspa.PortRangeHint{
				Hints: ladspa.HintBoundedBelow | ladspa.HintBoundedAbove | ladspa.HintSampleRate |
					ladspa.HintLogarithmic | ladspa.HintDefault440,
				Lower: 0.0001, Upper: 0.5,
			}},
			{Name: "Output", Flags: audioOut},
		},
		Process: func(ports [][]float32, n int) {
			for i := range n {
				ports[1][i] = ports[0][0]
			}
		},
	}
}

// RatePlugin copies a rate-relative audio input to a rate-relative audio
// output.
func RatePlugin() *FakePlugin {
	return &FakePlugin{
		UniqueID: 4004,
		Label:    "rate_copy",
		Name:     "Rate Copy",
		Ports: []FakePort{
			{Name: "Freq in", Flags: audioIn, Hint: ladspa.PortRangeHint{Hints: ladspa.HintSampleRate}},
			{Name: "Freq out", Flags: audioOut, Hint: ladspa.PortRangeHint{Hints: ladspa.HintSampleRate}},
			{Name: "Native", Flags: audioOut},
		},
		Process: func(ports [][]float32, n int) {
			copy(ports[1][:n], ports[0][:n])
			copy(ports[2][:n], ports[0][:n])
		},
	}
}
