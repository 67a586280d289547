package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Signal tags the controller an event comes from.
type Signal int

const (
	// SignalNote is the velocity of a note-on; the parameter is the key.
	SignalNote Signal = iota + 1
	// SignalControl is a control change; the parameter is the controller.
	SignalControl
	// SignalPitchBend is the bipolar pitch wheel.
	SignalPitchBend
	// SignalChannelPressure is channel aftertouch.
	SignalChannelPressure
	// SignalPolyPressure is polyphonic aftertouch; the parameter is the key.
	SignalPolyPressure
	// SignalProgram is a program change, normalized over 0..127.
	SignalProgram
)

var signalNames = map[Signal]string{
	SignalNote:            "note",
	SignalControl:         "cc",
	SignalPitchBend:       "bend",
	SignalChannelPressure: "pressure",
	SignalPolyPressure:    "poly-pressure",
	SignalProgram:         "program",
}

// String returns the short signal name used in bindings and logs.
func (s Signal) String() string {
	if n, ok := signalNames[s]; ok {
		return n
	}
	return fmt.Sprintf("signal(%d)", int(s))
}

// Bipolar reports whether values of s span [-1, 1] instead of [0, 1].
func (s Signal) Bipolar() bool { return s == SignalPitchBend }

// ParseSignal is the inverse of Signal.String.
func ParseSignal(name string) (Signal, error) {
	for s, n := range signalNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown MIDI signal %q", name)
}

// Target addresses the events a binding listens to. Param is ignored for
// channel-wide signals and kept zero by Decode.
type Target struct {
	Channel uint8
	Signal  Signal
	Param   uint8
}

func (t Target) String() string {
	return fmt.Sprintf("ch%d/%s/%d", t.Channel+1, t.Signal, t.Param)
}

// Event is one normalized controller event.
type Event struct {
	Target
	// Value is in [0, 1], or [-1, 1] for bipolar signals.
	Value float64
}

// Decode maps msg onto an Event. Messages no binding can use (note-off,
// clock, sysex) report false.
func Decode(msg gomidi.Message) (Event, bool) {
	var ch, a, b uint8
	switch {
	case msg.GetNoteStart(&ch, &a, &b):
		return Event{Target{ch, SignalNote, a}, unit(b)}, true
	case msg.GetControlChange(&ch, &a, &b):
		return Event{Target{ch, SignalControl, a}, unit(b)}, true
	case msg.GetPolyAfterTouch(&ch, &a, &b):
		return Event{Target{ch, SignalPolyPressure, a}, unit(b)}, true
	case msg.GetAfterTouch(&ch, &a):
		return Event{Target{ch, SignalChannelPressure, 0}, unit(a)}, true
	case msg.GetProgramChange(&ch, &a):
		return Event{Target{ch, SignalProgram, 0}, unit(a)}, true
	}
	var rel int16
	var abs uint16
	if msg.GetPitchBend(&ch, &rel, &abs) {
		return Event{Target{ch, SignalPitchBend, 0}, max(-1, float64(rel)/8191)}, true
	}
	return Event{}, false
}

func unit(v uint8) float64 { return float64(v) / 127 }
