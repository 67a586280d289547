package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/synthnet/internal/midi"
)

// Scenario defines a scripted run of one network.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Network is the path of the CUE file declaring the network.
	// Relative paths are resolved against the scenario file location.
	Network string `yaml:"network,omitempty"`

	// CUE is inline CUE text, used instead of Network.
	CUE string `yaml:"cue,omitempty"`

	// Select names the network to run. Defaults to the first declared.
	Select string `yaml:"select,omitempty"`

	// SampleRate and BlockSize configure the engine. Zero keeps the
	// engine defaults.
	SampleRate int `yaml:"sample_rate,omitempty"`
	BlockSize  int `yaml:"block_size,omitempty"`

	// Steps run in order on the control side.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one control-side operation. Exactly one operation field is set.
type Step struct {
	Prepare    bool       `yaml:"prepare,omitempty"`
	Unprepare  bool       `yaml:"unprepare,omitempty"`
	Spawn      string     `yaml:"spawn,omitempty"`   // context alias
	Release    string     `yaml:"release,omitempty"` // context alias
	Set        *SetStep   `yaml:"set,omitempty"`
	Connect    string     `yaml:"connect,omitempty"`    // "src.out -> dst.in"
	Disconnect string     `yaml:"disconnect,omitempty"` // "src.out -> dst.in"
	Bind       *BindStep  `yaml:"bind,omitempty"`
	MIDI       *MIDIStep  `yaml:"midi,omitempty"`
	Blocks     int        `yaml:"blocks,omitempty"` // render extra blocks
	Check      Assertions `yaml:"check,omitempty"`

	// Error, if set, expects the step to fail with a message containing it.
	Error string `yaml:"error,omitempty"`
}

// Assertions is a list of assertions evaluated at one point of the run.
type Assertions []Assertion

// SetStep writes a property.
type SetStep struct {
	Source   string `yaml:"source"`
	Property string `yaml:"property"`
	Value    any    `yaml:"value"`
}

// BindStep binds a property to a MIDI controller.
type BindStep struct {
	Source   string `yaml:"source"`
	Property string `yaml:"property"`
	Channel  int    `yaml:"channel"` // 1-16
	Signal   string `yaml:"signal"`  // note, cc, bend, pressure, poly-pressure, program
	Param    int    `yaml:"param"`
}

// MIDIStep delivers one normalized controller event.
type MIDIStep struct {
	Channel int     `yaml:"channel"` // 1-16
	Signal  string  `yaml:"signal"`
	Param   int     `yaml:"param"`
	Value   float64 `yaml:"value"`
}

// Assertion validates the trace or the live state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "output": Samples of Source's Channel output in Context
	// - "master": Samples of master bus Channel ("left" or "right")
	// - "property": Value of Source's Property
	// - "contexts": Count live contexts of Source, or of the network
	// - "trace_contains": Job appears in the trace
	// - "trace_order": Jobs appear in order
	// - "trace_count": Kind appears exactly Count times
	Type string `yaml:"type"`

	Source   string `yaml:"source,omitempty"`
	Context  string `yaml:"context,omitempty"`
	Channel  string `yaml:"channel,omitempty"`
	Property string `yaml:"property,omitempty"`

	// Samples are the expected leading samples (output, master).
	Samples []float64 `yaml:"samples,omitempty"`

	// Tolerance is the allowed absolute sample error. Defaults to 1e-6.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// Value is the expected property value.
	Value any `yaml:"value,omitempty"`

	// Count is the expected number of contexts or jobs.
	Count int `yaml:"count,omitempty"`

	// Job is a job as rendered in the trace (trace_contains).
	Job string `yaml:"job,omitempty"`

	// Jobs is the expected job order (trace_order).
	Jobs []string `yaml:"jobs,omitempty"`

	// Kind is a job kind such as "integrate" (trace_count).
	Kind string `yaml:"kind,omitempty"`
}

// Assertion type constants.
const (
	AssertOutput        = "output"
	AssertMaster        = "master"
	AssertProperty      = "property"
	AssertContexts      = "contexts"
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative network path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if scenario.Network != "" && !filepath.IsAbs(scenario.Network) {
		scenario.Network = filepath.Join(filepath.Dir(path), scenario.Network)
	}

	// Validate again now that the network path is resolved
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "step:" vs "steps:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateShape(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid and
// that the network file exists.
func validateScenario(s *Scenario) error {
	if err := validateShape(s); err != nil {
		return err
	}
	if s.Network != "" {
		if _, err := os.Stat(s.Network); os.IsNotExist(err) {
			return fmt.Errorf("network file not found: %s", s.Network)
		}
	}
	return nil
}

// validateShape checks everything that does not need the filesystem.
func validateShape(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Network == "" && s.CUE == "":
		return fmt.Errorf("network or cue is required")
	case s.Network != "" && s.CUE != "":
		return fmt.Errorf("network and cue are mutually exclusive")
	}

	if s.SampleRate < 0 || s.BlockSize < 0 {
		return fmt.Errorf("sample_rate and block_size must be non-negative")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(fmt.Sprintf("assertions[%d]", i), &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks that exactly one operation is set and that its
// arguments are complete.
func validateStep(index int, st *Step) error {
	ops := 0
	count := func(set bool) {
		if set {
			ops++
		}
	}
	count(st.Prepare)
	count(st.Unprepare)
	count(st.Spawn != "")
	count(st.Release != "")
	count(st.Set != nil)
	count(st.Connect != "")
	count(st.Disconnect != "")
	count(st.Bind != nil)
	count(st.MIDI != nil)
	count(st.Blocks != 0)
	count(len(st.Check) > 0)
	if ops != 1 {
		return fmt.Errorf("steps[%d]: exactly one operation is required, got %d", index, ops)
	}

	switch {
	case st.Blocks < 0:
		return fmt.Errorf("steps[%d]: blocks must be positive", index)
	case st.Set != nil && (st.Set.Source == "" || st.Set.Property == ""):
		return fmt.Errorf("steps[%d].set: source and property are required", index)
	case st.Bind != nil:
		if st.Bind.Source == "" || st.Bind.Property == "" {
			return fmt.Errorf("steps[%d].bind: source and property are required", index)
		}
		if err := validateController(st.Bind.Channel, st.Bind.Signal, st.Bind.Param); err != nil {
			return fmt.Errorf("steps[%d].bind: %w", index, err)
		}
	case st.MIDI != nil:
		if err := validateController(st.MIDI.Channel, st.MIDI.Signal, st.MIDI.Param); err != nil {
			return fmt.Errorf("steps[%d].midi: %w", index, err)
		}
	}

	for i := range st.Check {
		if err := validateAssertion(fmt.Sprintf("steps[%d].check[%d]", index, i), &st.Check[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateController(channel int, signal string, param int) error {
	if channel < 1 || channel > 16 {
		return fmt.Errorf("channel %d out of range 1-16", channel)
	}
	if _, err := midi.ParseSignal(signal); err != nil {
		return err
	}
	if param < 0 || param > 127 {
		return fmt.Errorf("param %d out of range 0-127", param)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(where string, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("%s: type is required", where)
	}

	switch a.Type {
	case AssertOutput:
		if a.Source == "" || a.Context == "" {
			return fmt.Errorf("%s: source and context are required for output", where)
		}
		if len(a.Samples) == 0 {
			return fmt.Errorf("%s: samples are required for output", where)
		}
	case AssertMaster:
		if a.Channel != "" && a.Channel != "left" && a.Channel != "right" {
			return fmt.Errorf("%s: master channel must be left or right, got %q", where, a.Channel)
		}
		if len(a.Samples) == 0 {
			return fmt.Errorf("%s: samples are required for master", where)
		}
	case AssertProperty:
		if a.Source == "" || a.Property == "" {
			return fmt.Errorf("%s: source and property are required for property", where)
		}
		if a.Value == nil {
			return fmt.Errorf("%s: value is required for property", where)
		}
	case AssertContexts, AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("%s: count must be non-negative for %s", where, a.Type)
		}
		if a.Type == AssertTraceCount && a.Kind == "" {
			return fmt.Errorf("%s: kind is required for trace_count", where)
		}
	case AssertTraceContains:
		if a.Job == "" {
			return fmt.Errorf("%s: job is required for trace_contains", where)
		}
	case AssertTraceOrder:
		if len(a.Jobs) == 0 {
			return fmt.Errorf("%s: jobs list is required for trace_order", where)
		}
	default:
		return fmt.Errorf("%s: unknown assertion type %q", where, a.Type)
	}

	return nil
}
