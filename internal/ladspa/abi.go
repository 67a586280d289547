package ladspa

// PortDescriptor classifies a port (LADSPA_PortDescriptor).
type PortDescriptor int32

const (
	PortInput   PortDescriptor = 0x1
	PortOutput  PortDescriptor = 0x2
	PortControl PortDescriptor = 0x4
	PortAudio   PortDescriptor = 0x8
)

func (d PortDescriptor) has(f PortDescriptor) bool { return d&f != 0 }

// HintDescriptor carries the range hints of a port (LADSPA_PortRangeHintDescriptor).
type HintDescriptor int32

const (
	HintBoundedBelow HintDescriptor = 0x1
	HintBoundedAbove HintDescriptor = 0x2
	HintToggled      HintDescriptor = 0x4
	HintSampleRate   HintDescriptor = 0x8
	HintLogarithmic  HintDescriptor = 0x10
	HintInteger      HintDescriptor = 0x20

	HintDefaultMask    HintDescriptor = 0x3C0
	HintDefaultNone    HintDescriptor = 0x0
	HintDefaultMinimum HintDescriptor = 0x40
	HintDefaultLow     HintDescriptor = 0x80
	HintDefaultMiddle  HintDescriptor = 0xC0
	HintDefaultHigh    HintDescriptor = 0x100
	HintDefaultMaximum HintDescriptor = 0x140
	HintDefault0       HintDescriptor = 0x200
	HintDefault1       HintDescriptor = 0x240
	HintDefault100     HintDescriptor = 0x280
	HintDefault440     HintDescriptor = 0x2C0
)

func (h HintDescriptor) has(f HintDescriptor) bool { return h&f != 0 }

func (h HintDescriptor) defaultHint() HintDescriptor { return h & HintDefaultMask }

// Properties are the plugin-wide flags (LADSPA_Properties).
type Properties int32

const (
	PropertyRealtime      Properties = 0x1
	PropertyInplaceBroken Properties = 0x2
	PropertyHardRTCapable Properties = 0x4
)

// PortRangeHint is the range hint of one port (LADSPA_PortRangeHint).
type PortRangeHint struct {
	Hints HintDescriptor
	Lower float32
	Upper float32
}

// EntryPoints records which optional and mandatory function pointers of a
// descriptor are present. Instantiate is carried by Descriptor itself.
type EntryPoints struct {
	ConnectPort bool
	Activate    bool
	Run         bool
	RunAdding   bool
	Deactivate  bool
	Cleanup     bool
}

// Descriptor mirrors one LADSPA_Descriptor. Nil slices stand for NULL
// arrays.
type Descriptor struct {
	UniqueID   uint64
	Label      string
	Properties Properties
	Name       string
	Maker      string
	Copyright  string

	PortDescriptors []PortDescriptor
	PortNames       []string
	PortRangeHints  []PortRangeHint

	// Instantiate creates a plugin instance; nil when the library leaves
	// the entry point NULL.
	Instantiate func(sampleRate uint64) (Instance, error)
	Entry       EntryPoints
}

// Instance is one instantiated plugin (a LADSPA_Handle plus the
// descriptor's function pointers). Methods whose entry point is missing
// are no-ops.
type Instance interface {
	ConnectPort(port int, data []float32)
	Activate()
	Run(samples int)
	Deactivate()
	Cleanup()
}

// Loader opens plugin libraries.
type Loader interface {
	Open(path string) (Library, error)
}

// Library is an open plugin library.
type Library interface {
	// Descriptor returns the descriptor at index, false past the last one.
	Descriptor(index int) (*Descriptor, bool)
	Close() error
}

// Memory is port buffer storage handed to an instance.
type Memory interface {
	Floats() []float32
	Release() error
}

// Allocator is implemented by libraries whose instances need port buffers
// outside the Go heap.
type Allocator interface {
	Alloc(floats int) (Memory, error)
}

type heapMemory []float32

func (m heapMemory) Floats() []float32 { return m }
func (heapMemory) Release() error      { return nil }

func allocate(lib Library, floats int) (Memory, error) {
	if a, ok := lib.(Allocator); ok {
		return a.Alloc(floats)
	}
	return heapMemory(make([]float32, floats)), nil
}
