package testutil

import (
	"fmt"
	"io/fs"
	"sync"

	"github.com/roach88/synthnet/internal/ladspa"
)

// FakePort is one port of a FakePlugin.
type FakePort struct {
	Name  string
	Flags ladspa.PortDescriptor
	Hint  ladspa.PortRangeHint
}

// FakePlugin is one descriptor of a FakeLibrary.
//
// Process receives the connected port buffers by port index; control
// ports have length 1, audio ports are cut to n.
type FakePlugin struct {
	UniqueID uint64
	Label    string
	Name     string
	Ports    []FakePort
	Process  func(ports [][]float32, n int)

	// NoInstantiate and NoRun leave the entry points NULL.
	NoInstantiate bool
	NoRun         bool
	// FailInstantiate makes instantiate return NULL.
	FailInstantiate bool

	mu        sync.Mutex
	instances []*FakeInstance
}

// Instances returns every instance created so far.
func (p *FakePlugin) Instances() []*FakeInstance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*FakeInstance(nil), p.instances...)
}

func (p *FakePlugin) descriptor() *ladspa.Descriptor {
	d := &ladspa.Descriptor{
		UniqueID:   p.UniqueID,
		Label:      p.Label,
		Name:       p.Name,
		Properties: ladspa.PropertyHardRTCapable,
		Entry: ladspa.EntryPoints{
			ConnectPort: true,
			Activate:    true,
			Run:         !p.NoRun,
			Deactivate:  true,
			Cleanup:     true,
		},
	}
	for _, port := range p.Ports {
		d.PortDescriptors = append(d.PortDescriptors, port.Flags)
		d.PortNames = append(d.PortNames, port.Name)
		d.PortRangeHints = append(d.PortRangeHints, port.Hint)
	}
	if !p.NoInstantiate {
		d.Instantiate = p.instantiate
	}
	return d
}

func (p *FakePlugin) instantiate(rate uint64) (ladspa.Instance, error) {
	if p.FailInstantiate {
		return nil, fmt.Errorf("%s: instantiate returned NULL", p.Label)
	}
	inst := &FakeInstance{Rate: rate, plugin: p, ports: make([][]float32, len(p.Ports))}
	p.mu.Lock()
	p.instances = append(p.instances, inst)
	p.mu.Unlock()
	return inst, nil
}

// FakeInstance records what the host did to one plugin instance.
//
// Thread-safety: the counters are only read by tests after the engine has
// been drained; no locking.
type FakeInstance struct {
	Rate        uint64
	Activated   int
	Deactivated int
	CleanedUp   int
	Runs        int

	plugin *FakePlugin
	ports  [][]float32
}

// Port returns the buffer connected to port i.
func (i *FakeInstance) Port(port int) []float32 { return i.ports[port] }

func (i *FakeInstance) ConnectPort(port int, data []float32) { i.ports[port] = data }
func (i *FakeInstance) Activate()                            { i.Activated++ }
func (i *FakeInstance) Deactivate()                          { i.Deactivated++ }
func (i *FakeInstance) Cleanup()                             { i.CleanedUp++ }

func (i *FakeInstance) Run(n int) {
	i.Runs++
	if i.plugin.Process == nil {
		return
	}
	ports := make([][]float32, len(i.ports))
	for k, buf := range i.ports {
		if i.plugin.Ports[k].Flags&ladspa.PortAudio != 0 {
			buf = buf[:n]
		}
		ports[k] = buf
	}
	i.plugin.Process(ports, n)
}

// FakeLibrary is an in-memory plugin file.
type FakeLibrary struct {
	Plugins []*FakePlugin
	// NoSymbol simulates a library without ladspa_descriptor.
	NoSymbol bool
}

// FakeLoader implements ladspa.Loader over in-memory libraries and counts
// opens and closes per path.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeLoader struct {
	mu     sync.Mutex
	files  map[string]*FakeLibrary
	opens  map[string]int
	closes map[string]int
}

// NewFakeLoader returns an empty loader.
func NewFakeLoader() *FakeLoader {
	return &FakeLoader{
		files:  make(map[string]*FakeLibrary),
		opens:  make(map[string]int),
		closes: make(map[string]int),
	}
}

// Put installs plugins as the library at path, replacing what was there.
func (l *FakeLoader) Put(path string, plugins ...*FakePlugin) *FakeLibrary {
	lib := &FakeLibrary{Plugins: plugins}
	l.PutLibrary(path, lib)
	return lib
}

// PutLibrary installs lib at path.
func (l *FakeLoader) PutLibrary(path string, lib *FakeLibrary) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.files[path] = lib
}

// Opens returns how often path was opened.
func (l *FakeLoader) Opens(path string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opens[path]
}

// Closes returns how often path was closed.
func (l *FakeLoader) Closes(path string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes[path]
}

// Open implements ladspa.Loader.
func (l *FakeLoader) Open(path string) (ladspa.Library, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lib, ok := l.files[path]
	if !ok {
		return nil, ladspa.NewOpenError(path, fs.ErrNotExist)
	}
	if lib.NoSymbol {
		return nil, ladspa.NewNoSuchFunctionError(path)
	}
	l.opens[path]++
	return &openLibrary{loader: l, path: path, lib: lib}, nil
}

type openLibrary struct {
	loader *FakeLoader
	path   string
	lib    *FakeLibrary
	closed bool
}

func (o *openLibrary) Descriptor(index int) (*ladspa.Descriptor, bool) {
	if index < 0 || index >= len(o.lib.Plugins) {
		return nil, false
	}
	return o.lib.Plugins[index].descriptor(), true
}

func (o *openLibrary) Close() error {
	if o.closed {
		return fmt.Errorf("%s closed twice", o.path)
	}
	o.closed = true
	o.loader.mu.Lock()
	defer o.loader.mu.Unlock()
	o.loader.closes[o.path]++
	return nil
}
