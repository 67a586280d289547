//go:build darwin || linux || freebsd

package ladspa

import (
	"errors"
	"unsafe"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"
)

// NativeLoader opens LADSPA shared libraries with dlopen and calls into
// them without cgo.
type NativeLoader struct{}

// cPortRangeHint mirrors LADSPA_PortRangeHint.
type cPortRangeHint struct {
	Hints HintDescriptor
	Lower float32
	Upper float32
}

// cDescriptor mirrors the C layout of LADSPA_Descriptor on LP64 targets.
type cDescriptor struct {
	UniqueID           uintptr
	Label              *byte
	Properties         Properties
	Name               *byte
	Maker              *byte
	Copyright          *byte
	PortCount          uintptr
	PortDescriptors    *PortDescriptor
	PortNames          **byte
	PortRangeHints     *cPortRangeHint
	ImplementationData uintptr

	Instantiate      uintptr
	ConnectPort      uintptr
	Activate         uintptr
	Run              uintptr
	RunAdding        uintptr
	SetRunAddingGain uintptr
	Deactivate       uintptr
	Cleanup          uintptr
}

// Open dlopens path and resolves ladspa_descriptor.
func (NativeLoader) Open(path string) (Library, error) {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, NewOpenError(path, err)
	}
	sym, err := purego.Dlsym(h, "ladspa_descriptor")
	if err != nil || sym == 0 {
		_ = purego.Dlclose(h)
		return nil, NewNoSuchFunctionError(path)
	}
	lib := &nativeLibrary{path: path, handle: h}
	purego.RegisterFunc(&lib.descriptor, sym)
	return lib, nil
}

type nativeLibrary struct {
	path       string
	handle     uintptr
	descriptor func(index uintptr) unsafe.Pointer
}

func (l *nativeLibrary) Descriptor(index int) (*Descriptor, bool) {
	p := l.descriptor(uintptr(index))
	if p == nil {
		return nil, false
	}
	return convertDescriptor((*cDescriptor)(p)), true
}

func (l *nativeLibrary) Close() error {
	return purego.Dlclose(l.handle)
}

// Alloc maps anonymous memory for port buffers so the plugin never holds
// pointers into the Go heap.
func (l *nativeLibrary) Alloc(floats int) (Memory, error) {
	if floats <= 0 {
		return heapMemory(nil), nil
	}
	raw, err := unix.Mmap(-1, 0, floats*4, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return &mappedMemory{raw: raw, floats: unsafe.Slice((*float32)(unsafe.Pointer(&raw[0])), floats)}, nil
}

type mappedMemory struct {
	raw    []byte
	floats []float32
}

func (m *mappedMemory) Floats() []float32 { return m.floats }

func (m *mappedMemory) Release() error {
	if m.raw == nil {
		return errors.New("port memory released twice")
	}
	err := unix.Munmap(m.raw)
	m.raw, m.floats = nil, nil
	return err
}

func convertDescriptor(c *cDescriptor) *Descriptor {
	n := int(c.PortCount)
	d := &Descriptor{
		UniqueID:   uint64(c.UniqueID),
		Label:      cString(c.Label),
		Properties: c.Properties,
		Name:       cString(c.Name),
		Maker:      cString(c.Maker),
		Copyright:  cString(c.Copyright),
		Entry: EntryPoints{
			ConnectPort: c.ConnectPort != 0,
			Activate:    c.Activate != 0,
			Run:         c.Run != 0,
			RunAdding:   c.RunAdding != 0,
			Deactivate:  c.Deactivate != 0,
			Cleanup:     c.Cleanup != 0,
		},
	}
	if n > 0 && c.PortDescriptors != nil {
		d.PortDescriptors = append([]PortDescriptor(nil), unsafe.Slice(c.PortDescriptors, n)...)
	}
	if n > 0 && c.PortNames != nil {
		for _, s := range unsafe.Slice(c.PortNames, n) {
			d.PortNames = append(d.PortNames, cString(s))
		}
	}
	if n > 0 && c.PortRangeHints != nil {
		for _, h := range unsafe.Slice(c.PortRangeHints, n) {
			d.PortRangeHints = append(d.PortRangeHints, PortRangeHint(h))
		}
	}
	if c.Instantiate != 0 {
		d.Instantiate = func(rate uint64) (Instance, error) {
			h, _, _ := purego.SyscallN(c.Instantiate, uintptr(unsafe.Pointer(c)), uintptr(rate))
			if h == 0 {
				return nil, errors.New("instantiate returned NULL")
			}
			return &nativeInstance{desc: c, handle: h}, nil
		}
	}
	return d
}

func cString(p *byte) string {
	if p == nil {
		return ""
	}
	return unix.BytePtrToString(p)
}

type nativeInstance struct {
	desc   *cDescriptor
	handle uintptr
}

func (i *nativeInstance) call(fn uintptr, args ...uintptr) {
	if fn == 0 {
		return
	}
	purego.SyscallN(fn, append([]uintptr{i.handle}, args...)...)
}

func (i *nativeInstance) ConnectPort(port int, data []float32) {
	var p uintptr
	if len(data) > 0 {
		p = uintptr(unsafe.Pointer(&data[0]))
	}
	i.call(i.desc.ConnectPort, uintptr(port), p)
}

func (i *nativeInstance) Activate()       { i.call(i.desc.Activate) }
func (i *nativeInstance) Run(samples int) { i.call(i.desc.Run, uintptr(samples)) }
func (i *nativeInstance) Deactivate()     { i.call(i.desc.Deactivate) }

func (i *nativeInstance) Cleanup() {
	i.call(i.desc.Cleanup)
	i.handle = 0
}
