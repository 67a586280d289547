package ladspa

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/synthnet/internal/ir"
)

// pluginFile is the reference counted load state of one library. The
// harvested infos are the single source of truth about its plugins and
// survive every unload.
type pluginFile struct {
	path   string
	loader Loader
	log    *slog.Logger

	mu    sync.Mutex
	infos []*PluginInfo // by descriptor index
	refs  int
	lib   Library
	descs map[int]*Descriptor
}

// Use loads the library if it is not loaded yet, re-validating every valid
// plugin against the harvested port shapes, and takes a reference.
func (f *pluginFile) Use() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refs > 0 {
		f.refs++
		return nil
	}
	lib, err := f.loader.Open(f.path)
	if err != nil {
		return err
	}
	descs := make(map[int]*Descriptor)
	for _, info := range f.infos {
		if info.Broken {
			continue
		}
		d, err := revalidate(lib, info)
		if err != nil {
			if cerr := lib.Close(); cerr != nil {
				f.log.Warn("plugin close failed", "path", f.path, "error", cerr)
			}
			return err
		}
		descs[info.Index] = d
	}
	f.lib, f.descs, f.refs = lib, descs, 1
	f.log.Debug("plugin library loaded", "path", f.path)
	return nil
}

// Unuse drops a reference and closes the library at zero.
func (f *pluginFile) Unuse() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refs == 0 {
		panic(fmt.Sprintf("ladspa: unbalanced Unuse of %s", f.path))
	}
	f.refs--
	if f.refs > 0 {
		return
	}
	if err := f.lib.Close(); err != nil {
		f.log.Warn("plugin close failed", "path", f.path, "error", err)
	}
	f.lib, f.descs = nil, nil
	f.log.Debug("plugin library unloaded", "path", f.path)
}

// Loaded reports whether the library is open.
func (f *pluginFile) Loaded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refs > 0
}

// descriptor returns the loaded descriptor of index. Only valid while a
// reference is held.
func (f *pluginFile) descriptor(index int) (*Descriptor, Library) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.descs[index], f.lib
}

func revalidate(lib Library, info *PluginInfo) (*Descriptor, error) {
	d, ok := lib.Descriptor(info.Index)
	if !ok {
		return nil, newTypesChangedError(info.Path, info.Index, info.Label, "descriptor is gone")
	}
	if d.Label != info.Label {
		return nil, newTypesChangedError(info.Path, info.Index, info.Label, fmt.Sprintf("label is now %q", d.Label))
	}
	sig, err := ir.PortSignature(descriptorShapes(d))
	if err != nil {
		return nil, newTypesChangedError(info.Path, info.Index, info.Label, err.Error())
	}
	if sig != info.Signature {
		return nil, newTypesChangedError(info.Path, info.Index, info.Label,
			fmt.Sprintf("%d ports, signature %.12s, was %d ports, signature %.12s", len(d.PortDescriptors), sig, len(info.Ports), info.Signature))
	}
	return d, nil
}
