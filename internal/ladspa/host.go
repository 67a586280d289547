package ladspa

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/synthnet/internal/engine"
	"github.com/roach88/synthnet/internal/graph"
)

// Host scans plugin files and registers their plugins as source types.
// It is safe for concurrent use.
type Host struct {
	types  *graph.TypeRegistry
	loader Loader
	rate   int
	log    *slog.Logger

	mu    sync.Mutex
	files map[string]*pluginFile
}

// Option configures a Host.
type Option func(*Host)

// WithLoader replaces the native loader.
func WithLoader(l Loader) Option {
	return func(h *Host) {
		h.loader = l
	}
}

// WithSampleRate sets the nominal sample rate that rate-relative port
// bounds are scaled with. Defaults to engine.DefaultSampleRate.
func WithSampleRate(rate int) Option {
	return func(h *Host) {
		if rate > 0 {
			h.rate = rate
		}
	}
}

// WithLogger sets the host logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		h.log = l
	}
}

// NewHost returns a host registering into types.
func NewHost(types *graph.TypeRegistry, opts ...Option) *Host {
	h := &Host{
		types:  types,
		loader: NativeLoader{},
		rate:   engine.DefaultSampleRate,
		log:    slog.Default(),
		files:  make(map[string]*pluginFile),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Scan harvests every descriptor of the library at path and registers one
// type per valid plugin. Broken plugins are returned with their reason and
// are not registered. A type name that is already registered is kept as
// is. The library is closed before Scan returns.
//
// Scanning a known path again harvests afresh but keeps the types bound to
// the metadata of the first scan.
func (h *Host) Scan(path string) ([]*PluginInfo, error) {
	lib, err := h.loader.Open(path)
	if err != nil {
		return nil, err
	}
	var infos []*PluginInfo
	for i := 0; ; i++ {
		d, ok := lib.Descriptor(i)
		if !ok {
			break
		}
		info := harvest(path, i, d, float64(h.rate))
		if info.Broken {
			h.log.Warn("broken plugin", "path", path, "index", i, "label", info.Label, "reason", info.Reason)
		}
		infos = append(infos, info)
	}
	if err := lib.Close(); err != nil {
		h.log.Warn("plugin close failed", "path", path, "error", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, known := h.files[path]; known {
		h.log.Debug("plugin file rescanned", "path", path, "plugins", len(infos))
		return infos, nil
	}
	f := &pluginFile{path: path, loader: h.loader, log: h.log, infos: infos}
	h.files[path] = f
	for _, info := range infos {
		if info.Broken {
			continue
		}
		err := h.types.Register(&graph.Type{
			Name:  info.TypeName,
			Blurb: info.Name,
			New:   func() graph.Kind { return &pluginKind{info: info, file: f} },
		})
		switch {
		case errors.Is(err, graph.ErrDuplicateType):
			h.log.Debug("plugin type already registered", "type", info.TypeName, "path", path)
		case err != nil:
			return infos, fmt.Errorf("scan %s: %w", path, err)
		default:
			h.log.Debug("plugin type registered", "type", info.TypeName, "path", path, "ports", len(info.Ports))
		}
	}
	return infos, nil
}

// ScanPaths scans every file given and every library directly inside the
// directories given. Failures are collected and scanning continues.
func (h *Host) ScanPaths(paths []string) ([]*PluginInfo, error) {
	var all []*PluginInfo
	var errs []error
	for _, p := range paths {
		files, err := libraryFiles(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, file := range files {
			infos, err := h.Scan(file)
			if err != nil {
				errs = append(errs, err)
			}
			all = append(all, infos...)
		}
	}
	return all, errors.Join(errs...)
}

func libraryFiles(path string) ([]string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && (strings.HasSuffix(e.Name(), ".so") || strings.HasSuffix(e.Name(), ".dylib")) {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	return files, nil
}

// Plugins returns the metadata of every scanned plugin, ordered by path
// and index.
func (h *Host) Plugins() []*PluginInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*PluginInfo
	for _, f := range h.files {
		out = append(out, f.infos...)
	}
	slices.SortFunc(out, func(a, b *PluginInfo) int {
		return cmp.Or(cmp.Compare(a.Path, b.Path), cmp.Compare(a.Index, b.Index))
	})
	return out
}

// Loaded reports whether the library at path is currently open.
func (h *Host) Loaded(path string) bool {
	h.mu.Lock()
	f, ok := h.files[path]
	h.mu.Unlock()
	return ok && f.Loaded()
}

// SearchPath returns the directories of LADSPA_PATH, or the conventional
// install locations when it is unset.
func SearchPath() []string {
	if env := os.Getenv("LADSPA_PATH"); env != "" {
		return filepath.SplitList(env)
	}
	return []string{"/usr/local/lib/ladspa", "/usr/lib/ladspa"}
}
