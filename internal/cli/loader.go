package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/synthnet/internal/compiler"
	"github.com/roach88/synthnet/internal/engine"
	"github.com/roach88/synthnet/internal/graph"
	"github.com/roach88/synthnet/internal/ir"
	"github.com/roach88/synthnet/internal/ladspa"
	"github.com/roach88/synthnet/internal/modules"
	"github.com/roach88/synthnet/internal/store"
)

// LoadError represents an error that occurred while loading networks.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands. Network
// validation codes (E1xx) come from the compiler.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path or network not found
	ErrCodeCompile     = "E006" // Network definition does not compile
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeStore       = "E008" // Database error
	ErrCodeBuild       = "E009" // Network could not be instantiated
)

// LoadNetworks compiles every network declared in path, which is either a
// CUE file or a directory holding one CUE package. All errors are
// collected.
func LoadNetworks(path string) ([]ir.NetworkSpec, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", path, err)}}
	}

	if !info.IsDir() {
		specs, err := compiler.LoadFile(path)
		if err != nil {
			return nil, []error{convertCompileError(err)}
		}
		return specs, nil
	}

	cueFiles, err := FindCUEFiles(path)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}}
	}

	specs, errs := compiler.LoadDir(path)
	out := make([]error, len(errs))
	for i, err := range errs {
		out[i] = convertCompileError(err)
	}
	return specs, out
}

// FindCUEFiles returns the .cue files directly inside dir.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeCompile,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	code := ErrCodeCompile
	if errors.Is(err, os.ErrNotExist) {
		code = ErrCodeNotFound
	}
	return &LoadError{Code: code, Message: err.Error()}
}

// NetworkSource selects one network: from a CUE file or directory, or,
// with a database, a stored network by name or id.
type NetworkSource struct {
	Ref      string // path, or stored name/id with Database
	Network  string // network name inside a CUE source; first when empty
	Database string
}

// Resolve loads and validates the selected network.
func (s NetworkSource) Resolve(ctx context.Context) (ir.NetworkSpec, error) {
	var spec ir.NetworkSpec
	if _, statErr := os.Stat(s.Ref); statErr != nil && s.Database != "" {
		st, err := store.Open(s.Database)
		if err != nil {
			return ir.NetworkSpec{}, &LoadError{Code: ErrCodeStore, Message: err.Error()}
		}
		defer st.Close()
		spec, err = st.LoadNetwork(ctx, s.Ref)
		if errors.Is(err, store.ErrNotFound) {
			return ir.NetworkSpec{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("network %q not stored", s.Ref)}
		}
		if err != nil {
			return ir.NetworkSpec{}, &LoadError{Code: ErrCodeStore, Message: err.Error()}
		}
	} else {
		specs, errs := LoadNetworks(s.Ref)
		if len(errs) > 0 {
			return ir.NetworkSpec{}, errs[0]
		}
		if len(specs) == 0 {
			return ir.NetworkSpec{}, &LoadError{Code: ErrCodeNotFound, Message: "no networks declared"}
		}
		spec = specs[0]
		if s.Network != "" {
			var ok bool
			if spec, ok = compiler.Lookup(specs, s.Network); !ok {
				return ir.NetworkSpec{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("network %q not declared in %s", s.Network, s.Ref)}
			}
		}
	}

	if verrs := compiler.Validate(spec); len(verrs) > 0 {
		return ir.NetworkSpec{}, &LoadError{Code: verrs[0].Code, Message: fmt.Sprintf("network %s: %s: %s", spec.Name, verrs[0].Field, verrs[0].Message)}
	}
	return spec, nil
}

// RuntimeOptions configures the engine a network runs on.
type RuntimeOptions struct {
	SampleRate int
	BlockSize  int
	Plugins    []string // LADSPA files or directories to scan
	Sets       []string // "source.property=value" applied before prepare
}

// Runtime is a network built on its own engine.
type Runtime struct {
	Engine  *engine.Engine
	Network *graph.Network
	Host    *ladspa.Host
}

// buildRuntime registers the built-in and plugin types, builds spec and
// applies the property overrides. The network is left unprepared.
func buildRuntime(spec ir.NetworkSpec, opts RuntimeOptions, logger *slog.Logger) (*Runtime, error) {
	eng := engine.New(
		engine.WithSampleRate(opts.SampleRate),
		engine.WithBlockSize(opts.BlockSize),
		engine.WithLogger(logger),
	)

	types := modules.NewRegistry()
	host := ladspa.NewHost(types, ladspa.WithSampleRate(eng.SampleRate()), ladspa.WithLogger(logger))
	if len(opts.Plugins) > 0 {
		infos, err := host.ScanPaths(opts.Plugins)
		if err != nil {
			logger.Warn("plugin scan incomplete", "error", err)
		}
		logger.Debug("plugins scanned", "plugins", len(infos))
	}

	net, err := graph.Build(spec, eng, types, graph.WithLogger(logger))
	if err != nil {
		return nil, &LoadError{Code: ErrCodeBuild, Message: err.Error()}
	}

	for _, set := range opts.Sets {
		if err := applySet(net, set); err != nil {
			return nil, &LoadError{Code: ErrCodeBuild, Message: err.Error()}
		}
	}

	return &Runtime{Engine: eng, Network: net, Host: host}, nil
}

// applySet parses "source.property=value" and writes the property. The
// value is read as a YAML scalar, so 0.5, 3, true and saw all work.
func applySet(net *graph.Network, set string) error {
	lhs, raw, ok := strings.Cut(set, "=")
	if !ok {
		return fmt.Errorf("set %q: expected source.property=value", set)
	}
	name, prop, ok := strings.Cut(strings.TrimSpace(lhs), ".")
	if !ok || name == "" || prop == "" {
		return fmt.Errorf("set %q: expected source.property=value", set)
	}
	src, ok := net.Source(name)
	if !ok {
		return fmt.Errorf("set %q: source %q: %w", set, name, graph.ErrNoSource)
	}

	var decoded any
	if err := yaml.Unmarshal([]byte(raw), &decoded); err != nil {
		return fmt.Errorf("set %q: %w", set, err)
	}
	v, err := ir.FromAny(decoded)
	if err != nil {
		return fmt.Errorf("set %q: %w", set, err)
	}
	_, err = src.Set(prop, v)
	return err
}

// shutdown unprepares the network and lets the engine drain and collect
// the dismissal. The caller must own the realtime side.
func (r *Runtime) shutdown() {
	r.Network.Unprepare()
	for r.Engine.Pending() > 0 {
		r.Engine.ProcessBlock()
	}
	r.Engine.CollectGarbage()
}
