package compiler

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/synthnet/internal/ir"
)

// ErrNoNetworks is returned when a definition declares no networks.
var ErrNoNetworks = errors.New("no networks declared")

// CompileAll compiles every network declared under the "network" field of
// v, in declaration order. It collects every error instead of stopping at
// the first.
func CompileAll(v cue.Value) ([]ir.NetworkSpec, []error) {
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}
	netsVal := v.LookupPath(cue.ParsePath("network"))
	if !netsVal.Exists() {
		return nil, []error{ErrNoNetworks}
	}
	iter, err := netsVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var specs []ir.NetworkSpec
	var errs []error
	for iter.Next() {
		spec, err := CompileNetwork(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("network %s: %w", iter.Selector().Unquoted(), err))
			continue
		}
		specs = append(specs, *spec)
	}
	if len(specs) == 0 && len(errs) == 0 {
		errs = append(errs, ErrNoNetworks)
	}
	return specs, errs
}

// LoadFile compiles the networks of a single CUE file.
func LoadFile(path string) ([]ir.NetworkSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	specs, errs := CompileAll(v)
	if len(errs) > 0 {
		return nil, fmt.Errorf("%s: %w", path, errors.Join(errs...))
	}
	return specs, nil
}

// LoadDir loads the CUE package in dir and compiles its networks.
func LoadDir(dir string) ([]ir.NetworkSpec, []error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{fmt.Errorf("%s: no CUE instances loaded", dir)}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{fmt.Errorf("loading CUE files: %w", inst.Err)}
	}
	return CompileAll(cuecontext.New().BuildInstance(inst))
}

// Lookup returns the network named name among specs.
func Lookup(specs []ir.NetworkSpec, name string) (ir.NetworkSpec, bool) {
	for _, s := range specs {
		if s.Name == name {
			return s, true
		}
	}
	return ir.NetworkSpec{}, false
}
