//go:build !(darwin || linux || freebsd)

package ladspa

import (
	"errors"
	"runtime"
)

// NativeLoader is unavailable on this platform; every Open fails.
type NativeLoader struct{}

// Open always returns an OPEN_FAILED error.
func (NativeLoader) Open(path string) (Library, error) {
	return nil, NewOpenError(path, errors.New("native plugins are not supported on "+runtime.GOOS))
}
