package ladspa

import (
	"errors"
	"fmt"
)

// PluginErrorCode categorizes plugin configuration and load errors.
type PluginErrorCode string

const (
	// ErrCodeNoSuchFunction: the library exports no ladspa_descriptor.
	ErrCodeNoSuchFunction PluginErrorCode = "NO_SUCH_FUNCTION"

	// ErrCodeBrokenPlugin: the descriptor is incomplete or inconsistent.
	ErrCodeBrokenPlugin PluginErrorCode = "BROKEN_PLUGIN"

	// ErrCodeTypesChanged: the file on disk no longer matches the ports
	// captured when it was scanned.
	ErrCodeTypesChanged PluginErrorCode = "TYPES_CHANGED"

	// ErrCodeOpenFailed: the library could not be opened.
	ErrCodeOpenFailed PluginErrorCode = "OPEN_FAILED"

	// ErrCodeInstantiateFailed: instantiate returned no handle.
	ErrCodeInstantiateFailed PluginErrorCode = "INSTANTIATE_FAILED"
)

// PluginError is a plugin configuration or native-call failure. The
// affected plugin or type becomes unusable; the process continues.
type PluginError struct {
	Code    PluginErrorCode
	Path    string
	Index   int // descriptor index, -1 for file-wide errors
	Label   string
	Message string
}

// Error implements the error interface.
func (e *PluginError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("%s: %s (%s #%d %s)", e.Code, e.Message, e.Path, e.Index, e.Label)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Path)
}

func hasCode(err error, code PluginErrorCode) bool {
	var pe *PluginError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsTypesChanged reports whether err is a TYPES_CHANGED plugin error.
func IsTypesChanged(err error) bool { return hasCode(err, ErrCodeTypesChanged) }

// IsNoSuchFunction reports whether err is a NO_SUCH_FUNCTION plugin error.
func IsNoSuchFunction(err error) bool { return hasCode(err, ErrCodeNoSuchFunction) }

// IsOpenFailed reports whether err is an OPEN_FAILED plugin error.
func IsOpenFailed(err error) bool { return hasCode(err, ErrCodeOpenFailed) }

// NewNoSuchFunctionError reports a library without a descriptor function.
func NewNoSuchFunctionError(path string) *PluginError {
	return &PluginError{Code: ErrCodeNoSuchFunction, Path: path, Index: -1, Message: "no such function: ladspa_descriptor"}
}

// NewOpenError reports a library that failed to open.
func NewOpenError(path string, cause error) *PluginError {
	return &PluginError{Code: ErrCodeOpenFailed, Path: path, Index: -1, Message: cause.Error()}
}

func newTypesChangedError(path string, index int, label, detail string) *PluginError {
	return &PluginError{
		Code:    ErrCodeTypesChanged,
		Path:    path,
		Index:   index,
		Label:   label,
		Message: "plugin types changed on disk: " + detail,
	}
}
