package graph

import (
	"errors"
	"fmt"

	"github.com/roach88/synthnet/internal/engine"
)

// Sentinel errors returned by network and source operations. Callers wrap
// them with context via fmt.Errorf("...: %w", err); test with errors.Is.
var (
	ErrPrepared       = errors.New("network is prepared")
	ErrNotPrepared    = errors.New("network is not prepared")
	ErrUnknownType    = errors.New("unknown source type")
	ErrDuplicateType  = errors.New("source type already registered")
	ErrDuplicateName  = errors.New("source name already in use")
	ErrNoSource       = errors.New("no such source")
	ErrNoChannel      = errors.New("no such channel")
	ErrChannelBusy    = errors.New("input channel already connected")
	ErrNotConnected   = errors.New("channels are not connected")
	ErrCycle          = errors.New("connection would create a cycle")
	ErrNoProperty     = errors.New("no such property")
	ErrPropertyType   = errors.New("property value has the wrong type")
	ErrPortNotOwned   = errors.New("virtual port is not registered by this owner")
	ErrForeignNetwork = errors.New("sources belong to different networks")
)

// consistency panics with a graph consistency violation. These come from
// internal logic only and are never returned as errors.
func consistency(op, source, format string, args ...any) {
	panic(&engine.ConsistencyError{Op: op, Module: source, Message: fmt.Sprintf(format, args...)})
}
