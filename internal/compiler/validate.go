package compiler

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/roach88/synthnet/internal/ir"
	"github.com/roach88/synthnet/internal/modules"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// Network errors (E101-E109)
	ErrNetworkNameEmpty   = "E101" // name is required
	ErrNetworkNoSources   = "E102" // at least one source required
	ErrInvalidSourceName  = "E103" // source name not an identifier
	ErrSourceTypeEmpty    = "E104" // type is required
	ErrDuplicateName      = "E105" // duplicate source name
	ErrSubnetMismatch     = "E106" // network on a non-subnet, or subnet without one
	ErrInvalidPropertyVal = "E107" // property value not a finite scalar

	// Connection errors (E110-E119)
	ErrUnknownSource       = "E110" // endpoint names no source
	ErrEmptyChannel        = "E111" // endpoint without channel
	ErrDuplicateConnection = "E112" // same link declared twice
	ErrFeedbackLoop        = "E113" // connections form a cycle
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks the structure of a network description: names, source
// types, subnet nesting, property values and connection endpoints.
// Channel and property names are only known to the registered types and
// are checked by graph.Build.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.NetworkSpec:
		return validateNetwork(spec, "")
	case ir.NetworkSpec:
		return validateNetwork(&spec, "")
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// sourceNamePattern matches names usable as the first half of an
// endpoint: no dots, no spaces.
var sourceNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

func validateNetwork(spec *ir.NetworkSpec, prefix string) []ValidationError {
	var errs []ValidationError

	// E101: name is required
	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + "name",
			Message: "network name is required and must be non-empty",
			Code:    ErrNetworkNameEmpty,
		})
	}

	// E102: at least one source
	if len(spec.Sources) == 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + "sources",
			Message: "at least one source is required",
			Code:    ErrNetworkNoSources,
		})
	}

	names := make(map[string]bool)
	for i, src := range spec.Sources {
		field := fmt.Sprintf("%ssources[%d]", prefix, i)

		// E103, E105
		if !sourceNamePattern.MatchString(src.Name) {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("invalid source name %q", src.Name),
				Code:    ErrInvalidSourceName,
			})
		} else if names[src.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate source name: %q", src.Name),
				Code:    ErrDuplicateName,
			})
		}
		names[src.Name] = true

		// E104
		if strings.TrimSpace(src.Type) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: fmt.Sprintf("source %q has no type", src.Name),
				Code:    ErrSourceTypeEmpty,
			})
		}

		// E106
		switch {
		case src.Type == modules.TypeSubNet && src.Network == nil:
			errs = append(errs, ValidationError{
				Field:   field + ".network",
				Message: fmt.Sprintf("subnet %q has no network", src.Name),
				Code:    ErrSubnetMismatch,
			})
		case src.Type != modules.TypeSubNet && src.Network != nil:
			errs = append(errs, ValidationError{
				Field:   field + ".network",
				Message: fmt.Sprintf("source %q of type %q cannot hold a network", src.Name, src.Type),
				Code:    ErrSubnetMismatch,
			})
		}
		if src.Network != nil {
			errs = append(errs, validateNetwork(src.Network, field+".network.")...)
		}

		// E107
		for _, key := range src.Properties.SortedKeys() {
			if msg := checkPropertyValue(src.Properties[key]); msg != "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.properties.%s", field, key),
					Message: msg,
					Code:    ErrInvalidPropertyVal,
				})
			}
		}
	}

	seen := make(map[ir.ConnectionSpec]bool)
	for i, c := range spec.Connections {
		field := fmt.Sprintf("%sconnections[%d]", prefix, i)
		for _, end := range []struct{ side, source, channel string }{
			{"from", c.From, c.FromChannel},
			{"to", c.To, c.ToChannel},
		} {
			// E110
			if !names[end.source] {
				errs = append(errs, ValidationError{
					Field:   field + "." + end.side,
					Message: fmt.Sprintf("unknown source %q", end.source),
					Code:    ErrUnknownSource,
				})
			}
			// E111
			if strings.TrimSpace(end.channel) == "" {
				errs = append(errs, ValidationError{
					Field:   field + "." + end.side,
					Message: fmt.Sprintf("endpoint on %q names no channel", end.source),
					Code:    ErrEmptyChannel,
				})
			}
		}
		// E112
		if seen[c] {
			errs = append(errs, ValidationError{
				Field: field,
				Message: fmt.Sprintf("duplicate connection %s.%s -> %s.%s",
					c.From, c.FromChannel, c.To, c.ToChannel),
				Code: ErrDuplicateConnection,
			})
		}
		seen[c] = true
	}

	// E113
	for _, cycle := range FindCycles(*spec) {
		errs = append(errs, ValidationError{
			Field:   prefix + "connections",
			Message: cycle.Message,
			Code:    ErrFeedbackLoop,
		})
	}

	return errs
}

// checkPropertyValue returns why v cannot be a property value, or "".
func checkPropertyValue(v ir.Value) string {
	switch x := v.(type) {
	case ir.Str, ir.Int, ir.Bool:
		return ""
	case ir.Real:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return "property value must be finite"
		}
		return ""
	default:
		return fmt.Sprintf("unsupported property value %T", v)
	}
}
