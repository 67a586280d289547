package compiler

import (
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/synthnet/internal/ir"
)

// CompileNetwork parses a CUE value into a NetworkSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the network struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`network: voice: { ... }`)
//	spec, err := CompileNetwork(v.LookupPath(cue.ParsePath("network.voice")))
//
// The network is named after its label unless it sets "name".
func CompileNetwork(v cue.Value) (*ir.NetworkSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   "network",
			Message: "network must be a struct",
			Pos:     v.Pos(),
		}
	}

	spec := &ir.NetworkSpec{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].Unquoted()
	}
	if nameVal := v.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.Name = name
	}

	var err error
	spec.Sources, err = parseSources(v)
	if err != nil {
		return nil, err
	}
	if len(spec.Sources) == 0 {
		return nil, &CompileError{
			Field:   "sources",
			Message: "at least one source is required",
			Pos:     v.Pos(),
		}
	}

	spec.Connections, err = parseConnections(v)
	if err != nil {
		return nil, err
	}
	return spec, nil
}

// parseSources extracts the sources in declaration order.
func parseSources(v cue.Value) ([]ir.SourceSpec, error) {
	var sources []ir.SourceSpec

	sourcesVal := v.LookupPath(cue.ParsePath("sources"))
	if !sourcesVal.Exists() {
		return sources, nil
	}

	iter, err := sourcesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Selector().Unquoted()
		srcVal := iter.Value()

		typeVal := srcVal.LookupPath(cue.ParsePath("type"))
		if !typeVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("sources.%s.type", name),
				Message: "source type is required",
				Pos:     srcVal.Pos(),
			}
		}
		typeName, err := typeVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		src := ir.SourceSpec{Name: name, Type: typeName}

		propsVal := srcVal.LookupPath(cue.ParsePath("properties"))
		if propsVal.Exists() {
			src.Properties, err = parseProperties(name, propsVal)
			if err != nil {
				return nil, err
			}
		}

		netVal := srcVal.LookupPath(cue.ParsePath("network"))
		if netVal.Exists() {
			child, err := CompileNetwork(netVal)
			if err != nil {
				return nil, err
			}
			if !netVal.LookupPath(cue.ParsePath("name")).Exists() {
				child.Name = name
			}
			src.Network = child
		}

		sources = append(sources, src)
	}

	return sources, nil
}

// parseProperties converts the concrete scalar fields of a properties
// struct. Integral literals stay Int; the graph coerces them where a real
// is expected.
func parseProperties(source string, v cue.Value) (ir.Object, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	props := ir.Object{}
	for iter.Next() {
		key := iter.Selector().Unquoted()
		val, err := extractValue(iter.Value(), fmt.Sprintf("sources.%s.properties.%s", source, key))
		if err != nil {
			return nil, err
		}
		props[key] = val
	}
	return props, nil
}

// extractValue converts a concrete CUE scalar to an ir.Value.
func extractValue(v cue.Value, field string) (ir.Value, error) {
	if !v.IsConcrete() {
		return nil, &CompileError{
			Field:   field,
			Message: "property value must be concrete",
			Pos:     v.Pos(),
		}
	}
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Str(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(n), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Real(f), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported property kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

// parseConnections extracts connections. Each entry is either a string
// "src.channel -> dst.channel" or a struct {from, to}.
func parseConnections(v cue.Value) ([]ir.ConnectionSpec, error) {
	conns := []ir.ConnectionSpec{}

	connVal := v.LookupPath(cue.ParsePath("connections"))
	if !connVal.Exists() {
		return conns, nil
	}

	iter, err := connVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for i := 0; iter.Next(); i++ {
		field := fmt.Sprintf("connections[%d]", i)
		c, err := parseConnection(iter.Value(), field)
		if err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}
	return conns, nil
}

func parseConnection(v cue.Value, field string) (ir.ConnectionSpec, error) {
	if s, err := v.String(); err == nil {
		c, err := ParseLink(s)
		if err != nil {
			var le *linkError
			if errors.As(err, &le) && le.side != "" {
				field += "." + le.side
			}
			return ir.ConnectionSpec{}, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
		}
		return c, nil
	}

	fromVal := v.LookupPath(cue.ParsePath("from"))
	toVal := v.LookupPath(cue.ParsePath("to"))
	if !fromVal.Exists() || !toVal.Exists() {
		return ir.ConnectionSpec{}, &CompileError{
			Field:   field,
			Message: "connection must be a string or a struct with from and to",
			Pos:     v.Pos(),
		}
	}
	from, err := fromVal.String()
	if err != nil {
		return ir.ConnectionSpec{}, formatCUEError(err)
	}
	to, err := toVal.String()
	if err != nil {
		return ir.ConnectionSpec{}, formatCUEError(err)
	}

	var c ir.ConnectionSpec
	if c.From, c.FromChannel, err = parseEndpoint(from); err != nil {
		return ir.ConnectionSpec{}, &CompileError{Field: field + ".from", Message: err.Error(), Pos: v.Pos()}
	}
	if c.To, c.ToChannel, err = parseEndpoint(to); err != nil {
		return ir.ConnectionSpec{}, &CompileError{Field: field + ".to", Message: err.Error(), Pos: v.Pos()}
	}
	return c, nil
}

// linkError reports a malformed connection string; side names the bad
// endpoint, if any.
type linkError struct {
	side string
	msg  string
}

func (e *linkError) Error() string { return e.msg }

// ParseLink parses "src.channel -> dst.channel".
func ParseLink(s string) (ir.ConnectionSpec, error) {
	from, to, ok := strings.Cut(s, "->")
	if !ok {
		return ir.ConnectionSpec{}, &linkError{msg: fmt.Sprintf("connection %q must have the form \"src.channel -> dst.channel\"", s)}
	}
	var c ir.ConnectionSpec
	var err error
	if c.From, c.FromChannel, err = parseEndpoint(from); err != nil {
		return ir.ConnectionSpec{}, &linkError{side: "from", msg: err.Error()}
	}
	if c.To, c.ToChannel, err = parseEndpoint(to); err != nil {
		return ir.ConnectionSpec{}, &linkError{side: "to", msg: err.Error()}
	}
	return c, nil
}

// parseEndpoint splits "source.channel". Source names never contain a dot;
// channel idents may.
func parseEndpoint(s string) (source, channel string, err error) {
	s = strings.TrimSpace(s)
	source, channel, ok := strings.Cut(s, ".")
	if !ok || source == "" || channel == "" {
		return "", "", fmt.Errorf("endpoint %q must have the form source.channel", s)
	}
	return source, channel, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := cueerrors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
