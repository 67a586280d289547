package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/synthnet/internal/ir"
)

// marshalJSON encodes v as compact JSON TEXT.
// HTML escaping is disabled so names round-trip byte for byte.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// marshalSpec converts a NetworkSpec to JSON TEXT for storage. The id
// lives in its own column and is left out.
func marshalSpec(spec ir.NetworkSpec) (string, error) {
	spec.ID = ""
	data, err := marshalJSON(spec)
	if err != nil {
		return "", fmt.Errorf("marshal spec: %w", err)
	}
	return data, nil
}

// unmarshalSpec parses JSON TEXT to a NetworkSpec.
// Property values decode through ir.Object.UnmarshalJSON, which keeps
// integers exact.
func unmarshalSpec(id, data string) (ir.NetworkSpec, error) {
	var spec ir.NetworkSpec
	if err := json.Unmarshal([]byte(data), &spec); err != nil {
		return ir.NetworkSpec{}, fmt.Errorf("unmarshal spec %s: %w", id, err)
	}
	spec.ID = id
	return spec, nil
}

func marshalPorts(ports []ir.PortShape) (string, error) {
	if ports == nil {
		ports = []ir.PortShape{}
	}
	data, err := marshalJSON(ports)
	if err != nil {
		return "", fmt.Errorf("marshal ports: %w", err)
	}
	return data, nil
}

func unmarshalPorts(data string) ([]ir.PortShape, error) {
	var ports []ir.PortShape
	if err := json.Unmarshal([]byte(data), &ports); err != nil {
		return nil, fmt.Errorf("unmarshal ports: %w", err)
	}
	return ports, nil
}
