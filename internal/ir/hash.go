package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainPorts   = "synthnet/ports/v1"
	DomainNetwork = "synthnet/network/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PortSignature hashes the shapes of a plugin's ports in order. Two loads
// of a plugin file describe the same type only if their signatures match.
func PortSignature(ports []PortShape) (string, error) {
	arr := make(Array, len(ports))
	for i, p := range ports {
		arr[i] = Object{
			"name":  Str(p.Name),
			"flags": Int(p.Flags),
			"hints": Int(p.Hints),
			"lower": Real(p.Lower),
			"upper": Real(p.Upper),
		}
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("PortSignature: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPorts, canonical), nil
}

// NetworkHash hashes the content of a network description. The ID is
// excluded so a saved copy hashes like its source.
func NetworkHash(spec NetworkSpec) (string, error) {
	canonical, err := MarshalCanonical(networkObject(spec))
	if err != nil {
		return "", fmt.Errorf("NetworkHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainNetwork, canonical), nil
}

func networkObject(spec NetworkSpec) Object {
	sources := make(Array, len(spec.Sources))
	for i, s := range spec.Sources {
		obj := Object{
			"name": Str(s.Name),
			"type": Str(s.Type),
		}
		if len(s.Properties) > 0 {
			obj["properties"] = s.Properties
		}
		if s.Network != nil {
			obj["network"] = networkObject(*s.Network)
		}
		sources[i] = obj
	}
	conns := make(Array, len(spec.Connections))
	for i, c := range spec.Connections {
		conns[i] = Object{
			"from":         Str(c.From),
			"from_channel": Str(c.FromChannel),
			"to":           Str(c.To),
			"to_channel":   Str(c.ToChannel),
		}
	}
	return Object{
		"name":        Str(spec.Name),
		"sources":     sources,
		"connections": conns,
	}
}

// MustPortSignature is like PortSignature but panics on error.
// Use only in tests or when the shapes are known to be finite.
func MustPortSignature(ports []PortShape) string {
	sig, err := PortSignature(ports)
	if err != nil {
		panic(err)
	}
	return sig
}
