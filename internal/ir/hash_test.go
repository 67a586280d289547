package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ampPorts() []PortShape {
	return []PortShape{
		{Name: "Gain", Flags: 5, Hints: 0x3, Lower: 0, Upper: 2},
		{Name: "Input", Flags: 9},
		{Name: "Output", Flags: 10},
	}
}

func TestPortSignatureDeterminism(t *testing.T) {
	sig1, err := PortSignature(ampPorts())
	require.NoError(t, err)
	sig2, err := PortSignature(ampPorts())
	require.NoError(t, err)

	assert.Equal(t, sig1, sig2, "PortSignature must be deterministic")
	assert.Len(t, sig1, 64, "SHA-256 hex is 64 characters")
}

func TestPortSignatureChangesWithShape(t *testing.T) {
	base := MustPortSignature(ampPorts())

	renamed := ampPorts()
	renamed[0].Name = "Volume"
	rebounded := ampPorts()
	rebounded[0].Upper = 4
	reordered := ampPorts()
	reordered[1], reordered[2] = reordered[2], reordered[1]

	assert.NotEqual(t, base, MustPortSignature(renamed))
	assert.NotEqual(t, base, MustPortSignature(rebounded))
	assert.NotEqual(t, base, MustPortSignature(reordered))
	assert.NotEqual(t, base, MustPortSignature(ampPorts()[:2]))
}

func TestPortSignatureRejectsNaN(t *testing.T) {
	ports := ampPorts()
	ports[0].Upper = math.NaN()

	_, err := PortSignature(ports)
	assert.Error(t, err)
}

func TestNetworkHashIgnoresID(t *testing.T) {
	spec := NetworkSpec{
		Name: "lead",
		Sources: []SourceSpec{
			{Name: "osc", Type: "osc", Properties: Object{"freq": Real(220)}},
			{Name: "out", Type: "sink"},
		},
		Connections: []ConnectionSpec{{From: "osc", FromChannel: "out", To: "out", ToChannel: "left"}},
	}
	h1, err := NetworkHash(spec)
	require.NoError(t, err)

	spec.ID = "0192d1f0-0000-7000-8000-000000000000"
	h2, err := NetworkHash(spec)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	spec.Sources[0].Properties["freq"] = Real(221)
	h3, err := NetworkHash(spec)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestDomainSeparation(t *testing.T) {
	data := []byte(`[]`)
	assert.NotEqual(t, hashWithDomain(DomainPorts, data), hashWithDomain(DomainNetwork, data))
}
