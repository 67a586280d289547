package compiler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/synthnet/internal/ir"
)

func validSpec() ir.NetworkSpec {
	return ir.NetworkSpec{
		Name: "voice",
		Sources: []ir.SourceSpec{
			{Name: "osc", Type: "osc", Properties: ir.Object{"freq": ir.Real(220), "wave": ir.Str("saw")}},
			{Name: "amp", Type: "amp"},
			{Name: "out", Type: "sink"},
		},
		Connections: []ir.ConnectionSpec{
			{From: "osc", FromChannel: "out", To: "amp", ToChannel: "in"},
			{From: "amp", FromChannel: "out", To: "out", ToChannel: "left"},
		},
	}
}

func codes(errs []ValidationError) []string {
	out := []string{}
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidateValid(t *testing.T) {
	spec := validSpec()

	assert.Empty(t, Validate(spec))
	assert.Empty(t, Validate(&spec))
}

func TestValidateNetworkErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ir.NetworkSpec)
		code   string
		field  string
	}{
		{"empty name", func(s *ir.NetworkSpec) { s.Name = "  " }, ErrNetworkNameEmpty, "name"},
		{"bad source name", func(s *ir.NetworkSpec) {
			s.Sources = append(s.Sources, ir.SourceSpec{Name: "a.b", Type: "amp"})
		}, ErrInvalidSourceName, "sources[3].name"},
		{"empty type", func(s *ir.NetworkSpec) { s.Sources[2].Type = "" }, ErrSourceTypeEmpty, "sources[2].type"},
		{"nan property", func(s *ir.NetworkSpec) { s.Sources[0].Properties["freq"] = ir.Real(math.NaN()) }, ErrInvalidPropertyVal, "sources[0].properties.freq"},
		{"array property", func(s *ir.NetworkSpec) { s.Sources[0].Properties["wave"] = ir.Array{} }, ErrInvalidPropertyVal, "sources[0].properties.wave"},
		{"empty channel", func(s *ir.NetworkSpec) { s.Connections[0].ToChannel = "" }, ErrEmptyChannel, "connections[0].to"},
		{"network on amp", func(s *ir.NetworkSpec) {
			s.Sources[1].Network = &ir.NetworkSpec{Name: "x", Sources: []ir.SourceSpec{{Name: "c", Type: "const"}}}
		}, ErrSubnetMismatch, "sources[1].network"},
		{"subnet without network", func(s *ir.NetworkSpec) { s.Sources[1].Type = "subnet" }, ErrSubnetMismatch, "sources[1].network"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(&spec)

			errs := Validate(spec)

			require.Len(t, errs, 1, "%v", errs)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestValidateNoSources(t *testing.T) {
	errs := Validate(ir.NetworkSpec{Name: "empty"})

	assert.Equal(t, []string{ErrNetworkNoSources}, codes(errs))
}

func TestValidateDuplicateSource(t *testing.T) {
	spec := validSpec()
	spec.Sources = append(spec.Sources, ir.SourceSpec{Name: "amp", Type: "amp"})

	errs := Validate(spec)

	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateName, errs[0].Code)
	assert.Equal(t, "sources[3].name", errs[0].Field)
	assert.Contains(t, errs[0].Message, `"amp"`)
}

func TestValidateUnknownSource(t *testing.T) {
	spec := validSpec()
	spec.Connections = append(spec.Connections, ir.ConnectionSpec{From: "lfo", FromChannel: "out", To: "amp", ToChannel: "in"})

	errs := Validate(spec)

	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownSource, errs[0].Code)
	assert.Equal(t, "connections[2].from", errs[0].Field)
}

func TestValidateDuplicateConnection(t *testing.T) {
	spec := validSpec()
	spec.Connections = append(spec.Connections, spec.Connections[0])

	assert.Equal(t, []string{ErrDuplicateConnection}, codes(Validate(spec)))
}

func TestValidateFeedbackLoop(t *testing.T) {
	spec := validSpec()
	spec.Connections = append(spec.Connections, ir.ConnectionSpec{From: "amp", FromChannel: "out", To: "osc", ToChannel: "fm"})

	errs := Validate(spec)

	require.Len(t, errs, 1)
	assert.Equal(t, ErrFeedbackLoop, errs[0].Code)
	assert.Equal(t, "feedback loop: osc -> amp -> osc", errs[0].Message)
}

func TestValidateDescendsIntoSubnets(t *testing.T) {
	spec := validSpec()
	spec.Sources = append(spec.Sources, ir.SourceSpec{
		Name: "sub",
		Type: "subnet",
		Network: &ir.NetworkSpec{
			Name:        "sub",
			Sources:     []ir.SourceSpec{{Name: "in", Type: "iport"}},
			Connections: []ir.ConnectionSpec{{From: "in", FromChannel: "out", To: "gone", ToChannel: "in"}},
		},
	})

	errs := Validate(spec)

	require.Len(t, errs, 1)
	assert.Equal(t, "sources[3].network.connections[0].to", errs[0].Field)
	assert.Equal(t, ErrUnknownSource, errs[0].Code)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	spec := ir.NetworkSpec{
		Sources: []ir.SourceSpec{{Name: "x y"}},
		Connections: []ir.ConnectionSpec{
			{From: "p", To: "q"},
		},
	}

	assert.Equal(t, []string{
		ErrNetworkNameEmpty,
		ErrInvalidSourceName,
		ErrSourceTypeEmpty,
		ErrUnknownSource, ErrEmptyChannel,
		ErrUnknownSource, ErrEmptyChannel,
	}, codes(Validate(spec)))
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("not a spec")

	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "name", Message: "required", Code: ErrNetworkNameEmpty}
	assert.Equal(t, "[E101] name: required", err.Error())

	err.Line = 4
	assert.Equal(t, "[E101] line 4: name: required", err.Error())
}
