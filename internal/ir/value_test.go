package ir

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectNested(t *testing.T) {
	obj := Object{
		"osc": Object{
			"freq": Real(440),
		},
	}

	inner := obj["osc"].(Object)
	assert.Equal(t, Real(440), inner["freq"])
}

func TestAsFloat(t *testing.T) {
	f, ok := AsFloat(Real(0.25))
	assert.True(t, ok)
	assert.Equal(t, 0.25, f)

	f, ok = AsFloat(Int(3))
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)

	_, ok = AsFloat(Str("3"))
	assert.False(t, ok)
}

func TestCompareKeysRFC8785(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"a", "b", -1},
		{"b", "a", 1},
		{"a", "a", 0},
		{"aa", "a", 1},
		{"A", "a", -1},
		{"", "a", -1},
		// U+FF61 sorts before U+1F600 in UTF-8 but after it in UTF-16.
		{"\uff61", "\U0001F600", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			got := compareKeysRFC8785(tt.a, tt.b)
			switch {
			case tt.expected < 0:
				assert.Less(t, got, 0)
			case tt.expected > 0:
				assert.Greater(t, got, 0)
			default:
				assert.Equal(t, 0, got)
			}
		})
	}
}

func TestFormatReal(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{0.5, "0.5"},
		{440, "440"},
		{-1000, "-1000"},
		{0.000001, "0.000001"},
		{1e-7, "1e-7"},
		{1e21, "1e+21"},
		{123456.789, "123456.789"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := formatReal(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatRealRejectsNonFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := formatReal(f)
		assert.Error(t, err)
	}
}

func TestUnmarshalValueNumbers(t *testing.T) {
	v, err := UnmarshalValue([]byte(`2`))
	require.NoError(t, err)
	assert.Equal(t, Int(2), v)

	v, err = UnmarshalValue([]byte(`0.75`))
	require.NoError(t, err)
	assert.Equal(t, Real(0.75), v)

	v, err = UnmarshalValue([]byte(`1e3`))
	require.NoError(t, err)
	assert.Equal(t, Real(1000), v)
}

func TestUnmarshalValueNested(t *testing.T) {
	v, err := UnmarshalValue([]byte(`{"gain": 0.5, "on": true, "name": "lead", "taps": [1, 2], "x": null}`))
	require.NoError(t, err)

	obj, ok := v.(Object)
	require.True(t, ok)
	assert.Equal(t, Real(0.5), obj["gain"])
	assert.Equal(t, Bool(true), obj["on"])
	assert.Equal(t, Str("lead"), obj["name"])
	assert.Equal(t, Array{Int(1), Int(2)}, obj["taps"])
	assert.Equal(t, Null{}, obj["x"])
}

func TestObjectJSONRoundTrip(t *testing.T) {
	obj := Object{"b": Real(0.1), "a": Int(7), "c": Array{Str("x"), Null{}}}

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":7,"b":0.1,"c":["x",null]}`, string(data))

	var decoded Object
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, obj, decoded)
}

func TestMarshalValueRejectsNaN(t *testing.T) {
	_, err := MarshalValue(Real(math.NaN()))
	assert.Error(t, err)
}

func TestFromAnyYAMLShapes(t *testing.T) {
	v, err := FromAny(map[string]any{"freq": 220.5, "voices": 4, "mute": false})
	require.NoError(t, err)

	assert.Equal(t, Object{"freq": Real(220.5), "voices": Int(4), "mute": Bool(false)}, v)
}

func TestFromAnyRejectsUnsupported(t *testing.T) {
	_, err := FromAny(struct{}{})
	assert.Error(t, err)

	_, err = FromAny(math.Inf(1))
	assert.Error(t, err)
}
