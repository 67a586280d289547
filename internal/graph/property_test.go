package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/synthnet/internal/ir"
)

func TestProperty_Coerce(t *testing.T) {
	tests := []struct {
		name string
		prop *Property
		in   ir.Value
		want ir.Value
	}{
		{"real clamps high", RealProperty("g", "G", 0, 2, 1), ir.Real(5), ir.Real(2)},
		{"real clamps low", RealProperty("g", "G", 0, 2, 1), ir.Real(-1), ir.Real(0)},
		{"real from int", RealProperty("g", "G", 0, 2, 1), ir.Int(1), ir.Real(1)},
		{"int rounds", IntProperty("n", "N", 0, 127, 60), ir.Real(64.6), ir.Int(65)},
		{"int clamps", IntProperty("n", "N", 0, 127, 60), ir.Int(300), ir.Int(127)},
		{"bool from bool", BoolProperty("b", "B", false), ir.Bool(true), ir.Bool(true)},
		{"bool from number", BoolProperty("b", "B", false), ir.Real(0.5), ir.Bool(true)},
		{"bool below half", BoolProperty("b", "B", true), ir.Real(0.49), ir.Bool(false)},
		{"enum by name", EnumProperty("w", "W", []string{"sine", "saw"}, "sine"), ir.Str("saw"), ir.Str("saw")},
		{"enum by index", EnumProperty("w", "W", []string{"sine", "saw"}, "sine"), ir.Int(1), ir.Str("saw")},
		{"string", StringProperty("s", "S", ""), ir.Str("x"), ir.Str("x")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.prop.Coerce(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProperty_CoerceRejectsWrongKind(t *testing.T) {
	enum := EnumProperty("w", "W", []string{"sine", "saw"}, "sine")

	_, err := enum.Coerce(ir.Str("square"))
	assert.ErrorIs(t, err, ErrPropertyType)
	_, err = enum.Coerce(ir.Int(2))
	assert.ErrorIs(t, err, ErrPropertyType)
	_, err = RealProperty("g", "G", 0, 1, 0).Coerce(ir.Str("loud"))
	assert.ErrorIs(t, err, ErrPropertyType)
	_, err = StringProperty("s", "S", "").Coerce(ir.Int(1))
	assert.ErrorIs(t, err, ErrPropertyType)
}

func TestProperty_FloatRoundTrip(t *testing.T) {
	enum := EnumProperty("w", "W", []string{"sine", "saw", "square"}, "saw")
	assert.Equal(t, 1.0, enum.Float())
	assert.Equal(t, ir.Str("square"), enum.FromFloat(1.6))
	assert.Equal(t, ir.Str("sine"), enum.FromFloat(-4))

	b := BoolProperty("b", "B", true)
	assert.Equal(t, 1.0, b.Float())
	assert.Equal(t, ir.Bool(false), b.FromFloat(0.2))

	n := IntProperty("n", "N", 0, 10, 3)
	assert.Equal(t, 3.0, n.Float())
	assert.Equal(t, ir.Int(10), n.FromFloat(99))

	assert.Equal(t, ir.Real(0.25), RealProperty("g", "G", 0, 1, 0).FromFloat(0.25))
	assert.Equal(t, ir.Str(""), (&Property{Kind: PropEnum}).FromFloat(0))
}

func TestPropertySet_DuplicatePanics(t *testing.T) {
	ps := newPropertySet()
	ps.Add(RealProperty("g", "G", 0, 1, 0))

	assert.Panics(t, func() { ps.Add(IntProperty("g", "G", 0, 1, 0)) })
	assert.Equal(t, 1, ps.Len())
}

func TestSource_SetWhilePreparedNotifiesWithStamp(t *testing.T) {
	n, eng := newTestNetwork(t)
	c := mustAdd(t, n, "const", "c")

	var stamps []int64
	cancel := n.ObserveProperties(func(src *Source, p *Property, stamp int64) {
		assert.Same(t, c, src)
		assert.Equal(t, "value", p.Name)
		stamps = append(stamps, stamp)
	})
	defer cancel()

	_, err := c.Set("value", ir.Real(3))
	require.NoError(t, err)

	require.NoError(t, n.Prepare())
	ctx, _, err := n.Spawn()
	require.NoError(t, err)
	drain(eng)
	assert.Equal(t, []float32{3, 3, 3, 3}, out(c, ctx))

	stamp, err := c.Set("value", ir.Real(20))
	require.NoError(t, err)
	assert.NotZero(t, stamp)
	assert.Equal(t, []float32{3, 3, 3, 3}, out(c, ctx), "modules change only when the transaction is applied")
	drain(eng)

	assert.Equal(t, []float32{10, 10, 10, 10}, out(c, ctx))
	assert.Equal(t, []int64{0, stamp}, stamps)
	got, err := c.Get("value")
	require.NoError(t, err)
	assert.Equal(t, ir.Real(10), got)

	again, err := c.Set("value", ir.Real(10))
	require.NoError(t, err)
	assert.Zero(t, again, "unchanged values commit nothing")

	_, err = c.Set("nope", ir.Real(1))
	assert.ErrorIs(t, err, ErrNoProperty)
}
