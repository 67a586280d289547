package ladspa_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/synthnet/internal/graph"
	"github.com/roach88/synthnet/internal/ir"
	"github.com/roach88/synthnet/internal/ladspa"
	"github.com/roach88/synthnet/internal/testutil"
)

func TestPlugin_RendersAndReleases(t *testing.T) {
	amp := testutil.AmpPlugin()
	f := newFixture(t, amp)
	c := constant(t, f, "c", 0.5)
	a := f.add(t, "ladspa.amp_mono", "amp")
	f.connect(t, a, "input", c, "out")
	_, err := a.Set("gain", ir.Real(2))
	require.NoError(t, err)

	require.NoError(t, f.net.Prepare())
	assert.True(t, f.host.Loaded(libPath))
	ctx, _, err := f.net.Spawn()
	require.NoError(t, err)
	f.drain()

	assert.Equal(t, []float32{1, 1, 1, 1}, output(a, ctx, 0))
	insts := amp.Instances()
	require.Len(t, insts, 1)
	inst := insts[0]
	assert.Equal(t, uint64(48000), inst.Rate)
	assert.Equal(t, 1, inst.Activated)
	assert.Equal(t, []float32{2}, inst.Port(0))

	f.net.Release(ctx)
	f.drain()
	assert.Equal(t, 1, inst.Deactivated)
	assert.Equal(t, 1, inst.CleanedUp)
	assert.True(t, f.host.Loaded(libPath), "prepared networks keep the library")

	f.net.Unprepare()
	f.drain()
	assert.False(t, f.host.Loaded(libPath))
	assert.Equal(t, f.loader.Opens(libPath), f.loader.Closes(libPath))
}

func TestPlugin_LibraryIsSharedAcrossContexts(t *testing.T) {
	f := newFixture(t, testutil.AmpPlugin())
	f.add(t, "ladspa.amp_mono", "amp")
	require.NoError(t, f.net.Prepare())

	for range 3 {
		_, _, err := f.net.Spawn()
		require.NoError(t, err)
	}
	f.drain()

	assert.Equal(t, 2, f.loader.Opens(libPath), "one open for the scan, one while in use")
	f.net.Unprepare()
	f.drain()
	assert.False(t, f.host.Loaded(libPath))
}

func TestPlugin_ControlWritesAreClamped(t *testing.T) {
	amp := testutil.AmpPlugin()
	f := newFixture(t, amp)
	a := f.add(t, "ladspa.amp_mono", "amp")
	require.NoError(t, f.net.Prepare())
	_, _, err := f.net.Spawn()
	require.NoError(t, err)
	f.drain()
	inst := amp.Instances()[0]
	require.Equal(t, []float32{1}, inst.Port(0), "default 1")

	stamp, err := a.Set("gain", ir.Real(50))
	require.NoError(t, err)
	assert.NotZero(t, stamp)
	f.drain()
	assert.Equal(t, []float32{10}, inst.Port(0))

	_, err = a.Set("gain", ir.Real(-3))
	require.NoError(t, err)
	f.drain()
	assert.Equal(t, []float32{0}, inst.Port(0))
}

func TestPlugin_BypassToggle(t *testing.T) {
	f := newFixture(t, testutil.BypassPlugin())
	c := constant(t, f, "c", 0.5)
	fx := f.add(t, "ladspa.bypass", "fx")
	f.connect(t, fx, "in", c, "out")
	require.NoError(t, f.net.Prepare())
	ctx, _, err := f.net.Spawn()
	require.NoError(t, err)
	f.drain()
	assert.Equal(t, []float32{0.25, 0.25, 0.25, 0.25}, output(fx, ctx, 0))

	_, err = fx.Set("bypass", ir.Bool(true))
	require.NoError(t, err)
	f.drain()
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, output(fx, ctx, 0))
}

func TestPlugin_NoteAliasDrivesFrequency(t *testing.T) {
	f := newFixture(t, testutil.ProbePlugin())
	p := f.add(t, "ladspa.freq_probe", "probe")

	note, ok := p.Properties().Lookup("frequency_hz-note")
	require.True(t, ok)
	assert.Equal(t, int64(0), int64(note.Min))
	assert.Equal(t, int64(127), int64(note.Max))
	freq, _ := p.Properties().Lookup("frequency_hz")
	assert.InDelta(t, 4.8, freq.Min, 1e-3)
	assert.InDelta(t, 24000, freq.Max, 1e-3)

	_, err := p.Set("frequency_hz-note", ir.Int(57))
	require.NoError(t, err)
	assert.Equal(t, ir.Real(220), freq.Value(), "unprepared writes follow too")

	require.NoError(t, f.net.Prepare())
	ctx, _, err := f.net.Spawn()
	require.NoError(t, err)
	f.drain()
	assert.Equal(t, []float32{220, 220, 220, 220}, output(p, ctx, 0))

	var stamps []int64
	f.net.ObserveProperties(func(s *graph.Source, prop *graph.Property, stamp int64) {
		if prop.Name == "frequency_hz" {
			stamps = append(stamps, stamp)
		}
	})
	stamp, err := p.Set("frequency_hz-note", ir.Int(81))
	require.NoError(t, err)
	f.drain()

	assert.Equal(t, []float32{880, 880, 880, 880}, output(p, ctx, 0))
	assert.Equal(t, ir.Real(880), freq.Value())
	assert.Equal(t, []int64{stamp}, stamps)
}

func TestPlugin_SpecKeepsFrequencyOverNote(t *testing.T) {
	f := newFixture(t, testutil.ProbePlugin())
	p := f.add(t, "ladspa.freq_probe", "probe")
	_, err := p.Set("frequency_hz-note", ir.Int(57))
	require.NoError(t, err)
	_, err = p.Set("frequency_hz", ir.Real(330))
	require.NoError(t, err)

	spec := f.net.Spec()
	require.Len(t, spec.Sources, 1)
	assert.NotContains(t, spec.Sources[0].Properties, "frequency_hz-note")

	rebuilt, err := graph.Build(spec, f.eng, f.types)
	require.NoError(t, err)
	rp, _ := rebuilt.Source("probe")
	v, _ := rp.Get("frequency_hz")
	assert.Equal(t, ir.Real(330), v)

	spec.Sources[0].Properties["frequency_hz-note"] = ir.Int(81)
	rebuilt, err = graph.Build(spec, f.eng, f.types)
	require.NoError(t, err)
	rp, _ = rebuilt.Source("probe")
	v, _ = rp.Get("frequency_hz")
	assert.Equal(t, ir.Real(330), v, "explicit frequency wins over its note")
}

func TestPlugin_RemovedSourceStopsFollowingNotes(t *testing.T) {
	f := newFixture(t, testutil.ProbePlugin())
	old := f.add(t, "ladspa.freq_probe", "probe")
	require.NoError(t, f.net.RemoveSource("probe"))

	_, err := old.Set("frequency_hz-note", ir.Int(57))
	require.NoError(t, err)
	v, _ := old.Get("frequency_hz")
	assert.NotEqual(t, ir.Real(220), v)

	p := f.add(t, "ladspa.freq_probe", "probe")
	_, err = p.Set("frequency_hz-note", ir.Int(57))
	require.NoError(t, err)
	v, _ = p.Get("frequency_hz")
	assert.Equal(t, ir.Real(220), v)
}

func TestPlugin_RateRelativeAudio(t *testing.T) {
	f := newFixture(t, testutil.RatePlugin())
	c := constant(t, f, "c", 0.5)
	r := f.add(t, "ladspa.rate_copy", "rate")
	f.connect(t, r, "freq_in", c, "out")
	require.NoError(t, f.net.Prepare())
	ctx, _, err := f.net.Spawn()
	require.NoError(t, err)
	f.drain()

	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, output(r, ctx, 0), "round trip")
	assert.Equal(t, []float32{0.25, 0.25, 0.25, 0.25}, output(r, ctx, 1), "12 kHz at 48 kHz")
}

func TestPlugin_InstantiateFailure(t *testing.T) {
	bad := testutil.AmpPlugin()
	bad.FailInstantiate = true
	f := newFixture(t, bad)
	f.add(t, "ladspa.amp_mono", "amp")
	require.NoError(t, f.net.Prepare())

	_, _, err := f.net.Spawn()

	var pe *ladspa.PluginError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ladspa.ErrCodeInstantiateFailed, pe.Code)
	f.net.Unprepare()
	f.drain()
	assert.False(t, f.host.Loaded(libPath))
}

func TestPlugin_AbortReleasesEarlierInstances(t *testing.T) {
	amp := testutil.AmpPlugin()
	bad := testutil.BypassPlugin()
	bad.FailInstantiate = true
	f := newFixture(t, amp, bad)
	a := f.add(t, "ladspa.amp_mono", "amp")
	fx := f.add(t, "ladspa.bypass", "fx")
	f.connect(t, fx, "in", a, "output")
	require.NoError(t, f.net.Prepare())

	_, _, err := f.net.Spawn()

	require.Error(t, err)
	require.Len(t, amp.Instances(), 1)
	assert.Equal(t, 1, amp.Instances()[0].CleanedUp)
	assert.Zero(t, f.eng.Pending())
	f.net.Unprepare()
	f.drain()
	assert.False(t, f.host.Loaded(libPath))
}
