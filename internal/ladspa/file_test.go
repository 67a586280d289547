package ladspa

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLibrary struct {
	descs  []*Descriptor
	closed int
}

func (l *stubLibrary) Descriptor(i int) (*Descriptor, bool) {
	if i >= len(l.descs) {
		return nil, false
	}
	return l.descs[i], true
}

func (l *stubLibrary) Close() error { l.closed++; return nil }

type stubLoader struct{ lib *stubLibrary }

func (s stubLoader) Open(string) (Library, error) { return s.lib, nil }

func newStubFile(t *testing.T, d *Descriptor) (*pluginFile, *stubLibrary) {
	t.Helper()
	lib := &stubLibrary{descs: []*Descriptor{d}}
	info := harvest("/stub.so", 0, d, 48000)
	require.False(t, info.Broken, info.Reason)
	return &pluginFile{
		path:   "/stub.so",
		loader: stubLoader{lib},
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		infos:  []*PluginInfo{info},
	}, lib
}

func TestPluginFile_Refcount(t *testing.T) {
	f, lib := newStubFile(t, validDescriptor())

	require.NoError(t, f.Use())
	require.NoError(t, f.Use())
	d, _ := f.descriptor(0)
	assert.NotNil(t, d)

	f.Unuse()
	assert.True(t, f.Loaded())
	assert.Zero(t, lib.closed)
	f.Unuse()
	assert.False(t, f.Loaded())
	assert.Equal(t, 1, lib.closed)
	d, _ = f.descriptor(0)
	assert.Nil(t, d)

	assert.Panics(t, f.Unuse)
}

func TestPluginFile_RevalidateDetectsChanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(lib *stubLibrary)
		detail string
	}{
		{"gone", func(l *stubLibrary) { l.descs = nil }, "descriptor is gone"},
		{"label", func(l *stubLibrary) { l.descs[0].Label = "other" }, `label is now "other"`},
		{"bounds", func(l *stubLibrary) { l.descs[0].PortRangeHints[0].Upper = 2 }, "2 ports, signature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, lib := newStubFile(t, validDescriptor())
			lib.descs[0] = validDescriptor()
			tt.mutate(lib)

			err := f.Use()

			require.Error(t, err)
			assert.True(t, IsTypesChanged(err))
			assert.Contains(t, err.Error(), tt.detail)
			assert.False(t, f.Loaded())
			assert.Equal(t, 1, lib.closed)
		})
	}
}
