package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rampSource emits 0, 1, 2, ... on the left channel and the negation on
// the right.
type rampSource struct {
	next float32
}

func (s *rampSource) Render(dst []float32) {
	for i := 0; i+1 < len(dst); i += 2 {
		dst[i], dst[i+1] = s.next, -s.next
		s.next++
	}
}

func decode(t *testing.T, p []byte) []float32 {
	t.Helper()
	require.Zero(t, len(p)%4)
	out := make([]float32, len(p)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
	}
	return out
}

func TestStreamReader_Read(t *testing.T) {
	r := NewStreamReader(&rampSource{})

	p := make([]byte, 3*8+5) // partial frame is left untouched
	n, err := r.Read(p)

	require.NoError(t, err)
	assert.Equal(t, 24, n)
	assert.Equal(t, []float32{0, 0, 1, -1, 2, -2}, decode(t, p[:n]))
}

func TestStreamReader_ShortBuffer(t *testing.T) {
	r := NewStreamReader(&rampSource{})

	n, err := r.Read(make([]byte, 7))

	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWriteFrames(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteFrames(&buf, &rampSource{}, 5, 2))

	got := decode(t, buf.Bytes())
	require.Len(t, got, 10)
	assert.Equal(t, float32(4), got[8])
	assert.Equal(t, float32(-4), got[9])
}
