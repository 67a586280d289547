// Package audio feeds rendered engine blocks to the system audio device
// and to raw sample streams.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// SampleSource fills dst with interleaved stereo float32 frames.
// *engine.Engine satisfies it through Render.
type SampleSource interface {
	Render(dst []float32)
}

// StreamReader encodes the frames of a source as little-endian float32
// bytes. Every Read renders exactly the frames that fit into p.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Render(r.buf)
	encode(p, r.buf)
	return frames * 8, nil
}

func (r *StreamReader) Close() error { return nil }

func encode(p []byte, samples []float32) {
	for i, s := range samples {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
}

// WriteFrames renders frames stereo frames from source and writes them to
// w as raw little-endian float32, in chunks of at most chunk frames.
func WriteFrames(w io.Writer, source SampleSource, frames, chunk int) error {
	if chunk <= 0 {
		chunk = 1024
	}
	r := NewStreamReader(source)
	p := make([]byte, chunk*8)
	for frames > 0 {
		n := min(frames, chunk)
		if _, err := r.Read(p[:n*8]); err != nil {
			return err
		}
		if _, err := w.Write(p[:n*8]); err != nil {
			return fmt.Errorf("write frames: %w", err)
		}
		frames -= n
	}
	return nil
}

// Player plays a source on the default audio device.
type Player struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// NewPlayer opens the device at sampleRate. The device pulls frames from
// source on its own goroutine, which thereby becomes the realtime side.
func NewPlayer(sampleRate int, source SampleSource) (*Player, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	return &Player{
		player: pl,
		reader: reader,
	}, nil
}

func (p *Player) Play() { p.player.Play() }

// Position returns how much audio the device has played so far.
func (p *Player) Position() time.Duration {
	return p.player.Position()
}

// Stop closes the device player. The source is not rendered afterwards.
func (p *Player) Stop() error {
	p.player.Pause()
	p.player.Close()
	return p.reader.Close()
}
