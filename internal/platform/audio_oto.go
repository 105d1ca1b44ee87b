// audio_oto.go - oto-backed AudioSink (nodes.AudioSink)
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package platform

import (
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/constellationstudio/engine/internal/frame"
)

// OtoSink plays the Audio Output node's mixed PCM stream on the host's
// default audio device: an oto.Context feeding an io.Reader-shaped Player,
// with the latest tick's samples held in a small ring so Read always has
// something to hand back (silence if the engine hasn't produced a tick
// yet).
type OtoSink struct {
	mu     sync.Mutex
	ctx    *oto.Context
	player *oto.Player
	latest []float32
	cursor int
}

// NewOtoSink opens an oto playback context at the given sample rate and
// channel count and starts a player pulling from this sink's ring.
func NewOtoSink(sampleRate, channels int) (*OtoSink, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   0,
	}
	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, err
	}
	<-ready

	s := &OtoSink{ctx: ctx}
	s.player = ctx.NewPlayer(s)
	s.player.Play()
	return s, nil
}

// WriteSamples replaces the ring with this tick's mixed samples. Called
// once per tick from the scheduler's topological pass; Read below runs on
// oto's own playback goroutine and never blocks on it.
func (s *OtoSink) WriteSamples(a *frame.AudioData) error {
	if a == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = a.Samples
	s.cursor = 0
	return nil
}

// Read implements io.Reader for oto.Player: serve float32 samples from the
// latest tick, repeating silence once the ring is exhausted rather than
// blocking.
func (s *OtoSink) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(p) / 4
	for i := 0; i < n; i++ {
		var v float32
		if s.cursor < len(s.latest) {
			v = s.latest[s.cursor]
			s.cursor++
		}
		putFloat32LE(p[i*4:i*4+4], v)
	}
	return n * 4, nil
}

// Close stops playback by closing the player; the oto context itself is
// left open.
func (s *OtoSink) Close() error {
	if s.player != nil {
		_ = s.player.Close()
	}
	return nil
}

func putFloat32LE(b []byte, v float32) {
	bits := math.Float32bits(v)
	b[0] = byte(bits)
	b[1] = byte(bits >> 8)
	b[2] = byte(bits >> 16)
	b[3] = byte(bits >> 24)
}
