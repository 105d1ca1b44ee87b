// audio.go - audio-kind nodes
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package nodes

import (
	"math"

	"github.com/constellationstudio/engine/internal/frame"
	"github.com/constellationstudio/engine/internal/graph"
)

var audioInputSchema = map[string]graph.ParamDef{
	"device_id": {Type: graph.TypeString, Default: graph.String("default")},
}

// AudioBackend captures one tick's worth of samples from a live source.
type AudioBackend interface {
	CaptureSamples() (*frame.AudioData, error)
}

// AudioInput sources a block of audio samples per tick. With no backend
// attached, or on a backend error, it emits 1024 samples of silence at
// 48kHz/stereo rather than failing the tick — the same fallback discipline
// as the render inputs.
type AudioInput struct {
	graph.BaseNode
	Backend AudioBackend
}

func NewAudioInput(id graph.NodeID, name string, backend AudioBackend) *AudioInput {
	n := &AudioInput{Backend: backend}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindAudioInput, nil, []graph.PortType{graph.PortAudio}, audioInputSchema)
	return n
}

func (n *AudioInput) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	out := frame.Empty()
	if n.Backend != nil {
		if a, err := n.Backend.CaptureSamples(); err == nil {
			out.Audio = a
			return out, nil
		}
	}
	out.Audio = &frame.AudioData{SampleRate: 48000, Channels: 2, Samples: make([]float32, 1024)}
	return out, nil
}

var audioMixerSchema = map[string]graph.ParamDef{
	"master_volume": {Type: graph.TypeFloat, Default: graph.Float(1.0), Min: floatPtr(0), Max: floatPtr(2)},
}

// AudioMixer sums every connected audio input sample-by-sample and divides
// by the input count ([0.5,0.5]+[0.3,0.3] -> [0.4,0.4]), then scales the
// result by master_volume. AudioLayers holds each predecessor's stream in
// edge-insertion order, so mixing is not capped at two inputs; the output
// length follows the first input's length.
type AudioMixer struct {
	graph.BaseNode
}

func NewAudioMixer(id graph.NodeID, name string) *AudioMixer {
	n := &AudioMixer{}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindAudioMixer, []graph.PortType{graph.PortAudio}, []graph.PortType{graph.PortAudio}, audioMixerSchema)
	return n
}

func (n *AudioMixer) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	layers := bundle.AudioLayers
	if len(layers) == 0 {
		return bundle, nil
	}
	volume := float32(n.Param("master_volume").F)

	first := layers[0]
	mixed := make([]float32, len(first.Samples))
	for _, l := range layers {
		for i := range mixed {
			if i < len(l.Samples) {
				mixed[i] += l.Samples[i]
			}
		}
	}
	divisor := float32(len(layers))
	for i := range mixed {
		mixed[i] = mixed[i] / divisor * volume
	}

	bundle.Audio = &frame.AudioData{SampleRate: first.SampleRate, Channels: first.Channels, Samples: mixed}
	bundle.SecondaryAudio = nil
	bundle.AudioLayers = nil
	return bundle, nil
}

var audioEffectSchema = map[string]graph.ParamDef{
	"gain": {Type: graph.TypeFloat, Default: graph.Float(1.0), Min: floatPtr(0), Max: floatPtr(4)},
	"mute": {Type: graph.TypeBool, Default: graph.Bool(false)},
	"pan":  {Type: graph.TypeFloat, Default: graph.Float(0.0), Min: floatPtr(-1), Max: floatPtr(1)},
}

// AudioEffect applies gain, mute, and stereo pan sample-wise. Identity at
// gain=1, mute=false, pan=0.
type AudioEffect struct {
	graph.BaseNode
}

func NewAudioEffect(id graph.NodeID, name string) *AudioEffect {
	n := &AudioEffect{}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindAudioEffect, []graph.PortType{graph.PortAudio}, []graph.PortType{graph.PortAudio}, audioEffectSchema)
	return n
}

func (n *AudioEffect) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	if bundle.Audio == nil {
		return bundle, nil
	}
	if n.Param("mute").B {
		silence := make([]float32, len(bundle.Audio.Samples))
		bundle.Audio = &frame.AudioData{SampleRate: bundle.Audio.SampleRate, Channels: bundle.Audio.Channels, Samples: silence}
		return bundle, nil
	}

	gain := float32(n.Param("gain").F)
	pan := n.Param("pan").F
	a := bundle.Audio
	out := make([]float32, len(a.Samples))
	copy(out, a.Samples)
	for i := range out {
		out[i] *= gain
	}
	if a.Channels == 2 && pan != 0 {
		leftGain := float32(1.0)
		rightGain := float32(1.0)
		if pan > 0 {
			leftGain = float32(1 - pan)
		} else {
			rightGain = float32(1 + pan)
		}
		for i := 0; i+1 < len(out); i += 2 {
			out[i] *= leftGain
			out[i+1] *= rightGain
		}
	}
	bundle.Audio = &frame.AudioData{SampleRate: a.SampleRate, Channels: a.Channels, Samples: out}
	return bundle, nil
}

// AudioOutput is a sink: it forwards the tick's audio to an attached
// AudioSink (typically an oto-backed platform device), records peak/RMS
// levels, and passes the bundle through unchanged.
type AudioOutput struct {
	graph.BaseNode
	Sink      AudioSink
	PeakLevel float32
	RMSLevel  float32
}

// AudioSink accepts a tick's rendered audio for playback.
type AudioSink interface {
	WriteSamples(*frame.AudioData) error
}

func NewAudioOutput(id graph.NodeID, name string, sink AudioSink) *AudioOutput {
	n := &AudioOutput{Sink: sink}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindAudioOutput, []graph.PortType{graph.PortAudio}, nil, nil)
	return n
}

func (n *AudioOutput) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	if bundle.Audio != nil {
		n.PeakLevel, n.RMSLevel = analyzeLevels(bundle.Audio.Samples)
		if n.Sink != nil {
			_ = n.Sink.WriteSamples(bundle.Audio)
		}
	}
	return bundle, nil
}

// Levels reports the most recent tick's peak/RMS analysis; the scheduler
// mirrors the readings into telemetry custom metrics.
func (n *AudioOutput) Levels() (peak, rms float32) { return n.PeakLevel, n.RMSLevel }

// analyzeLevels computes peak (absolute maximum) and RMS amplitude.
func analyzeLevels(samples []float32) (peak, rms float32) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sumSquares float64
	for _, s := range samples {
		abs := s
		if abs < 0 {
			abs = -abs
		}
		if abs > peak {
			peak = abs
		}
		sumSquares += float64(s) * float64(s)
	}
	rms = float32(math.Sqrt(sumSquares / float64(len(samples))))
	return peak, rms
}
