// frame.go - per-tick data carrier types
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

// Package frame defines the FrameBundle and its sub-carriers: RenderData,
// AudioData, ControlData, and TallyMetadata. A bundle is allocated by the
// scheduler once per tick, threaded through the graph in topological order,
// and dropped at tick end; nodes may cache their own state across ticks but
// must never retain a bundle past their Process call.
package frame

import "github.com/google/uuid"

// PixelFormat is the closed set of raster pixel layouts a Raster2D may carry.
type PixelFormat int

const (
	FormatRGBA8 PixelFormat = iota
	FormatRGB565
	FormatYCbCr420
)

// Raster2D is the sole render-data variant implemented by this engine;
// other variants (3D) are reserved for later.
type Raster2D struct {
	Width  int
	Height int
	Format PixelFormat
	Bytes  []byte
}

// Clone returns a deep copy, used wherever a node must not mutate its input
// in place (e.g. effects that operate pixel-by-pixel into a fresh buffer).
func (r *Raster2D) Clone() *Raster2D {
	if r == nil {
		return nil
	}
	b := make([]byte, len(r.Bytes))
	copy(b, r.Bytes)
	return &Raster2D{Width: r.Width, Height: r.Height, Format: r.Format, Bytes: b}
}

// BytesPerPixel reports the stride for Format; Raster2D.Bytes is always
// tightly packed (no row padding).
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatRGBA8:
		return 4
	case FormatRGB565:
		return 2
	case FormatYCbCr420:
		return 1 // luma plane only; chroma planes are not modeled by this engine
	default:
		return 4
	}
}

// AudioData carries a block of interleaved float samples for the tick.
type AudioData struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

// ControlCommand is a single parameter-change instruction produced by a
// Control node and applied to its target before the process pass runs.
type ControlCommand struct {
	TargetNode uuid.UUID
	Parameter  string
	Value      float64
	Timestamp  float64 // tick time in seconds, not wall clock
}

// ControlData carries the commands flowing along a Control-typed edge for
// the current tick. Multiple predecessor commands are concatenated by the
// scheduler into Commands.
type ControlData struct {
	Commands []ControlCommand
}

// TallyMetadata carries PGM/PVW state and the node path it traversed.
type TallyMetadata struct {
	Program         bool
	Preview         bool
	Custom          map[string]bool
	PropagationPath []uuid.UUID
}

// MergeTally combines upstream tally state: boolean OR of program/preview,
// union of custom, concatenation of propagation paths. self is appended to
// the result path (the caller passes its own node id).
func MergeTally(inputs []TallyMetadata, self uuid.UUID) TallyMetadata {
	out := TallyMetadata{Custom: map[string]bool{}}
	for _, in := range inputs {
		out.Program = out.Program || in.Program
		out.Preview = out.Preview || in.Preview
		for k, v := range in.Custom {
			out.Custom[k] = out.Custom[k] || v
		}
		out.PropagationPath = append(out.PropagationPath, in.PropagationPath...)
	}
	out.PropagationPath = append(out.PropagationPath, self)
	return out
}

// Bundle is the per-tick carrier threaded through the graph. All fields are
// optional except Tally, which always has a zero value at minimum.
type Bundle struct {
	Render  *Raster2D
	Audio   *AudioData
	Control *ControlData
	Tally   TallyMetadata

	// Secondary carries a second render layer into two-render-input nodes.
	// The scheduler populates it from the node's second declared render
	// predecessor, in edge-insertion order; single-input nodes never read
	// it. Kept alongside RenderLayers for nodes that only ever take two
	// render inputs.
	Secondary *Raster2D

	// RenderLayers carries every render predecessor's output, in
	// edge-insertion order, for nodes that accept an unbounded ordered list
	// of render inputs (Composite). Render and Secondary above are
	// conveniences aliasing RenderLayers[0] and RenderLayers[1] and cap at
	// two inputs; RenderLayers holds all of them, however many there are.
	RenderLayers []*Raster2D

	// SecondaryAudio carries a second audio input into audio.mixer, mirroring
	// Secondary's role for the render graph.
	SecondaryAudio *AudioData

	// AudioLayers carries every audio predecessor's output, in
	// edge-insertion order, for nodes that consume each input explicitly
	// (AudioMixer). Audio and SecondaryAudio above are conveniences
	// aliasing AudioLayers[0] and AudioLayers[1]; AudioLayers holds all of
	// them, however many there are.
	AudioLayers []*AudioData

	// TallyLayers carries each tally predecessor's pre-merge state, in
	// edge-insertion order, for nodes that need per-path visibility
	// (TallyLogic's AND cannot be expressed over the union). Tally above
	// holds the merged result.
	TallyLayers []TallyMetadata
}

// Empty returns a fresh bundle with no render/audio/control payload, as
// allocated by the scheduler at the start of every tick.
func Empty() Bundle {
	return Bundle{Tally: TallyMetadata{Custom: map[string]bool{}}}
}
