// lfo.go - LFO control node
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package control

import (
	"math"

	"github.com/constellationstudio/engine/internal/frame"
	"github.com/constellationstudio/engine/internal/graph"
)

// Waveform is the closed set of LFO waveforms.
type Waveform string

const (
	WaveSine     Waveform = "sine"
	WaveSquare   Waveform = "square"
	WaveTriangle Waveform = "triangle"
	WaveSawtooth Waveform = "sawtooth"
	WaveNoise    Waveform = "noise"
	WaveCustom   Waveform = "custom"
)

var lfoSchema = map[string]graph.ParamDef{
	"frequency": {Type: graph.TypeFloat, Default: graph.Float(1.0)},
	"amplitude": {Type: graph.TypeFloat, Default: graph.Float(1.0)},
	"phase":     {Type: graph.TypeFloat, Default: graph.Float(0.0)},
	"offset":    {Type: graph.TypeFloat, Default: graph.Float(0.0)},
	"waveform":  {Type: graph.TypeEnum, Default: graph.Enum(string(WaveSine))},
}

// LFO evaluates value(t) = amplitude*waveform(frequency*t + phase) + offset
// each tick and emits ControlCommand values through its mappings.
// waveform(x) itself is clamped to [-1,1] (defensive, in case a Custom table
// entry is out of range); the final value, after amplitude/offset, is not
// further clamped — this is what lets an LFO with amplitude=0.5,offset=1.0
// reach 1.5.
type LFO struct {
	graph.BaseNode
	mappings []Mapping
	rngState uint32 // LCG state for the Noise waveform
	table    []float64
}

// NewLFO constructs an LFO node. table backs the Custom waveform (indexed
// circularly by the fractional cycle position); it may be nil.
func NewLFO(id graph.NodeID, name string, table []float64) *LFO {
	n := &LFO{table: table, rngState: 0x2545F491}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindControlLFO, nil, []graph.PortType{graph.PortControl}, lfoSchema)
	return n
}

func (n *LFO) AddMapping(m Mapping)    { n.mappings = append(n.mappings, m) }
func (n *LFO) RemoveMapping(source string) {
	kept := n.mappings[:0]
	for _, m := range n.mappings {
		if m.SourceParameter != source {
			kept = append(kept, m)
		}
	}
	n.mappings = kept
}

func (n *LFO) waveform(wave Waveform, x float64) float64 {
	frac := x - math.Floor(x)
	var v float64
	switch wave {
	case WaveSquare:
		if frac < 0.5 {
			v = 1
		} else {
			v = -1
		}
	case WaveTriangle:
		// Rises from -1 at the cycle start to +1 at the midpoint, then
		// falls back.
		v = 1 - 4*math.Abs(frac-0.5)
	case WaveSawtooth:
		v = 2*frac - 1
	case WaveNoise:
		// LCG: advances once per call, seeded by prior node state, so
		// output is a pure function of tick count, not wall clock.
		n.rngState = n.rngState*1664525 + 1013904223
		v = float64(n.rngState)/float64(^uint32(0))*2 - 1
	case WaveCustom:
		if len(n.table) == 0 {
			v = 0
		} else {
			idx := int(frac*float64(len(n.table))) % len(n.table)
			v = n.table[idx]
		}
	default: // WaveSine
		v = math.Sin(2 * math.Pi * x)
	}
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return v
}

// Value computes the LFO's scalar output at tick time t, without side
// effects other than advancing the Noise LCG state.
func (n *LFO) Value(t float64) float64 {
	freq := n.Param("frequency").F
	amp := n.Param("amplitude").F
	phase := n.Param("phase").F
	offset := n.Param("offset").F
	wave := Waveform(n.Param("waveform").S)

	x := freq*t + phase
	return amp*n.waveform(wave, x) + offset
}

func (n *LFO) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	val := n.Value(tickTime)
	commands := ApplyMappings(n.mappings, map[string]float64{"value": val}, tickTime)

	var existing []frame.ControlCommand
	if bundle.Control != nil {
		existing = bundle.Control.Commands
	}
	bundle.Control = &frame.ControlData{Commands: append(existing, commands...)}
	return bundle, nil
}
