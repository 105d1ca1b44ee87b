// timeline.go - Timeline control node
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package control

import (
	"math"
	"sort"

	"github.com/constellationstudio/engine/internal/frame"
	"github.com/constellationstudio/engine/internal/graph"
)

// Interpolation is the closed set of keyframe interpolation curves.
type Interpolation int

const (
	InterpLinear Interpolation = iota
	InterpEaseIn
	InterpEaseOut
	InterpEaseInOut
	InterpBezier
)

// Keyframe is a single control point on a Timeline, ordered by Time within
// it. Bezier control points (P1..P4) are only meaningful when Curve is
// InterpBezier; they follow the CSS cubic-bezier(p1,p2,p3,p4) convention of
// two (x,y) control-point pairs, collapsed here to a direct blend over the
// segment's local progress since the timeline parameterizes by time, not by
// the bezier's own x axis.
type Keyframe struct {
	Time   float64
	Value  float64
	Curve  Interpolation
	P1, P2 float64
	P3, P4 float64
}

func ease(k Keyframe, t float64) float64 {
	switch k.Curve {
	case InterpEaseIn:
		return t * t
	case InterpEaseOut:
		return 1 - (1-t)*(1-t)
	case InterpEaseInOut:
		if t < 0.5 {
			return 2 * t * t
		}
		return 1 - (-2*t+2)*(-2*t+2)/2
	case InterpBezier:
		inv := 1 - t
		return 3*inv*inv*t*k.P2 + 3*inv*t*t*k.P4 + t*t*t
	default:
		return t
	}
}

var timelineSchema = map[string]graph.ParamDef{
	"duration": {Type: graph.TypeFloat, Default: graph.Float(1.0)},
	"loop":     {Type: graph.TypeBool, Default: graph.Bool(false)},
}

// Timeline interpolates between an ordered set of Keyframes and emits
// value/time/progress through its mappings each tick.
type Timeline struct {
	graph.BaseNode
	keyframes []Keyframe
	mappings  []Mapping
}

func NewTimeline(id graph.NodeID, name string, keyframes []Keyframe) *Timeline {
	sorted := append([]Keyframe{}, keyframes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	n := &Timeline{keyframes: sorted}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindControlTimeline, nil, []graph.PortType{graph.PortControl}, timelineSchema)
	return n
}

func (n *Timeline) AddMapping(m Mapping) { n.mappings = append(n.mappings, m) }

// Evaluate returns the interpolated value at localTime, the clamped/looped
// time used, and progress = time/duration.
func (n *Timeline) Evaluate(localTime float64) (value, clampedTime, progress float64) {
	duration := n.Param("duration").F
	loop := n.Param("loop").B

	t := localTime
	if duration > 0 {
		if loop {
			t = mod(t, duration)
		} else if t > duration {
			t = duration
		}
	}
	if t < 0 {
		t = 0
	}

	if len(n.keyframes) == 0 {
		return 0, t, 0
	}
	if t <= n.keyframes[0].Time {
		return n.keyframes[0].Value, t, progressOf(t, duration)
	}
	last := n.keyframes[len(n.keyframes)-1]
	if t >= last.Time {
		return last.Value, t, progressOf(t, duration)
	}

	for i := 0; i < len(n.keyframes)-1; i++ {
		before, after := n.keyframes[i], n.keyframes[i+1]
		if t >= before.Time && t <= after.Time {
			span := after.Time - before.Time
			local := 0.0
			if span > 0 {
				local = (t - before.Time) / span
			}
			eased := ease(before, local)
			return before.Value + eased*(after.Value-before.Value), t, progressOf(t, duration)
		}
	}
	return last.Value, t, progressOf(t, duration)
}

func progressOf(t, duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	return t / duration
}

func mod(a, m float64) float64 {
	if m == 0 {
		return 0
	}
	r := math.Mod(a, m)
	if r < 0 {
		r += m
	}
	return r
}

func (n *Timeline) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	value, t, progress := n.Evaluate(tickTime)
	commands := ApplyMappings(n.mappings, map[string]float64{
		"value":    value,
		"time":     t,
		"progress": progress,
	}, tickTime)

	var existing []frame.ControlCommand
	if bundle.Control != nil {
		existing = bundle.Control.Commands
	}
	bundle.Control = &frame.ControlData{Commands: append(existing, commands...)}
	return bundle, nil
}
