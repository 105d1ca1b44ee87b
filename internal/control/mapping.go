// mapping.go - ControlMapping and ResponseCurve
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

// Package control implements the control-signal subgraph: LFO, Timeline,
// Math, and Parameter evaluators, plus the ControlMapping three-stage apply
// shared by all of them.
package control

import (
	"math"

	"github.com/google/uuid"

	"github.com/constellationstudio/engine/internal/frame"
)

// CurveKind is the closed set of response curves.
type CurveKind int

const (
	CurveLinear CurveKind = iota
	CurveExponential
	CurveLogarithmic
)

// ResponseCurve shapes a normalized [0,1] control value before it is
// remapped into a mapping's target range. Exponent is only meaningful for
// CurveExponential.
type ResponseCurve struct {
	Kind     CurveKind
	Exponent float64
}

// Apply shapes a normalized value. Linear is the identity; Exponential
// raises to Exponent (Exponential(2.0).Apply(0.5) == 0.25); Logarithmic
// applies a log curve anchored so Apply(0)==0 and Apply(1)==1.
func (c ResponseCurve) Apply(norm float64) float64 {
	switch c.Kind {
	case CurveExponential:
		return math.Pow(norm, c.Exponent)
	case CurveLogarithmic:
		return math.Log1p(norm*9) / math.Log(10)
	default:
		return norm
	}
}

// Mapping routes a named source control value to a target node's parameter,
// applying a response curve and range remap in three stages: interpret the
// raw value against its natural range, shape it, then remap to the target
// range.
type Mapping struct {
	SourceParameter string
	TargetNode      uuid.UUID
	TargetParameter string
	NaturalMin      float64
	NaturalMax      float64
	TargetMin       float64
	TargetMax       float64
	Curve           ResponseCurve
}

// NewMapping returns a mapping with identity defaults: natural and target
// ranges both [0,1], Linear curve, so Apply is the identity for any input —
// including inputs outside [0,1], which is what lets an LFO's already-final
// value (amplitude+offset applied, potentially outside [-1,1]) pass straight
// through to its target parameter without a second, contradictory clamp.
func NewMapping(source string, target uuid.UUID, targetParam string) Mapping {
	return Mapping{
		SourceParameter: source,
		TargetNode:      target,
		TargetParameter: targetParam,
		NaturalMin:      0,
		NaturalMax:      1,
		TargetMin:       0,
		TargetMax:       1,
		Curve:           ResponseCurve{Kind: CurveLinear},
	}
}

// Apply runs the three-stage pipeline: normalize raw against NaturalMin/Max,
// shape with Curve, then remap into TargetMin/Max. No stage clamps; ranges
// are interpreted, not enforced, so a value that overshoots its declared
// natural range overshoots its target range by the same proportion.
func (m Mapping) Apply(raw float64) float64 {
	span := m.NaturalMax - m.NaturalMin
	norm := 0.0
	if span != 0 {
		norm = (raw - m.NaturalMin) / span
	}
	curved := m.Curve.Apply(norm)
	return m.TargetMin + curved*(m.TargetMax-m.TargetMin)
}

// ApplyMappings evaluates every mapping whose SourceParameter is present in
// values, producing one ControlCommand per match.
func ApplyMappings(mappings []Mapping, values map[string]float64, tickTime float64) []frame.ControlCommand {
	var out []frame.ControlCommand
	for _, m := range mappings {
		raw, ok := values[m.SourceParameter]
		if !ok {
			continue
		}
		out = append(out, frame.ControlCommand{
			TargetNode: m.TargetNode,
			Parameter:  m.TargetParameter,
			Value:      m.Apply(raw),
			Timestamp:  tickTime,
		})
	}
	return out
}
