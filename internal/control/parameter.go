// parameter.go - Parameter control node
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package control

import (
	"github.com/google/uuid"

	"github.com/constellationstudio/engine/internal/frame"
	"github.com/constellationstudio/engine/internal/graph"
)

// TransformKind is the closed set of Parameter-node transforms.
type TransformKind int

const (
	TransformDirect TransformKind = iota
	TransformScale
	TransformInvert
	TransformThreshold
)

// ParamMapping pairs a Parameter node's incoming control value with a
// transform and a target, independent of the generic three-stage Mapping
// used by LFO/Timeline/Math: the Parameter node's transforms operate
// directly on the raw input rather than through a natural/target range
// normalization.
type ParamMapping struct {
	TargetNode      uuid.UUID
	TargetParameter string
	Transform       TransformKind
	Min, Max        float64 // TransformScale
	Threshold       float64 // TransformThreshold
	Below, Above    float64 // TransformThreshold
}

func (m ParamMapping) apply(x float64) float64 {
	switch m.Transform {
	case TransformScale:
		return m.Min + x*(m.Max-m.Min)
	case TransformInvert:
		return -x
	case TransformThreshold:
		if x < m.Threshold {
			return m.Below
		}
		return m.Above
	default:
		return x
	}
}

var parameterSchema = map[string]graph.ParamDef{
	"input": {Type: graph.TypeFloat, Default: graph.Float(0.0)},
}

// Parameter is a pass-through controller: it receives a named control input
// (written via SetParameter("input", ...), typically by an upstream
// mapping) and fans it out to one or more target parameters via
// ParamMappings.
type Parameter struct {
	graph.BaseNode
	mappings []ParamMapping
}

func NewParameter(id graph.NodeID, name string) *Parameter {
	n := &Parameter{}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindControlParameter, []graph.PortType{graph.PortControl}, []graph.PortType{graph.PortControl}, parameterSchema)
	return n
}

func (n *Parameter) AddMapping(m ParamMapping) { n.mappings = append(n.mappings, m) }

func (n *Parameter) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	x := n.Param("input").F
	var commands []frame.ControlCommand
	if bundle.Control != nil {
		commands = append(commands, bundle.Control.Commands...)
	}
	for _, m := range n.mappings {
		commands = append(commands, frame.ControlCommand{
			TargetNode: m.TargetNode,
			Parameter:  m.TargetParameter,
			Value:      m.apply(x),
			Timestamp:  tickTime,
		})
	}
	bundle.Control = &frame.ControlData{Commands: commands}
	return bundle, nil
}
