// tally.go - tally-kind nodes
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package nodes

import (
	"github.com/google/uuid"

	"github.com/constellationstudio/engine/internal/frame"
	"github.com/constellationstudio/engine/internal/graph"
)

var tallyGeneratorSchema = map[string]graph.ParamDef{
	"program": {Type: graph.TypeBool, Default: graph.Bool(false)},
	"preview": {Type: graph.TypeBool, Default: graph.Bool(false)},
}

// TallyGenerator originates a tally state, set via its program/preview
// parameters (typically driven by a switcher or operator control surface
// outside this engine).
type TallyGenerator struct {
	graph.BaseNode
}

func NewTallyGenerator(id graph.NodeID, name string) *TallyGenerator {
	n := &TallyGenerator{}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindTallyGenerator, nil, []graph.PortType{graph.PortTally}, tallyGeneratorSchema)
	return n
}

func (n *TallyGenerator) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	out := frame.Empty()
	out.Tally = frame.TallyMetadata{
		Program:         n.Param("program").B,
		Preview:         n.Param("preview").B,
		Custom:          map[string]bool{},
		PropagationPath: []uuid.UUID{n.ID()},
	}
	return out, nil
}

// TallyMonitor passes tally state through unchanged, recording the most
// recently observed state for external inspection (e.g. a UMD display
// driver); the scheduler also mirrors each observation into the event
// log.
type TallyMonitor struct {
	graph.BaseNode
	Last frame.TallyMetadata
}

func NewTallyMonitor(id graph.NodeID, name string) *TallyMonitor {
	n := &TallyMonitor{}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindTallyMonitor, []graph.PortType{graph.PortTally}, []graph.PortType{graph.PortTally}, nil)
	return n
}

func (n *TallyMonitor) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	n.Last = bundle.Tally
	return bundle, nil
}

var tallyLogicSchema = map[string]graph.ParamDef{
	"operation": {Type: graph.TypeEnum, Default: graph.Enum("or")},
}

// TallyLogic recomputes program/preview from the incoming tally paths using
// a boolean combinator, applied to program and preview independently over
// bundle.TallyLayers (each predecessor's pre-merge state in edge-insertion
// order) — e.g. AND requires every contributing path to have asserted
// program, which the OR-union MergeTally performs upstream cannot express.
// "or" is that union; "not" inverts the merged state.
type TallyLogic struct {
	graph.BaseNode
}

func NewTallyLogic(id graph.NodeID, name string) *TallyLogic {
	n := &TallyLogic{}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindTallyLogic, []graph.PortType{graph.PortTally}, []graph.PortType{graph.PortTally}, tallyLogicSchema)
	return n
}

func (n *TallyLogic) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	layers := bundle.TallyLayers
	switch n.Param("operation").S {
	case "and":
		if len(layers) > 0 {
			program, preview := true, true
			for _, l := range layers {
				program = program && l.Program
				preview = preview && l.Preview
			}
			bundle.Tally.Program, bundle.Tally.Preview = program, preview
		}
	case "xor":
		if len(layers) > 0 {
			program, preview := false, false
			for _, l := range layers {
				program = program != l.Program
				preview = preview != l.Preview
			}
			bundle.Tally.Program, bundle.Tally.Preview = program, preview
		}
	case "not":
		bundle.Tally.Program = !bundle.Tally.Program
		bundle.Tally.Preview = !bundle.Tally.Preview
	}
	return bundle, nil
}

var tallyRouterSchema = map[string]graph.ParamDef{
	"route_program_to": {Type: graph.TypeString, Default: graph.String("")},
}

// TallyRouter tags the tally's custom map with a named route key whenever
// program is asserted, providing a hook for downstream consumers (UMD
// tallies, router panels) keyed by destination name.
type TallyRouter struct {
	graph.BaseNode
}

func NewTallyRouter(id graph.NodeID, name string) *TallyRouter {
	n := &TallyRouter{}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindTallyRouter, []graph.PortType{graph.PortTally}, []graph.PortType{graph.PortTally}, tallyRouterSchema)
	return n
}

func (n *TallyRouter) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	route := n.Param("route_program_to").S
	if route != "" && bundle.Tally.Program {
		if bundle.Tally.Custom == nil {
			bundle.Tally.Custom = map[string]bool{}
		}
		bundle.Tally.Custom[route] = true
	}
	return bundle, nil
}
