// dto.go - JSON wire shapes for the graph's typed parameter bag
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package webapi

import (
	"encoding/json"
	"fmt"

	"github.com/constellationstudio/engine/internal/graph"
)

// nodeDTO is the JSON shape of a node returned by GET /api/nodes and
// GET /api/nodes/{id}.
type nodeDTO struct {
	ID      graph.NodeID               `json:"id"`
	Name    string                     `json:"name"`
	Kind    graph.Kind                 `json:"kind"`
	Inputs  []string                   `json:"inputs"`
	Outputs []string                   `json:"outputs"`
	Params  map[string]json.RawMessage `json:"parameters"`
}

func toNodeDTO(p graph.NodeProperties) nodeDTO {
	d := nodeDTO{
		ID:      p.ID,
		Name:    p.Name,
		Kind:    p.Kind,
		Inputs:  portNames(p.Inputs),
		Outputs: portNames(p.Outputs),
		Params:  map[string]json.RawMessage{},
	}
	for key, def := range p.Schema {
		raw, err := valueToJSON(def.Default)
		if err != nil {
			continue
		}
		d.Params[key] = raw
	}
	return d
}

func portNames(ports []graph.PortType) []string {
	out := make([]string, len(ports))
	for i, p := range ports {
		out[i] = p.String()
	}
	return out
}

// valueToJSON renders a graph.Value as the plain JSON scalar/array a client
// would expect for its declared type.
func valueToJSON(v graph.Value) (json.RawMessage, error) {
	switch v.Type {
	case graph.TypeBool:
		return json.Marshal(v.B)
	case graph.TypeInt:
		return json.Marshal(v.I)
	case graph.TypeFloat:
		return json.Marshal(v.F)
	case graph.TypeString, graph.TypeEnum:
		return json.Marshal(v.S)
	case graph.TypeVec2:
		return json.Marshal(v.Vec[:2])
	case graph.TypeVec3:
		return json.Marshal(v.Vec[:3])
	case graph.TypeVec4, graph.TypeColor:
		return json.Marshal(v.Vec[:4])
	default:
		return nil, fmt.Errorf("unsupported value type %d", v.Type)
	}
}

// jsonToValue parses raw against the node's declared schema type for key,
// producing the graph.Value SetParameter expects.
func jsonToValue(schema map[string]graph.ParamDef, key string, raw json.RawMessage) (graph.Value, error) {
	def, ok := schema[key]
	if !ok {
		return graph.Value{}, fmt.Errorf("parameter %q not declared", key)
	}
	switch def.Type {
	case graph.TypeBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return graph.Value{}, err
		}
		return graph.Bool(b), nil
	case graph.TypeInt:
		var i int64
		if err := json.Unmarshal(raw, &i); err != nil {
			return graph.Value{}, err
		}
		return graph.Int(i), nil
	case graph.TypeFloat:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return graph.Value{}, err
		}
		return graph.Float(f), nil
	case graph.TypeString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return graph.Value{}, err
		}
		return graph.String(s), nil
	case graph.TypeEnum:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return graph.Value{}, err
		}
		return graph.Enum(s), nil
	case graph.TypeVec2, graph.TypeVec3, graph.TypeVec4, graph.TypeColor:
		var vec []float64
		if err := json.Unmarshal(raw, &vec); err != nil {
			return graph.Value{}, err
		}
		var v [4]float64
		copy(v[:], vec)
		return graph.Value{Type: def.Type, Vec: v}, nil
	default:
		return graph.Value{}, fmt.Errorf("parameter %q has unsupported schema type", key)
	}
}
