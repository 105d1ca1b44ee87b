// math.go - Math control node
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package control

import (
	"strconv"
	"strings"

	gomath "math"

	lua "github.com/yuin/gopher-lua"

	"github.com/constellationstudio/engine/internal/frame"
	"github.com/constellationstudio/engine/internal/graph"
)

var mathSchema = map[string]graph.ParamDef{
	"expression": {Type: graph.TypeString, Default: graph.String("t")},
	"time_scale": {Type: graph.TypeFloat, Default: graph.Float(1.0)},
	"a":          {Type: graph.TypeFloat, Default: graph.Float(0.0)},
	"b":          {Type: graph.TypeFloat, Default: graph.Float(0.0)},
	"c":          {Type: graph.TypeFloat, Default: graph.Float(0.0)},
}

// Math evaluates a small, closed set of recognized expression shapes over
// free variables {t,a,b,c}. Any expression outside the list below either
// parses as a float literal or, failing that, is tried against an embedded
// Lua evaluator before finally defaulting to zero — never a panic. t is
// scaled by time_scale and by π before entering any trig shape.
type Math struct {
	graph.BaseNode
	mappings []Mapping
	lstate   *lua.LState
}

func NewMath(id graph.NodeID, name string) *Math {
	n := &Math{lstate: lua.NewState()}
	// Bind the bare helper names used by the Lua enrichment path.
	_ = n.lstate.DoString("sin, cos, abs, sqrt = math.sin, math.cos, math.abs, math.sqrt; pow = function(x, y) return x ^ y end")
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindControlMath, nil, []graph.PortType{graph.PortControl}, mathSchema)
	return n
}

func (n *Math) AddMapping(m Mapping) { n.mappings = append(n.mappings, m) }

// Evaluate computes the configured expression at tick time tickTime.
func (n *Math) Evaluate(tickTime float64) float64 {
	expr := strings.TrimSpace(n.Param("expression").S)
	a := n.Param("a").F
	b := n.Param("b").F
	c := n.Param("c").F
	timeScale := n.Param("time_scale").F
	// The π multiplication applies only inside the trig-wrapped shapes
	// below; the bare "t" arm returns time-scaled t with no π factor.
	t := tickTime * timeScale
	piT := t * gomath.Pi

	switch expr {
	case "sin(t)":
		return gomath.Sin(piT)
	case "cos(t)":
		return gomath.Cos(piT)
	case "sin(t * a)":
		return gomath.Sin(piT * a)
	case "cos(t * a)":
		return gomath.Cos(piT * a)
	case "a * sin(t) + b":
		return a*gomath.Sin(piT) + b
	case "a * cos(t) + b":
		return a*gomath.Cos(piT) + b
	case "abs(sin(t))":
		return gomath.Abs(gomath.Sin(piT))
	case "t":
		return t
	case "a":
		return a
	case "b":
		return b
	case "c":
		return c
	}

	if f, err := strconv.ParseFloat(expr, 64); err == nil {
		return f
	}

	if v, ok := n.evalLua(expr, t, a, b, c); ok {
		return v
	}
	return 0
}

// evalLua is the enrichment path: expressions outside the fixed recognized
// shapes are tried as a Lua return-expression with t/a/b/c bound as globals
// and sin/cos/abs/sqrt/pow available, so operators can author richer
// control curves without expanding the fixed-shape list.
func (n *Math) evalLua(expr string, t, a, b, c float64) (float64, bool) {
	L := n.lstate
	L.SetGlobal("t", lua.LNumber(t))
	L.SetGlobal("a", lua.LNumber(a))
	L.SetGlobal("b", lua.LNumber(b))
	L.SetGlobal("c", lua.LNumber(c))
	if err := L.DoString("__cs_result = " + expr); err != nil {
		return 0, false
	}
	result := L.GetGlobal("__cs_result")
	num, ok := result.(lua.LNumber)
	if !ok {
		return 0, false
	}
	return float64(num), true
}

func (n *Math) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	val := n.Evaluate(tickTime)
	commands := ApplyMappings(n.mappings, map[string]float64{"value": val}, tickTime)

	var existing []frame.ControlCommand
	if bundle.Control != nil {
		existing = bundle.Control.Commands
	}
	bundle.Control = &frame.ControlData{Commands: append(existing, commands...)}
	return bundle, nil
}
