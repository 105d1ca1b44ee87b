// graph_test.go - invariants for Graph's connect/topological-order/cycle behavior
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/constellationstudio/engine/internal/frame"
)

// stubNode is a minimal Node used only to exercise Graph mechanics.
type stubNode struct {
	BaseNode
}

func newStub(name string, inputs, outputs []PortType) *stubNode {
	n := &stubNode{}
	n.BaseNode = NewBaseNode(NewNodeID(), name, KindEffectComposite, inputs, outputs, map[string]ParamDef{})
	return n
}

func (s *stubNode) Process(_ float64, b frame.Bundle) (frame.Bundle, error) { return b, nil }

func renderNode(name string) *stubNode {
	return newStub(name, []PortType{PortRender}, []PortType{PortRender})
}

func TestConnectOrdersSourceBeforeTarget(t *testing.T) {
	g := New()
	a := g.AddNode(renderNode("a"))
	b := g.AddNode(renderNode("b"))
	require.NoError(t, g.Connect(a, b, PortRender))

	order := g.TopologicalOrder()
	posA, posB := indexOf(order, a), indexOf(order, b)
	require.GreaterOrEqual(t, posA, 0)
	require.Greater(t, posB, posA)
}

func TestCycleRejectionLeavesGraphUnchanged(t *testing.T) {
	g := New()
	a := g.AddNode(renderNode("a"))
	b := g.AddNode(renderNode("b"))
	c := g.AddNode(renderNode("c"))
	require.NoError(t, g.Connect(a, b, PortRender))
	require.NoError(t, g.Connect(b, c, PortRender))

	edgesBefore := g.Edges()
	err := g.Connect(c, a, PortRender)
	require.Error(t, err)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	require.Equal(t, []NodeID{c, a, b, c}, cycleErr.Path)
	require.Equal(t, edgesBefore, g.Edges())
}

func TestRemoveNodeLeavesNoDanglingEdge(t *testing.T) {
	g := New()
	a := g.AddNode(renderNode("a"))
	b := g.AddNode(renderNode("b"))
	require.NoError(t, g.Connect(a, b, PortRender))

	g.RemoveNode(a)
	for _, e := range g.Edges() {
		require.NotEqual(t, a, e.Source)
		require.NotEqual(t, a, e.Target)
	}
}

func TestConnectDisconnectRestoresEdgeSet(t *testing.T) {
	g := New()
	a := g.AddNode(renderNode("a"))
	b := g.AddNode(renderNode("b"))
	before := g.Edges()

	require.NoError(t, g.Connect(a, b, PortRender))
	g.Disconnect(a, b)
	require.Equal(t, before, g.Edges())
}

func TestSetParameterThenGetParameterRoundTrips(t *testing.T) {
	n := &stubNode{}
	n.BaseNode = NewBaseNode(NewNodeID(), "n", KindEffectComposite, nil, nil, map[string]ParamDef{
		"strength": {Type: TypeFloat, Default: Float(0)},
	})
	require.NoError(t, n.SetParameter("strength", Float(0.75)))
	v, ok := n.GetParameter("strength")
	require.True(t, ok)
	require.Equal(t, 0.75, v.F)
}

func indexOf(order []NodeID, id NodeID) int {
	for i, n := range order {
		if n == id {
			return i
		}
	}
	return -1
}
