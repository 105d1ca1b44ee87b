// graph.go - node/edge store, cycle detection, topological order
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package graph

import (
	"fmt"

	"github.com/constellationstudio/engine/internal/errs"
)

// Edge is a typed directed connection between two nodes.
type Edge struct {
	Source NodeID
	Target NodeID
	Type   PortType
}

// CycleError reports a rejected connection whose addition would create a
// cycle; Path is the discovery trace including the rejected edge.
type CycleError struct {
	Path []NodeID
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %v", e.Path)
}

// Graph exclusively owns a set of Nodes and the ordered Edges between them.
// The scheduler borrows it read-only for ordering and mutably per-node
// during process; the control plane is the sole writer.
type Graph struct {
	nodes       map[NodeID]Node
	insertOrder []NodeID
	edges       []Edge
	topoCache   []NodeID
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: map[NodeID]Node{}}
}

// AddNode inserts node, returning its id. Invalidates the topological cache.
func (g *Graph) AddNode(n Node) NodeID {
	id := n.Describe().ID
	g.nodes[id] = n
	g.insertOrder = append(g.insertOrder, id)
	g.topoCache = nil
	return id
}

// RemoveNode removes node id and all incident edges, so no edge refers to
// id afterward. Invalidates the topological cache.
func (g *Graph) RemoveNode(id NodeID) {
	if _, ok := g.nodes[id]; !ok {
		return
	}
	delete(g.nodes, id)
	for i, existing := range g.insertOrder {
		if existing == id {
			g.insertOrder = append(g.insertOrder[:i], g.insertOrder[i+1:]...)
			break
		}
	}
	kept := g.edges[:0]
	for _, e := range g.edges {
		if e.Source != id && e.Target != id {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	g.topoCache = nil
}

// Node returns the node for id, if present.
func (g *Graph) Node(id NodeID) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all node ids in insertion order.
func (g *Graph) Nodes() []NodeID {
	out := make([]NodeID, len(g.insertOrder))
	copy(out, g.insertOrder)
	return out
}

// Edges returns the current edge set in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// portAllowed reports whether t is declared in ports.
func portAllowed(ports []PortType, t PortType) bool {
	for _, p := range ports {
		if p == t {
			return true
		}
	}
	return false
}

// Connect adds a typed edge from source to target. It fails with an
// InvalidConnection error if either endpoint is missing or the type is not
// in source's outputs and target's inputs, and with a *CycleError if adding
// the edge would create a cycle. On any failure the graph is left unchanged.
func (g *Graph) Connect(source, target NodeID, t PortType) error {
	srcNode, ok := g.nodes[source]
	if !ok {
		return errs.New(errs.KindInvalidConnection, fmt.Errorf("source node %s not found", source))
	}
	dstNode, ok := g.nodes[target]
	if !ok {
		return errs.New(errs.KindInvalidConnection, fmt.Errorf("target node %s not found", target))
	}
	if !portAllowed(srcNode.Describe().Outputs, t) || !portAllowed(dstNode.Describe().Inputs, t) {
		return errs.New(errs.KindInvalidConnection, fmt.Errorf("port type %s not compatible between %s and %s", t, source, target))
	}

	trial := append(append([]Edge{}, g.edges...), Edge{Source: source, Target: target, Type: t})
	if path, cyclic := detectCycle(g.insertOrder, trial, source); cyclic {
		return &CycleError{Path: path}
	}

	g.edges = trial
	g.topoCache = nil
	return nil
}

// Disconnect removes the first matching edge between source and target,
// regardless of type.
func (g *Graph) Disconnect(source, target NodeID) {
	for i, e := range g.edges {
		if e.Source == source && e.Target == target {
			g.edges = append(g.edges[:i], g.edges[i+1:]...)
			g.topoCache = nil
			return
		}
	}
}

// TopologicalOrder returns the cached order, recomputing via Kahn's
// algorithm on a cache miss. Ties among equal in-degree nodes break by
// insertion order; isolated nodes (no edges at all) appear after all nodes
// that have predecessors, in insertion order.
func (g *Graph) TopologicalOrder() []NodeID {
	if g.topoCache != nil {
		return g.topoCache
	}
	order := kahn(g.insertOrder, g.edges)
	g.topoCache = order
	return order
}

func kahn(insertOrder []NodeID, edges []Edge) []NodeID {
	inDegree := make(map[NodeID]int, len(insertOrder))
	adj := make(map[NodeID][]NodeID, len(insertOrder))
	for _, id := range insertOrder {
		inDegree[id] = 0
	}
	connected := make(map[NodeID]bool, len(insertOrder))
	for _, e := range edges {
		inDegree[e.Target]++
		adj[e.Source] = append(adj[e.Source], e.Target)
		connected[e.Source] = true
		connected[e.Target] = true
	}

	// ready holds zero-in-degree nodes; insertion order is the deterministic
	// tie-break, so we always scan insertOrder rather than use a heap.
	// Isolated nodes are held back and appended after the connected ones.
	visited := make(map[NodeID]bool, len(insertOrder))
	var order []NodeID
	remaining := len(connected)

	for remaining > 0 {
		progressed := false
		for _, id := range insertOrder {
			if visited[id] || !connected[id] || inDegree[id] != 0 {
				continue
			}
			visited[id] = true
			order = append(order, id)
			remaining--
			progressed = true
			for _, next := range adj[id] {
				inDegree[next]--
			}
		}
		if !progressed {
			// A residual cycle should be impossible since Connect rejects
			// cycles before they enter the edge set; break defensively
			// rather than loop forever.
			break
		}
	}
	for _, id := range insertOrder {
		if !connected[id] {
			order = append(order, id)
		}
	}
	return order
}

// detectCycle runs a three-color DFS over edges (which includes the
// trial edge under consideration) and reports the discovery trace of the
// first cycle found, if any. start is visited first so that, when the
// trial edge is the one closing the cycle, the reported path begins at
// its source rather than at an arbitrary earlier-inserted node.
func detectCycle(insertOrder []NodeID, edges []Edge, start NodeID) ([]NodeID, bool) {
	const (
		white = iota
		gray
		black
	)
	color := make(map[NodeID]int, len(insertOrder))
	for _, id := range insertOrder {
		color[id] = white
	}
	adj := make(map[NodeID][]NodeID, len(insertOrder))
	for _, e := range edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	var stack []NodeID
	var cyclePath []NodeID

	var visit func(NodeID) bool
	visit = func(n NodeID) bool {
		color[n] = gray
		stack = append(stack, n)
		for _, next := range adj[n] {
			switch color[next] {
			case white:
				if visit(next) {
					return true
				}
			case gray:
				// Found the back edge; build the cycle path from where
				// next first appears on the stack through to here, plus
				// the closing edge back to next.
				for i, s := range stack {
					if s == next {
						cyclePath = append([]NodeID{}, stack[i:]...)
						cyclePath = append(cyclePath, next)
						return true
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return false
	}

	if _, ok := color[start]; ok && color[start] == white {
		if visit(start) {
			return cyclePath, true
		}
	}
	for _, id := range insertOrder {
		if color[id] == white {
			if visit(id) {
				return cyclePath, true
			}
		}
	}
	return nil, false
}
