package diagram

import "fmt"

// DiagramIndex is the set of adjacency lookups every later compiler stage
// and the runtime need. Grounded on the teacher's pkg/engine/dag_utils.go
// DAGIndex.
type DiagramIndex struct {
	NodesByID      map[NodeID]*Node
	EdgesBySource  map[NodeID][]*Edge
	EdgesByTarget  map[NodeID][]*Edge
	InDegree       map[NodeID]int
}

// BuildIndex constructs a DiagramIndex over the given nodes and edges.
func BuildIndex(nodes []Node, edges []Edge) *DiagramIndex {
	idx := &DiagramIndex{
		NodesByID:     make(map[NodeID]*Node, len(nodes)),
		EdgesBySource: make(map[NodeID][]*Edge),
		EdgesByTarget: make(map[NodeID][]*Edge),
		InDegree:      make(map[NodeID]int, len(nodes)),
	}
	for i := range nodes {
		n := &nodes[i]
		idx.NodesByID[n.ID] = n
		idx.InDegree[n.ID] = 0
	}
	for i := range edges {
		e := &edges[i]
		idx.EdgesBySource[e.SourceNodeID] = append(idx.EdgesBySource[e.SourceNodeID], e)
		idx.EdgesByTarget[e.TargetNodeID] = append(idx.EdgesByTarget[e.TargetNodeID], e)
		idx.InDegree[e.TargetNodeID]++
	}
	return idx
}

// TopologicalLayers runs Kahn's algorithm over the index, returning nodes
// grouped into waves where every node in wave N depends only on nodes in
// waves < N, loop edges aside. Used by the compiler to detect cycles at compile time (C3);
// the runtime scheduler (pkg/scheduler) does NOT execute wave-by-wave — it
// polls per-node readiness — but the same acyclicity check anchors both.
func TopologicalLayers(nodes []Node, edges []Edge) ([][]NodeID, error) {
	idx := BuildIndex(nodes, edges)
	remaining := make(map[NodeID]int, len(idx.InDegree))
	for id, d := range idx.InDegree {
		remaining[id] = d
	}
	// Loop edges (condition branch edges, and conversation_state edges into
	// a person_job) don't count toward a node's in-degree here.
	isLoopEdge := func(e *Edge) bool {
		if e.Branch != "" {
			return true
		}
		t := idx.NodesByID[e.TargetNodeID]
		return t != nil && (t.Type == NodeTypePersonJob || t.Type == NodeTypePersonBatchJob) &&
			e.Transform.ContentType == "conversation_state"
	}
	for i := range edges {
		if _, ok := remaining[edges[i].TargetNodeID]; ok && isLoopEdge(&edges[i]) {
			remaining[edges[i].TargetNodeID]--
		}
	}

	var layers [][]NodeID
	visited := 0
	for {
		var layer []NodeID
		for id, d := range remaining {
			if d == 0 {
				layer = append(layer, id)
			}
		}
		if len(layer) == 0 {
			break
		}
		for _, id := range layer {
			delete(remaining, id)
			visited++
			for _, e := range idx.EdgesBySource[id] {
				if isLoopEdge(e) {
					// Condition branch edges and person_job
					// conversation_state edges don't force acyclicity the
					// way a normal data edge does: an edge back to an
					// earlier node is the loop-back construct, not a cycle
					// bug. Skip it when computing compile-time layers.
					continue
				}
				if _, ok := remaining[e.TargetNodeID]; ok {
					remaining[e.TargetNodeID]--
				}
			}
		}
		layers = append(layers, layer)
	}

	if visited != len(nodes) {
		var stuck []NodeID
		for id := range remaining {
			stuck = append(stuck, id)
		}
		return layers, fmt.Errorf("diagram: cyclic dependency detected among nodes %v", stuck)
	}
	return layers, nil
}

// FindOrphans returns nodes with neither incoming nor outgoing edges, other
// than start nodes (which legitimately have no incoming edges) and endpoint
// nodes (which legitimately have no outgoing edges).
func FindOrphans(nodes []Node, edges []Edge) []NodeID {
	idx := BuildIndex(nodes, edges)
	var orphans []NodeID
	for i := range nodes {
		n := &nodes[i]
		hasIn := len(idx.EdgesByTarget[n.ID]) > 0
		hasOut := len(idx.EdgesBySource[n.ID]) > 0
		if hasIn || hasOut {
			continue
		}
		if n.Type == NodeTypeStart || n.Type == NodeTypeEndpoint {
			continue
		}
		orphans = append(orphans, n.ID)
	}
	return orphans
}
