package diagram

import "fmt"

// ExecutableDiagram is the immutable, validated output of Compile. Nothing
// downstream (pkg/state, pkg/resolve, pkg/scheduler) ever mutates it; each
// execution carries its own separate runtime state alongside a pointer to
// one of these.
type ExecutableDiagram struct {
	ID     string
	Nodes  []Node
	Edges  []Edge
	Index  *DiagramIndex
	Layers [][]NodeID

	// StartNodes is the subset of Nodes with Type == NodeTypeStart, in
	// declaration order, cached for scheduler seeding.
	StartNodes []NodeID
}

// RawDiagram is the author-facing, uncompiled form produced by a wire
// format decoder (lightyaml.go's light YAML decoder is the only one this
// package provides). Compile
// resolves handles, merges transforms, computes ordering, and validates the
// result into an ExecutableDiagram.
type RawDiagram struct {
	ID     string
	Nodes  []Node
	Arrows []RawArrow
}

// Compile runs the four compiler stages (C1 handle resolution, C2 transform
// merge, C3 ordering, C4 assembly+validation) over a RawDiagram, returning
// either a usable ExecutableDiagram or the list of validation issues that
// prevented compilation. Non-fatal issues (warnings) are returned alongside
// a non-nil diagram; fatal issues (errors) cause Compile to return a nil
// diagram with the issues collected so far. Within a stage every issue is
// collected rather than stopping at the first, matching the teacher's
// Validate() aggregation style in pkg/models/workflow.go; once a stage has
// reported an error, the later stages (ordering, orphan and start-node
// checks) are not run.
func Compile(raw RawDiagram) (*ExecutableDiagram, []ValidationIssue) {
	var issues []ValidationIssue

	if len(raw.Nodes) == 0 {
		issues = append(issues, ValidationIssue{Severity: SeverityError, Message: "diagram: no nodes defined"})
	}

	seen := make(map[NodeID]bool, len(raw.Nodes))
	for _, n := range raw.Nodes {
		if seen[n.ID] {
			issues = append(issues, ValidationIssue{Severity: SeverityError, NodeID: n.ID, Message: fmt.Sprintf("diagram: duplicate node id %q", n.ID)})
			continue
		}
		seen[n.ID] = true
	}

	resolver := NewHandleResolver(raw.Nodes)
	edges := make([]Edge, 0, len(raw.Arrows))
	for _, arrow := range raw.Arrows {
		source, target, arrowIssues := resolver.Resolve(arrow)
		issues = append(issues, arrowIssues...)
		if len(arrowIssues) > 0 {
			continue
		}

		srcNode := findNode(raw.Nodes, source.NodeID)
		transform := ResolveTransform(srcNode.Type, arrow.Transform, TransformRule{})

		edges = append(edges, Edge{
			ID:           EdgeID(arrow.ID),
			SourceNodeID: source.NodeID,
			TargetNodeID: target.NodeID,
			SourceOutput: HandleID(source.Name),
			TargetInput:  HandleID(target.Name),
			Transform:    transform,
			Label:        arrow.Label,
			Branch:       arrow.Branch,
		})
	}

	if hasFatal(issues) {
		return nil, issues
	}

	layers, err := TopologicalLayers(raw.Nodes, edges)
	if err != nil {
		issues = append(issues, ValidationIssue{Severity: SeverityError, Message: err.Error()})
		return nil, issues
	}

	for _, orphan := range FindOrphans(raw.Nodes, edges) {
		issues = append(issues, ValidationIssue{Severity: SeverityWarning, NodeID: orphan, Message: "diagram: node has no incoming or outgoing edges"})
	}

	var starts []NodeID
	startCount := 0
	for _, n := range raw.Nodes {
		if n.Type == NodeTypeStart {
			starts = append(starts, n.ID)
			startCount++
		}
	}
	if startCount == 0 {
		issues = append(issues, ValidationIssue{Severity: SeverityError, Message: "diagram: no start node defined"})
		return nil, issues
	}

	idx := BuildIndex(raw.Nodes, edges)
	diagram := &ExecutableDiagram{
		ID:         raw.ID,
		Nodes:      raw.Nodes,
		Edges:      edges,
		Index:      idx,
		Layers:     layers,
		StartNodes: starts,
	}
	return diagram, issues
}

func findNode(nodes []Node, id NodeID) *Node {
	for i := range nodes {
		if nodes[i].ID == id {
			return &nodes[i]
		}
	}
	return nil
}

func hasFatal(issues []ValidationIssue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}
