package state

import (
	"strings"

	"github.com/dipeoflow/engine/pkg/diagram"
)

// EffectiveIncomingEdges returns the edges that actually gate a node's
// readiness, applying node-type-specific policy before the generic
// "all incoming edges must have fired" rule:
//
//   - person_job / person_batch_job: on a node's first execution, only
//     edges target_input == "first" (or suffixed "_first") gate readiness
//     when such an edge exists for this node; if none exists, only
//     default-targeted edges (empty or "default" target_input) and edges
//     whose transform is marked conversation_state gate readiness. On
//     subsequent executions, every conversation_state edge and every edge
//     except "first"/"*_first"-targeted ones gates readiness. This mirrors
//     PersonJobStrategy.should_process_edge in the cited original (see
//     pkg/resolve), re-derived here so a node does not become ready while
//     pkg/resolve still thinks an input is missing. One difference: on a
//     first run with "first" edges, pkg/resolve also accepts a
//     conversation_state edge (it contributes nothing until its source has
//     output), while readiness does not wait on it.
//   - every other node type: all incoming edges gate readiness.
func EffectiveIncomingEdges(es *ExecutionState, nodeID diagram.NodeID) []*diagram.Edge {
	node := es.Diagram.Index.NodesByID[nodeID]
	all := es.Diagram.Index.EdgesByTarget[nodeID]
	if node == nil || (node.Type != diagram.NodeTypePersonJob && node.Type != diagram.NodeTypePersonBatchJob) {
		return all
	}

	first := es.IsFirstExecution(nodeID)
	firstInputsExist := hasFirstInputs(all)

	var effective []*diagram.Edge
	for _, e := range all {
		if e.Transform.ContentType == "conversation_state" && !(first && firstInputsExist) {
			effective = append(effective, e)
			continue
		}

		targetInput := string(e.TargetInput)
		isFirstInput := targetInput == "first" || strings.HasSuffix(targetInput, "_first")

		if first {
			if firstInputsExist {
				if isFirstInput {
					effective = append(effective, e)
				}
			} else if targetInput == "" || targetInput == "default" {
				effective = append(effective, e)
			}
		} else if !isFirstInput {
			effective = append(effective, e)
		}
	}
	return effective
}

// hasFirstInputs reports whether any edge in edges declares a
// "first"/"*_first" target_input.
func hasFirstInputs(edges []*diagram.Edge) bool {
	for _, e := range edges {
		ti := string(e.TargetInput)
		if ti == "first" || strings.HasSuffix(ti, "_first") {
			return true
		}
	}
	return false
}

// IsReady reports whether a node's effective incoming edges have all fired
// (their source completed, and for condition sources, on the matching
// branch) and the node hasn't permanently left the pending/ready cycle.
func IsReady(es *ExecutionState, nodeID diagram.NodeID) bool {
	status := es.Status(nodeID)
	if status.Terminal() || status == StatusRunning {
		return false
	}

	node := es.Diagram.Index.NodesByID[nodeID]
	if node != nil && node.Type == diagram.NodeTypeStart {
		return es.ExecCount(nodeID) == 0
	}

	edges := EffectiveIncomingEdges(es, nodeID)
	if len(edges) == 0 {
		// A non-start node with no effective incoming edges can never fire;
		// the compiler's orphan check already warns about true orphans, but
		// a person_job with only a pruned conversation_state edge lands
		// here too and should simply never become ready.
		return false
	}

	for _, e := range edges {
		if !edgeSatisfied(es, e) {
			return false
		}
	}
	return true
}

func edgeSatisfied(es *ExecutionState, e *diagram.Edge) bool {
	if es.Status(e.SourceNodeID) != StatusCompleted {
		return false
	}
	if e.Branch == "" {
		return true
	}
	return es.ActiveBranch(e.SourceNodeID) == e.Branch
}

// ReachableFromActive performs a forward walk from the diagram's start
// nodes, following only edges whose branch (if any) matches the source
// condition node's last active branch (both branches while the condition
// hasn't fired). Node status doesn't stop the walk: nodes downstream of a
// failed or skipped node stay reachable, so while they remain pending they
// keep IsComplete false. A node not present in the returned set sits on an
// inactive branch, which is how completion detection distinguishes "every reachable node finished" from "nothing left but an
// unreachable, permanently-pending branch".
func ReachableFromActive(es *ExecutionState) map[diagram.NodeID]bool {
	reachable := make(map[diagram.NodeID]bool)
	var stack []diagram.NodeID
	stack = append(stack, es.Diagram.StartNodes...)

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reachable[id] {
			continue
		}
		reachable[id] = true

		for _, e := range es.Diagram.Index.EdgesBySource[id] {
			if e.Branch != "" {
				active := es.ActiveBranch(id)
				if active == "" {
					// Condition hasn't fired yet; both branches remain
					// reachable until it has.
				} else if active != e.Branch {
					continue
				}
			}
			stack = append(stack, e.TargetNodeID)
		}
	}
	return reachable
}

// IsComplete reports whether an execution has nothing left to do: every
// reachable node is in a terminal status and no node is currently ready or
// running.
func IsComplete(es *ExecutionState) bool {
	reachable := ReachableFromActive(es)
	for id := range reachable {
		status := es.Status(id)
		if status == StatusRunning {
			return false
		}
		if !status.Terminal() {
			if IsReady(es, id) {
				return false
			}
			// Pending but not ready and not reachable-complete: still part
			// of an unresolved branch decision (e.g. downstream of a
			// condition node that hasn't run yet) — not done.
			return false
		}
	}
	return true
}
