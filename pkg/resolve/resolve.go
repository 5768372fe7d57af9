// Package resolve implements C5, the input resolver: for each of a node's
// effective incoming edges, extract the source's output value, select the
// declared port, apply the edge's transform, and assign the result under
// the edge's input key, last-writer-wins. Grounded on the teacher's
// pkg/engine/node_executor.go PrepareNodeContext for the overall
// single/multi-parent merge shape, and on
// original_source/.../interfaces/node_strategies.py for the node-type
// strategy table itself, which the teacher has no equivalent of.
package resolve

import (
	"fmt"
	"strings"

	"github.com/dipeoflow/engine/pkg/diagram"
	"github.com/dipeoflow/engine/pkg/state"
)

// NodeTypeStrategy decides, per target node type, which of a target node's
// incoming edges actually carry live input on a given execution of the
// target. This gate runs strictly before "does the source have output yet",
// per the two-pass filtering order confirmed in original_source and recorded
// as an Open Question resolution in spec.md §9.
type NodeTypeStrategy interface {
	ShouldProcessEdge(es *state.ExecutionState, edge *diagram.Edge, target *diagram.Node) bool
}

type defaultStrategy struct{}

func (defaultStrategy) ShouldProcessEdge(es *state.ExecutionState, edge *diagram.Edge, target *diagram.Node) bool {
	return true
}

// personJobStrategy implements the first-vs-subsequent execution policy,
// matching PersonJobStrategy.should_process_edge in the cited original:
// conversation_state edges are always accepted; otherwise, on the node's
// first execution, only "first"/"*_first"-targeted edges are accepted when
// any such edge exists for this node, else only default-targeted edges are;
// on subsequent executions, every edge except "first"/"*_first" ones is
// accepted.
type personJobStrategy struct{}

func (personJobStrategy) ShouldProcessEdge(es *state.ExecutionState, edge *diagram.Edge, target *diagram.Node) bool {
	if edge.Transform.ContentType == "conversation_state" {
		return true
	}

	targetInput := string(edge.TargetInput)
	isFirstInput := targetInput == "first" || strings.HasSuffix(targetInput, "_first")

	if es.IsFirstExecution(target.ID) {
		if hasFirstInputs(es, target.ID) {
			return isFirstInput
		}
		return targetInput == "" || targetInput == "default"
	}
	return !isFirstInput
}

// hasFirstInputs reports whether any of target's incoming edges declare a
// "first"/"*_first" target_input, per PersonJobStrategy.has_first_inputs.
func hasFirstInputs(es *state.ExecutionState, targetID diagram.NodeID) bool {
	for _, e := range es.Diagram.Index.EdgesByTarget[targetID] {
		ti := string(e.TargetInput)
		if ti == "first" || strings.HasSuffix(ti, "_first") {
			return true
		}
	}
	return false
}

func strategyFor(nodeType diagram.NodeType) NodeTypeStrategy {
	switch nodeType {
	case diagram.NodeTypePersonJob, diagram.NodeTypePersonBatchJob:
		return personJobStrategy{}
	default:
		return defaultStrategy{}
	}
}

// ResolvedInputs is the final input map passed to a node handler: keyed by
// edge label when set, else by the edge's declared target input handle,
// else "default".
type ResolvedInputs map[string]any

// Resolve computes a node's resolved inputs given the live execution state.
// This is the "runtime resolver" side of the compile-time/runtime adapter
// split noted in SPEC_FULL.md; Preview below is the compile-time sibling.
func Resolve(es *state.ExecutionState, nodeID diagram.NodeID) (ResolvedInputs, error) {
	node := es.Diagram.Index.NodesByID[nodeID]
	if node == nil {
		return nil, fmt.Errorf("resolve: unknown node %q", nodeID)
	}
	return resolveWithLookup(es, node, func(srcID diagram.NodeID) (*state.NodeOutput, bool) {
		out := es.Output(srcID)
		return out, out != nil
	})
}

// Preview resolves a node's inputs against a supplied fake outputs map
// instead of live execution state, without touching the node's own
// readiness or running status. Used by diagram linting/diffing tools to ask
// "what would this edge feed if its source had already produced X" — the
// compile-time resolution adapter supplemented from original_source (see
// SPEC_FULL.md).
func Preview(d *diagram.ExecutableDiagram, nodeID diagram.NodeID, fakeOutputs map[diagram.NodeID]any, firstExecution bool) (ResolvedInputs, error) {
	node := d.Index.NodesByID[nodeID]
	if node == nil {
		return nil, fmt.Errorf("resolve: unknown node %q", nodeID)
	}
	es := state.NewExecutionState(d)
	if !firstExecution {
		// Bump exec count so IsFirstExecution reports false for the preview,
		// matching how a strategy would see a subsequent run.
		es.MarkCompleted(nodeID, nil, nil)
	}
	return resolveWithLookup(es, node, func(srcID diagram.NodeID) (*state.NodeOutput, bool) {
		v, ok := fakeOutputs[srcID]
		if !ok {
			return nil, false
		}
		return &state.NodeOutput{Value: v}, true
	})
}

type outputLookup func(diagram.NodeID) (*state.NodeOutput, bool)

func resolveWithLookup(es *state.ExecutionState, target *diagram.Node, lookup outputLookup) (ResolvedInputs, error) {
	strategy := strategyFor(target.Type)
	inputs := ResolvedInputs{}

	for _, edge := range es.Diagram.Index.EdgesByTarget[target.ID] {
		if !strategy.ShouldProcessEdge(es, edge, target) {
			continue
		}
		out, ok := lookup(edge.SourceNodeID)
		if !ok {
			continue
		}

		value := extractSourceValue(es, edge, out)
		value = ApplyTransform(edge.Transform, value)
		key := inputKey(edge)
		inputs[key] = value
	}

	return inputs, nil
}

// extractSourceValue pulls the value an edge should carry out of a source
// node's output, synthesizing the condtrue/condfalse dual view for
// condition sources per the supplemented behavior in SPEC_FULL.md: both
// keys are always populated regardless of which branch fired, so an edge
// reading the inactive branch's port resolves to nil rather than erroring.
func extractSourceValue(es *state.ExecutionState, edge *diagram.Edge, out *state.NodeOutput) any {
	if out.Condition != nil {
		switch edge.SourceOutput {
		case "condtrue":
			return out.Condition.CondTrue
		case "condfalse":
			return out.Condition.CondFalse
		default:
			return out.Condition.Result
		}
	}
	return selectPort(out.Value, edge.SourceOutput)
}

// selectPort extracts a named sub-value from a node's output when the
// output is a map and a specific (non-default) handle name was declared.
// Non-map outputs, or a "default"/"" handle, pass the whole value through.
func selectPort(value any, handle diagram.HandleID) any {
	if handle == "" || handle == "default" {
		return value
	}
	m, ok := value.(map[string]any)
	if !ok {
		return value
	}
	if v, ok := m[string(handle)]; ok {
		return v
	}
	return value
}

func inputKey(edge *diagram.Edge) string {
	if edge.Label != "" {
		return edge.Label
	}
	if edge.TargetInput != "" {
		return string(edge.TargetInput)
	}
	return "default"
}
