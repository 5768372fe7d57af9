// Package state implements C6, the per-execution stateful tracking layer:
// node status, exec counts, loop iteration, and the readiness rule that
// decides when a node's effective incoming edges are satisfied. Grounded on
// the teacher's pkg/engine/execution_state.go ExecutionState, generalized
// from its wave-indexed loop model to spec.md's per-node exec-count/
// iteration-cap model.
package state

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dipeoflow/engine/pkg/diagram"
)

// Status is a node's lifecycle status within one execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReady     Status = "ready"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusMaxIter   Status = "max_iterations_reached"
)

// Terminal reports whether a status will never transition again.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped, StatusMaxIter:
		return true
	default:
		return false
	}
}

// ConditionOutput is the synthesized dual-branch output of a condition node.
// Per the supplemented behavior in SPEC_FULL.md, both keys are always
// populated — the inactive branch resolves to nil downstream rather than
// erroring when an edge reads it.
type ConditionOutput struct {
	Result   bool
	CondTrue any
	CondFalse any
}

// NodeOutput is the value a node produced on its most recent successful run,
// recorded alongside the node's overall execution bookkeeping.
type NodeOutput struct {
	Value     any
	Condition *ConditionOutput // non-nil only for condition node outputs
}

// NodeRecord is the per-node bookkeeping an ExecutionState tracks.
type NodeRecord struct {
	Status       Status
	ExecCount    int
	Output       *NodeOutput
	Err          error
	LastBranch   string // "" | "true" | "false", set when a condition node last fired
}

// ExecutionState holds all per-node state for one running diagram execution.
// Safe for concurrent use; the scheduler's step loop and its worker
// goroutines touch it concurrently.
type ExecutionState struct {
	mu sync.RWMutex

	ExecutionID string
	Diagram     *diagram.ExecutableDiagram

	nodes map[diagram.NodeID]*NodeRecord

	// activeBranches records, for each condition node, which branch label
	// ("true"/"false") is currently live. Used by the completion-detection
	// reachability walk to prune the inactive branch's downstream subtree.
	activeBranches map[diagram.NodeID]string
}

// NewExecutionState initializes tracking for every node in the diagram,
// all starting StatusPending.
func NewExecutionState(d *diagram.ExecutableDiagram) *ExecutionState {
	es := &ExecutionState{
		ExecutionID:    uuid.NewString(),
		Diagram:        d,
		nodes:          make(map[diagram.NodeID]*NodeRecord, len(d.Nodes)),
		activeBranches: make(map[diagram.NodeID]string),
	}
	for _, n := range d.Nodes {
		es.nodes[n.ID] = &NodeRecord{Status: StatusPending}
	}
	return es
}

func (es *ExecutionState) record(id diagram.NodeID) *NodeRecord {
	r, ok := es.nodes[id]
	if !ok {
		r = &NodeRecord{Status: StatusPending}
		es.nodes[id] = r
	}
	return r
}

// Status returns a node's current status.
func (es *ExecutionState) Status(id diagram.NodeID) Status {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return es.record(id).Status
}

// ExecCount returns how many times a node has completed execution so far.
func (es *ExecutionState) ExecCount(id diagram.NodeID) int {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return es.record(id).ExecCount
}

// Output returns a node's most recent output, or nil if it hasn't produced
// one yet.
func (es *ExecutionState) Output(id diagram.NodeID) *NodeOutput {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return es.record(id).Output
}

// HasOutput reports whether a node has ever produced output.
func (es *ExecutionState) HasOutput(id diagram.NodeID) bool {
	return es.Output(id) != nil
}

// IsFirstExecution reports whether a node has not yet completed a run,
// implementing the ExecutionContextProtocol.is_first_execution concept from
// the node-type strategy table (pkg/resolve) — person_job nodes use this to
// choose between first_only_prompt and default_prompt.
func (es *ExecutionState) IsFirstExecution(id diagram.NodeID) bool {
	return es.ExecCount(id) == 0
}

// MarkRunning transitions a node to running, called by the scheduler right
// before dispatch.
func (es *ExecutionState) MarkRunning(id diagram.NodeID) {
	es.mu.Lock()
	defer es.mu.Unlock()
	r := es.record(id)
	r.Status = StatusRunning
}

// MarkCompleted records a successful run's output and increments exec count.
// For condition nodes, cond carries the synthesized dual-branch output and
// the active branch is recorded for completion-detection pruning.
func (es *ExecutionState) MarkCompleted(id diagram.NodeID, value any, cond *ConditionOutput) {
	es.mu.Lock()
	defer es.mu.Unlock()
	r := es.record(id)
	r.Status = StatusCompleted
	r.ExecCount++
	r.Output = &NodeOutput{Value: value, Condition: cond}
	if cond != nil {
		branch := "false"
		if cond.Result {
			branch = "true"
		}
		r.LastBranch = branch
		es.activeBranches[id] = branch
	}
}

// MarkFailed records a node's failure.
func (es *ExecutionState) MarkFailed(id diagram.NodeID, err error) {
	es.mu.Lock()
	defer es.mu.Unlock()
	r := es.record(id)
	r.Status = StatusFailed
	r.Err = err
}

// MarkSkipped marks a node as permanently skipped (e.g. pruned by an
// inactive condition branch, or explicitly skipped via a control message).
func (es *ExecutionState) MarkSkipped(id diagram.NodeID) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.record(id).Status = StatusSkipped
}

// MarkMaxIterationsReached marks a node as having hit its per-node iteration
// cap; it will no longer be considered ready regardless of its incoming
// edges.
func (es *ExecutionState) MarkMaxIterationsReached(id diagram.NodeID) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.record(id).Status = StatusMaxIter
}

// ResetForLoop clears a node's per-iteration state (status back to pending,
// output and error cleared) while preserving ExecCount, so a loop target can
// run again. Grounded on the teacher's ResetNodeForLoop.
func (es *ExecutionState) ResetForLoop(id diagram.NodeID) {
	es.mu.Lock()
	defer es.mu.Unlock()
	r := es.record(id)
	r.Status = StatusPending
	r.Output = nil
	r.Err = nil
}

// ActiveBranch returns the branch label ("true"/"false") a condition node
// last took, or "" if it hasn't run yet.
func (es *ExecutionState) ActiveBranch(id diagram.NodeID) string {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return es.activeBranches[id]
}

// Snapshot returns a point-in-time copy of every node's record, used by the
// scheduler's failure check (firstNodeFailure).
func (es *ExecutionState) Snapshot() map[diagram.NodeID]NodeRecord {
	es.mu.RLock()
	defer es.mu.RUnlock()
	out := make(map[diagram.NodeID]NodeRecord, len(es.nodes))
	for id, r := range es.nodes {
		out[id] = *r
	}
	return out
}
