// Package dispatch implements C8, the node dispatcher: a handler registry
// keyed by node type, each handler declaring the services it requires and
// validating its own config shape before invocation. Grounded on the
// teacher's pkg/executor/executor.go (Executor/Manager interfaces,
// BaseExecutor config-coercion helpers) and, for the RequiresServices
// contract specifically, original_source/.../typed_handler_base.py.
package dispatch

import (
	"context"
	"fmt"

	"github.com/dipeoflow/engine/pkg/diagram"
)

// ExecutionContext carries identifiers and shared services into a handler's
// Execute call. Grounded on the teacher's executor.ExecutionContext, with
// Services added per spec.md §4.8's dispatcher contract.
type ExecutionContext struct {
	ExecutionID string
	NodeID      diagram.NodeID
	DiagramID   string
	Services    *Services
}

// Handler is implemented by every node type's executor. Validate runs once
// per diagram in Registry.ValidateDiagram (so a malformed node config is
// caught before any execution starts) and again defensively in Dispatch
// before each Execute call.
type Handler interface {
	NodeType() diagram.NodeType
	RequiresServices() []string
	Validate(props diagram.NodeProps) error
	Execute(ctx context.Context, ec ExecutionContext, props diagram.NodeProps, inputs map[string]any) (NodeOutput, error)
}

// NodeOutput is a handler's normalized result: a plain value plus, for
// condition handlers only, the synthesized dual-branch view consumed by
// pkg/resolve and pkg/state.
type NodeOutput struct {
	Value     any
	Result    *bool // non-nil only for condition handlers
	CondTrue  any
	CondFalse any
}

// Registry is the handler lookup table, built once at process start and
// shared read-only across executions.
type Registry struct {
	handlers map[diagram.NodeType]Handler
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[diagram.NodeType]Handler)}
}

// Register adds a handler, panicking on a duplicate node type — this is a
// startup-time wiring error, not a runtime condition to recover from.
func (r *Registry) Register(h Handler) {
	if _, exists := r.handlers[h.NodeType()]; exists {
		panic(fmt.Sprintf("dispatch: handler for node type %q already registered", h.NodeType()))
	}
	r.handlers[h.NodeType()] = h
}

// Get returns the handler for a node type, or (nil, false) if none is
// registered.
func (r *Registry) Get(t diagram.NodeType) (Handler, bool) {
	h, ok := r.handlers[t]
	return h, ok
}

// Has reports whether a handler is registered for a node type.
func (r *Registry) Has(t diagram.NodeType) bool {
	_, ok := r.handlers[t]
	return ok
}

// ValidateDiagram runs every node's handler.Validate against its compiled
// props, aggregating failures rather than stopping at the first one so a
// diagram author sees every config problem in one pass. Also reports a
// node type with no registered handler at all.
func (r *Registry) ValidateDiagram(d *diagram.ExecutableDiagram) []diagram.ValidationIssue {
	var issues []diagram.ValidationIssue
	for _, n := range d.Nodes {
		h, ok := r.Get(n.Type)
		if !ok {
			issues = append(issues, diagram.ValidationIssue{
				Severity: diagram.SeverityError,
				NodeID:   n.ID,
				Message:  fmt.Sprintf("dispatch: no handler registered for node type %q", n.Type),
			})
			continue
		}
		if err := h.Validate(n.Props); err != nil {
			issues = append(issues, diagram.ValidationIssue{
				Severity: diagram.SeverityError,
				NodeID:   n.ID,
				Message:  err.Error(),
			})
		}
	}
	return issues
}

// Dispatch looks up and runs the handler for a node, returning a dispatch
// error (not a handler execution error) if no handler is registered for the
// node's type. Handler execution errors are returned as-is for the caller
// (pkg/scheduler) to apply its retry policy against.
func (r *Registry) Dispatch(ctx context.Context, ec ExecutionContext, node *diagram.Node, inputs map[string]any) (NodeOutput, error) {
	h, ok := r.Get(node.Type)
	if !ok {
		return NodeOutput{}, fmt.Errorf("dispatch: no handler registered for node type %q", node.Type)
	}
	if err := h.Validate(node.Props); err != nil {
		return NodeOutput{}, err
	}
	return h.Execute(ctx, ec, node.Props, inputs)
}
